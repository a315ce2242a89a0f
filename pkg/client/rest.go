package client

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"polymarket-sdk/pkg/apierr"
)

// checkResponse maps a completed REST exchange to the typed error kinds.
// 2xx with a non-null body passes; a body that deserialised to null is
// reported as a missing resource; 403 bodies carrying geolocation detail
// become GeoblockError; everything else non-2xx becomes StatusError.
func checkResponse(resp *resty.Response, method, path string) error {
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		if isNullBody(resp.Body()) {
			return &apierr.StatusError{
				Status:  http.StatusNotFound,
				Method:  method,
				Path:    path,
				Message: "resource not found",
			}
		}
		return nil
	}

	if code == http.StatusForbidden {
		var geo struct {
			Country string `json:"country"`
			Region  string `json:"region"`
			IP      string `json:"ip"`
		}
		if json.Unmarshal(resp.Body(), &geo) == nil && geo.Country != "" {
			return &apierr.GeoblockError{Country: geo.Country, Region: geo.Region, IP: geo.IP}
		}
	}

	return &apierr.StatusError{
		Status:  code,
		Method:  method,
		Path:    path,
		Message: strings.TrimSpace(resp.String()),
	}
}

func isNullBody(body []byte) bool {
	return bytes.Equal(bytes.TrimSpace(body), []byte("null"))
}
