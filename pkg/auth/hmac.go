package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"polymarket-sdk/pkg/apierr"
)

// CanonicalMessage builds the L2 signing message:
// timestamp + METHOD + path + body, with the body's single quotes
// rewritten to double quotes. The rewrite keeps signatures stable across
// serialisers that differ only in quote style.
func CanonicalMessage(timestamp, method, path, body string) string {
	if body == "" {
		return timestamp + method + path
	}
	return timestamp + method + path + strings.ReplaceAll(body, "'", "\"")
}

// SignL2 computes the HMAC-SHA256 of the canonical message under the
// URL-safe-base64-decoded secret and returns it URL-safe-base64-encoded.
// Identical inputs always produce identical signatures.
func SignL2(secret, timestamp, method, path, body string) (string, error) {
	secretBytes, err := decodeSecret(secret)
	if err != nil {
		return "", apierr.Internal("decode secret", err)
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(CanonicalMessage(timestamp, method, path, body)))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// decodeSecret accepts the handful of base64 variants servers have been
// observed to issue. URL-safe padded is the documented form.
func decodeSecret(secret string) ([]byte, error) {
	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}
	var err error
	for _, dec := range decoders {
		var b []byte
		if b, err = dec.DecodeString(secret); err == nil {
			return b, nil
		}
	}
	return nil, err
}

// L2Headers assembles the five headers every authenticated request
// carries.
func L2Headers(address string, creds Credentials, timestamp, method, path, body string) (map[string]string, error) {
	sig, err := SignL2(creds.Secret, timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("l2 signature: %w", err)
	}
	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    creds.Key,
		"POLY_PASSPHRASE": creds.Passphrase,
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  timestamp,
	}, nil
}

// BuilderSigner produces the POLY_BUILDER_* header set attached to
// requests in the builder-authenticated state.
type BuilderSigner interface {
	BuilderHeaders(ctx context.Context, timestamp, method, path, body string) (map[string]string, error)
}

// LocalBuilderSigner HMACs the same canonical message a second time
// under the builder secret.
type LocalBuilderSigner struct {
	Creds Credentials
}

// BuilderHeaders implements BuilderSigner.
func (b *LocalBuilderSigner) BuilderHeaders(_ context.Context, timestamp, method, path, body string) (map[string]string, error) {
	sig, err := SignL2(b.Creds.Secret, timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("builder signature: %w", err)
	}
	return map[string]string{
		"POLY_BUILDER_API_KEY":    b.Creds.Key,
		"POLY_BUILDER_PASSPHRASE": b.Creds.Passphrase,
		"POLY_BUILDER_SIGNATURE":  sig,
		"POLY_BUILDER_TIMESTAMP":  timestamp,
	}, nil
}

// RemoteBuilderSigner forwards the request description to a remote
// signing service and returns its four builder headers verbatim. Used
// when the builder secret must not leave the signing service.
type RemoteBuilderSigner struct {
	http *resty.Client
}

// NewRemoteBuilderSigner creates a remote signer talking to baseURL.
func NewRemoteBuilderSigner(baseURL string) *RemoteBuilderSigner {
	return &RemoteBuilderSigner{
		http: resty.New().SetBaseURL(baseURL).SetHeader("Content-Type", "application/json"),
	}
}

type remoteSignRequest struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
}

type remoteSignResponse struct {
	ApiKey     string `json:"POLY_BUILDER_API_KEY"`
	Passphrase string `json:"POLY_BUILDER_PASSPHRASE"`
	Signature  string `json:"POLY_BUILDER_SIGNATURE"`
	Timestamp  string `json:"POLY_BUILDER_TIMESTAMP"`
}

// BuilderHeaders implements BuilderSigner.
func (r *RemoteBuilderSigner) BuilderHeaders(ctx context.Context, timestamp, method, path, body string) (map[string]string, error) {
	var result remoteSignResponse
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(remoteSignRequest{Method: method, Path: path, Body: body, Timestamp: timestamp}).
		SetResult(&result).
		Post("/sign")
	if err != nil {
		return nil, fmt.Errorf("remote builder sign: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &apierr.StatusError{
			Status:  resp.StatusCode(),
			Method:  "POST",
			Path:    "/sign",
			Message: resp.String(),
		}
	}
	return map[string]string{
		"POLY_BUILDER_API_KEY":    result.ApiKey,
		"POLY_BUILDER_PASSPHRASE": result.Passphrase,
		"POLY_BUILDER_SIGNATURE":  result.Signature,
		"POLY_BUILDER_TIMESTAMP":  result.Timestamp,
	}, nil
}
