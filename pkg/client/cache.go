package client

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
)

// Per-token metadata caches. Tick size and neg-risk are immutable on the
// server for long stretches, so they are fetched once and then served
// from concurrent maps; the order builder reads them on every build.
// Explicit setters allow pre-population (e.g. from a tick_size_change
// stream event) and InvalidateCaches drops everything at once.

// GetTickSize returns the token's tick size, fetching it on first use.
func (cl *Client) GetTickSize(ctx context.Context, tokenID string) (types.TickSize, error) {
	if cached, ok := cl.c.tickSizes.Load(tokenID); ok {
		return cached.(types.TickSize), nil
	}

	if err := cl.c.rl.Book.Wait(ctx); err != nil {
		return "", err
	}
	var result struct {
		MinimumTickSize float64 `json:"minimum_tick_size"`
	}
	resp, err := cl.c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/tick-size")
	if err != nil {
		return "", apierr.Internal("get tick size", err)
	}
	if err := checkResponse(resp, http.MethodGet, "/tick-size"); err != nil {
		return "", err
	}

	tick, err := types.ParseTickSize(strconv.FormatFloat(result.MinimumTickSize, 'f', -1, 64))
	if err != nil {
		return "", apierr.Internal("parse tick size", err)
	}
	cl.c.tickSizes.Store(tokenID, tick)
	return tick, nil
}

// SetTickSize pre-populates the tick-size cache.
func (cl *Client) SetTickSize(tokenID string, tick types.TickSize) {
	cl.c.tickSizes.Store(tokenID, tick)
}

// GetNegRisk reports whether the token's market settles through the
// neg-risk adapter, fetching the flag on first use.
func (cl *Client) GetNegRisk(ctx context.Context, tokenID string) (bool, error) {
	if cached, ok := cl.c.negRisks.Load(tokenID); ok {
		return cached.(bool), nil
	}

	if err := cl.c.rl.Book.Wait(ctx); err != nil {
		return false, err
	}
	var result struct {
		NegRisk bool `json:"neg_risk"`
	}
	resp, err := cl.c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/neg-risk")
	if err != nil {
		return false, apierr.Internal("get neg risk", err)
	}
	if err := checkResponse(resp, http.MethodGet, "/neg-risk"); err != nil {
		return false, err
	}

	cl.c.negRisks.Store(tokenID, result.NegRisk)
	return result.NegRisk, nil
}

// SetNegRisk pre-populates the neg-risk cache.
func (cl *Client) SetNegRisk(tokenID string, negRisk bool) {
	cl.c.negRisks.Store(tokenID, negRisk)
}

// GetFeeRateBps returns the fee rate for a token. The venue does not
// expose a per-token fee endpoint; the cache is populated by SetFeeRateBps
// and defaults to zero.
func (cl *Client) GetFeeRateBps(_ context.Context, tokenID string) (int64, error) {
	if cached, ok := cl.c.feeRates.Load(tokenID); ok {
		return cached.(int64), nil
	}
	return 0, nil
}

// SetFeeRateBps pre-populates the fee-rate cache.
func (cl *Client) SetFeeRateBps(tokenID string, bps int64) {
	cl.c.feeRates.Store(tokenID, bps)
}

// InvalidateCaches drops every cached tick size, neg-risk flag, and fee
// rate. The next lookup per token costs exactly one server round trip.
func (cl *Client) InvalidateCaches() {
	for _, m := range []*sync.Map{&cl.c.tickSizes, &cl.c.negRisks, &cl.c.feeRates} {
		m.Range(func(k, _ any) bool {
			m.Delete(k)
			return true
		})
	}
}
