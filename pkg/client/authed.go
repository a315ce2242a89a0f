package client

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/auth"
	"polymarket-sdk/pkg/types"
)

// maxOrderBatch is the venue's per-request order cap.
const maxOrderBatch = 15

// AuthedClient is the authenticated state: everything the public Client
// does, plus order management, balances, API-key administration, and
// user-channel streaming.
type AuthedClient struct {
	Client
}

// Clone creates a peer authenticated handle.
func (ac *AuthedClient) Clone() *AuthedClient {
	ac.c.handles.Add(1)
	return &AuthedClient{Client: Client{c: ac.c}}
}

// Credentials returns the active L2 credentials.
func (ac *AuthedClient) Credentials() auth.Credentials {
	ac.c.mu.Lock()
	defer ac.c.mu.Unlock()
	return ac.c.creds
}

// Funder returns the collateral wallet orders are placed from.
func (ac *AuthedClient) Funder() common.Address {
	ac.c.mu.Lock()
	defer ac.c.mu.Unlock()
	return ac.c.funder
}

// SignerAddress returns the signing EOA.
func (ac *AuthedClient) SignerAddress() common.Address {
	return ac.c.signer.Address()
}

// SignatureType returns the configured signing envelope.
func (ac *AuthedClient) SignatureType() types.SignatureType {
	ac.c.mu.Lock()
	defer ac.c.mu.Unlock()
	return ac.c.sigType
}

// Salt draws a fresh order salt from the configured generator, masked to
// the 53-bit cap.
func (ac *AuthedClient) Salt() uint64 {
	return ac.c.salt() & (1<<types.MaxSaltBits - 1)
}

// SignOrder hashes the order under the exchange domain for its token's
// neg-risk flag and folds in the signature.
func (ac *AuthedClient) SignOrder(ctx context.Context, order *types.SignableOrder) (*types.SignedOrder, error) {
	negRisk, err := ac.GetNegRisk(ctx, order.TokenID.String())
	if err != nil {
		return nil, err
	}
	sig, err := ac.c.signer.SignOrder(order, negRisk)
	if err != nil {
		return nil, err
	}
	signed := order.Fold(sig)
	return &signed, nil
}

// NewOrderPayload wraps a signed order with this client's API key as
// owner.
func (ac *AuthedClient) NewOrderPayload(order types.SignedOrder, orderType types.OrderType, postOnly bool) types.OrderPayload {
	return types.OrderPayload{
		Order:     order,
		Owner:     ac.Credentials().Key,
		OrderType: orderType,
		PostOnly:  postOnly,
	}
}

// PostOrder places a single order.
func (ac *AuthedClient) PostOrder(ctx context.Context, payload types.OrderPayload) (*types.OrderResponse, error) {
	if err := ac.c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apierr.Internal("marshal order", err)
	}

	var result types.OrderResponse
	if err := ac.l2Do(ctx, http.MethodPost, "/order", body, &result); err != nil {
		return nil, err
	}
	ac.c.logger.Info("order placed", "order_id", result.OrderID, "status", result.Status)
	return &result, nil
}

// PostOrders places up to 15 orders in one batch.
func (ac *AuthedClient) PostOrders(ctx context.Context, payloads []types.OrderPayload) ([]types.OrderResponse, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	if len(payloads) > maxOrderBatch {
		return nil, apierr.Validationf("batch limit is %d orders, got %d", maxOrderBatch, len(payloads))
	}
	if err := ac.c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payloads)
	if err != nil {
		return nil, apierr.Internal("marshal orders", err)
	}

	var results []types.OrderResponse
	if err := ac.l2Do(ctx, http.MethodPost, "/orders", body, &results); err != nil {
		return nil, err
	}
	ac.c.logger.Info("orders placed", "count", len(results))
	return results, nil
}

// CancelOrder cancels one order by id.
func (ac *AuthedClient) CancelOrder(ctx context.Context, orderID string) (*types.CancelResponse, error) {
	if err := ac.c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(struct {
		OrderID string `json:"orderID"`
	}{OrderID: orderID})
	if err != nil {
		return nil, apierr.Internal("marshal cancel request", err)
	}

	var result types.CancelResponse
	if err := ac.l2Do(ctx, http.MethodDelete, "/order", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelOrders cancels multiple orders by id.
func (ac *AuthedClient) CancelOrders(ctx context.Context, orderIDs []string) (*types.CancelResponse, error) {
	if len(orderIDs) == 0 {
		return &types.CancelResponse{}, nil
	}
	if err := ac.c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(struct {
		OrderIDs []string `json:"orderIDs"`
	}{OrderIDs: orderIDs})
	if err != nil {
		return nil, apierr.Internal("marshal cancel request", err)
	}

	var result types.CancelResponse
	if err := ac.l2Do(ctx, http.MethodDelete, "/orders", body, &result); err != nil {
		return nil, err
	}
	ac.c.logger.Info("orders cancelled", "count", len(result.Canceled))
	return &result, nil
}

// CancelAll cancels every open order across all markets.
func (ac *AuthedClient) CancelAll(ctx context.Context) (*types.CancelResponse, error) {
	if err := ac.c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}
	var result types.CancelResponse
	if err := ac.l2Do(ctx, http.MethodDelete, "/cancel-all", nil, &result); err != nil {
		return nil, err
	}
	ac.c.logger.Warn("all orders cancelled", "count", len(result.Canceled))
	return &result, nil
}

// CancelMarketOrders cancels all orders for one market.
func (ac *AuthedClient) CancelMarketOrders(ctx context.Context, conditionID string) (*types.CancelResponse, error) {
	if err := ac.c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(struct {
		Market string `json:"market"`
	}{Market: conditionID})
	if err != nil {
		return nil, apierr.Internal("marshal cancel request", err)
	}

	var result types.CancelResponse
	if err := ac.l2Do(ctx, http.MethodDelete, "/cancel-market-orders", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// OpenOrderParams filter the open-orders listing; empty fields are
// omitted.
type OpenOrderParams struct {
	Market  string
	AssetID string
}

// GetOpenOrders lists the account's resting orders.
func (ac *AuthedClient) GetOpenOrders(ctx context.Context, params OpenOrderParams) ([]types.OpenOrder, error) {
	if err := ac.c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	query := map[string]string{}
	if params.Market != "" {
		query["market"] = params.Market
	}
	if params.AssetID != "" {
		query["asset_id"] = params.AssetID
	}

	var result []types.OpenOrder
	if err := ac.l2Get(ctx, "/data/orders", query, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Trade is a historical fill record.
type Trade struct {
	ID        string `json:"id"`
	Market    string `json:"market"`
	AssetID   string `json:"asset_id"`
	Side      string `json:"side"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	Status    string `json:"status"`
	Outcome   string `json:"outcome"`
	MatchTime string `json:"match_time"`
}

// GetTrades lists the account's fills, optionally filtered by market.
func (ac *AuthedClient) GetTrades(ctx context.Context, market string) ([]Trade, error) {
	if err := ac.c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	query := map[string]string{}
	if market != "" {
		query["market"] = market
	}

	var result []Trade
	if err := ac.l2Get(ctx, "/data/trades", query, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// BalanceAllowance is the collateral or conditional balance report.
type BalanceAllowance struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

// GetBalanceAllowance reads the funder wallet's balance and exchange
// allowance. assetType is "COLLATERAL" or "CONDITIONAL"; tokenID applies
// only to the latter.
func (ac *AuthedClient) GetBalanceAllowance(ctx context.Context, assetType, tokenID string) (*BalanceAllowance, error) {
	if err := ac.c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	query := map[string]string{"asset_type": assetType}
	if tokenID != "" {
		query["token_id"] = tokenID
	}

	var result BalanceAllowance
	if err := ac.l2Get(ctx, "/balance-allowance", query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateBalanceAllowance asks the server to refresh its cached view of
// the funder wallet.
func (ac *AuthedClient) UpdateBalanceAllowance(ctx context.Context, assetType, tokenID string) error {
	if err := ac.c.rl.Book.Wait(ctx); err != nil {
		return err
	}
	query := map[string]string{"asset_type": assetType}
	if tokenID != "" {
		query["token_id"] = tokenID
	}
	return ac.l2Get(ctx, "/balance-allowance/update", query, nil)
}

// GetAPIKeys lists the wallet's API keys.
func (ac *AuthedClient) GetAPIKeys(ctx context.Context) ([]string, error) {
	var result struct {
		APIKeys []string `json:"apiKeys"`
	}
	if err := ac.l2Get(ctx, "/auth/api-keys", nil, &result); err != nil {
		return nil, err
	}
	return result.APIKeys, nil
}

// DeleteAPIKey revokes the active API key.
func (ac *AuthedClient) DeleteAPIKey(ctx context.Context) error {
	return ac.l2Do(ctx, http.MethodDelete, "/auth/api-key", nil, nil)
}

// Deauthenticate drops the credentials and tears down the user channel,
// returning the unauthenticated handle. Requires a sole handle; callers
// holding clones get a SyncError and must drop them first.
func (ac *AuthedClient) Deauthenticate() (*Client, error) {
	c := ac.c
	if err := c.requireSoleHandle("deauthenticate"); err != nil {
		return nil, err
	}

	ac.StopHeartbeat()
	c.closeUserChannel()

	c.mu.Lock()
	c.creds = auth.Credentials{}
	c.hasCreds = false
	c.builder = nil
	c.mu.Unlock()

	c.logger.Info("deauthenticated")
	return &Client{c: c}, nil
}

// PromoteToBuilder transitions to the builder-authenticated state. The
// heartbeat task, if running, is cancelled and awaited before the
// transition and restarted after it. Requires a sole handle.
func (ac *AuthedClient) PromoteToBuilder(builder auth.BuilderSigner) (*BuilderClient, error) {
	if builder == nil {
		return nil, apierr.Validationf("builder signer is required")
	}
	c := ac.c
	if err := c.requireSoleHandle("promote to builder"); err != nil {
		return nil, err
	}

	interval := ac.pauseHeartbeat()

	c.mu.Lock()
	c.builder = builder
	c.mu.Unlock()

	bc := &BuilderClient{AuthedClient: AuthedClient{Client: Client{c: c}}}
	if interval > 0 {
		bc.StartHeartbeat(interval)
	}
	c.logger.Info("promoted to builder")
	return bc, nil
}

// pauseHeartbeat stops a running heartbeat and reports its interval, or
// zero when none was running.
func (ac *AuthedClient) pauseHeartbeat() time.Duration {
	ac.c.mu.Lock()
	task := ac.c.heartbeat
	ac.c.heartbeat = nil
	ac.c.mu.Unlock()
	if task == nil {
		return 0
	}
	task.stop()
	return task.interval
}

// l2Do performs a signed request with a JSON body (or none).
func (ac *AuthedClient) l2Do(ctx context.Context, method, path string, body []byte, result any) error {
	headers, err := ac.c.l2Headers(ctx, method, path, string(body))
	if err != nil {
		return err
	}

	req := ac.c.http.R().SetContext(ctx).SetHeaders(headers)
	if body != nil {
		req.SetBody(json.RawMessage(body))
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return apierr.Internal("request "+path, err)
	}
	return checkResponse(resp, method, path)
}

// l2Get performs a signed GET with query parameters; the signature
// covers the bare path.
func (ac *AuthedClient) l2Get(ctx context.Context, path string, query map[string]string, result any) error {
	headers, err := ac.c.l2Headers(ctx, http.MethodGet, path, "")
	if err != nil {
		return err
	}

	req := ac.c.http.R().SetContext(ctx).SetHeaders(headers)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Get(path)
	if err != nil {
		return apierr.Internal("request "+path, err)
	}
	return checkResponse(resp, http.MethodGet, path)
}
