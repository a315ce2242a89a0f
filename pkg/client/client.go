// Package client implements the typestate CLOB client. A Client starts
// unauthenticated and exposes only the public surface:
//
//   - GetOrderBook / GetOrderBooks:  GET /book, POST /books
//   - GetMidpoint / GetPrice:        GET /midpoint, GET /price
//   - GetMarket / AllMarkets:        GET /markets
//   - GetTickSize / GetNegRisk:      cached per-token metadata reads
//   - CreateAPIKey / DeriveAPIKey:   L1-signed credential issuance
//   - WatchMarkets:                  public market-data streaming
//
// Authenticate moves it to an AuthedClient (order management, balances,
// user-channel streaming), and PromoteToBuilder to a BuilderClient that
// attaches a second POLY_BUILDER_* header set. Handles over the same
// inner state are created with Clone; the state-changing transitions
// demand a sole handle and fail with a SyncError otherwise.
package client

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/auth"
	"polymarket-sdk/pkg/types"
	"polymarket-sdk/pkg/ws"
)

// Production endpoints. Constants are consumed only at construction.
const (
	DefaultHost   = "https://clob.polymarket.com"
	DefaultWSBase = "wss://ws-subscriptions-clob.polymarket.com/ws"
)

// core is the shared inner state behind every client handle. Cloned
// handles are peer co-owners; handles counts them so state transitions
// can demand exclusivity.
type core struct {
	http   *resty.Client
	rl     *RateLimiter
	signer *auth.Signer
	logger *slog.Logger

	useServerTime bool
	salt          func() uint64
	wsBase        string
	wsTune        func(*ws.Config) // test hook for socket tuning

	handles atomic.Int32

	mu        sync.Mutex
	creds     auth.Credentials
	hasCreds  bool
	funder    common.Address
	sigType   types.SignatureType
	builder   auth.BuilderSigner
	heartbeat *heartbeatTask
	market    *channelHandle
	user      *channelHandle

	tickSizes sync.Map // token id → types.TickSize
	negRisks  sync.Map // token id → bool
	feeRates  sync.Map // token id → int64
}

// Client is the unauthenticated state.
type Client struct {
	c *core
}

// Option adjusts client construction.
type Option func(*core)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *core) { c.logger = logger }
}

// WithServerTime sources L1/L2 timestamps from GET /time instead of the
// local clock, trading one round-trip per signed request for tolerance
// of local clock skew.
func WithServerTime() Option {
	return func(c *core) { c.useServerTime = true }
}

// WithSaltSource overrides the order-salt generator. Values are masked
// to 53 bits.
func WithSaltSource(salt func() uint64) Option {
	return func(c *core) { c.salt = salt }
}

// WithWSBase overrides the websocket endpoint base; the market and user
// channel paths are appended to it.
func WithWSBase(base string) Option {
	return func(c *core) { c.wsBase = strings.TrimSuffix(base, "/") }
}

// WithHTTPTimeout overrides the per-request HTTP timeout.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *core) { c.http.SetTimeout(d) }
}

func defaultSalt() uint64 {
	return rand.Uint64() & (1<<types.MaxSaltBits - 1)
}

// NewClient creates an unauthenticated client for host. The signer may
// be nil for read-only use; credential issuance and authentication then
// fail with a validation error.
func NewClient(host string, signer *auth.Signer, opts ...Option) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(host, "/")).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	c := &core{
		http:   httpClient,
		rl:     NewRateLimiter(),
		signer: signer,
		logger: slog.Default(),
		salt:   defaultSalt,
		wsBase: DefaultWSBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "clob-client")
	c.handles.Store(1)
	return &Client{c: c}
}

// Clone creates a peer handle over the same inner state.
func (cl *Client) Clone() *Client {
	cl.c.handles.Add(1)
	return &Client{c: cl.c}
}

// Close releases this handle. The last handle to close tears down the
// websocket channels and the heartbeat task.
func (cl *Client) Close() { cl.c.release() }

func (c *core) release() {
	if c.handles.Add(-1) > 0 {
		return
	}
	c.mu.Lock()
	hb := c.heartbeat
	c.heartbeat = nil
	market, user := c.market, c.user
	c.market, c.user = nil, nil
	c.mu.Unlock()

	if hb != nil {
		hb.stop()
	}
	if market != nil {
		market.close()
	}
	if user != nil {
		user.close()
	}
}

// requireSoleHandle guards state transitions.
func (c *core) requireSoleHandle(op string) error {
	if n := c.handles.Load(); n != 1 {
		return &apierr.SyncError{Op: op, Handles: n}
	}
	return nil
}

// timestamp returns the signing timestamp in unix seconds, from the
// server when server-time mode is on.
func (c *core) timestamp(ctx context.Context) (string, error) {
	if !c.useServerTime {
		return strconv.FormatInt(time.Now().Unix(), 10), nil
	}
	secs, err := c.serverTime(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(secs, 10), nil
}

func (c *core) serverTime(ctx context.Context) (int64, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/time")
	if err != nil {
		return 0, apierr.Internal("get server time", err)
	}
	if err := checkResponse(resp, http.MethodGet, "/time"); err != nil {
		return 0, err
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(resp.String()), 10, 64)
	if err != nil {
		return 0, apierr.Internal("parse server time", err)
	}
	return secs, nil
}

// l2Headers assembles the authenticated header set, including the
// builder extension when one is configured.
func (c *core) l2Headers(ctx context.Context, method, path, body string) (map[string]string, error) {
	c.mu.Lock()
	creds := c.creds
	hasCreds := c.hasCreds
	builder := c.builder
	c.mu.Unlock()

	if !hasCreds {
		return nil, apierr.Validationf("operation requires credentials")
	}

	ts, err := c.timestamp(ctx)
	if err != nil {
		return nil, err
	}
	headers, err := auth.L2Headers(c.signer.Address().Hex(), creds, ts, method, path, body)
	if err != nil {
		return nil, err
	}
	if builder != nil {
		extra, err := builder.BuilderHeaders(ctx, ts, method, path, body)
		if err != nil {
			return nil, err
		}
		for k, v := range extra {
			headers[k] = v
		}
	}
	return headers, nil
}

// Ok checks API reachability.
func (cl *Client) Ok(ctx context.Context) error {
	resp, err := cl.c.http.R().SetContext(ctx).Get("/")
	if err != nil {
		return apierr.Internal("health check", err)
	}
	return checkResponse(resp, http.MethodGet, "/")
}

// ServerTime returns the venue clock in unix seconds.
func (cl *Client) ServerTime(ctx context.Context) (int64, error) {
	return cl.c.serverTime(ctx)
}

// GetOrderBook fetches the current book for one token.
func (cl *Client) GetOrderBook(ctx context.Context, tokenID string) (*types.OrderBookSnapshot, error) {
	if err := cl.c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	var result types.OrderBookSnapshot
	resp, err := cl.c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/book")
	if err != nil {
		return nil, apierr.Internal("get book", err)
	}
	if err := checkResponse(resp, http.MethodGet, "/book"); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOrderBooks fetches books for several tokens in one round trip.
func (cl *Client) GetOrderBooks(ctx context.Context, tokenIDs []string) ([]types.OrderBookSnapshot, error) {
	if len(tokenIDs) == 0 {
		return nil, nil
	}
	if err := cl.c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	params := make([]struct {
		TokenID string `json:"token_id"`
	}, len(tokenIDs))
	for i, id := range tokenIDs {
		params[i].TokenID = id
	}
	var result []types.OrderBookSnapshot
	resp, err := cl.c.http.R().
		SetContext(ctx).
		SetBody(params).
		SetResult(&result).
		Post("/books")
	if err != nil {
		return nil, apierr.Internal("get books", err)
	}
	if err := checkResponse(resp, http.MethodPost, "/books"); err != nil {
		return nil, err
	}
	return result, nil
}

// GetMidpoint returns the midpoint price for a token.
func (cl *Client) GetMidpoint(ctx context.Context, tokenID string) (string, error) {
	if err := cl.c.rl.Book.Wait(ctx); err != nil {
		return "", err
	}
	var result struct {
		Mid string `json:"mid"`
	}
	resp, err := cl.c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/midpoint")
	if err != nil {
		return "", apierr.Internal("get midpoint", err)
	}
	if err := checkResponse(resp, http.MethodGet, "/midpoint"); err != nil {
		return "", err
	}
	return result.Mid, nil
}

// GetPrice returns the best price on one side of a token's book.
func (cl *Client) GetPrice(ctx context.Context, tokenID string, side types.Side) (string, error) {
	if err := cl.c.rl.Book.Wait(ctx); err != nil {
		return "", err
	}
	var result struct {
		Price string `json:"price"`
	}
	resp, err := cl.c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"token_id": tokenID,
			"side":     side.String(),
		}).
		SetResult(&result).
		Get("/price")
	if err != nil {
		return "", apierr.Internal("get price", err)
	}
	if err := checkResponse(resp, http.MethodGet, "/price"); err != nil {
		return "", err
	}
	return result.Price, nil
}

// GetLastTradePrice returns the most recent trade for a token.
func (cl *Client) GetLastTradePrice(ctx context.Context, tokenID string) (*types.LastTradePriceEvent, error) {
	if err := cl.c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	var result types.LastTradePriceEvent
	resp, err := cl.c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/last-trade-price")
	if err != nil {
		return nil, apierr.Internal("get last trade price", err)
	}
	if err := checkResponse(resp, http.MethodGet, "/last-trade-price"); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetMarket fetches one market by condition id.
func (cl *Client) GetMarket(ctx context.Context, conditionID string) (*types.Market, error) {
	if err := cl.c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	path := "/markets/" + conditionID
	var result types.Market
	resp, err := cl.c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(path)
	if err != nil {
		return nil, apierr.Internal("get market", err)
	}
	if err := checkResponse(resp, http.MethodGet, path); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetMarkets fetches one page of markets. Pass an empty cursor for the
// first page; iteration ends when NextCursor equals EndCursor.
func (cl *Client) GetMarkets(ctx context.Context, cursor string) (*Page[types.Market], error) {
	if err := cl.c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	var result Page[types.Market]
	req := cl.c.http.R().SetContext(ctx).SetResult(&result)
	if cursor != "" {
		req.SetQueryParam("next_cursor", cursor)
	}
	resp, err := req.Get("/markets")
	if err != nil {
		return nil, apierr.Internal("get markets", err)
	}
	if err := checkResponse(resp, http.MethodGet, "/markets"); err != nil {
		return nil, err
	}
	return &result, nil
}

// AllMarkets walks the /markets pages to the sentinel cursor and returns
// the flattened items.
func (cl *Client) AllMarkets(ctx context.Context) ([]types.Market, error) {
	return Paginate(ctx, func(ctx context.Context, cursor string) (*Page[types.Market], error) {
		return cl.GetMarkets(ctx, cursor)
	})
}

// CreateAPIKey creates fresh L2 credentials with an L1-signed request.
func (cl *Client) CreateAPIKey(ctx context.Context, nonce uint64) (*auth.Credentials, error) {
	return cl.c.l1CredentialCall(ctx, http.MethodPost, "/auth/api-key", nonce)
}

// DeriveAPIKey deterministically re-derives credentials previously
// created for this wallet and nonce.
func (cl *Client) DeriveAPIKey(ctx context.Context, nonce uint64) (*auth.Credentials, error) {
	return cl.c.l1CredentialCall(ctx, http.MethodGet, "/auth/derive-api-key", nonce)
}

// CreateOrDeriveAPIKey creates credentials, falling back to derivation
// when the server refuses with an HTTP status (the key already exists).
// Network failures are not retried against the derive endpoint.
func (cl *Client) CreateOrDeriveAPIKey(ctx context.Context, nonce uint64) (*auth.Credentials, error) {
	creds, err := cl.CreateAPIKey(ctx, nonce)
	if err == nil {
		return creds, nil
	}
	var status *apierr.StatusError
	if errors.As(err, &status) {
		cl.c.logger.Debug("create api key refused, deriving instead", "status", status.Status)
		return cl.DeriveAPIKey(ctx, nonce)
	}
	return nil, err
}

func (c *core) l1CredentialCall(ctx context.Context, method, path string, nonce uint64) (*auth.Credentials, error) {
	if c.signer == nil {
		return nil, apierr.Validationf("credential issuance requires a signer")
	}
	ts, err := c.timestamp(ctx)
	if err != nil {
		return nil, err
	}
	headers, err := c.signer.L1Headers(ts, nonce)
	if err != nil {
		return nil, err
	}

	var result auth.Credentials
	req := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result)
	var resp *resty.Response
	if method == http.MethodPost {
		resp, err = req.Post(path)
	} else {
		resp, err = req.Get(path)
	}
	if err != nil {
		return nil, apierr.Internal("credential request", err)
	}
	if err := checkResponse(resp, method, path); err != nil {
		return nil, err
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

// AuthOptions parameterise the unauthenticated → authenticated
// transition.
type AuthOptions struct {
	// Credentials, when set, skips server-side issuance.
	Credentials *auth.Credentials
	// Nonce used for credential creation/derivation when Credentials is
	// nil.
	Nonce uint64
	// SignatureType selects the signing envelope. Defaults to EOA.
	SignatureType types.SignatureType
	// Funder is the collateral wallet. Must stay zero for EOA (the signer
	// funds itself); for proxy/safe a zero value derives the wallet from
	// the signer address.
	Funder common.Address
}

// Authenticate transitions to the authenticated state. The receiver must
// not be used afterwards; the returned handle replaces it.
func (cl *Client) Authenticate(ctx context.Context, opts AuthOptions) (*AuthedClient, error) {
	c := cl.c
	if c.signer == nil {
		return nil, apierr.Validationf("authentication requires a signer")
	}

	var funder common.Address
	zero := common.Address{}
	switch opts.SignatureType {
	case types.SigEOA:
		if opts.Funder != zero {
			return nil, apierr.Validationf("explicit funder is not allowed for EOA signatures")
		}
		funder = c.signer.Address()
	case types.SigProxy, types.SigGnosisSafe:
		funder = opts.Funder
		if funder == zero {
			derived, err := auth.DeriveFunder(c.signer.Address(), opts.SignatureType)
			if err != nil {
				return nil, err
			}
			funder = derived
		}
	default:
		return nil, apierr.Validationf("unknown signature type %d", opts.SignatureType)
	}

	var creds *auth.Credentials
	if opts.Credentials != nil {
		if err := opts.Credentials.Validate(); err != nil {
			return nil, err
		}
		creds = opts.Credentials
	} else {
		issued, err := cl.CreateOrDeriveAPIKey(ctx, opts.Nonce)
		if err != nil {
			return nil, err
		}
		creds = issued
	}

	c.mu.Lock()
	c.creds = *creds
	c.hasCreds = true
	c.funder = funder
	c.sigType = opts.SignatureType
	c.mu.Unlock()

	c.logger.Info("authenticated",
		"address", c.signer.Address().Hex(),
		"funder", funder.Hex(),
		"signature_type", int(opts.SignatureType))
	return &AuthedClient{Client: Client{c: c}}, nil
}
