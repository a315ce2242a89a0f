// Package types defines the shared vocabulary of the SDK — order enums,
// signable orders, order book snapshots, and the WebSocket wire payloads.
// It has no dependencies on other SDK packages, so it can be imported by
// any layer.
package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side is the direction of an order. It is numeric on the signable order
// (the value hashed under the typed-data domain) and serialised as an
// uppercase string on the wire.
type Side int

const (
	BUY  Side = 0
	SELL Side = 1
)

func (s Side) String() string {
	if s == SELL {
		return "SELL"
	}
	return "BUY"
}

// MarshalJSON renders the side as "BUY" / "SELL".
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts "BUY" / "SELL".
func (s *Side) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "BUY", "buy":
		*s = BUY
	case "SELL", "sell":
		*s = SELL
	default:
		return fmt.Errorf("unknown side %q", str)
	}
	return nil
}

// OrderType enumerates the supported order lifecycles.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Til-Cancelled: rests until filled or cancelled
	OrderTypeGTD OrderType = "GTD" // Good-Til-Date: rests until the expiration timestamp
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill: market order, fills completely or not at all
	OrderTypeFAK OrderType = "FAK" // Fill-And-Kill: market order, fills what it can
)

// SignatureType identifies the signing envelope the CTF exchange contract
// validates the order against.
type SignatureType int

const (
	SigEOA        SignatureType = 0 // externally-owned account; maker == signer
	SigProxy      SignatureType = 1 // Polymarket proxy wallet derived from the signer
	SigGnosisSafe SignatureType = 2 // Gnosis Safe derived from the signer
)

// TickSize is the price granularity of a market. Each token has a fixed
// tick size that bounds a limit order's price scale and the
// [tick, 1-tick] price range.
type TickSize string

const (
	Tick01    TickSize = "0.1"
	Tick001   TickSize = "0.01"
	Tick0001  TickSize = "0.001"
	Tick00001 TickSize = "0.0001"
)

// LotScale is the maximum decimal scale of an order's size, and of
// share-denominated market-order amounts.
const LotScale = 2

// CollateralScale is the decimal scale of the collateral token (USDC).
const CollateralScale = 6

// Scale returns the number of decimal places allowed for prices at this
// tick size.
func (t TickSize) Scale() int {
	switch t {
	case Tick01:
		return 1
	case Tick001:
		return 2
	case Tick0001:
		return 3
	case Tick00001:
		return 4
	default:
		return 2
	}
}

// ParseTickSize validates a tick size received from the server.
func ParseTickSize(s string) (TickSize, error) {
	switch TickSize(s) {
	case Tick01, Tick001, Tick0001, Tick00001:
		return TickSize(s), nil
	}
	return "", fmt.Errorf("unknown tick size %q", s)
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// MaxSaltBits caps the salt so the server can round-trip it through a
// double-precision JSON number.
const MaxSaltBits = 53

// SignableOrder is the canonical order record hashed under the exchange
// typed-data domain. All integer fields are 256-bit unsigned on chain;
// Salt is additionally capped at 53 bits.
type SignableOrder struct {
	Salt          uint64
	Maker         common.Address // wallet holding collateral (funder)
	Signer        common.Address // EOA that signs; == Maker for SigEOA
	Taker         common.Address // zero address = open order
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int // non-zero only for GTD
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          Side
	SignatureType SignatureType
}

// SignedOrder is a signable order plus its 65-byte ECDSA signature,
// folded into the wire shape the REST API expects: 256-bit fields as
// decimal strings, salt as a JSON number, side as an uppercase string.
type SignedOrder struct {
	Salt          uint64        `json:"salt"`
	Maker         string        `json:"maker"`
	Signer        string        `json:"signer"`
	Taker         string        `json:"taker"`
	TokenID       string        `json:"tokenId"`
	MakerAmount   string        `json:"makerAmount"`
	TakerAmount   string        `json:"takerAmount"`
	Expiration    string        `json:"expiration"`
	Nonce         string        `json:"nonce"`
	FeeRateBps    string        `json:"feeRateBps"`
	Side          Side          `json:"side"`
	SignatureType SignatureType `json:"signatureType"`
	Signature     string        `json:"signature"`
}

// Fold converts a signable order and its signature into the wire shape.
func (o *SignableOrder) Fold(signature []byte) SignedOrder {
	return SignedOrder{
		Salt:          o.Salt,
		Maker:         o.Maker.Hex(),
		Signer:        o.Signer.Hex(),
		Taker:         o.Taker.Hex(),
		TokenID:       o.TokenID.String(),
		MakerAmount:   o.MakerAmount.String(),
		TakerAmount:   o.TakerAmount.String(),
		Expiration:    o.Expiration.String(),
		Nonce:         o.Nonce.String(),
		FeeRateBps:    o.FeeRateBps.String(),
		Side:          o.Side,
		SignatureType: o.SignatureType,
		Signature:     "0x" + common.Bytes2Hex(signature),
	}
}

// OrderPayload is the REST request body for order submission. PostOnly
// is elided when false; market orders never carry it.
type OrderPayload struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"` // API key of the order owner
	OrderType OrderType   `json:"orderType"`
	PostOnly  bool        `json:"postOnly,omitempty"`
}

// OrderResponse is the per-order result of a batch POST.
type OrderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
}

// OpenOrder is a live resting order on the CLOB.
type OpenOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
}

// CancelResponse is returned by the cancel endpoints.
type CancelResponse struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

// ————————————————————————————————————————————————————————————————————————
// Order book
// ————————————————————————————————————————————————————————————————————————

// PriceLevel is a single bid or ask level. Price and size stay strings
// on the wire to preserve decimal precision.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// OrderBookSnapshot is a point-in-time view of one token's book.
// Bids are sorted price-descending, asks price-ascending.
type OrderBookSnapshot struct {
	AssetID        string       `json:"asset_id"`
	Market         string       `json:"market"`
	Timestamp      string       `json:"timestamp"`
	Hash           string       `json:"hash"`
	Bids           []PriceLevel `json:"bids"`
	Asks           []PriceLevel `json:"asks"`
	TickSize       string       `json:"tick_size"`
	MinOrderSize   string       `json:"min_order_size"`
	NegRisk        bool         `json:"neg_risk"`
	LastTradePrice string       `json:"last_trade_price"`
}

// ————————————————————————————————————————————————————————————————————————
// WebSocket frames
// ————————————————————————————————————————————————————————————————————————

// WSAuth carries the L2 credential triple on user-channel subscribe
// frames. It must only traverse secured transport.
type WSAuth struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// SubscribeFrame is the client→server frame for both channels. Markets
// carries 0x-hex condition IDs (user channel); AssetIDs carries decimal
// token IDs (market channel).
type SubscribeFrame struct {
	Auth        *WSAuth  `json:"auth,omitempty"`
	Type        string   `json:"type"`      // "market" or "user"
	Operation   string   `json:"operation"` // "subscribe" or "unsubscribe"
	Markets     []string `json:"markets"`
	AssetIDs    []string `json:"assets_ids"`
	InitialDump *bool    `json:"initial_dump,omitempty"`
}

// ————————————————————————————————————————————————————————————————————————
// WebSocket events
// ————————————————————————————————————————————————————————————————————————

// EventKind discriminates server events by their event_type field.
type EventKind int

const (
	KindBook EventKind = iota
	KindPriceChange
	KindTickSizeChange
	KindLastTradePrice
	KindBestBidAsk
	KindNewMarket
	KindMarketResolved
	KindTrade
	KindOrder

	numEventKinds
)

// NumEventKinds is the number of defined event kinds.
const NumEventKinds = int(numEventKinds)

var kindNames = [numEventKinds]string{
	KindBook:           "book",
	KindPriceChange:    "price_change",
	KindTickSizeChange: "tick_size_change",
	KindLastTradePrice: "last_trade_price",
	KindBestBidAsk:     "best_bid_ask",
	KindNewMarket:      "new_market",
	KindMarketResolved: "market_resolved",
	KindTrade:          "trade",
	KindOrder:          "order",
}

func (k EventKind) String() string {
	if k >= 0 && k < numEventKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("event_kind(%d)", int(k))
}

// ParseEventKind maps an event_type string to its kind.
func ParseEventKind(s string) (EventKind, bool) {
	for k, n := range kindNames {
		if n == s {
			return EventKind(k), true
		}
	}
	return 0, false
}

// Event is a decoded server event. RoutingKey returns the asset ID for
// market-channel events and the condition ID for user-channel events; it
// is what consumer-side streams filter on.
type Event interface {
	Kind() EventKind
	RoutingKey() string
}

// BookEvent is a full order book snapshot for one asset.
type BookEvent struct {
	EventType string       `json:"event_type"`
	AssetID   string       `json:"asset_id"`
	Market    string       `json:"market"`
	Timestamp string       `json:"timestamp"`
	Hash      string       `json:"hash"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
}

func (e *BookEvent) Kind() EventKind    { return KindBook }
func (e *BookEvent) RoutingKey() string { return e.AssetID }

// PriceChange is one level change within a price_change event.
type PriceChange struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Side  string `json:"side"`
}

// PriceChangeEvent is an incremental book update for one asset.
type PriceChangeEvent struct {
	EventType string        `json:"event_type"`
	AssetID   string        `json:"asset_id"`
	Market    string        `json:"market"`
	Timestamp string        `json:"timestamp"`
	Hash      string        `json:"hash"`
	Changes   []PriceChange `json:"changes"`
	BestBid   string        `json:"best_bid"`
	BestAsk   string        `json:"best_ask"`
}

func (e *PriceChangeEvent) Kind() EventKind    { return KindPriceChange }
func (e *PriceChangeEvent) RoutingKey() string { return e.AssetID }

// TickSizeChangeEvent announces a change of a token's minimum price
// increment. Consumers holding cached tick sizes must refresh.
type TickSizeChangeEvent struct {
	EventType   string `json:"event_type"`
	AssetID     string `json:"asset_id"`
	Market      string `json:"market"`
	Timestamp   string `json:"timestamp"`
	OldTickSize string `json:"old_tick_size"`
	NewTickSize string `json:"new_tick_size"`
}

func (e *TickSizeChangeEvent) Kind() EventKind    { return KindTickSizeChange }
func (e *TickSizeChangeEvent) RoutingKey() string { return e.AssetID }

// LastTradePriceEvent carries the most recent trade price for an asset.
type LastTradePriceEvent struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Timestamp string `json:"timestamp"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	FeeRate   string `json:"fee_rate_bps"`
}

func (e *LastTradePriceEvent) Kind() EventKind    { return KindLastTradePrice }
func (e *LastTradePriceEvent) RoutingKey() string { return e.AssetID }

// BestBidAskEvent is a top-of-book update.
type BestBidAskEvent struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Timestamp string `json:"timestamp"`
	BestBid   string `json:"best_bid"`
	BestAsk   string `json:"best_ask"`
	Spread    string `json:"spread"`
}

func (e *BestBidAskEvent) Kind() EventKind    { return KindBestBidAsk }
func (e *BestBidAskEvent) RoutingKey() string { return e.AssetID }

// NewMarketEvent announces a newly created market.
type NewMarketEvent struct {
	EventType string   `json:"event_type"`
	Market    string   `json:"market"`
	AssetIDs  []string `json:"assets_ids"`
	Question  string   `json:"question"`
	Slug      string   `json:"slug"`
	Timestamp string   `json:"timestamp"`
}

func (e *NewMarketEvent) Kind() EventKind    { return KindNewMarket }
func (e *NewMarketEvent) RoutingKey() string { return e.Market }

// MarketResolvedEvent announces market resolution.
type MarketResolvedEvent struct {
	EventType string `json:"event_type"`
	Market    string `json:"market"`
	Outcome   string `json:"outcome"`
	Timestamp string `json:"timestamp"`
}

func (e *MarketResolvedEvent) Kind() EventKind    { return KindMarketResolved }
func (e *MarketResolvedEvent) RoutingKey() string { return e.Market }

// TradeEvent is a fill notification on the user channel.
type TradeEvent struct {
	EventType string `json:"event_type"`
	ID        string `json:"id"`
	Market    string `json:"market"`
	AssetID   string `json:"asset_id"`
	Side      string `json:"side"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	Status    string `json:"status"`
	Outcome   string `json:"outcome"`
	TakerID   string `json:"taker_order_id"`
	Timestamp string `json:"timestamp"`
}

func (e *TradeEvent) Kind() EventKind    { return KindTrade }
func (e *TradeEvent) RoutingKey() string { return e.Market }

// OrderEvent is an order lifecycle notification on the user channel.
type OrderEvent struct {
	EventType       string   `json:"event_type"`
	ID              string   `json:"id"`
	Market          string   `json:"market"`
	AssetID         string   `json:"asset_id"`
	Side            string   `json:"side"`
	Price           string   `json:"price"`
	OriginalSize    string   `json:"original_size"`
	SizeMatched     string   `json:"size_matched"`
	Outcome         string   `json:"outcome"`
	Owner           string   `json:"owner"`
	Type            string   `json:"type"` // PLACEMENT, UPDATE, CANCELLATION
	AssociateTrades []string `json:"associate_trades"`
	Timestamp       string   `json:"timestamp"`
}

func (e *OrderEvent) Kind() EventKind    { return KindOrder }
func (e *OrderEvent) RoutingKey() string { return e.Market }

// ————————————————————————————————————————————————————————————————————————
// Connection state
// ————————————————————————————————————————————————————————————————————————

// ConnState names the connection lifecycle phases.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Reconnecting
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// ConnStatus is the observable connection state. Since is set while
// Connected; Attempt counts reconnect attempts while Reconnecting.
type ConnStatus struct {
	State   ConnState
	Since   time.Time
	Attempt int
}

// ————————————————————————————————————————————————————————————————————————
// Market metadata
// ————————————————————————————————————————————————————————————————————————

// Market is the subset of market metadata the SDK surfaces.
type Market struct {
	ConditionID     string      `json:"condition_id"`
	QuestionID      string      `json:"question_id"`
	Question        string      `json:"question"`
	Slug            string      `json:"market_slug"`
	Tokens          []TokenInfo `json:"tokens"`
	Active          bool        `json:"active"`
	Closed          bool        `json:"closed"`
	AcceptingOrders bool        `json:"accepting_orders"`
	MinimumTickSize string      `json:"minimum_tick_size"`
	MinOrderSize    string      `json:"minimum_order_size"`
	NegRisk         bool        `json:"neg_risk"`
	EndDateISO      string      `json:"end_date_iso"`
}

// TokenInfo is one outcome token of a market.
type TokenInfo struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	Price   string `json:"price"`
	Winner  bool   `json:"winner"`
}
