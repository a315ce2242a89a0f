package order

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
)

// Limit accumulates the fields of a resting order. Zero values are the
// documented defaults: GTC, no expiration, nonce 0, open taker, not
// post-only.
type Limit struct {
	tokenID    string
	side       types.Side
	price      decimal.Decimal
	size       decimal.Decimal
	orderType  types.OrderType
	expiration int64
	nonce      uint64
	taker      common.Address
	postOnly   bool
}

// NewLimit starts a limit order build.
func NewLimit(tokenID string, side types.Side, price, size decimal.Decimal) *Limit {
	return &Limit{
		tokenID:   tokenID,
		side:      side,
		price:     price,
		size:      size,
		orderType: types.OrderTypeGTC,
	}
}

// WithOrderType sets the lifecycle; GTD additionally needs WithExpiration.
func (l *Limit) WithOrderType(ot types.OrderType) *Limit {
	l.orderType = ot
	return l
}

// WithExpiration sets the GTD expiry as a unix timestamp.
func (l *Limit) WithExpiration(unix int64) *Limit {
	l.expiration = unix
	return l
}

// WithNonce sets the on-chain cancel nonce.
func (l *Limit) WithNonce(nonce uint64) *Limit {
	l.nonce = nonce
	return l
}

// WithTaker restricts the order to a specific counterparty.
func (l *Limit) WithTaker(taker common.Address) *Limit {
	l.taker = taker
	return l
}

// WithPostOnly rejects the order server-side if it would cross.
func (l *Limit) WithPostOnly() *Limit {
	l.postOnly = true
	return l
}

// Build validates the order against the token's tick size and quantises
// the notionals. For BUY the taker amount is the share size and the
// maker amount the collateral spent; SELL is the mirror. Intermediate
// products are truncated at tick scale + lot scale before conversion to
// 6-dp collateral units.
func (l *Limit) Build(ctx context.Context, v Venue) (*Built, error) {
	switch l.orderType {
	case types.OrderTypeGTC, types.OrderTypeGTD, types.OrderTypeFOK, types.OrderTypeFAK:
	default:
		return nil, apierr.Validationf("unknown order type %q", l.orderType)
	}
	if l.expiration != 0 && l.orderType != types.OrderTypeGTD {
		return nil, apierr.Validationf("expiration is only valid for GTD orders")
	}
	if l.expiration == 0 && l.orderType == types.OrderTypeGTD {
		return nil, apierr.Validationf("GTD orders require an expiration")
	}
	if l.postOnly && l.orderType != types.OrderTypeGTC && l.orderType != types.OrderTypeGTD {
		return nil, apierr.Validationf("post-only requires GTC or GTD")
	}
	if err := checkSize(l.size); err != nil {
		return nil, err
	}

	tick, err := v.GetTickSize(ctx, l.tokenID)
	if err != nil {
		return nil, err
	}
	if err := checkPrice(l.price, tick); err != nil {
		return nil, err
	}

	quantScale := int32(tick.Scale() + types.LotScale)
	notional := l.size.Mul(l.price).Truncate(quantScale)

	var maker, taker decimal.Decimal
	if l.side == types.BUY {
		maker, taker = notional, l.size
	} else {
		maker, taker = l.size, notional
	}

	order, err := assemble(ctx, v, l.tokenID, l.side, maker, taker, l.expiration, l.nonce, l.taker)
	if err != nil {
		return nil, err
	}
	return &Built{Order: order, OrderType: l.orderType, PostOnly: l.postOnly}, nil
}
