package order

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
)

// Amount is a tagged market-order quantity: collateral (USDC) or
// outcome shares.
type Amount struct {
	value  decimal.Decimal
	shares bool
}

// USDC denominates a market order in collateral.
func USDC(v decimal.Decimal) Amount { return Amount{value: v} }

// Shares denominates a market order in outcome tokens.
func Shares(v decimal.Decimal) Amount { return Amount{value: v, shares: true} }

// Market accumulates the fields of an immediate order. The default
// lifecycle is FAK; FOK is the only alternative, and post-only does not
// exist for market orders.
type Market struct {
	tokenID   string
	side      types.Side
	amount    Amount
	orderType types.OrderType
	price     *decimal.Decimal
	nonce     uint64
}

// NewMarket starts a market order build.
func NewMarket(tokenID string, side types.Side, amount Amount) *Market {
	return &Market{
		tokenID:   tokenID,
		side:      side,
		amount:    amount,
		orderType: types.OrderTypeFAK,
	}
}

// WithOrderType selects FAK or FOK.
func (m *Market) WithOrderType(ot types.OrderType) *Market {
	m.orderType = ot
	return m
}

// WithPrice overrides the depth-derived price.
func (m *Market) WithPrice(price decimal.Decimal) *Market {
	m.price = &price
	return m
}

// WithNonce sets the on-chain cancel nonce.
func (m *Market) WithNonce(nonce uint64) *Market {
	m.nonce = nonce
	return m
}

// Build derives the effective price (unless overridden), bound-checks it
// like a limit price, and quantises the notionals:
//
//	BUY with USDC:    maker = amount, taker = trunc(amount / price, D)
//	BUY with Shares:  taker = amount, maker = trunc(amount * price, D)
//	SELL with Shares: maker = amount, taker = trunc(amount * price, D)
//
// where D = tick scale + lot scale. SELL denominated in USDC is
// rejected.
func (m *Market) Build(ctx context.Context, v Venue) (*Built, error) {
	switch m.orderType {
	case types.OrderTypeFAK, types.OrderTypeFOK:
	default:
		return nil, apierr.Validationf("market orders must be FAK or FOK, got %q", m.orderType)
	}
	if m.side == types.SELL && !m.amount.shares {
		return nil, apierr.Validationf("SELL market orders must be denominated in shares")
	}
	if !m.amount.value.IsPositive() {
		return nil, apierr.Validationf("amount must be positive, got %s", m.amount.value)
	}
	if m.amount.shares {
		if !m.amount.value.Truncate(types.LotScale).Equal(m.amount.value) {
			return nil, apierr.Validationf("share amount %s exceeds lot scale %d", m.amount.value, types.LotScale)
		}
	}

	tick, err := v.GetTickSize(ctx, m.tokenID)
	if err != nil {
		return nil, err
	}

	var price decimal.Decimal
	if m.price != nil {
		price = *m.price
	} else {
		price, err = m.derivePrice(ctx, v)
		if err != nil {
			return nil, err
		}
		price = price.Truncate(int32(tick.Scale()))
	}
	if err := checkPrice(price, tick); err != nil {
		return nil, err
	}

	quantScale := int32(tick.Scale() + types.LotScale)
	var maker, taker decimal.Decimal
	switch {
	case m.side == types.BUY && !m.amount.shares:
		maker = m.amount.value
		taker = m.amount.value.Div(price).Truncate(quantScale)
	case m.side == types.BUY:
		taker = m.amount.value
		maker = m.amount.value.Mul(price).Truncate(quantScale)
	default: // SELL with shares
		maker = m.amount.value
		taker = m.amount.value.Mul(price).Truncate(quantScale)
	}

	order, err := assemble(ctx, v, m.tokenID, m.side, maker, taker, 0, m.nonce, common.Address{})
	if err != nil {
		return nil, err
	}
	return &Built{Order: order, OrderType: m.orderType}, nil
}

// derivePrice walks the opposing side of the book from the deepest level
// toward the top, accumulating available quantity (in the amount's
// denomination) until the requested amount is covered; the level that
// covers it sets the cutoff price. A FOK order that cannot be covered
// fails; FAK falls back to the top-of-book price.
func (m *Market) derivePrice(ctx context.Context, v Venue) (decimal.Decimal, error) {
	book, err := v.GetOrderBook(ctx, m.tokenID)
	if err != nil {
		return decimal.Zero, err
	}

	levels := book.Asks
	if m.side == types.SELL {
		levels = book.Bids
	}
	if len(levels) == 0 {
		return decimal.Zero, apierr.Validationf("no %s liquidity for token %s", m.side, m.tokenID)
	}

	sum := decimal.Zero
	for i := len(levels) - 1; i >= 0; i-- {
		price, err := decimal.NewFromString(levels[i].Price)
		if err != nil {
			return decimal.Zero, apierr.Internal("parse book price", err)
		}
		size, err := decimal.NewFromString(levels[i].Size)
		if err != nil {
			return decimal.Zero, apierr.Internal("parse book size", err)
		}

		if m.amount.shares {
			sum = sum.Add(size)
		} else {
			sum = sum.Add(size.Mul(price))
		}
		if sum.GreaterThanOrEqual(m.amount.value) {
			return price, nil
		}
	}

	if m.orderType == types.OrderTypeFOK {
		return decimal.Zero, apierr.Validationf("insufficient depth for FOK order of %s", m.amount.value)
	}
	return decimal.NewFromString(levels[0].Price)
}
