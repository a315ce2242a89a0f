// Package order builds signable limit and market orders. Builders
// validate prices and sizes against the token's tick size and the fixed
// 2-dp lot scale, quantise notionals onto collateral units, and for
// market orders derive the effective price from live orderbook depth.
// The heavy inputs (tick size, neg-risk, fees, books, wallet identity)
// come from a Venue, implemented by the authenticated client.
package order

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
)

// Venue supplies the market data and signing identity a builder needs.
// *client.AuthedClient satisfies it.
type Venue interface {
	GetTickSize(ctx context.Context, tokenID string) (types.TickSize, error)
	GetFeeRateBps(ctx context.Context, tokenID string) (int64, error)
	GetOrderBook(ctx context.Context, tokenID string) (*types.OrderBookSnapshot, error)
	Funder() common.Address
	SignerAddress() common.Address
	SignatureType() types.SignatureType
	Salt() uint64
}

// Built is a finished order ready for signing and submission.
type Built struct {
	Order     *types.SignableOrder
	OrderType types.OrderType
	PostOnly  bool
}

var one = decimal.NewFromInt(1)

// checkPrice enforces the tick-size scale and the [tick, 1-tick] band.
func checkPrice(price decimal.Decimal, tick types.TickSize) error {
	scale := int32(tick.Scale())
	if !price.Truncate(scale).Equal(price) {
		return apierr.Validationf("price %s exceeds tick size scale %d", price, scale)
	}
	tickDec := decimal.RequireFromString(string(tick))
	if price.LessThan(tickDec) || price.GreaterThan(one.Sub(tickDec)) {
		return apierr.Validationf("price %s outside [%s, %s]", price, tickDec, one.Sub(tickDec))
	}
	return nil
}

// checkSize enforces a strictly positive size at lot scale.
func checkSize(size decimal.Decimal) error {
	if !size.IsPositive() {
		return apierr.Validationf("size must be positive, got %s", size)
	}
	if !size.Truncate(types.LotScale).Equal(size) {
		return apierr.Validationf("size %s exceeds lot scale %d", size, types.LotScale)
	}
	return nil
}

// toTokenUnits truncates to collateral scale and converts to the 6-dp
// integer representation the exchange contract consumes.
func toTokenUnits(d decimal.Decimal) *big.Int {
	return d.Truncate(types.CollateralScale).Shift(types.CollateralScale).BigInt()
}

// assemble fills the identity, fee, and salt fields common to both
// builders.
func assemble(ctx context.Context, v Venue, tokenID string, side types.Side, maker, taker decimal.Decimal, expiration int64, nonce uint64, takerAddr common.Address) (*types.SignableOrder, error) {
	feeBps, err := v.GetFeeRateBps(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	tokenInt, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return nil, apierr.Validationf("token id %q is not a decimal integer", tokenID)
	}

	makerAmount := toTokenUnits(maker)
	takerAmount := toTokenUnits(taker)
	if makerAmount.Sign() <= 0 || takerAmount.Sign() <= 0 {
		return nil, apierr.Validationf("order notionals must be positive (maker %s, taker %s)", makerAmount, takerAmount)
	}

	return &types.SignableOrder{
		Salt:          v.Salt() & (1<<types.MaxSaltBits - 1),
		Maker:         v.Funder(),
		Signer:        v.SignerAddress(),
		Taker:         takerAddr,
		TokenID:       tokenInt,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    big.NewInt(expiration),
		Nonce:         new(big.Int).SetUint64(nonce),
		FeeRateBps:    big.NewInt(feeBps),
		Side:          side,
		SignatureType: v.SignatureType(),
	}, nil
}
