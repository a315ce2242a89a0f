package order

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
)

var (
	funderAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	signerAddr = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

type fakeVenue struct {
	tick types.TickSize
	fee  int64
	book *types.OrderBookSnapshot
	salt uint64
}

func (f *fakeVenue) GetTickSize(context.Context, string) (types.TickSize, error) {
	if f.tick == "" {
		return types.Tick001, nil
	}
	return f.tick, nil
}

func (f *fakeVenue) GetFeeRateBps(context.Context, string) (int64, error) { return f.fee, nil }

func (f *fakeVenue) GetOrderBook(context.Context, string) (*types.OrderBookSnapshot, error) {
	if f.book == nil {
		return &types.OrderBookSnapshot{}, nil
	}
	return f.book, nil
}

func (f *fakeVenue) Funder() common.Address             { return funderAddr }
func (f *fakeVenue) SignerAddress() common.Address      { return signerAddr }
func (f *fakeVenue) SignatureType() types.SignatureType { return types.SigProxy }
func (f *fakeVenue) Salt() uint64                       { return f.salt }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLimitBuyNotionals(t *testing.T) {
	t.Parallel()

	v := &fakeVenue{salt: 42}
	built, err := NewLimit("123", types.BUY, dec("0.34"), dec("100")).Build(context.Background(), v)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	o := built.Order
	if o.TakerAmount.String() != "100000000" {
		t.Fatalf("taker = %s, want 100000000", o.TakerAmount)
	}
	if o.MakerAmount.String() != "34000000" {
		t.Fatalf("maker = %s, want 34000000", o.MakerAmount)
	}
	if o.Maker != funderAddr || o.Signer != signerAddr {
		t.Fatalf("identity = maker %s signer %s", o.Maker, o.Signer)
	}
	if o.SignatureType != types.SigProxy || o.Side != types.BUY {
		t.Fatalf("envelope = %+v", o)
	}
	if built.OrderType != types.OrderTypeGTC || built.PostOnly {
		t.Fatalf("defaults = %s postOnly=%v", built.OrderType, built.PostOnly)
	}
	if o.Expiration.Sign() != 0 || o.Nonce.Sign() != 0 {
		t.Fatalf("expiration/nonce defaults = %s / %s", o.Expiration, o.Nonce)
	}
}

func TestLimitSellMirrorsNotionals(t *testing.T) {
	t.Parallel()

	built, err := NewLimit("123", types.SELL, dec("0.34"), dec("100")).Build(context.Background(), &fakeVenue{salt: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Order.MakerAmount.String() != "100000000" || built.Order.TakerAmount.String() != "34000000" {
		t.Fatalf("maker/taker = %s/%s", built.Order.MakerAmount, built.Order.TakerAmount)
	}
}

func TestLimitValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		limit *Limit
		tick  types.TickSize
	}{
		{"price scale exceeds tick", NewLimit("1", types.BUY, dec("0.345"), dec("10")), types.Tick001},
		{"price below tick", NewLimit("1", types.BUY, dec("0.005"), dec("10")), types.Tick001},
		{"price above one minus tick", NewLimit("1", types.BUY, dec("0.995"), dec("10")), types.Tick001},
		{"size scale exceeds lot", NewLimit("1", types.BUY, dec("0.34"), dec("10.555")), types.Tick001},
		{"size not positive", NewLimit("1", types.BUY, dec("0.34"), dec("0")), types.Tick001},
		{"expiration without GTD", NewLimit("1", types.BUY, dec("0.34"), dec("10")).WithExpiration(99), types.Tick001},
		{"GTD without expiration", NewLimit("1", types.BUY, dec("0.34"), dec("10")).WithOrderType(types.OrderTypeGTD), types.Tick001},
		{"post-only on FOK", NewLimit("1", types.BUY, dec("0.34"), dec("10")).WithOrderType(types.OrderTypeFOK).WithPostOnly(), types.Tick001},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.limit.Build(context.Background(), &fakeVenue{tick: tc.tick, salt: 1})
			var verr *apierr.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestLimitTickScaleBoundsWiden(t *testing.T) {
	t.Parallel()

	// At tick 0.001 a three-decimal price inside the band is accepted.
	built, err := NewLimit("1", types.BUY, dec("0.005"), dec("10")).
		Build(context.Background(), &fakeVenue{tick: types.Tick0001, salt: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// maker = 10 * 0.005 truncated at D=5 → 0.05 → 50000 units.
	if built.Order.MakerAmount.String() != "50000" {
		t.Fatalf("maker = %s, want 50000", built.Order.MakerAmount)
	}
}

func TestSaltMaskedTo53Bits(t *testing.T) {
	t.Parallel()

	v := &fakeVenue{salt: ^uint64(0)}
	built, err := NewLimit("1", types.BUY, dec("0.34"), dec("10")).Build(context.Background(), v)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Order.Salt >= 1<<types.MaxSaltBits {
		t.Fatalf("salt %d does not fit in %d bits", built.Order.Salt, types.MaxSaltBits)
	}
	if built.Order.Salt != 1<<types.MaxSaltBits-1 {
		t.Fatalf("salt = %d, want all 53 bits set", built.Order.Salt)
	}
}

func TestMarketBuyWithUSDC(t *testing.T) {
	t.Parallel()

	v := &fakeVenue{
		salt: 7,
		book: &types.OrderBookSnapshot{
			Asks: []types.PriceLevel{
				{Price: "0.30", Size: "1000"},
				{Price: "0.34", Size: "200"},
				{Price: "0.35", Size: "100"},
			},
		},
	}
	built, err := NewMarket("1", types.BUY, USDC(dec("100"))).Build(context.Background(), v)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Order.MakerAmount.String() != "100000000" {
		t.Fatalf("maker = %s, want 100000000", built.Order.MakerAmount)
	}
	// trunc(100 / 0.34, 4) = 294.1176
	if built.Order.TakerAmount.String() != "294117600" {
		t.Fatalf("taker = %s, want 294117600", built.Order.TakerAmount)
	}
	if built.OrderType != types.OrderTypeFAK {
		t.Fatalf("order type = %s, want FAK default", built.OrderType)
	}
}

func TestMarketSellWithShares(t *testing.T) {
	t.Parallel()

	v := &fakeVenue{
		salt: 7,
		book: &types.OrderBookSnapshot{
			Bids: []types.PriceLevel{
				{Price: "0.34", Size: "200"},
				{Price: "0.30", Size: "50"},
			},
		},
	}
	built, err := NewMarket("1", types.SELL, Shares(dec("100"))).Build(context.Background(), v)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Order.MakerAmount.String() != "100000000" {
		t.Fatalf("maker = %s, want 100000000", built.Order.MakerAmount)
	}
	if built.Order.TakerAmount.String() != "34000000" {
		t.Fatalf("taker = %s, want 34000000", built.Order.TakerAmount)
	}
}

func TestMarketBuyWithShares(t *testing.T) {
	t.Parallel()

	v := &fakeVenue{salt: 7}
	built, err := NewMarket("1", types.BUY, Shares(dec("100"))).
		WithPrice(dec("0.34")).
		Build(context.Background(), v)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Order.TakerAmount.String() != "100000000" || built.Order.MakerAmount.String() != "34000000" {
		t.Fatalf("taker/maker = %s/%s", built.Order.TakerAmount, built.Order.MakerAmount)
	}
}

func TestMarketDepthWalkEdges(t *testing.T) {
	t.Parallel()

	t.Run("empty book", func(t *testing.T) {
		t.Parallel()
		_, err := NewMarket("1", types.BUY, USDC(dec("100"))).
			Build(context.Background(), &fakeVenue{salt: 1})
		var verr *apierr.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("got %v, want ValidationError", err)
		}
	})

	shallow := &types.OrderBookSnapshot{
		Asks: []types.PriceLevel{
			{Price: "0.40", Size: "10"},
			{Price: "0.50", Size: "10"},
		},
	}

	t.Run("FOK insufficient depth", func(t *testing.T) {
		t.Parallel()
		_, err := NewMarket("1", types.BUY, USDC(dec("100"))).
			WithOrderType(types.OrderTypeFOK).
			Build(context.Background(), &fakeVenue{salt: 1, book: shallow})
		var verr *apierr.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("got %v, want ValidationError", err)
		}
	})

	t.Run("FAK falls back to top of book", func(t *testing.T) {
		t.Parallel()
		built, err := NewMarket("1", types.BUY, USDC(dec("100"))).
			Build(context.Background(), &fakeVenue{salt: 1, book: shallow})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		// Top of book is 0.40: taker = trunc(100/0.40, 4) = 250.
		if built.Order.TakerAmount.String() != "250000000" {
			t.Fatalf("taker = %s, want 250000000", built.Order.TakerAmount)
		}
	})

	t.Run("SELL in USDC rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewMarket("1", types.SELL, USDC(dec("100"))).
			Build(context.Background(), &fakeVenue{salt: 1, book: shallow})
		var verr *apierr.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("got %v, want ValidationError", err)
		}
	})

	t.Run("GTC rejected for market orders", func(t *testing.T) {
		t.Parallel()
		_, err := NewMarket("1", types.BUY, USDC(dec("100"))).
			WithOrderType(types.OrderTypeGTC).
			Build(context.Background(), &fakeVenue{salt: 1, book: shallow})
		var verr *apierr.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("got %v, want ValidationError", err)
		}
	})
}

func TestDerivedPriceTruncatedToTickScale(t *testing.T) {
	t.Parallel()

	// The covering level sits at 0.345; at tick 0.01 the derived price is
	// truncated to 0.34 before the band check.
	v := &fakeVenue{
		salt: 1,
		book: &types.OrderBookSnapshot{
			Asks: []types.PriceLevel{{Price: "0.345", Size: "1000"}},
		},
	}
	built, err := NewMarket("1", types.BUY, USDC(dec("100"))).Build(context.Background(), v)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// taker = trunc(100/0.34, 4) = 294.1176
	if built.Order.TakerAmount.String() != "294117600" {
		t.Fatalf("taker = %s, want 294117600", built.Order.TakerAmount)
	}
}
