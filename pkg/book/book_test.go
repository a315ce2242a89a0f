package book

import (
	"testing"
	"time"

	"polymarket-sdk/pkg/types"
)

func snapshot() *types.OrderBookSnapshot {
	return &types.OrderBookSnapshot{
		AssetID: "123",
		Hash:    "h1",
		Bids: []types.PriceLevel{
			{Price: "0.48", Size: "100"},
			{Price: "0.47", Size: "250"},
		},
		Asks: []types.PriceLevel{
			{Price: "0.52", Size: "80"},
			{Price: "0.55", Size: "400"},
		},
	}
}

func TestSnapshotAndDerivedValues(t *testing.T) {
	t.Parallel()

	b := New("123")
	if !b.IsStale(time.Minute) {
		t.Fatal("fresh book should be stale before any update")
	}
	if err := b.ApplySnapshot(snapshot()); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	bid, size, ok := b.BestBid()
	if !ok || bid.String() != "0.48" || size.String() != "100" {
		t.Fatalf("best bid = %s x %s (%v)", bid, size, ok)
	}
	ask, _, ok := b.BestAsk()
	if !ok || ask.String() != "0.52" {
		t.Fatalf("best ask = %s (%v)", ask, ok)
	}
	mid, ok := b.Midpoint()
	if !ok || mid.String() != "0.5" {
		t.Fatalf("midpoint = %s (%v)", mid, ok)
	}
	spread, ok := b.Spread()
	if !ok || spread.String() != "0.04" {
		t.Fatalf("spread = %s (%v)", spread, ok)
	}
	if b.IsStale(time.Minute) {
		t.Fatal("book should be fresh after a snapshot")
	}
	if b.Hash() != "h1" {
		t.Fatalf("hash = %q, want h1", b.Hash())
	}
}

func TestSnapshotSortsUnorderedLevels(t *testing.T) {
	t.Parallel()

	b := New("123")
	err := b.ApplySnapshot(&types.OrderBookSnapshot{
		Bids: []types.PriceLevel{
			{Price: "0.40", Size: "1"},
			{Price: "0.48", Size: "1"},
		},
		Asks: []types.PriceLevel{
			{Price: "0.60", Size: "1"},
			{Price: "0.52", Size: "1"},
		},
	})
	if err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	bid, _, _ := b.BestBid()
	ask, _, _ := b.BestAsk()
	if bid.String() != "0.48" || ask.String() != "0.52" {
		t.Fatalf("best bid/ask = %s/%s, want 0.48/0.52", bid, ask)
	}
}

func TestPriceChangeUpdatesLevels(t *testing.T) {
	t.Parallel()

	b := New("123")
	if err := b.ApplySnapshot(snapshot()); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	err := b.ApplyPriceChange(&types.PriceChangeEvent{
		Hash: "h2",
		Changes: []types.PriceChange{
			{Price: "0.48", Size: "0", Side: "BUY"},    // remove best bid
			{Price: "0.49", Size: "30", Side: "BUY"},   // insert new best bid
			{Price: "0.52", Size: "500", Side: "SELL"}, // resize best ask
		},
	})
	if err != nil {
		t.Fatalf("ApplyPriceChange: %v", err)
	}

	bid, size, _ := b.BestBid()
	if bid.String() != "0.49" || size.String() != "30" {
		t.Fatalf("best bid = %s x %s, want 0.49 x 30", bid, size)
	}
	ask, size, _ := b.BestAsk()
	if ask.String() != "0.52" || size.String() != "500" {
		t.Fatalf("best ask = %s x %s, want 0.52 x 500", ask, size)
	}
	bids, asks := b.Depth()
	if bids != 2 || asks != 2 {
		t.Fatalf("depth = %d/%d, want 2/2", bids, asks)
	}
	if b.Hash() != "h2" {
		t.Fatalf("hash = %q, want h2", b.Hash())
	}
}

func TestRemovingUnknownLevelIsNoop(t *testing.T) {
	t.Parallel()

	b := New("123")
	if err := b.ApplySnapshot(snapshot()); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	err := b.ApplyPriceChange(&types.PriceChangeEvent{
		Changes: []types.PriceChange{{Price: "0.11", Size: "0", Side: "BUY"}},
	})
	if err != nil {
		t.Fatalf("ApplyPriceChange: %v", err)
	}
	bids, _ := b.Depth()
	if bids != 2 {
		t.Fatalf("depth = %d, want 2", bids)
	}
}

func TestEmptySideDerivedValues(t *testing.T) {
	t.Parallel()

	b := New("123")
	if _, ok := b.Midpoint(); ok {
		t.Fatal("midpoint on empty book should report not-ok")
	}
	if _, _, ok := b.BestBid(); ok {
		t.Fatal("best bid on empty book should report not-ok")
	}
	if _, ok := b.Spread(); ok {
		t.Fatal("spread on empty book should report not-ok")
	}
}
