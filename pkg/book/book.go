// Package book maintains a local mirror of one token's order book, fed
// from REST snapshots and the market-data stream. Prices and sizes stay
// on decimals; derived values (best bid/ask, midpoint, spread) are
// computed on demand.
package book

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
)

// level is one parsed price level.
type level struct {
	price decimal.Decimal
	size  decimal.Decimal
}

// Book is a concurrency-safe mirror of one token's book. Bids are kept
// price-descending, asks price-ascending, matching the snapshot wire
// order.
type Book struct {
	mu      sync.RWMutex
	assetID string
	bids    []level
	asks    []level
	hash    string
	updated time.Time
}

// New creates an empty mirror for a token.
func New(assetID string) *Book {
	return &Book{assetID: assetID}
}

// AssetID returns the mirrored token.
func (b *Book) AssetID() string { return b.assetID }

// ApplySnapshot replaces both sides from a REST book response.
func (b *Book) ApplySnapshot(snap *types.OrderBookSnapshot) error {
	return b.replace(snap.Bids, snap.Asks, snap.Hash)
}

// ApplyBookEvent replaces both sides from a streamed full snapshot.
func (b *Book) ApplyBookEvent(ev *types.BookEvent) error {
	return b.replace(ev.Bids, ev.Asks, ev.Hash)
}

func (b *Book) replace(bids, asks []types.PriceLevel, hash string) error {
	parsedBids, err := parseLevels(bids)
	if err != nil {
		return err
	}
	parsedAsks, err := parseLevels(asks)
	if err != nil {
		return err
	}
	sort.Slice(parsedBids, func(i, j int) bool { return parsedBids[i].price.GreaterThan(parsedBids[j].price) })
	sort.Slice(parsedAsks, func(i, j int) bool { return parsedAsks[i].price.LessThan(parsedAsks[j].price) })

	b.mu.Lock()
	b.bids = parsedBids
	b.asks = parsedAsks
	b.hash = hash
	b.updated = time.Now()
	b.mu.Unlock()
	return nil
}

// ApplyPriceChange folds an incremental update into the mirror: each
// change replaces the size at its price level, removing the level when
// the size reaches zero.
func (b *Book) ApplyPriceChange(ev *types.PriceChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, change := range ev.Changes {
		price, err := decimal.NewFromString(change.Price)
		if err != nil {
			return apierr.Internal("parse change price", err)
		}
		size, err := decimal.NewFromString(change.Size)
		if err != nil {
			return apierr.Internal("parse change size", err)
		}

		if change.Side == "BUY" || change.Side == "buy" {
			b.bids = applyLevel(b.bids, price, size, func(a, c decimal.Decimal) bool { return a.GreaterThan(c) })
		} else {
			b.asks = applyLevel(b.asks, price, size, func(a, c decimal.Decimal) bool { return a.LessThan(c) })
		}
	}
	b.hash = ev.Hash
	b.updated = time.Now()
	return nil
}

// applyLevel updates the size at price in a sorted side, inserting or
// removing levels as needed. before reports whether a should sort
// before c.
func applyLevel(side []level, price, size decimal.Decimal, before func(a, c decimal.Decimal) bool) []level {
	idx := -1
	for i, lv := range side {
		if lv.price.Equal(price) {
			idx = i
			break
		}
	}

	switch {
	case size.IsZero() && idx >= 0:
		return append(side[:idx], side[idx+1:]...)
	case size.IsZero():
		return side
	case idx >= 0:
		side[idx].size = size
		return side
	}

	insert := len(side)
	for i, lv := range side {
		if before(price, lv.price) {
			insert = i
			break
		}
	}
	side = append(side, level{})
	copy(side[insert+1:], side[insert:])
	side[insert] = level{price: price, size: size}
	return side
}

// BestBid returns the highest bid, or false on an empty side.
func (b *Book) BestBid() (price, size decimal.Decimal, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	return b.bids[0].price, b.bids[0].size, true
}

// BestAsk returns the lowest ask, or false on an empty side.
func (b *Book) BestAsk() (price, size decimal.Decimal, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	return b.asks[0].price, b.asks[0].size, true
}

// Midpoint returns (bestBid + bestAsk) / 2, or false when either side is
// empty.
func (b *Book) Midpoint() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return decimal.Zero, false
	}
	return b.bids[0].price.Add(b.asks[0].price).Div(decimal.NewFromInt(2)), true
}

// Spread returns bestAsk - bestBid, or false when either side is empty.
func (b *Book) Spread() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return decimal.Zero, false
	}
	return b.asks[0].price.Sub(b.bids[0].price), true
}

// Depth returns the level counts of both sides.
func (b *Book) Depth() (bids, asks int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bids), len(b.asks)
}

// Hash returns the server hash of the last applied update.
func (b *Book) Hash() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hash
}

// IsStale reports whether no update arrived within maxAge. A book that
// was never updated is always stale.
func (b *Book) IsStale(maxAge time.Duration) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.updated.IsZero() {
		return true
	}
	return time.Since(b.updated) > maxAge
}

func parseLevels(levels []types.PriceLevel) ([]level, error) {
	out := make([]level, 0, len(levels))
	for _, lv := range levels {
		price, err := decimal.NewFromString(lv.Price)
		if err != nil {
			return nil, apierr.Internal("parse level price", err)
		}
		size, err := decimal.NewFromString(lv.Size)
		if err != nil {
			return nil, apierr.Internal("parse level size", err)
		}
		out = append(out, level{price: price, size: size})
	}
	return out, nil
}
