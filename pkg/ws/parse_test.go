package ws

import (
	"testing"

	"polymarket-sdk/pkg/types"
)

func TestInterestMonotonic(t *testing.T) {
	t.Parallel()

	var in Interest
	if !in.Empty() {
		t.Fatal("new interest should be empty")
	}

	in.Add(types.KindBook)
	if !in.Has(types.KindBook) {
		t.Fatal("book should be of interest")
	}
	if in.Has(types.KindTrade) {
		t.Fatal("trade should not be of interest yet")
	}

	in.Add(types.KindTrade, types.KindOrder)
	for _, k := range []types.EventKind{types.KindBook, types.KindTrade, types.KindOrder} {
		if !in.Has(k) {
			t.Fatalf("%s should remain of interest", k)
		}
	}
	if in.Empty() {
		t.Fatal("interest should not be empty after Add")
	}
}

func TestParseSingleEvent(t *testing.T) {
	t.Parallel()

	var in Interest
	in.Add(types.KindBook)

	data := []byte(`{"event_type":"book","asset_id":"123","market":"0xabc","bids":[{"price":"0.48","size":"100"}],"asks":[{"price":"0.52","size":"50"}]}`)
	events, err := EventParser{}.Parse(data, &in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	book, ok := events[0].(*types.BookEvent)
	if !ok {
		t.Fatalf("got %T, want *types.BookEvent", events[0])
	}
	if book.AssetID != "123" || len(book.Bids) != 1 || book.Bids[0].Price != "0.48" {
		t.Fatalf("unexpected decode: %+v", book)
	}
	if book.RoutingKey() != "123" {
		t.Fatalf("routing key = %q, want asset id", book.RoutingKey())
	}
}

func TestParseFiltersUninterestedKinds(t *testing.T) {
	t.Parallel()

	var in Interest
	in.Add(types.KindTrade)

	data := []byte(`{"event_type":"book","asset_id":"123"}`)
	events, err := EventParser{}.Parse(data, &in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("got %d events, want 0 (kind not of interest)", len(events))
	}
}

func TestParseUnknownKindIgnored(t *testing.T) {
	t.Parallel()

	var in Interest
	in.Add(types.KindBook)

	events, err := EventParser{}.Parse([]byte(`{"event_type":"comment_created","id":"1"}`), &in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("got %d events, want 0 (unknown kind)", len(events))
	}
}

func TestParseArrayMixedKinds(t *testing.T) {
	t.Parallel()

	var in Interest
	in.Add(types.KindPriceChange, types.KindLastTradePrice)

	data := []byte(`[
		{"event_type":"price_change","asset_id":"1","changes":[{"price":"0.5","size":"10","side":"BUY"}]},
		{"event_type":"book","asset_id":"2"},
		{"event_type":"last_trade_price","asset_id":"3","price":"0.55"}
	]`)
	events, err := EventParser{}.Parse(data, &in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if _, ok := events[0].(*types.PriceChangeEvent); !ok {
		t.Fatalf("events[0] = %T, want *types.PriceChangeEvent", events[0])
	}
	last, ok := events[1].(*types.LastTradePriceEvent)
	if !ok {
		t.Fatalf("events[1] = %T, want *types.LastTradePriceEvent", events[1])
	}
	if last.Price != "0.55" {
		t.Fatalf("last trade price = %q, want 0.55", last.Price)
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	var in Interest
	in.Add(types.KindBook)

	if _, err := (EventParser{}).Parse([]byte(`{"event_type":`), &in); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	if _, err := (EventParser{}).Parse([]byte(`[{"event_type":"book"},`), &in); err == nil {
		t.Fatal("expected error for truncated array")
	}

	events, err := EventParser{}.Parse([]byte("  "), &in)
	if err != nil || len(events) != 0 {
		t.Fatalf("blank frame: events=%d err=%v, want empty and nil", len(events), err)
	}
}
