package ws

import (
	"bytes"
	"encoding/json"
	"fmt"

	"polymarket-sdk/pkg/types"
)

// Parser decodes a server text frame into events, skipping kinds outside
// the interest set. An empty batch is a valid result (filtering).
type Parser interface {
	Parse(data []byte, interest *Interest) ([]types.Event, error)
}

// EventParser is the default parser for the CLOB event shape: a single
// JSON object or a homogeneous array of objects, each discriminated by
// an event_type field. For single objects the kind is read by a shallow
// pre-scan so uninterested payloads are never fully materialised; arrays
// are parsed in full, then filtered.
type EventParser struct{}

type kindProbe struct {
	EventType string `json:"event_type"`
}

// Parse implements Parser.
func (EventParser) Parse(data []byte, interest *Interest) ([]types.Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("parse event array: %w", err)
		}
		events := make([]types.Event, 0, len(raws))
		for _, raw := range raws {
			ev, ok, err := decodeOne(raw, interest)
			if err != nil {
				return nil, err
			}
			if ok {
				events = append(events, ev)
			}
		}
		return events, nil
	}

	ev, ok, err := decodeOne(data, interest)
	if err != nil || !ok {
		return nil, err
	}
	return []types.Event{ev}, nil
}

func decodeOne(data []byte, interest *Interest) (types.Event, bool, error) {
	var probe kindProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, false, fmt.Errorf("probe event_type: %w", err)
	}
	kind, known := types.ParseEventKind(probe.EventType)
	if !known || !interest.Has(kind) {
		return nil, false, nil
	}

	ev := newEvent(kind)
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, false, fmt.Errorf("decode %s event: %w", kind, err)
	}
	return ev, true, nil
}

func newEvent(kind types.EventKind) types.Event {
	switch kind {
	case types.KindBook:
		return &types.BookEvent{}
	case types.KindPriceChange:
		return &types.PriceChangeEvent{}
	case types.KindTickSizeChange:
		return &types.TickSizeChangeEvent{}
	case types.KindLastTradePrice:
		return &types.LastTradePriceEvent{}
	case types.KindBestBidAsk:
		return &types.BestBidAskEvent{}
	case types.KindNewMarket:
		return &types.NewMarketEvent{}
	case types.KindMarketResolved:
		return &types.MarketResolvedEvent{}
	case types.KindTrade:
		return &types.TradeEvent{}
	default:
		return &types.OrderEvent{}
	}
}
