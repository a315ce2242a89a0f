package ws

import (
	"context"
	"sync"

	"polymarket-sdk/pkg/types"
)

// Stream is one consumer's filtered view of a channel: only events whose
// kind and routing key were asked for come through. Dropping a stream
// releases its share of the subscription refcounts.
type Stream struct {
	router *Router
	recv   *Receiver
	kinds  map[types.EventKind]bool
	keys   map[string]bool

	keyList   []string
	closeOnce sync.Once
}

func newStream(router *Router, recv *Receiver, kinds []types.EventKind, keys []string) *Stream {
	s := &Stream{
		router:  router,
		recv:    recv,
		kinds:   make(map[types.EventKind]bool, len(kinds)),
		keys:    make(map[string]bool, len(keys)),
		keyList: append([]string(nil), keys...),
	}
	for _, k := range kinds {
		s.kinds[k] = true
	}
	for _, key := range keys {
		s.keys[key] = true
	}
	return s
}

// Next blocks for the next matching event. A *apierr.LaggedError item
// reports that this consumer fell behind and events were dropped; the
// stream remains usable and the consumer should reconcile from snapshot
// state. apierr.ErrStreamClosed means the connection has shut down for
// good.
func (s *Stream) Next(ctx context.Context) (types.Event, error) {
	for {
		ev, err := s.recv.Recv(ctx)
		if err != nil {
			return nil, err
		}
		if s.kinds[ev.Kind()] && s.keys[ev.RoutingKey()] {
			return ev, nil
		}
	}
}

// Close releases the stream's subscriptions. Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.recv.Close()
		s.router.release(s.keyList)
	})
}
