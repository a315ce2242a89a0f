package ws

import (
	"context"
	"sync"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
)

// defaultBroadcastCapacity bounds each receiver's ring buffer.
const defaultBroadcastCapacity = 1024

// Hub fans decoded events out to any number of receivers. Each receiver
// owns a bounded ring buffer: a slow consumer drops its own oldest
// entries and observes the loss as a Lagged item, and the publisher is
// never blocked.
type Hub struct {
	mu       sync.Mutex
	subs     map[uint64]*Receiver
	nextID   uint64
	capacity int
	closed   bool
}

// NewHub creates a hub whose receivers buffer up to capacity events.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = defaultBroadcastCapacity
	}
	return &Hub{
		subs:     make(map[uint64]*Receiver),
		capacity: capacity,
	}
}

// Subscribe registers a new receiver. A receiver created after an event
// was published does not see that event.
func (h *Hub) Subscribe() *Receiver {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	r := &Receiver{
		hub:    h,
		id:     h.nextID,
		buf:    make([]types.Event, h.capacity),
		notify: make(chan struct{}, 1),
		closed: h.closed,
	}
	if !h.closed {
		h.subs[r.id] = r
	}
	return r
}

// Publish delivers ev to every live receiver, evicting each receiver's
// oldest entry on overflow.
func (h *Hub) Publish(ev types.Event) {
	h.mu.Lock()
	subs := make([]*Receiver, 0, len(h.subs))
	for _, r := range h.subs {
		subs = append(subs, r)
	}
	h.mu.Unlock()

	for _, r := range subs {
		r.push(ev)
	}
}

// Close terminates all receivers. Buffered events remain readable;
// subsequent reads return ErrStreamClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[uint64]*Receiver)
	h.mu.Unlock()

	for _, r := range subs {
		r.markClosed()
	}
}

func (h *Hub) drop(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Receiver is one consumer's view of the hub.
type Receiver struct {
	hub *Hub
	id  uint64

	mu      sync.Mutex
	buf     []types.Event // ring buffer
	head    int           // index of oldest buffered event
	count   int
	skipped uint64 // events evicted since the last Recv that reported lag
	closed  bool

	notify chan struct{}
}

func (r *Receiver) push(ev types.Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.count == len(r.buf) {
		r.buf[r.head] = nil
		r.head = (r.head + 1) % len(r.buf)
		r.count--
		r.skipped++
	}
	r.buf[(r.head+r.count)%len(r.buf)] = ev
	r.count++
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Recv returns the next event in publish order. When the receiver has
// fallen behind and events were evicted, it returns a LaggedError with
// the number of skipped events before resuming delivery; the consumer
// must reconcile via snapshot state. Returns ErrStreamClosed once the
// hub is closed and the buffer drained.
func (r *Receiver) Recv(ctx context.Context) (types.Event, error) {
	for {
		r.mu.Lock()
		if r.skipped > 0 {
			n := r.skipped
			r.skipped = 0
			r.mu.Unlock()
			return nil, &apierr.LaggedError{Count: n}
		}
		if r.count > 0 {
			ev := r.buf[r.head]
			r.buf[r.head] = nil
			r.head = (r.head + 1) % len(r.buf)
			r.count--
			r.mu.Unlock()
			return ev, nil
		}
		if r.closed {
			r.mu.Unlock()
			return nil, apierr.ErrStreamClosed
		}
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.notify:
		}
	}
}

// Close detaches the receiver from the hub. Pending events are dropped.
func (r *Receiver) Close() {
	r.hub.drop(r.id)
	r.markClosed()
}

func (r *Receiver) markClosed() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}
