package ws

import (
	"sync"

	"polymarket-sdk/pkg/types"
)

// StatusWatch holds the current connection status and notifies watchers
// of transitions. Each watcher channel has capacity one and is coalesced
// to the latest value, so a slow watcher observes the newest state
// rather than a backlog.
type StatusWatch struct {
	mu       sync.Mutex
	current  types.ConnStatus
	watchers map[uint64]chan types.ConnStatus
	nextID   uint64
}

// NewStatusWatch starts in the Disconnected state.
func NewStatusWatch() *StatusWatch {
	return &StatusWatch{
		watchers: make(map[uint64]chan types.ConnStatus),
	}
}

// Get returns the current status.
func (w *StatusWatch) Get() types.ConnStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Set records a transition and wakes every watcher.
func (w *StatusWatch) Set(status types.ConnStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.current = status
	for _, ch := range w.watchers {
		select {
		case <-ch: // discard the stale value
		default:
		}
		ch <- status
	}
}

// Watch registers a watcher. The cancel function must be called when the
// watcher is done; the channel is not closed on cancel.
func (w *StatusWatch) Watch() (<-chan types.ConnStatus, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	id := w.nextID
	ch := make(chan types.ConnStatus, 1)
	w.watchers[id] = ch

	cancel := func() {
		w.mu.Lock()
		delete(w.watchers, id)
		w.mu.Unlock()
	}
	return ch, cancel
}
