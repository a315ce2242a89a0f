// Package ws implements the realtime core: a single duplex WebSocket per
// channel with heartbeat and reconnection, a broadcast hub with lag
// detection, an interest-filtered parser, and a refcounted subscription
// router that collapses overlapping consumer demands into at most one
// server subscription per key.
package ws

import (
	"sync/atomic"

	"polymarket-sdk/pkg/types"
)

// Interest is a bitset with one bit per event kind. It grows by monotonic
// OR over the lifetime of a channel and is never cleared: an over-broad
// interest only costs a little parsing work, while an under-broad one
// loses messages.
type Interest struct {
	bits atomic.Uint32
}

// Add sets the bits for the given kinds.
func (i *Interest) Add(kinds ...types.EventKind) {
	var mask uint32
	for _, k := range kinds {
		mask |= 1 << uint(k)
	}
	for {
		old := i.bits.Load()
		if old|mask == old || i.bits.CompareAndSwap(old, old|mask) {
			return
		}
	}
}

// Has reports whether kind is of interest.
func (i *Interest) Has(kind types.EventKind) bool {
	return i.bits.Load()&(1<<uint(kind)) != 0
}

// Empty reports whether no kind is of interest yet.
func (i *Interest) Empty() bool {
	return i.bits.Load() == 0
}
