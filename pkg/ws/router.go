package ws

import (
	"log/slog"
	"sync"
	"time"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
)

// Channel selects which CLOB websocket endpoint a router drives.
type Channel string

const (
	// ChannelMarket carries public order book and trade events, keyed by
	// asset (token) ID.
	ChannelMarket Channel = "market"
	// ChannelUser carries the authenticated account's order and trade
	// events, keyed by market (condition) ID.
	ChannelUser Channel = "user"
)

const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
)

// SubscribeRequest describes one consumer's demand.
type SubscribeRequest struct {
	Kinds       []types.EventKind
	Keys        []string // asset IDs (market channel) or market IDs (user channel)
	Auth        *types.WSAuth
	InitialDump *bool
}

// Router multiplexes any number of consumers over one channel connection.
// It refcounts subscription keys so the server sees at most one
// subscription per key, sends incremental subscribe/unsubscribe frames as
// demand changes, and replays the full key set after a reconnect.
type Router struct {
	conn    *Conn
	channel Channel
	logger  *slog.Logger

	mu    sync.Mutex
	refs  map[string]int
	creds *types.WSAuth

	stopWatch chan struct{}
	watchDone chan struct{}
}

// NewRouter wraps conn, which must be dedicated to the given channel.
func NewRouter(conn *Conn, channel Channel, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		conn:      conn,
		channel:   channel,
		logger:    logger.With("component", "ws-router", "channel", string(channel)),
		refs:      make(map[string]int),
		stopWatch: make(chan struct{}),
		watchDone: make(chan struct{}),
	}
	go r.watchReconnects()
	return r
}

// Conn exposes the underlying connection.
func (r *Router) Conn() *Conn { return r.conn }

// Subscribe registers demand for req and returns a stream of matching
// events. Keys already held by another consumer are not re-sent to the
// server; new keys go out in a single incremental subscribe frame,
// ordered before any later frame for the same keys.
func (r *Router) Subscribe(req SubscribeRequest) (*Stream, error) {
	if len(req.Keys) == 0 {
		return nil, apierr.Validationf("subscribe: at least one key is required")
	}
	if len(req.Kinds) == 0 {
		return nil, apierr.Validationf("subscribe: at least one event kind is required")
	}
	if r.channel == ChannelUser && req.Auth == nil {
		r.mu.Lock()
		missing := r.creds == nil
		r.mu.Unlock()
		if missing {
			return nil, apierr.Validationf("subscribe: user channel requires credentials")
		}
	}

	// Widen interest before the receiver exists so no matching frame read
	// after the subscribe is dropped by the parser.
	r.conn.Interest().Add(req.Kinds...)
	recv := r.conn.SubscribeMessages()

	r.mu.Lock()
	if req.Auth != nil {
		r.creds = req.Auth
	}
	fresh := make([]string, 0, len(req.Keys))
	for _, key := range req.Keys {
		if r.refs[key] == 0 {
			fresh = append(fresh, key)
		}
		r.refs[key]++
	}
	var err error
	if len(fresh) > 0 {
		// Sent under the lock so subscribe and unsubscribe frames for the
		// same key reach the queue in refcount order.
		err = r.conn.Send(r.frame(opSubscribe, fresh, req.InitialDump))
	}
	r.mu.Unlock()

	if err != nil {
		recv.Close()
		r.release(req.Keys)
		return nil, err
	}

	return newStream(r, recv, req.Kinds, req.Keys), nil
}

// release drops one reference per key and unsubscribes keys that reach
// zero demand.
func (r *Router) release(keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stale := make([]string, 0, len(keys))
	for _, key := range keys {
		if r.refs[key] == 0 {
			continue
		}
		r.refs[key]--
		if r.refs[key] == 0 {
			delete(r.refs, key)
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return
	}
	if err := r.conn.Send(r.frame(opUnsubscribe, stale, nil)); err != nil {
		r.logger.Warn("unsubscribe frame not sent", "error", err)
	}
}

// watchReconnects replays the full key set after each drop/re-establish
// cycle: the server forgot everything the old socket subscribed to.
// Status watchers are coalesced to the latest value, so a Reconnecting
// report can be overwritten before this goroutine wakes; a Connecting
// after a session was up, or a Connected whose Since advanced, means the
// same drop.
func (r *Router) watchReconnects() {
	defer close(r.watchDone)

	ch, cancel := r.conn.StatusChanges()
	defer cancel()

	sawDrop := false
	var lastUp time.Time
	for {
		select {
		case <-r.stopWatch:
			return
		case status := <-ch:
			switch status.State {
			case types.Reconnecting:
				sawDrop = true
			case types.Connecting:
				if !lastUp.IsZero() {
					sawDrop = true
				}
			case types.Connected:
				if sawDrop || (!lastUp.IsZero() && status.Since.After(lastUp)) {
					sawDrop = false
					r.resubscribeAll()
				}
				lastUp = status.Since
			case types.Disconnected:
				return
			}
		}
	}
}

func (r *Router) resubscribeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.refs) == 0 {
		return
	}
	keys := make([]string, 0, len(r.refs))
	for key := range r.refs {
		keys = append(keys, key)
	}
	r.logger.Info("resubscribing after reconnect", "keys", len(keys))
	if err := r.conn.Send(r.frame(opSubscribe, keys, nil)); err != nil {
		r.logger.Warn("resubscribe frame not sent", "error", err)
	}
}

func (r *Router) frame(operation string, keys []string, initialDump *bool) *types.SubscribeFrame {
	f := &types.SubscribeFrame{
		Type:        string(r.channel),
		Operation:   operation,
		InitialDump: initialDump,
	}
	switch r.channel {
	case ChannelUser:
		f.Markets = keys
		f.Auth = r.creds
	default:
		f.AssetIDs = keys
	}
	return f
}

// Close stops the reconnect watcher. The underlying connection is owned
// by the caller and is not closed here.
func (r *Router) Close() {
	close(r.stopWatch)
	<-r.watchDone
}
