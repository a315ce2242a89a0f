package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
)

const (
	defaultHeartbeatInterval = 10 * time.Second
	defaultHeartbeatTimeout  = 5 * time.Second
	defaultInitialBackoff    = time.Second
	defaultMaxBackoff        = 30 * time.Second
	writeTimeout             = 10 * time.Second

	pingToken = "PING"
	pongToken = "PONG"
)

var errHeartbeatStale = errors.New("heartbeat: pong watermark did not advance")

// Config tunes a single channel connection.
type Config struct {
	URL               string
	Parser            Parser // defaults to EventParser
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	MaxAttempts       int // consecutive failed attempts before Disconnected; 0 = unbounded
	BroadcastCapacity int
	Dialer            *websocket.Dialer
	Logger            *slog.Logger
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Parser == nil {
		out.Parser = EventParser{}
	}
	if out.HeartbeatInterval <= 0 {
		out.HeartbeatInterval = defaultHeartbeatInterval
	}
	if out.HeartbeatTimeout <= 0 {
		out.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = defaultInitialBackoff
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = defaultMaxBackoff
	}
	if out.BroadcastCapacity <= 0 {
		out.BroadcastCapacity = defaultBroadcastCapacity
	}
	if out.Dialer == nil {
		out.Dialer = websocket.DefaultDialer
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// Conn manages one long-lived duplex socket: it dials, heartbeats,
// reconnects with exponential backoff, and broadcasts decoded events to
// any number of receivers. At most one socket is active at a time. The
// background task is spawned at construction and lives until Close.
type Conn struct {
	cfg      Config
	interest *Interest
	out      *outQueue
	hub      *Hub
	status   *StatusWatch
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConn starts the connection task for url. The connection's lifetime
// is owned by the caller, not by any one subscriber: it lives until
// Close.
func NewConn(cfg Config) *Conn {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		cfg:      cfg,
		interest: &Interest{},
		out:      newOutQueue(),
		hub:      NewHub(cfg.BroadcastCapacity),
		status:   NewStatusWatch(),
		logger:   cfg.Logger.With("component", "ws", "url", cfg.URL),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.run()
	return c
}

// Interest returns the channel's monotonic interest set.
func (c *Conn) Interest() *Interest { return c.interest }

// Status returns the current connection status.
func (c *Conn) Status() types.ConnStatus { return c.status.Get() }

// StatusChanges registers a watcher on connection state transitions.
func (c *Conn) StatusChanges() (<-chan types.ConnStatus, func()) {
	return c.status.Watch()
}

// SubscribeMessages returns a fresh receiver on the broadcast.
func (c *Conn) SubscribeMessages() *Receiver { return c.hub.Subscribe() }

// Send marshals frame and appends it to the unbounded outbound queue.
// Frames are written to the socket in enqueue order; frames enqueued
// while the socket is down are written after the next connect.
func (c *Conn) Send(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return apierr.Internal("marshal outbound frame", err)
	}
	c.out.push(data)
	return nil
}

// Close terminates the connection task and the broadcast.
func (c *Conn) Close() error {
	c.cancel()
	<-c.done
	return nil
}

// run is the connection lifecycle loop: Connecting → Connected → duplex
// → Reconnecting{n} → ... Dial failures, read/write errors, and stale
// heartbeats are all transient; only context cancellation or an
// exhausted attempt budget reaches Disconnected.
func (c *Conn) run() {
	defer close(c.done)
	defer c.hub.Close()
	defer c.status.Set(types.ConnStatus{State: types.Disconnected})

	attempt := 0
	backoff := c.cfg.InitialBackoff

	for {
		if c.ctx.Err() != nil {
			return
		}

		c.status.Set(types.ConnStatus{State: types.Connecting})
		sock, _, err := c.cfg.Dialer.DialContext(c.ctx, c.cfg.URL, nil)
		if err == nil {
			c.status.Set(types.ConnStatus{State: types.Connected, Since: time.Now()})
			attempt = 0
			backoff = c.cfg.InitialBackoff

			err = c.duplex(sock)
			sock.Close()
			c.logger.Warn("socket closed", "error", err)
		} else {
			c.logger.Warn("dial failed", "error", err)
		}

		if c.ctx.Err() != nil {
			return
		}

		attempt++
		if c.cfg.MaxAttempts > 0 && attempt >= c.cfg.MaxAttempts {
			c.logger.Error("reconnect attempts exhausted", "attempts", attempt)
			return
		}
		c.status.Set(types.ConnStatus{State: types.Reconnecting, Attempt: attempt})

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(jitter(backoff)):
		}
		backoff = min(backoff*2, c.cfg.MaxBackoff)
	}
}

// jitter scales d by a random factor in [0.5, 1.5] so reconnecting
// clients do not thunder in lockstep.
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.5 + rand.Float64()))
}

// duplex runs the three halves of an open socket — reader, writer, and
// heartbeat — until any of them fails. The first error wins; the socket
// close unblocks the rest.
func (c *Conn) duplex(sock *websocket.Conn) error {
	errc := make(chan error, 3)
	stop := make(chan struct{})
	pong := newWatermark()

	var wg sync.WaitGroup
	wg.Add(3)

	// Reader: pongs advance the watermark, everything else goes through
	// the parser and out on the broadcast.
	go func() {
		defer wg.Done()
		for {
			_, data, err := sock.ReadMessage()
			if err != nil {
				errc <- &apierr.WSError{Op: "read", Err: err}
				return
			}
			c.handleFrame(data, pong)
		}
	}()

	// Writer: drains the outbound queue in order.
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			case <-c.ctx.Done():
				return
			case <-c.out.wake:
				frames := c.out.drain()
				for i, frame := range frames {
					sock.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := sock.WriteMessage(websocket.TextMessage, frame); err != nil {
						// The failed frame's delivery is indeterminate; the
						// rest of the batch was never written and is kept
						// for the next socket.
						c.out.requeue(frames[i+1:])
						errc <- &apierr.WSError{Op: "write", Err: err}
						return
					}
				}
			}
		}
	}()

	// Heartbeat: enqueue a ping, then require the pong watermark to
	// advance past the ping-sent instant within the timeout.
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				sentAt := time.Now()
				c.out.push([]byte(pingToken))
				if !pong.advancedPast(sentAt, c.cfg.HeartbeatTimeout, stop) {
					errc <- &apierr.WSError{Op: "heartbeat", Err: errHeartbeatStale}
					return
				}
			}
		}
	}()

	var err error
	select {
	case <-c.ctx.Done():
		err = c.ctx.Err()
	case err = <-errc:
	}

	close(stop)
	sock.Close()
	c.out.wakeUp()
	wg.Wait()
	return err
}

func (c *Conn) handleFrame(data []byte, pong *watermark) {
	if string(data) == pongToken {
		pong.touch()
		return
	}

	events, err := c.cfg.Parser.Parse(data, c.interest)
	if err != nil {
		c.logger.Debug("unparseable frame ignored", "error", err)
		return
	}
	for _, ev := range events {
		c.hub.Publish(ev)
	}
}

// outQueue is the unbounded outbound frame queue. Send never blocks;
// the writer drains batches in enqueue order.
type outQueue struct {
	mu    sync.Mutex
	items [][]byte
	wake  chan struct{}
}

func newOutQueue() *outQueue {
	return &outQueue{wake: make(chan struct{}, 1)}
}

func (q *outQueue) push(frame []byte) {
	q.mu.Lock()
	q.items = append(q.items, frame)
	q.mu.Unlock()
	q.wakeUp()
}

func (q *outQueue) drain() [][]byte {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// requeue puts drained-but-unwritten frames back, ahead of anything
// pushed since the drain.
func (q *outQueue) requeue(frames [][]byte) {
	if len(frames) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(append([][]byte(nil), frames...), q.items...)
	q.mu.Unlock()
	q.wakeUp()
}

func (q *outQueue) wakeUp() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// watermark tracks the instant of the last observed pong.
type watermark struct {
	mu     sync.Mutex
	at     time.Time
	notify chan struct{}
}

func newWatermark() *watermark {
	return &watermark{notify: make(chan struct{}, 1)}
}

func (w *watermark) touch() {
	w.mu.Lock()
	w.at = time.Now()
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *watermark) get() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.at
}

// advancedPast waits up to timeout for the watermark to move beyond
// instant. A watermark stuck at or before instant means the server never
// answered this ping; the connection is treated as stale.
func (w *watermark) advancedPast(instant time.Time, timeout time.Duration, stop <-chan struct{}) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if w.get().After(instant) {
			return true
		}
		select {
		case <-stop:
			return true // teardown in progress; not a heartbeat verdict
		case <-deadline.C:
			return false
		case <-w.notify:
		}
	}
}
