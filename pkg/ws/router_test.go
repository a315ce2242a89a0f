package ws

import (
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
)

// parkedConn returns a connection whose dial target is unreachable and
// whose backoff is effectively infinite, so outbound frames stay queued
// and can be inspected.
func parkedConn(t *testing.T) *Conn {
	t.Helper()
	c := NewConn(Config{
		URL:            "ws://127.0.0.1:1",
		InitialBackoff: time.Hour,
		MaxBackoff:     time.Hour,
	})
	t.Cleanup(func() { c.Close() })
	return c
}

func drainFrames(t *testing.T, c *Conn) []types.SubscribeFrame {
	t.Helper()
	var frames []types.SubscribeFrame
	for _, raw := range c.out.drain() {
		var f types.SubscribeFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("decode queued frame %s: %v", raw, err)
		}
		frames = append(frames, f)
	}
	return frames
}

func sorted(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	return out
}

func TestRouterRefcountsSubscriptions(t *testing.T) {
	t.Parallel()

	conn := parkedConn(t)
	r := NewRouter(conn, ChannelMarket, nil)
	defer r.Close()

	s1, err := r.Subscribe(SubscribeRequest{
		Kinds: []types.EventKind{types.KindBook},
		Keys:  []string{"A", "B"},
	})
	if err != nil {
		t.Fatalf("subscribe 1: %v", err)
	}
	s2, err := r.Subscribe(SubscribeRequest{
		Kinds: []types.EventKind{types.KindBook},
		Keys:  []string{"B", "C"},
	})
	if err != nil {
		t.Fatalf("subscribe 2: %v", err)
	}

	// First consumer subscribes A and B; the second only adds C, because
	// B is already held.
	frames := drainFrames(t, conn)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if got := sorted(frames[0].AssetIDs); got[0] != "A" || got[1] != "B" {
		t.Fatalf("frame 1 keys = %v, want [A B]", got)
	}
	if frames[0].Operation != "subscribe" || frames[0].Type != "market" {
		t.Fatalf("frame 1 = %+v", frames[0])
	}
	if len(frames[1].AssetIDs) != 1 || frames[1].AssetIDs[0] != "C" {
		t.Fatalf("frame 2 keys = %v, want [C]", frames[1].AssetIDs)
	}

	// Dropping the second consumer releases only C; B is still demanded
	// by the first.
	s2.Close()
	frames = drainFrames(t, conn)
	if len(frames) != 1 || frames[0].Operation != "unsubscribe" {
		t.Fatalf("got %+v, want one unsubscribe frame", frames)
	}
	if len(frames[0].AssetIDs) != 1 || frames[0].AssetIDs[0] != "C" {
		t.Fatalf("unsubscribed %v, want [C]", frames[0].AssetIDs)
	}

	// Double close is a no-op.
	s2.Close()
	if frames := drainFrames(t, conn); len(frames) != 0 {
		t.Fatalf("double close sent frames: %+v", frames)
	}

	s1.Close()
	frames = drainFrames(t, conn)
	if len(frames) != 1 || frames[0].Operation != "unsubscribe" {
		t.Fatalf("got %+v, want one unsubscribe frame", frames)
	}
	if got := sorted(frames[0].AssetIDs); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("unsubscribed %v, want [A B]", frames[0].AssetIDs)
	}
}

func TestRouterValidatesRequests(t *testing.T) {
	t.Parallel()

	conn := parkedConn(t)
	r := NewRouter(conn, ChannelMarket, nil)
	defer r.Close()

	var verr *apierr.ValidationError
	_, err := r.Subscribe(SubscribeRequest{Kinds: []types.EventKind{types.KindBook}})
	if !errors.As(err, &verr) {
		t.Fatalf("empty keys: got %v, want ValidationError", err)
	}
	_, err = r.Subscribe(SubscribeRequest{Keys: []string{"A"}})
	if !errors.As(err, &verr) {
		t.Fatalf("empty kinds: got %v, want ValidationError", err)
	}
}

func TestRouterUserChannelRequiresAuth(t *testing.T) {
	t.Parallel()

	conn := parkedConn(t)
	r := NewRouter(conn, ChannelUser, nil)
	defer r.Close()

	var verr *apierr.ValidationError
	_, err := r.Subscribe(SubscribeRequest{
		Kinds: []types.EventKind{types.KindOrder},
		Keys:  []string{"0xmarket"},
	})
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError without credentials", err)
	}

	auth := &types.WSAuth{ApiKey: "k", Secret: "s", Passphrase: "p"}
	s1, err := r.Subscribe(SubscribeRequest{
		Kinds: []types.EventKind{types.KindOrder, types.KindTrade},
		Keys:  []string{"0xmarket"},
		Auth:  auth,
	})
	if err != nil {
		t.Fatalf("authed subscribe: %v", err)
	}
	defer s1.Close()

	frames := drainFrames(t, conn)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if f.Type != "user" || f.Auth == nil || f.Auth.ApiKey != "k" {
		t.Fatalf("user frame = %+v, want auth attached", f)
	}
	if len(f.Markets) != 1 || f.Markets[0] != "0xmarket" || len(f.AssetIDs) != 0 {
		t.Fatalf("user frame keys = markets %v assets %v", f.Markets, f.AssetIDs)
	}

	// Credentials are remembered for later subscribers.
	s2, err := r.Subscribe(SubscribeRequest{
		Kinds: []types.EventKind{types.KindOrder},
		Keys:  []string{"0xother"},
	})
	if err != nil {
		t.Fatalf("subscribe with stored credentials: %v", err)
	}
	defer s2.Close()
	frames = drainFrames(t, conn)
	if len(frames) != 1 || frames[0].Auth == nil {
		t.Fatalf("stored credentials not attached: %+v", frames)
	}
}

func TestRouterWidensInterest(t *testing.T) {
	t.Parallel()

	conn := parkedConn(t)
	r := NewRouter(conn, ChannelMarket, nil)
	defer r.Close()

	s, err := r.Subscribe(SubscribeRequest{
		Kinds: []types.EventKind{types.KindPriceChange, types.KindTickSizeChange},
		Keys:  []string{"A"},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s.Close()

	if !conn.Interest().Has(types.KindPriceChange) || !conn.Interest().Has(types.KindTickSizeChange) {
		t.Fatal("subscribe did not widen the connection's interest set")
	}
}

// awaitFrames polls the outbound queue until at least want frames have
// been collected.
func awaitFrames(t *testing.T, c *Conn, want int) []types.SubscribeFrame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var frames []types.SubscribeFrame
	for {
		frames = append(frames, drainFrames(t, c)...)
		if len(frames) >= want {
			return frames
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d frames, want %d: %+v", len(frames), want, frames)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRouterResubscribesAfterCoalescedDrop(t *testing.T) {
	t.Parallel()

	conn := parkedConn(t)
	r := NewRouter(conn, ChannelMarket, nil)
	defer r.Close()

	s, err := r.Subscribe(SubscribeRequest{
		Kinds: []types.EventKind{types.KindBook},
		Keys:  []string{"A", "B"},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s.Close()
	awaitFrames(t, conn, 1)

	// Let the watcher record an established session, then discard any
	// replay that first Connected may have triggered.
	conn.status.Set(types.ConnStatus{State: types.Connected, Since: time.Now()})
	time.Sleep(100 * time.Millisecond)
	drainFrames(t, conn)

	// The drop and redial reports land back-to-back. Each watcher channel
	// holds only the latest value, so the watcher may wake to nothing but
	// the second Connected; the replay must still happen.
	conn.status.Set(types.ConnStatus{State: types.Reconnecting, Attempt: 1})
	conn.status.Set(types.ConnStatus{State: types.Connecting})
	conn.status.Set(types.ConnStatus{State: types.Connected, Since: time.Now()})

	replay := awaitFrames(t, conn, 1)
	if replay[0].Operation != "subscribe" {
		t.Fatalf("replay frame = %+v, want subscribe", replay[0])
	}
	if got := sorted(replay[0].AssetIDs); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("replayed keys = %v, want [A B]", replay[0].AssetIDs)
	}
}

func TestStreamFiltersKindAndKey(t *testing.T) {
	t.Parallel()

	conn := parkedConn(t)
	r := NewRouter(conn, ChannelMarket, nil)
	defer r.Close()

	s, err := r.Subscribe(SubscribeRequest{
		Kinds: []types.EventKind{types.KindBook},
		Keys:  []string{"A"},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s.Close()

	// Events from other keys and kinds are dropped by the stream even
	// though they pass the connection-level interest filter.
	conn.hub.Publish(bookEv("B"))
	conn.hub.Publish(&types.PriceChangeEvent{EventType: "price_change", AssetID: "A"})
	conn.hub.Publish(bookEv("A"))

	ctx, cancel := contextWithTimeout(t)
	defer cancel()
	ev, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Kind() != types.KindBook || ev.RoutingKey() != "A" {
		t.Fatalf("got %v/%s, want book for A", ev.Kind(), ev.RoutingKey())
	}
}
