package client

import (
	"context"
	"log/slog"
	"time"
)

// heartbeatTask periodically touches the health endpoint so credential
// and connectivity problems surface early instead of on the next order.
// The task carries an explicit cancellation signal and stop waits for it
// to finish; state transitions rely on that to reclaim sole ownership.
type heartbeatTask struct {
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration
}

func startHeartbeat(interval time.Duration, ping func(ctx context.Context) error, logger *slog.Logger) *heartbeatTask {
	ctx, cancel := context.WithCancel(context.Background())
	t := &heartbeatTask{cancel: cancel, done: make(chan struct{}), interval: interval}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ping(ctx); err != nil && ctx.Err() == nil {
					logger.Warn("heartbeat ping failed", "error", err)
				}
			}
		}
	}()
	return t
}

func (t *heartbeatTask) stop() {
	t.cancel()
	<-t.done
}

// StartHeartbeat spawns the background heartbeat. A running task is
// cancelled and awaited before the replacement starts.
func (ac *AuthedClient) StartHeartbeat(interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ac.c.mu.Lock()
	old := ac.c.heartbeat
	ac.c.heartbeat = nil
	ac.c.mu.Unlock()
	if old != nil {
		old.stop()
	}

	task := startHeartbeat(interval, ac.Ok, ac.c.logger)
	ac.c.mu.Lock()
	ac.c.heartbeat = task
	ac.c.mu.Unlock()
}

// StopHeartbeat cancels the heartbeat task and waits for it to exit.
func (ac *AuthedClient) StopHeartbeat() {
	ac.c.mu.Lock()
	task := ac.c.heartbeat
	ac.c.heartbeat = nil
	ac.c.mu.Unlock()
	if task != nil {
		task.stop()
	}
}
