package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher is one observer's view of a deadline. Each observer polls
// independently and fires its callback exactly once when the countdown
// crosses zero. The canonical side effect (clear the basket, drop the
// stored deadline) must itself be idempotent because several watchers can
// cross zero in the same tick.
type Watcher struct {
	mu        sync.Mutex
	c         *Coordinator
	purpose   string
	onExpire  func()
	armed     bool
	fired     bool
	expiresAt time.Time
}

// Watch registers an expiry observer for purpose. The callback runs at most
// once per watcher. The coordinator removes the stored deadline before the
// callback runs, so callbacks only handle their surface-local cleanup.
func (c *Coordinator) Watch(purpose string, onExpire func()) *Watcher {
	return &Watcher{c: c, purpose: purpose, onExpire: onExpire}
}

// Poll checks the deadline once and fires the callback when an adopted
// countdown has run out. It returns true if the callback has fired (now or
// earlier). A deadline that disappears before its expiry time was cleared
// deliberately (successful checkout) and disarms the watcher instead of
// firing it. Surfaces with their own tick loops call this directly; Run
// wraps it in a once-per-second ticker.
func (w *Watcher) Poll() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fired {
		return true
	}

	now := w.c.Now()
	if expiresAt, ok := w.c.deadlineFor(w.purpose); ok {
		w.armed = true
		w.expiresAt = expiresAt
		if expiresAt.After(now) {
			return false
		}
	}

	if !w.armed {
		return false
	}
	if now.Before(w.expiresAt) {
		w.armed = false
		return false
	}

	w.fired = true
	w.c.Clear(w.purpose)
	if w.onExpire != nil {
		w.onExpire()
	}
	return true
}

// Run polls once per second until the callback fires or ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(DefaultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.Poll() {
				w.c.logger.Debug("session deadline expired", zap.String("purpose", w.purpose))
				return
			}
		}
	}
}
