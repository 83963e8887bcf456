// Package session coordinates the shared, expiring price-lock deadline that
// several unrelated surfaces observe. The deadline lives under a well-known
// key in a shared store; observers adopt an existing countdown instead of
// resetting it, and the expiry side effect is idempotent so concurrent
// observers cannot double-fire it.
package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aurumpay/goldengine/internal/storage/sessionstore"
)

// PurposeBasketCheckout is the well-known purpose for the coin basket's
// price-lock window.
const PurposeBasketCheckout = "basket-checkout"

// DefaultPollInterval is how often watchers re-check the deadline.
const DefaultPollInterval = time.Second

// Coordinator owns a single deadline per purpose. All reads recompute the
// remaining time from the wall clock so the countdown stays correct across
// re-renders, tab switches and machine sleep.
type Coordinator struct {
	mu       sync.Mutex
	store    sessionstore.Store
	logger   *zap.Logger
	now      func() time.Time
	fallback map[string]time.Time
	degraded bool
}

// NewCoordinator creates a coordinator over the shared store.
func NewCoordinator(store sessionstore.Store, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:    store,
		logger:   logger,
		now:      time.Now,
		fallback: make(map[string]time.Time),
	}
}

// EnsureStarted adopts a live deadline for purpose when one exists,
// returning its remaining time; otherwise it stores now+duration and
// returns the full duration. Safe to call redundantly from independent
// observers: later calls are pure reads and never extend the window.
func (c *Coordinator) EnsureStarted(purpose string, duration time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if expiresAt, ok := c.get(purpose); ok && expiresAt.After(now) {
		return expiresAt.Sub(now)
	}

	c.put(purpose, now.Add(duration))
	return duration
}

// Remaining returns the time left before the stored deadline for purpose,
// recomputed from the wall clock on every call. Zero means expired or
// never started.
func (c *Coordinator) Remaining(purpose string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt, ok := c.get(purpose)
	if !ok {
		return 0
	}
	remaining := expiresAt.Sub(c.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingSeconds returns Remaining rounded up to whole seconds, the value
// surfaces display in their countdowns.
func (c *Coordinator) RemainingSeconds(purpose string) int {
	remaining := c.Remaining(purpose)
	if remaining <= 0 {
		return 0
	}
	secs := int(remaining / time.Second)
	if remaining%time.Second > 0 {
		secs++
	}
	return secs
}

// Active reports whether a live deadline exists for purpose.
func (c *Coordinator) Active(purpose string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt, ok := c.get(purpose)
	return ok && expiresAt.After(c.now())
}

// Clear removes the stored deadline, used on successful checkout before it
// would naturally expire. Clearing a missing deadline is a no-op.
func (c *Coordinator) Clear(purpose string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delete(purpose)
}

// SetNow replaces the coordinator's clock. Tests use this to simulate
// wall-clock advance.
func (c *Coordinator) SetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Now returns the coordinator's current wall-clock time.
func (c *Coordinator) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

// deadlineFor exposes the raw stored expiry for watchers.
func (c *Coordinator) deadlineFor(purpose string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(purpose)
}

// get reads a deadline, degrading to the in-memory fallback when the shared
// store fails (e.g. unwritable disk). Other observers may then disagree
// slightly; that beats failing the surface.
func (c *Coordinator) get(purpose string) (time.Time, bool) {
	if c.degraded {
		expiresAt, ok := c.fallback[purpose]
		return expiresAt, ok
	}

	d, ok, err := c.store.Get(purpose)
	if err != nil {
		c.degrade(err)
		expiresAt, ok := c.fallback[purpose]
		return expiresAt, ok
	}
	return d.ExpiresAt, ok
}

func (c *Coordinator) put(purpose string, expiresAt time.Time) {
	if !c.degraded {
		err := c.store.Put(sessionstore.Deadline{Purpose: purpose, ExpiresAt: expiresAt})
		if err == nil {
			return
		}
		c.degrade(err)
	}
	c.fallback[purpose] = expiresAt
}

func (c *Coordinator) delete(purpose string) {
	if !c.degraded {
		if err := c.store.Delete(purpose); err != nil {
			c.degrade(err)
		}
	}
	delete(c.fallback, purpose)
}

func (c *Coordinator) degrade(err error) {
	if c.degraded {
		return
	}
	c.degraded = true
	c.logger.Warn("session store unavailable, falling back to in-memory deadlines", zap.Error(err))
}
