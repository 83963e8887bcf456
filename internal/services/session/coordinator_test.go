package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aurumpay/goldengine/internal/storage/sessionstore"
)

// fakeClock is a settable clock shared by a coordinator and its tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	c := NewCoordinator(sessionstore.NewMemoryStore(), zap.NewNop())
	c.SetNow(clock.Now)
	return c, clock
}

func TestCoordinator_EnsureStartedAdoptsLiveDeadline(t *testing.T) {
	c, clock := newTestCoordinator(t)

	first := c.EnsureStarted(PurposeBasketCheckout, 300*time.Second)
	assert.Equal(t, 300*time.Second, first)

	clock.Advance(40 * time.Second)

	// a second observer adopts the countdown instead of resetting it
	second := c.EnsureStarted(PurposeBasketCheckout, 300*time.Second)
	assert.Equal(t, 260*time.Second, second)
}

func TestCoordinator_RemainingCountsDown(t *testing.T) {
	c, clock := newTestCoordinator(t)

	c.EnsureStarted(PurposeBasketCheckout, 300*time.Second)
	assert.Equal(t, 300, c.RemainingSeconds(PurposeBasketCheckout))

	clock.Advance(299 * time.Second)
	assert.Equal(t, 1, c.RemainingSeconds(PurposeBasketCheckout))

	clock.Advance(2 * time.Second)
	assert.Equal(t, 0, c.RemainingSeconds(PurposeBasketCheckout))
	assert.Equal(t, time.Duration(0), c.Remaining(PurposeBasketCheckout))
	assert.False(t, c.Active(PurposeBasketCheckout))
}

func TestCoordinator_RemainingSecondsRoundsUp(t *testing.T) {
	c, clock := newTestCoordinator(t)

	c.EnsureStarted(PurposeBasketCheckout, 300*time.Second)
	clock.Advance(500 * time.Millisecond)

	// 299.5s left shows as 300, never as 299
	assert.Equal(t, 300, c.RemainingSeconds(PurposeBasketCheckout))
}

func TestCoordinator_ExpiredDeadlineIsRestartedNotAdopted(t *testing.T) {
	c, clock := newTestCoordinator(t)

	c.EnsureStarted(PurposeBasketCheckout, 300*time.Second)
	clock.Advance(301 * time.Second)

	restarted := c.EnsureStarted(PurposeBasketCheckout, 300*time.Second)
	assert.Equal(t, 300*time.Second, restarted)
	assert.Equal(t, 300, c.RemainingSeconds(PurposeBasketCheckout))
}

func TestCoordinator_ClearIsIdempotent(t *testing.T) {
	c, _ := newTestCoordinator(t)

	c.EnsureStarted(PurposeBasketCheckout, time.Minute)
	c.Clear(PurposeBasketCheckout)
	assert.False(t, c.Active(PurposeBasketCheckout))

	// clearing a missing deadline is a no-op
	c.Clear(PurposeBasketCheckout)
	assert.Equal(t, 0, c.RemainingSeconds(PurposeBasketCheckout))
}

// failingStore simulates an unwritable shared store.
type failingStore struct{}

func (failingStore) Get(string) (sessionstore.Deadline, bool, error) {
	return sessionstore.Deadline{}, false, assert.AnError
}
func (failingStore) Put(sessionstore.Deadline) error { return assert.AnError }
func (failingStore) Delete(string) error             { return assert.AnError }

func TestCoordinator_DegradesToMemoryOnStoreFailure(t *testing.T) {
	clock := newFakeClock()
	c := NewCoordinator(failingStore{}, zap.NewNop())
	c.SetNow(clock.Now)

	got := c.EnsureStarted(PurposeBasketCheckout, 300*time.Second)
	assert.Equal(t, 300*time.Second, got)

	clock.Advance(100 * time.Second)
	assert.Equal(t, 200, c.RemainingSeconds(PurposeBasketCheckout))
}

func TestWatcher_FiresExactlyOnceOnExpiry(t *testing.T) {
	c, clock := newTestCoordinator(t)
	c.EnsureStarted(PurposeBasketCheckout, 300*time.Second)

	fired := 0
	w := c.Watch(PurposeBasketCheckout, func() { fired++ })

	require.False(t, w.Poll())
	clock.Advance(301 * time.Second)

	assert.True(t, w.Poll())
	assert.True(t, w.Poll())
	assert.Equal(t, 1, fired)

	// the stored deadline was removed before the callback ran
	assert.False(t, c.Active(PurposeBasketCheckout))
}

func TestWatcher_ConcurrentWatchersShareOneClear(t *testing.T) {
	c, clock := newTestCoordinator(t)
	c.EnsureStarted(PurposeBasketCheckout, 300*time.Second)

	var firedA, firedB int
	a := c.Watch(PurposeBasketCheckout, func() { firedA++ })
	b := c.Watch(PurposeBasketCheckout, func() { firedB++ })
	a.Poll()
	b.Poll()

	clock.Advance(301 * time.Second)

	assert.True(t, a.Poll())
	assert.True(t, b.Poll())
	assert.Equal(t, 1, firedA)
	assert.Equal(t, 1, firedB)
}

func TestWatcher_DeliberateClearDisarmsWithoutFiring(t *testing.T) {
	c, clock := newTestCoordinator(t)
	c.EnsureStarted(PurposeBasketCheckout, 300*time.Second)

	fired := 0
	w := c.Watch(PurposeBasketCheckout, func() { fired++ })
	require.False(t, w.Poll())

	// successful checkout clears the deadline before it runs out
	c.Clear(PurposeBasketCheckout)
	assert.False(t, w.Poll())

	clock.Advance(301 * time.Second)
	assert.False(t, w.Poll())
	assert.Equal(t, 0, fired)
}

func TestWatcher_NeverArmedNeverFires(t *testing.T) {
	c, clock := newTestCoordinator(t)

	fired := 0
	w := c.Watch(PurposeBasketCheckout, func() { fired++ })

	clock.Advance(time.Hour)
	assert.False(t, w.Poll())
	assert.Equal(t, 0, fired)
}
