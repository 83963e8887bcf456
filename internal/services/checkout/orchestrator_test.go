package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aurumpay/goldengine/internal/entity"
	"github.com/aurumpay/goldengine/internal/services/payment"
	"github.com/aurumpay/goldengine/internal/services/session"
	"github.com/aurumpay/goldengine/internal/storage/sessionstore"
)

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

func testAddress() entity.Address {
	return entity.Address{
		Name:    "A Kumar",
		Line1:   "12 MG Road",
		City:    "Bengaluru",
		Pincode: "560001",
	}
}

func newFixture(t *testing.T) (*Orchestrator, *entity.Basket, *session.Coordinator, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	coordinator := session.NewCoordinator(sessionstore.NewMemoryStore(), zap.NewNop())
	coordinator.SetNow(clock.Now)
	coordinator.EnsureStarted(session.PurposeBasketCheckout, 300*time.Second)

	basket := entity.NewBasket()
	require.NoError(t, basket.Add(entity.Denomination1g, 1, decimal.RequireFromString("6245.50"), "1g coin"))
	require.NoError(t, basket.Add(entity.Denomination5g, 1, decimal.RequireFromString("31227.50"), "5g coin"))

	o := New(basket, coordinator, payment.NewStaticDirectory(), "demo-user",
		decimal.NewFromInt(3), decimal.NewFromInt(99), zap.NewNop())
	return o, basket, coordinator, clock
}

func TestOrchestrator_Totals(t *testing.T) {
	o, _, _, _ := newFixture(t)

	subtotal := o.Subtotal()
	assert.True(t, subtotal.Equal(decimal.RequireFromString("37473.00")), "subtotal = %s", subtotal)

	gst := o.GST()
	assert.True(t, gst.Equal(decimal.RequireFromString("1124.19")), "gst = %s", gst)

	total := o.Total()
	assert.True(t, total.Equal(decimal.RequireFromString("38696.19")), "total = %s", total)
}

func TestOrchestrator_StageProgression(t *testing.T) {
	o, _, _, _ := newFixture(t)

	assert.Equal(t, StageAddress, o.Stage())

	// no address selected yet
	assert.True(t, errors.Is(o.Next(), ErrNoAddress))

	o.AddAddress(testAddress())
	require.NoError(t, o.Next())
	assert.Equal(t, StagePayment, o.Stage())

	methods, err := o.Methods(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, methods)
	require.NoError(t, o.SelectMethod(methods[0]))

	require.NoError(t, o.Next())
	assert.Equal(t, StageConfirmation, o.Stage())

	require.NoError(t, o.Back())
	assert.Equal(t, StageAddress, o.Stage())
}

func TestOrchestrator_SelectAddressOutOfRange(t *testing.T) {
	o, _, _, _ := newFixture(t)

	o.AddAddress(testAddress())
	assert.Error(t, o.SelectAddress(5))
	assert.NoError(t, o.SelectAddress(0))
	assert.Len(t, o.Addresses(), 1)
}

func TestOrchestrator_PayClearsBasketAndDeadline(t *testing.T) {
	o, basket, coordinator, _ := newFixture(t)
	ctx := context.Background()

	o.AddAddress(testAddress())
	require.NoError(t, o.Next())
	require.NoError(t, o.Next())
	require.NoError(t, o.Pay(ctx))

	assert.True(t, basket.IsEmpty())
	assert.False(t, coordinator.Active(session.PurposeBasketCheckout))
}

func TestOrchestrator_PayRequiresConfirmationStage(t *testing.T) {
	o, _, _, _ := newFixture(t)

	assert.True(t, errors.Is(o.Pay(context.Background()), ErrWrongStage))
}

func TestOrchestrator_PayRejectsEmptyBasket(t *testing.T) {
	o, basket, _, _ := newFixture(t)

	o.AddAddress(testAddress())
	require.NoError(t, o.Next())
	require.NoError(t, o.Next())

	basket.Clear()
	assert.True(t, errors.Is(o.Pay(context.Background()), ErrEmptyBasket))
}

func TestOrchestrator_ExpiryClearsBasketOnce(t *testing.T) {
	o, basket, _, clock := newFixture(t)

	o.AddAddress(testAddress())
	require.NoError(t, o.Next())

	clock.Advance(301 * time.Second)

	assert.Equal(t, StageExpired, o.Stage())
	assert.True(t, basket.IsEmpty())
	assert.Equal(t, 0, o.RemainingSeconds())

	// every interaction now reports expiry
	assert.True(t, errors.Is(o.Next(), ErrExpired))
	assert.True(t, errors.Is(o.Back(), ErrExpired))
	assert.True(t, errors.Is(o.Pay(context.Background()), ErrExpired))
}

func TestOrchestrator_PayBeatsExpiry(t *testing.T) {
	o, _, coordinator, clock := newFixture(t)
	ctx := context.Background()

	o.AddAddress(testAddress())
	require.NoError(t, o.Next())
	require.NoError(t, o.Next())

	clock.Advance(299 * time.Second)
	require.NoError(t, o.Pay(ctx))

	// passing the original deadline after payment changes nothing
	clock.Advance(10 * time.Second)
	assert.NotEqual(t, StageExpired, o.Stage())
	assert.False(t, coordinator.Active(session.PurposeBasketCheckout))
}

func TestOrchestrator_CountdownMatchesCoordinator(t *testing.T) {
	o, _, coordinator, clock := newFixture(t)

	clock.Advance(100 * time.Second)
	assert.Equal(t, 200, o.RemainingSeconds())
	assert.Equal(t, coordinator.RemainingSeconds(session.PurposeBasketCheckout), o.RemainingSeconds())
}
