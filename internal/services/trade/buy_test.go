package trade

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
	"github.com/aurumpay/goldengine/internal/services/wallet"
)

// mockRates serves a fixed rate; absent means "feed never delivered".
type mockRates struct {
	mu    sync.Mutex
	rates map[entity.Metal]entity.Rate
}

func newMockRates() *mockRates {
	return &mockRates{rates: make(map[entity.Metal]entity.Rate)}
}

func (m *mockRates) set(metal entity.Metal, buy, sell string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[metal] = entity.Rate{
		Buy:  decimal.RequireFromString(buy),
		Sell: decimal.RequireFromString(sell),
		AsOf: time.Now(),
	}
}

func (m *mockRates) Latest(metal entity.Metal) (entity.Rate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rate, ok := m.rates[metal]
	return rate, ok
}

func testLimits() Limits {
	return Limits{
		MinTradeRupees: decimal.NewFromInt(10),
		MaxTradeRupees: decimal.NewFromInt(500000),
		MinSellGrams:   decimal.RequireFromString("0.1"),
		GSTPercent:     decimal.NewFromInt(3),
		QuickAmounts: []decimal.Decimal{
			decimal.NewFromInt(100),
			decimal.NewFromInt(500),
			decimal.NewFromInt(1000),
		},
	}
}

func newBuyFixture(t *testing.T) (*BuyMachine, *mockRates, *wallet.SimulateLedger) {
	t.Helper()
	rates := newMockRates()
	rates.set(entity.MetalGold, "6245.50", "6183.05")

	ledger, err := wallet.NewSimulateLedger(zap.NewNop(), nil, nil, 48*time.Hour)
	require.NoError(t, err)

	m, err := NewBuyMachine(context.Background(), entity.MetalGold, ledger, rates, testLimits(), nil, zap.NewNop())
	require.NoError(t, err)
	return m, rates, ledger
}

func TestGSTAmount(t *testing.T) {
	gst := GSTAmount(decimal.RequireFromString("6245.50"), decimal.NewFromInt(3))

	// exact value unrounded; display layer rounds to 187.37
	assert.True(t, gst.Equal(decimal.RequireFromString("187.365")), "gst = %s", gst)
	assert.Equal(t, "187.37", gst.StringFixed(2))

	total := decimal.RequireFromString("6245.50").Add(gst)
	assert.Equal(t, "6432.87", total.StringFixed(2))
}

func TestBuyMachine_EditRupeesDerivesGrams(t *testing.T) {
	m, _, _ := newBuyFixture(t)

	require.NoError(t, m.EditRupees(decimal.RequireFromString("6245.50")))

	intent := m.Intent()
	assert.True(t, intent.Grams.Equal(decimal.NewFromInt(1)), "grams = %s", intent.Grams)
	assert.Equal(t, entity.FieldRupees, intent.LastEdited)
}

func TestBuyMachine_QuickAmounts(t *testing.T) {
	m, _, _ := newBuyFixture(t)

	presets := m.QuickAmounts()
	require.Len(t, presets, 3)
	assert.True(t, presets[1].Equal(decimal.NewFromInt(500)))

	// applying a preset behaves like typing the rupee amount
	require.NoError(t, m.ApplyQuickAmount(2))
	intent := m.Intent()
	assert.True(t, intent.Rupees.Equal(decimal.NewFromInt(1000)), "rupees = %s", intent.Rupees)
	assert.Equal(t, entity.FieldRupees, intent.LastEdited)
	assert.True(t, intent.Grams.Equal(decimal.NewFromInt(1000).Div(decimal.RequireFromString("6245.50"))))

	assert.True(t, errors.Is(m.ApplyQuickAmount(3), ErrNoSuchQuickAmount))
	assert.True(t, errors.Is(m.ApplyQuickAmount(-1), ErrNoSuchQuickAmount))

	// presets are an amount-step affordance only
	require.NoError(t, m.Proceed(context.Background()))
	assert.True(t, errors.Is(m.ApplyQuickAmount(0), ErrWrongStep))
}

func TestBuyMachine_RateUpdateKeepsEditedField(t *testing.T) {
	m, rates, _ := newBuyFixture(t)
	require.NoError(t, m.EditRupees(decimal.NewFromInt(1000)))

	rates.set(entity.MetalGold, "6300.00", "6237.00")
	rate, _ := rates.Latest(entity.MetalGold)
	m.OnRateUpdate(rate)

	intent := m.Intent()
	assert.True(t, intent.Rupees.Equal(decimal.NewFromInt(1000)))
	assert.True(t, intent.Grams.Equal(decimal.NewFromInt(1000).Div(decimal.RequireFromString("6300.00"))))
}

func TestBuyMachine_NoRateBlocksEditing(t *testing.T) {
	rates := newMockRates() // empty: feed never delivered
	ledger, err := wallet.NewSimulateLedger(zap.NewNop(), nil, nil, 48*time.Hour)
	require.NoError(t, err)
	m, err := NewBuyMachine(context.Background(), entity.MetalGold, ledger, rates, testLimits(), nil, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, errors.Is(m.EditRupees(decimal.NewFromInt(100)), ErrRateUnavailable))
	assert.True(t, errors.Is(m.Validate(), ErrRateUnavailable))
}

func TestBuyMachine_ValidateBand(t *testing.T) {
	m, _, _ := newBuyFixture(t)

	require.NoError(t, m.EditRupees(decimal.NewFromInt(5)))
	assert.True(t, errors.Is(m.Validate(), ErrAmountBelowMinimum))

	require.NoError(t, m.EditRupees(decimal.NewFromInt(600000)))
	assert.True(t, errors.Is(m.Validate(), ErrAmountAboveMaximum))

	// error clears once the amount is edited back into range
	require.NoError(t, m.EditRupees(decimal.NewFromInt(1000)))
	assert.NoError(t, m.Validate())
}

func TestBuyMachine_ValidateAgainstCash(t *testing.T) {
	m, _, _ := newBuyFixture(t)

	// 9990 + 3% GST exceeds the 10000 opening balance
	require.NoError(t, m.EditRupees(decimal.NewFromInt(9990)))
	assert.True(t, errors.Is(m.Validate(), wallet.ErrInsufficientCash))
}

func TestBuyMachine_ProceedCommitsAndAdvances(t *testing.T) {
	m, _, _ := newBuyFixture(t)
	ctx := context.Background()

	require.NoError(t, m.EditRupees(decimal.RequireFromString("6245.50")))
	require.NoError(t, m.Proceed(ctx))

	assert.Equal(t, StepCheckout, m.Step())

	// cash reduced by amount + GST, grams credited
	snapshot := m.Snapshot()
	wantCash := decimal.NewFromInt(10000).Sub(decimal.RequireFromString("6432.865"))
	assert.True(t, snapshot.Confirmed.Cash.Equal(wantCash), "cash = %s", snapshot.Confirmed.Cash)
	assert.True(t, snapshot.Confirmed.Grams(entity.MetalGold).Equal(decimal.NewFromInt(1)))

	// amount edits are locked outside the amount step
	assert.True(t, errors.Is(m.EditRupees(decimal.NewFromInt(100)), ErrWrongStep))
}

func TestBuyMachine_ProceedRejectionKeepsAmountStep(t *testing.T) {
	m, _, _ := newBuyFixture(t)
	ctx := context.Background()

	require.NoError(t, m.EditRupees(decimal.NewFromInt(5)))
	require.Error(t, m.Proceed(ctx))
	assert.Equal(t, StepAmount, m.Step())

	// adjusted amount proceeds on retry
	require.NoError(t, m.EditRupees(decimal.NewFromInt(1000)))
	assert.NoError(t, m.Proceed(ctx))
}

func TestBuyMachine_ExpiredSessionBlocksCommit(t *testing.T) {
	rates := newMockRates()
	rates.set(entity.MetalGold, "6245.50", "6183.05")
	ledger, err := wallet.NewSimulateLedger(zap.NewNop(), nil, nil, 48*time.Hour)
	require.NoError(t, err)

	expired := false
	m, err := NewBuyMachine(context.Background(), entity.MetalGold, ledger, rates, testLimits(),
		func() bool { return expired }, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, m.EditRupees(decimal.NewFromInt(1000)))
	expired = true
	assert.True(t, errors.Is(m.Proceed(context.Background()), ErrSessionExpired))
	assert.Equal(t, StepAmount, m.Step())
}

func TestBuyMachine_FullFlow(t *testing.T) {
	m, _, _ := newBuyFixture(t)
	ctx := context.Background()

	require.NoError(t, m.EditGrams(decimal.NewFromInt(1)))
	require.NoError(t, m.Proceed(ctx))
	require.NoError(t, m.SelectMethod(entity.PaymentMethod{Type: "upi", DisplayLabel: "UPI", IsPrimary: true}))
	require.NoError(t, m.Confirm(ctx))

	assert.Equal(t, StepSuccess, m.Step())
	assert.Equal(t, "upi", m.Intent().Method.Type)

	// terminal: no way back
	assert.True(t, errors.Is(m.Back(), ErrWrongStep))
	assert.True(t, errors.Is(m.Proceed(ctx), ErrWrongStep))
}

func TestBuyMachine_BackReturnsToAmount(t *testing.T) {
	m, _, _ := newBuyFixture(t)
	ctx := context.Background()

	require.NoError(t, m.EditRupees(decimal.NewFromInt(1000)))
	require.NoError(t, m.Proceed(ctx))
	require.NoError(t, m.Back())
	assert.Equal(t, StepAmount, m.Step())
}
