package trade

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aurumpay/goldengine/internal/entity"
	"github.com/aurumpay/goldengine/internal/services/wallet"
)

// BuyMachine walks a single-asset purchase through
// amount -> checkout -> success. The machine owns its trade intent; nothing
// shares it by reference, so a basket clear elsewhere never clobbers an
// in-flight purchase.
type BuyMachine struct {
	mu         sync.Mutex
	logger     *zap.Logger
	ledger     wallet.Ledger
	rates      RateProvider
	limits     Limits
	metal      entity.Metal
	expired    func() bool
	intent     *entity.TradeIntent
	step       Step
	snapshot   entity.WalletSnapshot
	committing bool
}

// NewBuyMachine creates a fresh machine in the amount step and primes its
// read-through balance cache from the ledger. expired guards new commits
// once the surrounding session reports expiry; nil means no guard.
func NewBuyMachine(ctx context.Context, metal entity.Metal, ledger wallet.Ledger, rates RateProvider, limits Limits, expired func() bool, logger *zap.Logger) (*BuyMachine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	snapshot, err := ledger.Balance(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read wallet balance")
	}
	return &BuyMachine{
		logger:   logger.With(zap.String("metal", metal.String()), zap.String("action", "buy")),
		ledger:   ledger,
		rates:    rates,
		limits:   limits,
		metal:    metal,
		expired:  expired,
		intent:   entity.NewTradeIntent(metal, entity.ActionBuy),
		snapshot: snapshot,
	}, nil
}

// Step returns the machine's current step.
func (m *BuyMachine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Intent returns a copy of the current trade intent.
func (m *BuyMachine) Intent() entity.TradeIntent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.intent
}

// Snapshot returns the wallet balance as last reconciled with the ledger.
func (m *BuyMachine) Snapshot() entity.WalletSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// EditGrams makes grams the authoritative field. Only valid in the amount
// step, and only once a rate is known.
func (m *BuyMachine) EditGrams(grams decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step != StepAmount {
		return ErrWrongStep
	}
	rate, ok := m.rates.Latest(m.metal)
	if !ok {
		return ErrRateUnavailable
	}
	return m.intent.SetGrams(grams, rate)
}

// EditRupees makes rupees the authoritative field.
func (m *BuyMachine) EditRupees(rupees decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step != StepAmount {
		return ErrWrongStep
	}
	rate, ok := m.rates.Latest(m.metal)
	if !ok {
		return ErrRateUnavailable
	}
	return m.intent.SetRupees(rupees, rate)
}

// QuickAmounts returns the configured one-tap rupee presets for the amount
// step.
func (m *BuyMachine) QuickAmounts() []decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	presets := make([]decimal.Decimal, len(m.limits.QuickAmounts))
	copy(presets, m.limits.QuickAmounts)
	return presets
}

// ApplyQuickAmount sets the rupee amount from the preset at index, making
// rupees the authoritative field exactly as a manual edit would.
func (m *BuyMachine) ApplyQuickAmount(index int) error {
	m.mu.Lock()
	if index < 0 || index >= len(m.limits.QuickAmounts) {
		m.mu.Unlock()
		return ErrNoSuchQuickAmount
	}
	preset := m.limits.QuickAmounts[index]
	m.mu.Unlock()
	return m.EditRupees(preset)
}

// OnRateUpdate recomputes the derived amount field from a fresh rate push.
// The last-edited field is never touched, so the user's in-progress input
// survives the update.
func (m *BuyMachine) OnRateUpdate(rate entity.Rate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step != StepAmount {
		return
	}
	m.intent.ApplyRate(rate)
}

// GST returns the GST portion of the current amount, unrounded.
func (m *BuyMachine) GST() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return GSTAmount(m.intent.Rupees, m.limits.GSTPercent)
}

// Payable returns the amount plus GST, unrounded.
func (m *BuyMachine) Payable() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payableLocked()
}

func (m *BuyMachine) payableLocked() decimal.Decimal {
	return m.intent.Rupees.Add(GSTAmount(m.intent.Rupees, m.limits.GSTPercent))
}

// Validate reports the first active validation error, or nil when the
// amount may proceed to checkout.
func (m *BuyMachine) Validate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validateLocked()
}

func (m *BuyMachine) validateLocked() error {
	if _, ok := m.rates.Latest(m.metal); !ok {
		return ErrRateUnavailable
	}
	if m.intent.Rupees.LessThan(m.limits.MinTradeRupees) {
		return ErrAmountBelowMinimum
	}
	if m.limits.MaxTradeRupees.IsPositive() && m.intent.Rupees.GreaterThan(m.limits.MaxTradeRupees) {
		return ErrAmountAboveMaximum
	}
	if m.payableLocked().GreaterThan(m.snapshot.Confirmed.Cash) {
		return wallet.ErrInsufficientCash
	}
	return nil
}

// Proceed commits the buy and advances amount -> checkout. Exactly one
// ledger call is issued per invocation; on rejection the machine stays in
// the amount step with no state mutated, and the caller may retry with the
// same or an adjusted amount.
func (m *BuyMachine) Proceed(ctx context.Context) error {
	m.mu.Lock()
	if m.step != StepAmount {
		m.mu.Unlock()
		return ErrWrongStep
	}
	if m.committing {
		m.mu.Unlock()
		return ErrCommitInFlight
	}
	if m.expired != nil && m.expired() {
		m.mu.Unlock()
		return ErrSessionExpired
	}
	if err := m.validateLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	grams := m.intent.Grams
	payable := m.payableLocked()
	m.committing = true
	m.mu.Unlock()

	orderID := uuid.NewString()
	snapshot, err := m.ledger.CommitBuy(ctx, m.metal, grams, payable, orderID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.committing = false
	if err != nil {
		m.logger.Warn("buy commit rejected", zap.String("order_id", orderID), zap.Error(err))
		return errors.Wrap(err, "buy commit rejected")
	}

	m.snapshot = snapshot
	m.step = StepCheckout
	m.logger.Info("buy committed",
		zap.String("order_id", orderID),
		zap.String("grams", grams.String()),
		zap.String("payable", payable.String()))
	return nil
}

// SelectMethod records the payment method. Informational only: the actual
// gateway interaction happens outside this engine.
func (m *BuyMachine) SelectMethod(method entity.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step != StepCheckout {
		return ErrWrongStep
	}
	m.intent.Method = method
	return nil
}

// Back returns from checkout to the amount step.
func (m *BuyMachine) Back() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step != StepCheckout {
		return ErrWrongStep
	}
	m.step = StepAmount
	return nil
}

// Confirm finishes the flow, checkout -> success. The balance shown in the
// success step was already reconciled by the commit call.
func (m *BuyMachine) Confirm(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step != StepCheckout {
		return ErrWrongStep
	}
	m.step = StepSuccess
	return nil
}
