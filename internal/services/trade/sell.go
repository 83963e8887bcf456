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

// SellMachine mirrors BuyMachine but validates against owned metal grams
// and defers the cash credit to settlement. The irreversibility
// acknowledgement is a hard guard on the amount -> checkout transition,
// not presentation.
type SellMachine struct {
	mu           sync.Mutex
	logger       *zap.Logger
	ledger       wallet.Ledger
	rates        RateProvider
	limits       Limits
	metal        entity.Metal
	expired      func() bool
	intent       *entity.TradeIntent
	step         Step
	snapshot     entity.WalletSnapshot
	receipt      wallet.SellReceipt
	acknowledged bool
	committing   bool
}

// NewSellMachine creates a fresh machine in the amount step.
func NewSellMachine(ctx context.Context, metal entity.Metal, ledger wallet.Ledger, rates RateProvider, limits Limits, expired func() bool, logger *zap.Logger) (*SellMachine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	snapshot, err := ledger.Balance(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read wallet balance")
	}
	return &SellMachine{
		logger:   logger.With(zap.String("metal", metal.String()), zap.String("action", "sell")),
		ledger:   ledger,
		rates:    rates,
		limits:   limits,
		metal:    metal,
		expired:  expired,
		intent:   entity.NewTradeIntent(metal, entity.ActionSell),
		snapshot: snapshot,
	}, nil
}

// Step returns the machine's current step.
func (m *SellMachine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Intent returns a copy of the current trade intent.
func (m *SellMachine) Intent() entity.TradeIntent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.intent
}

// Snapshot returns the wallet balance as last reconciled with the ledger.
// After a committed sell the metal grams are already decremented while the
// cash credit sits in PendingCash until settlement.
func (m *SellMachine) Snapshot() entity.WalletSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Receipt returns the settlement receipt of a committed sell.
func (m *SellMachine) Receipt() wallet.SellReceipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receipt
}

// Acknowledge records whether the user has accepted that selling is
// irreversible.
func (m *SellMachine) Acknowledge(accepted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acknowledged = accepted
}

// EditGrams makes grams the authoritative field.
func (m *SellMachine) EditGrams(grams decimal.Decimal) error {
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
func (m *SellMachine) EditRupees(rupees decimal.Decimal) error {
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

// OnRateUpdate recomputes the derived amount field from a fresh rate push.
func (m *SellMachine) OnRateUpdate(rate entity.Rate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step != StepAmount {
		return
	}
	m.intent.ApplyRate(rate)
}

// Validate reports the first active validation error, or nil when the
// amount may proceed to checkout. The acknowledgement is checked by
// Proceed, not here, so the UI can show range errors independently of the
// checkbox.
func (m *SellMachine) Validate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validateLocked()
}

func (m *SellMachine) validateLocked() error {
	if _, ok := m.rates.Latest(m.metal); !ok {
		return ErrRateUnavailable
	}
	if m.intent.Grams.LessThan(m.limits.MinSellGrams) {
		return ErrBelowSellMinimum
	}
	if m.intent.Grams.GreaterThan(m.snapshot.Confirmed.Grams(m.metal)) {
		return wallet.ErrInsufficientMetal
	}
	return nil
}

// Proceed commits the sell and advances amount -> checkout. Blocked until
// the irreversibility acknowledgement is set, even when the amount is
// otherwise valid.
func (m *SellMachine) Proceed(ctx context.Context) error {
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
	if !m.acknowledged {
		m.mu.Unlock()
		return ErrAckRequired
	}
	grams := m.intent.Grams
	rupees := m.intent.Rupees
	m.committing = true
	m.mu.Unlock()

	orderID := uuid.NewString()
	receipt, err := m.ledger.CommitSell(ctx, m.metal, grams, rupees, orderID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.committing = false
	if err != nil {
		m.logger.Warn("sell commit rejected", zap.String("order_id", orderID), zap.Error(err))
		return errors.Wrap(err, "sell commit rejected")
	}

	m.receipt = receipt
	if snapshot, err := m.ledger.Balance(ctx); err == nil {
		m.snapshot = snapshot
	}
	m.step = StepCheckout
	m.logger.Info("sell committed, settlement pending",
		zap.String("order_id", orderID),
		zap.String("grams", grams.String()),
		zap.Time("settles_at", receipt.SettlesAt))
	return nil
}

// SelectMethod records the settlement method for the deferred payout.
func (m *SellMachine) SelectMethod(method entity.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step != StepCheckout {
		return ErrWrongStep
	}
	m.intent.Method = method
	return nil
}

// Back returns from checkout to the amount step.
func (m *SellMachine) Back() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step != StepCheckout {
		return ErrWrongStep
	}
	m.step = StepAmount
	return nil
}

// Confirm finishes the flow into the pending-settlement success step. The
// cash credit stays out of the confirmed balance until the ledger settles
// it at Receipt().SettlesAt.
func (m *SellMachine) Confirm(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step != StepCheckout {
		return ErrWrongStep
	}
	m.step = StepSuccess
	return nil
}
