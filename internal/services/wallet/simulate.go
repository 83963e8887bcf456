package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aurumpay/goldengine/internal/entity"
	"github.com/aurumpay/goldengine/internal/storage/journal"
	"github.com/aurumpay/goldengine/internal/storage/walletstate"
)

// defaultOpeningCash funds a fresh simulated wallet.
var defaultOpeningCash = decimal.NewFromInt(10000)

type journalWriter interface {
	Save(record journal.TradeRecord) error
}

type pendingCredit struct {
	orderID   string
	amount    decimal.Decimal
	settlesAt time.Time
}

// SimulateLedger is an in-process wallet with the same observable
// behaviour the remote ledger contract promises: buys settle instantly,
// sells debit metal immediately and credit cash only after the settlement
// delay has passed.
type SimulateLedger struct {
	mu              sync.RWMutex
	logger          *zap.Logger
	cash            decimal.Decimal
	metals          map[entity.Metal]decimal.Decimal
	pending         []pendingCredit
	orders          map[string]struct{}
	settlementDelay time.Duration
	now             func() time.Time
	stateStore      *walletstate.Store
	journal         journalWriter
}

// NewSimulateLedger creates a ledger with the default opening cash. A nil
// stateStore or journal disables the corresponding persistence.
func NewSimulateLedger(logger *zap.Logger, stateStore *walletstate.Store, jrnl journalWriter, settlementDelay time.Duration) (*SimulateLedger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger := &SimulateLedger{
		logger:          logger,
		cash:            defaultOpeningCash,
		metals:          make(map[entity.Metal]decimal.Decimal),
		orders:          make(map[string]struct{}),
		settlementDelay: settlementDelay,
		now:             time.Now,
		stateStore:      stateStore,
		journal:         jrnl,
	}
	if err := ledger.restoreState(); err != nil {
		logger.Warn("failed to restore wallet state", zap.Error(err))
	}
	logger.Info("wallet init",
		zap.String("cash", ledger.cash.String()),
		zap.Duration("settlement_delay", settlementDelay))
	return ledger, nil
}

// SetNow replaces the ledger clock; tests use it to mature settlements.
func (l *SimulateLedger) SetNow(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Balance settles any matured sell credits, then returns the snapshot.
func (l *SimulateLedger) Balance(ctx context.Context) (entity.WalletSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.settleLocked()
	return l.snapshotLocked(), nil
}

// CommitBuy debits the payable rupees and credits the grams. Validation
// failures leave the wallet untouched.
func (l *SimulateLedger) CommitBuy(ctx context.Context, metal entity.Metal, grams, rupees decimal.Decimal, orderID string) (entity.WalletSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if grams.LessThanOrEqual(decimal.Zero) {
		return entity.WalletSnapshot{}, fmt.Errorf("buy grams must be positive, got %s", grams.String())
	}
	if _, ok := l.orders[orderID]; ok {
		return entity.WalletSnapshot{}, ErrDuplicateOrder
	}

	l.settleLocked()

	if l.cash.LessThan(rupees) {
		return entity.WalletSnapshot{}, errors.Wrapf(ErrInsufficientCash,
			"have %s need %s", l.cash.String(), rupees.String())
	}

	l.cash = l.cash.Sub(rupees)
	l.metals[metal] = l.metals[metal].Add(grams)
	l.orders[orderID] = struct{}{}
	l.persistLocked()
	l.record(journal.TradeRecord{
		OrderID:   orderID,
		Metal:     metal.String(),
		Action:    entity.ActionBuy.String(),
		Grams:     grams.String(),
		Rupees:    rupees.String(),
		Status:    "settled",
		Timestamp: l.now(),
	})

	l.logger.Info("buy committed",
		zap.String("order_id", orderID),
		zap.String("metal", metal.String()),
		zap.String("grams", grams.String()),
		zap.String("rupees", rupees.String()))
	return l.snapshotLocked(), nil
}

// CommitSell debits the grams immediately and schedules the rupee credit.
// The confirmed cash balance is not touched until settlement matures.
func (l *SimulateLedger) CommitSell(ctx context.Context, metal entity.Metal, grams, rupees decimal.Decimal, orderID string) (SellReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if grams.LessThanOrEqual(decimal.Zero) {
		return SellReceipt{}, fmt.Errorf("sell grams must be positive, got %s", grams.String())
	}
	if _, ok := l.orders[orderID]; ok {
		return SellReceipt{}, ErrDuplicateOrder
	}

	l.settleLocked()

	owned := l.metals[metal]
	if owned.LessThan(grams) {
		return SellReceipt{}, errors.Wrapf(ErrInsufficientMetal,
			"have %s need %s", owned.String(), grams.String())
	}

	settlesAt := l.now().Add(l.settlementDelay)
	l.metals[metal] = owned.Sub(grams)
	l.pending = append(l.pending, pendingCredit{orderID: orderID, amount: rupees, settlesAt: settlesAt})
	l.orders[orderID] = struct{}{}
	l.persistLocked()
	l.record(journal.TradeRecord{
		OrderID:   orderID,
		Metal:     metal.String(),
		Action:    entity.ActionSell.String(),
		Grams:     grams.String(),
		Rupees:    rupees.String(),
		Status:    "pending",
		Timestamp: l.now(),
	})

	l.logger.Info("sell committed, settlement pending",
		zap.String("order_id", orderID),
		zap.String("metal", metal.String()),
		zap.String("grams", grams.String()),
		zap.Time("settles_at", settlesAt))
	return SellReceipt{OrderID: orderID, PendingCash: rupees, SettlesAt: settlesAt}, nil
}

// settleLocked moves matured pending credits into confirmed cash.
func (l *SimulateLedger) settleLocked() {
	if len(l.pending) == 0 {
		return
	}

	now := l.now()
	remaining := l.pending[:0]
	settled := false
	for _, credit := range l.pending {
		if credit.settlesAt.After(now) {
			remaining = append(remaining, credit)
			continue
		}
		l.cash = l.cash.Add(credit.amount)
		settled = true
		l.logger.Info("sell settlement credited",
			zap.String("order_id", credit.orderID),
			zap.String("amount", credit.amount.String()))
	}
	l.pending = remaining
	if settled {
		l.persistLocked()
	}
}

func (l *SimulateLedger) snapshotLocked() entity.WalletSnapshot {
	metals := make(map[entity.Metal]decimal.Decimal, len(l.metals))
	for metal, grams := range l.metals {
		metals[metal] = grams
	}
	pendingCash := decimal.Zero
	for _, credit := range l.pending {
		pendingCash = pendingCash.Add(credit.amount)
	}
	return entity.WalletSnapshot{
		Confirmed:   entity.Balance{Cash: l.cash, MetalGrams: metals},
		PendingCash: pendingCash,
	}
}

func (l *SimulateLedger) restoreState() error {
	if l.stateStore == nil {
		return nil
	}
	state, err := l.stateStore.Load()
	if err != nil || state == nil {
		return err
	}

	cash, err := walletstate.ParseDecimal(state.Cash)
	if err != nil {
		return errors.Wrap(err, "decode cash balance")
	}
	l.cash = cash

	for name, gramsStr := range state.Metals {
		metal, err := entity.ParseMetal(name)
		if err != nil {
			return err
		}
		grams, err := walletstate.ParseDecimal(gramsStr)
		if err != nil {
			return errors.Wrapf(err, "decode %s balance", name)
		}
		l.metals[metal] = grams
	}

	for _, stored := range state.Pending {
		amount, err := walletstate.ParseDecimal(stored.Amount)
		if err != nil {
			return errors.Wrap(err, "decode pending credit")
		}
		l.pending = append(l.pending, pendingCredit{
			orderID:   stored.OrderID,
			amount:    amount,
			settlesAt: stored.SettlesAt,
		})
		l.orders[stored.OrderID] = struct{}{}
	}

	return nil
}

func (l *SimulateLedger) persistLocked() {
	if l.stateStore == nil {
		return
	}

	state := walletstate.State{
		Cash:   l.cash.String(),
		Metals: make(map[string]string, len(l.metals)),
	}
	for metal, grams := range l.metals {
		state.Metals[metal.String()] = grams.String()
	}
	for _, credit := range l.pending {
		state.Pending = append(state.Pending, walletstate.PendingCredit{
			OrderID:   credit.orderID,
			Amount:    credit.amount.String(),
			SettlesAt: credit.settlesAt,
		})
	}

	if err := l.stateStore.Save(state); err != nil {
		l.logger.Warn("failed to persist wallet state", zap.Error(err))
	}
}

func (l *SimulateLedger) record(record journal.TradeRecord) {
	if l.journal == nil {
		return
	}
	if err := l.journal.Save(record); err != nil {
		l.logger.Warn("failed to journal trade", zap.Error(err))
	}
}
