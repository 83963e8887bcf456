// Package wallet defines the ledger contract the trade engine commits
// against, plus a simulated implementation with deferred sell settlement.
package wallet

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/aurumpay/goldengine/internal/entity"
)

var (
	// ErrInsufficientCash means the buy total exceeds the spendable cash.
	ErrInsufficientCash = errors.New("insufficient cash balance")
	// ErrInsufficientMetal means the sell grams exceed the owned metal.
	ErrInsufficientMetal = errors.New("insufficient metal balance")
	// ErrDuplicateOrder means the order id was already committed.
	ErrDuplicateOrder = errors.New("order already committed")
)

// SellReceipt acknowledges a committed sell whose cash credit is deferred
// to the settlement process. Metal is debited immediately; cash shows up
// only after SettlesAt.
type SellReceipt struct {
	OrderID     string
	PendingCash decimal.Decimal
	SettlesAt   time.Time
}

// Ledger is the authoritative wallet. Commits are fire-to-completion: the
// caller issues at most one commit per user action and surfaces the error
// on rejection, never retrying silently.
type Ledger interface {
	// Balance returns the confirmed balance and any pending sell credit.
	Balance(ctx context.Context) (entity.WalletSnapshot, error)
	// CommitBuy debits rupees (the full payable amount) and credits
	// grams of metal. The returned snapshot is the reconciled balance.
	CommitBuy(ctx context.Context, metal entity.Metal, grams, rupees decimal.Decimal, orderID string) (entity.WalletSnapshot, error)
	// CommitSell debits grams immediately and schedules the rupee credit
	// for settlement.
	CommitSell(ctx context.Context, metal entity.Metal, grams, rupees decimal.Decimal, orderID string) (SellReceipt, error)
}
