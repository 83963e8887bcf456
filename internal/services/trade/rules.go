// Package trade implements the buy and sell step machines: amount entry
// with grams/rupees mutual derivation, trade-band and balance validation,
// GST totals, and the commit handshake with the wallet ledger.
package trade

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/aurumpay/goldengine/internal/entity"
)

// Step is the position of a machine in its linear flow.
type Step int

const (
	// StepAmount is the editable amount-entry step
	StepAmount Step = iota
	// StepCheckout is the payment/settlement method selection step
	StepCheckout
	// StepSuccess is the terminal step; re-entering the flow needs a
	// fresh machine
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepAmount:
		return "amount"
	case StepCheckout:
		return "checkout"
	case StepSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Validation errors. These are detected locally before any ledger call,
// block the amount -> checkout transition, and clear as soon as the input
// is edited back into range.
var (
	ErrRateUnavailable    = errors.New("rate unavailable")
	ErrAmountBelowMinimum = errors.New("amount below minimum trade size")
	ErrAmountAboveMaximum = errors.New("amount above maximum trade size")
	ErrBelowSellMinimum   = errors.New("grams below minimum sellable amount")
	ErrAckRequired        = errors.New("irreversibility acknowledgement required")
	ErrSessionExpired     = errors.New("session expired, no new commits accepted")
	ErrWrongStep          = errors.New("operation not allowed in current step")
	ErrCommitInFlight     = errors.New("commit already in flight")
	ErrNoSuchQuickAmount  = errors.New("no quick amount at that position")
)

// Limits is the configured trade band for a metal, plus the quick-amount
// presets the amount step offers as one-tap rupee values.
type Limits struct {
	MinTradeRupees decimal.Decimal
	MaxTradeRupees decimal.Decimal
	MinSellGrams   decimal.Decimal
	GSTPercent     decimal.Decimal
	QuickAmounts   []decimal.Decimal
}

// GSTAmount computes amount * gstPercent / 100 without rounding. Rounding
// happens at display time only so repeated edits never compound error.
func GSTAmount(amount, gstPercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(gstPercent).Div(decimal.NewFromInt(100))
}

// RateProvider is the slice of the rate feed the machines need.
type RateProvider interface {
	Latest(metal entity.Metal) (entity.Rate, bool)
}
