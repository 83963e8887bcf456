package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate is an immutable per-gram price snapshot for a metal. Each push from
// the feed supersedes the previous snapshot wholesale.
//
// Sell is normally at or below Buy, but an inverted spread coming from the
// feed is passed through as-is rather than clamped.
type Rate struct {
	Buy  decimal.Decimal
	Sell decimal.Decimal
	AsOf time.Time
}

// For returns the rate side that applies to the given action.
func (r Rate) For(action Action) decimal.Decimal {
	if action == ActionSell {
		return r.Sell
	}
	return r.Buy
}

// IsZero reports whether the snapshot carries no usable price.
func (r Rate) IsZero() bool {
	return r.Buy.IsZero() && r.Sell.IsZero()
}

// Spread returns Buy - Sell. Negative means the feed delivered an inverted
// spread.
func (r Rate) Spread() decimal.Decimal {
	return r.Buy.Sub(r.Sell)
}
