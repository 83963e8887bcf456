package entity

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Field marks which side of the grams/rupees pair the user edited last.
type Field int

const (
	// FieldNone means no side has been edited yet
	FieldNone Field = iota
	// FieldGrams means the grams input is authoritative
	FieldGrams
	// FieldRupees means the rupee input is authoritative
	FieldRupees
)

// TradeIntent is the in-progress, not-yet-committed amount a user is
// configuring to buy or sell. Grams and rupees are two views of the same
// amount: exactly one of them is authoritative at a time (the last-edited
// field) and the other is recomputed from the current rate. This keeps a
// rate push arriving mid-edit from clobbering the field the user is typing
// in.
type TradeIntent struct {
	Metal      Metal
	Action     Action
	Grams      decimal.Decimal
	Rupees     decimal.Decimal
	Method     PaymentMethod
	LastEdited Field
}

// NewTradeIntent creates an empty intent for the given metal and action.
func NewTradeIntent(metal Metal, action Action) *TradeIntent {
	return &TradeIntent{Metal: metal, Action: action}
}

// SetGrams makes grams authoritative and derives rupees from the rate.
func (t *TradeIntent) SetGrams(grams decimal.Decimal, rate Rate) error {
	if grams.IsNegative() {
		return errors.New("grams must not be negative")
	}
	t.Grams = grams
	t.LastEdited = FieldGrams
	t.deriveOther(rate)
	return nil
}

// SetRupees makes rupees authoritative and derives grams from the rate.
func (t *TradeIntent) SetRupees(rupees decimal.Decimal, rate Rate) error {
	if rupees.IsNegative() {
		return errors.New("rupees must not be negative")
	}
	t.Rupees = rupees
	t.LastEdited = FieldRupees
	t.deriveOther(rate)
	return nil
}

// ApplyRate recomputes only the derived field after a rate push. The
// last-edited field is left untouched.
func (t *TradeIntent) ApplyRate(rate Rate) {
	t.deriveOther(rate)
}

func (t *TradeIntent) deriveOther(rate Rate) {
	perGram := rate.For(t.Action)
	switch t.LastEdited {
	case FieldGrams:
		t.Rupees = t.Grams.Mul(perGram)
	case FieldRupees:
		if perGram.IsZero() {
			t.Grams = decimal.Zero
			return
		}
		t.Grams = t.Rupees.Div(perGram)
	}
}
