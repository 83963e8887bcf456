package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Denomination is a physical coin size in grams.
type Denomination int

// Valid coin denominations offered by the shop.
const (
	Denomination1g  Denomination = 1
	Denomination2g  Denomination = 2
	Denomination5g  Denomination = 5
	Denomination10g Denomination = 10
)

// Valid reports whether d is one of the offered coin sizes.
func (d Denomination) Valid() bool {
	switch d {
	case Denomination1g, Denomination2g, Denomination5g, Denomination10g:
		return true
	default:
		return false
	}
}

// BasketEntry is one coin line in the basket.
type BasketEntry struct {
	Denomination Denomination
	Quantity     int
	UnitPrice    decimal.Decimal
	Label        string
}

// Basket is an ordered collection of coin entries keyed by denomination.
// Adding an existing denomination merges quantities instead of duplicating
// the line. The basket is pure state: no I/O, no locking; callers that
// share a basket across surfaces guard it themselves.
type Basket struct {
	entries []BasketEntry
}

// NewBasket creates an empty basket.
func NewBasket() *Basket {
	return &Basket{}
}

// Add merges the quantity into an existing entry for the denomination or
// appends a new one. The existing unit price and label win on merge.
func (b *Basket) Add(denomination Denomination, quantity int, unitPrice decimal.Decimal, label string) error {
	if !denomination.Valid() {
		return fmt.Errorf("invalid denomination: %dg", denomination)
	}
	if quantity < 1 {
		return fmt.Errorf("quantity must be at least 1, got %d", quantity)
	}
	for i := range b.entries {
		if b.entries[i].Denomination == denomination {
			b.entries[i].Quantity += quantity
			return nil
		}
	}
	b.entries = append(b.entries, BasketEntry{
		Denomination: denomination,
		Quantity:     quantity,
		UnitPrice:    unitPrice,
		Label:        label,
	})
	return nil
}

// UpdateQuantity adjusts an entry's quantity by delta, clamping at 1.
// Removal is explicit via Remove, never a side effect of decrementing.
func (b *Basket) UpdateQuantity(denomination Denomination, delta int) {
	for i := range b.entries {
		if b.entries[i].Denomination == denomination {
			q := b.entries[i].Quantity + delta
			if q < 1 {
				q = 1
			}
			b.entries[i].Quantity = q
			return
		}
	}
}

// Remove drops the entry for the denomination, if present.
func (b *Basket) Remove(denomination Denomination) {
	for i := range b.entries {
		if b.entries[i].Denomination == denomination {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return
		}
	}
}

// Clear empties the basket. Clearing an already-empty basket is a no-op.
func (b *Basket) Clear() {
	b.entries = nil
}

// Total sums quantity * unit price over all entries.
func (b *Basket) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range b.entries {
		total = total.Add(e.UnitPrice.Mul(decimal.NewFromInt(int64(e.Quantity))))
	}
	return total
}

// TotalWeight sums quantity * denomination grams over all entries.
func (b *Basket) TotalWeight() decimal.Decimal {
	weight := decimal.Zero
	for _, e := range b.entries {
		weight = weight.Add(decimal.NewFromInt(int64(e.Denomination) * int64(e.Quantity)))
	}
	return weight
}

// Entries returns a copy of the basket lines in insertion order.
func (b *Basket) Entries() []BasketEntry {
	out := make([]BasketEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// IsEmpty reports whether the basket has no entries.
func (b *Basket) IsEmpty() bool {
	return len(b.entries) == 0
}
