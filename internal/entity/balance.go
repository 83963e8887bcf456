package entity

import "github.com/shopspring/decimal"

// Balance is the confirmed wallet state: spendable cash and owned metal
// grams. Cash never includes sell proceeds that the ledger has not settled
// yet; those live in WalletSnapshot.PendingCash.
type Balance struct {
	Cash       decimal.Decimal
	MetalGrams map[Metal]decimal.Decimal
}

// Grams returns the owned grams for a metal, zero when absent.
func (b Balance) Grams(metal Metal) decimal.Decimal {
	if b.MetalGrams == nil {
		return decimal.Zero
	}
	return b.MetalGrams[metal]
}

// WalletSnapshot is a point-in-time read of the ledger: the confirmed
// balance plus cash that is debited from metal but not yet credited.
type WalletSnapshot struct {
	Confirmed   Balance
	PendingCash decimal.Decimal
}
