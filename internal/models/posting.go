package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceChange moves one account from Old to New. Stores refuse the change
// when the persisted balance is not Old.
type BalanceChange struct {
	Number string
	Old    decimal.Decimal
	New    decimal.Decimal
}

// Posting is the unit a store writes atomically: the balance rows and the
// transaction legs produced by one deposit, withdrawal or transfer. Legs carry
// no sequence until the store assigns them.
type Posting struct {
	Date    time.Time
	Changes []BalanceChange
	Legs    []Transaction
}

// NumberLegs returns a copy of legs where every unnumbered leg gets the next
// sequence starting at next, and the sequence following the last one used.
func NumberLegs(legs []Transaction, next int64) ([]Transaction, int64) {
	out := make([]Transaction, len(legs))
	for i, leg := range legs {
		if leg.Sequence == 0 {
			leg.Sequence = next
		}
		if leg.Sequence >= next {
			next = leg.Sequence + 1
		}
		out[i] = leg
	}
	return out, next
}
