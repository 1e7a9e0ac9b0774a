package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
)

// Age and limit rules for opening accounts.
const (
	MinSavingsAge  = 14
	MinCheckingAge = 18
)

var (
	MinCreditLimit = decimal.NewFromInt(50)
	MaxCreditLimit = decimal.NewFromInt(5000)
)

// authorize decides whether amount may leave the account at now. Both floors
// are strict: landing exactly on them is refused.
func authorize(a *models.Account, amount decimal.Decimal, now time.Time) error {
	remaining := a.Balance.Sub(amount)
	switch a.Variant {
	case models.VariantSavings:
		if !remaining.IsPositive() {
			return ErrInsufficientFunds
		}
		if outboundThisMonth(a.History, now) {
			return ErrMonthlyLimit
		}
		return nil
	case models.VariantChecking:
		if !remaining.GreaterThan(a.CreditLimit) {
			return ErrCreditLimit
		}
		return nil
	default:
		return ErrUnknownVariant
	}
}

// outboundThisMonth: deposits and incoming transfers don't count.
func outboundThisMonth(history []models.Transaction, now time.Time) bool {
	for _, t := range history {
		if t.Kind.Outbound() && t.SameMonth(now) {
			return true
		}
	}
	return false
}

func eligible(c *models.Customer, a *models.Account, now time.Time) error {
	if a.Variant == models.VariantSavings && c.Age(now) < MinSavingsAge {
		return ErrUnderage
	}
	return nil
}
