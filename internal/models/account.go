package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IBAN prefix shared by every account of the bank.
const (
	IBANCountry    = "IE"
	IBANCheckDigit = "69"
	IBANBankCode   = "GBIK"
	IBANBranchCode = "123456"
)

// DefaultCreditLimit is the overdraft magnitude a checking account gets when none is given.
var DefaultCreditLimit = decimal.NewFromInt(50)

// Variant is the kind of account; it never changes after creation.
type Variant int

const (
	VariantSavings Variant = iota + 1
	VariantChecking
)

// String returns the name used in the persisted account table.
func (v Variant) String() string {
	switch v {
	case VariantSavings:
		return "SavingsAccount"
	case VariantChecking:
		return "CheckAccount"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant is the inverse of Variant.String.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "SavingsAccount":
		return VariantSavings, nil
	case "CheckAccount":
		return VariantChecking, nil
	default:
		return 0, fmt.Errorf("unknown account variant %q", s)
	}
}

// Account is a customer account with its balance and transaction history.
// CreditLimit is the most negative balance allowed and is zero for savings accounts.
type Account struct {
	Number      string
	Variant     Variant
	Balance     decimal.Decimal
	CreditLimit decimal.Decimal
	History     []Transaction
}

// NewSavings returns an empty savings account.
func NewSavings(number string) *Account {
	return &Account{Number: number, Variant: VariantSavings}
}

// NewChecking returns an empty checking account. The limit may be given with
// either sign; it is stored as -|limit|.
func NewChecking(number string, limit decimal.Decimal) *Account {
	return &Account{Number: number, Variant: VariantChecking, CreditLimit: limit.Abs().Neg()}
}

// IBAN derives the international account number from the bank constants.
func (a *Account) IBAN() string {
	return IBANCountry + IBANCheckDigit + IBANBankCode + IBANBranchCode + a.Number
}

// Clone returns a deep copy so callers can't modify the registry's history slice.
func (a *Account) Clone() *Account {
	cp := *a
	cp.History = make([]Transaction, len(a.History))
	copy(cp.History, a.History)
	return &cp
}
