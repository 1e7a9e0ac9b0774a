package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO calendar date used in the transaction log.
const DateLayout = "2006-01-02"

// Kind describes what produced a transaction leg.
type Kind int

const (
	KindDeposit Kind = iota + 1
	KindWithdrawal
	KindTransferOut
	KindTransferIn
)

const (
	transferToPrefix   = "transfer to "
	transferFromPrefix = "transfer from "
)

// Outbound reports whether the leg moves money out of its account on the
// customer's initiative. Savings accounts cap these per month.
func (k Kind) Outbound() bool {
	return k == KindWithdrawal || k == KindTransferOut
}

// FormatKind renders a kind the way the transaction log stores it.
func FormatKind(k Kind, counterparty string) string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdrawal:
		return "withdrawal"
	case KindTransferOut:
		return transferToPrefix + counterparty
	case KindTransferIn:
		return transferFromPrefix + counterparty
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind is the inverse of FormatKind.
func ParseKind(s string) (Kind, string, error) {
	switch {
	case s == "deposit":
		return KindDeposit, "", nil
	case s == "withdrawal":
		return KindWithdrawal, "", nil
	case strings.HasPrefix(s, transferToPrefix):
		return KindTransferOut, strings.TrimPrefix(s, transferToPrefix), nil
	case strings.HasPrefix(s, transferFromPrefix):
		return KindTransferIn, strings.TrimPrefix(s, transferFromPrefix), nil
	default:
		return 0, "", fmt.Errorf("unknown transaction kind %q", s)
	}
}

// Transaction is one signed leg in the transaction log.
type Transaction struct {
	Sequence      int64
	AccountNumber string
	Amount        decimal.Decimal // signed: positive credits, negative debits
	Date          time.Time
	Kind          Kind
	Counterparty  string // the other account of a transfer
}

// Description is the kind column of the log row.
func (t Transaction) Description() string {
	return FormatKind(t.Kind, t.Counterparty)
}

// SignedAmount renders the amount with an explicit sign.
func (t Transaction) SignedAmount() string {
	if t.Amount.IsNegative() {
		return t.Amount.String()
	}
	return "+" + t.Amount.String()
}

// ParseSignedAmount accepts amounts with or without a leading sign.
func ParseSignedAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimPrefix(s, "+"))
}

// SameMonth reports whether the leg is dated in the calendar month of t.
func (t Transaction) SameMonth(other time.Time) bool {
	return t.Date.Year() == other.Year() && t.Date.Month() == other.Month()
}

// Day truncates a time to its calendar date, expressed in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
