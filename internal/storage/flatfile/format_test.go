package flatfile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
)

var (
	storetestDay = time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)
	storetestDOB = time.Date(1985, time.July, 9, 0, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTransactionRow(t *testing.T) {
	leg := models.Transaction{
		Sequence: 12, AccountNumber: "00000007", Amount: dec("42.10"),
		Date: storetestDay, Kind: models.KindTransferIn, Counterparty: "00000009",
	}
	row := formatTransaction(leg)
	require.Equal(t, "12, 00000007, +42.1, 2026-10-14, transfer from 00000009", row)

	parsed, err := parseTransaction(row)
	require.NoError(t, err)
	require.Equal(t, leg.Sequence, parsed.Sequence)
	require.Equal(t, leg.Kind, parsed.Kind)
	require.Equal(t, leg.Counterparty, parsed.Counterparty)
	require.True(t, leg.Amount.Equal(parsed.Amount))
}

func TestCheckingRowWithoutLimitGetsDefault(t *testing.T) {
	a, err := parseAccount("00000003, CheckAccount, 0")
	require.NoError(t, err)
	require.True(t, a.CreditLimit.Equal(dec("-50")))
}

func TestMalformedRows(t *testing.T) {
	for _, row := range []string{
		"00000001, SavingsAccount",
		"00000001, SavingsAccount, ten",
		"00000001, CheckAccount, 0, lots",
	} {
		_, err := parseAccount(row)
		require.Error(t, err, row)
	}
	for _, row := range []string{
		"x, 00000001, +1, 2026-10-14, deposit",
		"1, 00000001, +1, 14/10/2026, deposit",
		"1, 00000001, +1, 2026-10-14, refund",
	} {
		_, err := parseTransaction(row)
		require.Error(t, err, row)
	}
	_, err := parseCustomer("1, Ada, Byrne, 1990, March, 2, Dublin")
	require.Error(t, err)
}
