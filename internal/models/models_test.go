package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestIBAN(t *testing.T) {
	require.Equal(t, "IE69GBIK12345600123456", NewSavings("00123456").IBAN())
}

func TestNewCheckingStoresNegativeLimit(t *testing.T) {
	for _, limit := range []string{"75", "-75"} {
		a := NewChecking("00000001", decimal.RequireFromString(limit))
		require.Equal(t, "-75", a.CreditLimit.String())
	}
}

func TestVariantNames(t *testing.T) {
	for _, v := range []Variant{VariantSavings, VariantChecking} {
		got, err := ParseVariant(v.String())
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	_, err := ParseVariant("BrokerageAccount")
	require.Error(t, err)
}

func TestKindText(t *testing.T) {
	tests := []struct {
		text         string
		kind         Kind
		counterparty string
	}{
		{"deposit", KindDeposit, ""},
		{"withdrawal", KindWithdrawal, ""},
		{"transfer to 00000002", KindTransferOut, "00000002"},
		{"transfer from 00000001", KindTransferIn, "00000001"},
	}
	for _, tc := range tests {
		kind, counterparty, err := ParseKind(tc.text)
		require.NoError(t, err)
		require.Equal(t, tc.kind, kind)
		require.Equal(t, tc.counterparty, counterparty)
		require.Equal(t, tc.text, FormatKind(kind, counterparty))
	}
	_, _, err := ParseKind("refund")
	require.Error(t, err)

	require.True(t, KindWithdrawal.Outbound())
	require.True(t, KindTransferOut.Outbound())
	require.False(t, KindTransferIn.Outbound())
	require.False(t, KindDeposit.Outbound())
}

func TestSignedAmount(t *testing.T) {
	require.Equal(t, "+12.5", Transaction{Amount: decimal.RequireFromString("12.50")}.SignedAmount())
	require.Equal(t, "-3", Transaction{Amount: decimal.NewFromInt(-3)}.SignedAmount())
	require.Equal(t, "+0", Transaction{}.SignedAmount())

	v, err := ParseSignedAmount("+7.25")
	require.NoError(t, err)
	require.True(t, v.Equal(decimal.RequireFromString("7.25")))
	v, err = ParseSignedAmount("-7.25")
	require.NoError(t, err)
	require.True(t, v.IsNegative())
}

func TestSameMonth(t *testing.T) {
	leg := Transaction{Date: time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)}
	require.True(t, leg.SameMonth(time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)))
	require.False(t, leg.SameMonth(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)))
	require.False(t, leg.SameMonth(time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)))
}

func TestAge(t *testing.T) {
	c := Customer{DateOfBirth: time.Date(2000, time.June, 15, 0, 0, 0, 0, time.UTC)}
	require.Equal(t, 23, c.Age(time.Date(2024, time.June, 14, 23, 0, 0, 0, time.UTC)))
	require.Equal(t, 24, c.Age(time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 24, c.Age(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestNumberLegs(t *testing.T) {
	legs := []Transaction{{AccountNumber: "a"}, {AccountNumber: "b"}}
	numbered, next := NumberLegs(legs, 41)
	require.Equal(t, int64(41), numbered[0].Sequence)
	require.Equal(t, int64(42), numbered[1].Sequence)
	require.Equal(t, int64(43), next)
	require.Zero(t, legs[0].Sequence)
}

func TestCloneCopiesHistory(t *testing.T) {
	a := NewSavings("00000001")
	a.History = []Transaction{{Sequence: 1}}
	cp := a.Clone()
	cp.History[0].Sequence = 9
	require.Equal(t, int64(1), a.History[0].Sequence)
}
