// Package storetest is the behavior every interfaces.Store backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/interfaces"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
)

// Opener opens the store kept in dir. Calling it twice with the same dir must
// reach the same data when the backend is persistent.
type Opener func(t *testing.T, dir string) interfaces.Store

var day = time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)

// Run exercises the store contract. persistent enables the close-and-reopen checks.
func Run(t *testing.T, open Opener, persistent bool) {
	tests := []struct {
		name string
		fn   func(t *testing.T, open Opener, dir string)
	}{
		{"Empty", testEmpty},
		{"OpenAccount", testOpenAccount},
		{"DuplicateAccount", testDuplicateAccount},
		{"PostAssignsSequences", testPostAssignsSequences},
		{"PostConflictLeavesStore", testPostConflict},
		{"PostUnknownAccount", testPostUnknownAccount},
		{"UpdateBalanceByExactNumber", testUpdateBalanceExactNumber},
		{"AppendTransactions", testAppendTransactions},
		{"CloseAccount", testCloseAccount},
		{"RemoveMissingAccount", testRemoveMissing},
		{"CustomerIDs", testCustomerIDs},
	}
	if persistent {
		tests = append(tests, struct {
			name string
			fn   func(t *testing.T, open Opener, dir string)
		}{"Reopen", testReopen})
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open, t.TempDir())
		})
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// RequireDecimal compares amounts by value, not by representation.
func RequireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func seed(t *testing.T, s interfaces.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InsertCustomer(ctx, models.Customer{
		ID: 1, Name: "Ada", Surname: "Byrne",
		DateOfBirth: time.Date(1990, time.March, 2, 0, 0, 0, 0, time.UTC),
		Address:     "1 Main Street Dublin D01",
	}))
	require.NoError(t, s.OpenAccount(ctx, 1, *models.NewSavings("00000001")))
	require.NoError(t, s.OpenAccount(ctx, 1, *models.NewChecking("00000002", dec("50"))))
}

func deposit(number, old, amount string) models.Posting {
	return models.Posting{
		Date:    day,
		Changes: []models.BalanceChange{{Number: number, Old: dec(old), New: dec(old).Add(dec(amount))}},
		Legs:    []models.Transaction{{AccountNumber: number, Amount: dec(amount), Date: day, Kind: models.KindDeposit}},
	}
}

func testEmpty(t *testing.T, open Opener, dir string) {
	ctx := context.Background()
	s := open(t, dir)
	defer s.Close()

	accounts, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Empty(t, accounts)

	customers, err := s.LoadCustomers(ctx)
	require.NoError(t, err)
	require.Empty(t, customers)

	next, err := s.NextSequence(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, next)
}

func testOpenAccount(t *testing.T, open Opener, dir string) {
	ctx := context.Background()
	s := open(t, dir)
	defer s.Close()
	seed(t, s)

	accounts, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, "00000001", accounts[0].Number)
	require.Equal(t, models.VariantSavings, accounts[0].Variant)
	RequireDecimal(t, "0", accounts[0].Balance)
	require.Equal(t, "00000002", accounts[1].Number)
	require.Equal(t, models.VariantChecking, accounts[1].Variant)
	RequireDecimal(t, "-50", accounts[1].CreditLimit)

	customers, err := s.LoadCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	require.Equal(t, []string{"00000001", "00000002"}, customers[0].AccountNumbers)
	require.Equal(t, "Ada", customers[0].Name)
	require.True(t, customers[0].DateOfBirth.Equal(time.Date(1990, time.March, 2, 0, 0, 0, 0, time.UTC)))
}

func testDuplicateAccount(t *testing.T, open Opener, dir string) {
	s := open(t, dir)
	defer s.Close()
	seed(t, s)

	err := s.OpenAccount(context.Background(), 1, *models.NewSavings("00000001"))
	require.ErrorIs(t, err, interfaces.ErrDuplicate)

	customers, err := s.LoadCustomers(context.Background())
	require.NoError(t, err)
	require.Len(t, customers[0].AccountNumbers, 2)
}

func testPostAssignsSequences(t *testing.T, open Opener, dir string) {
	ctx := context.Background()
	s := open(t, dir)
	defer s.Close()
	seed(t, s)

	legs, err := s.Post(ctx, deposit("00000001", "0", "100"))
	require.NoError(t, err)
	require.Len(t, legs, 1)
	require.EqualValues(t, 1, legs[0].Sequence)

	transfer := models.Posting{
		Date: day,
		Changes: []models.BalanceChange{
			{Number: "00000001", Old: dec("100"), New: dec("60.25")},
			{Number: "00000002", Old: dec("0"), New: dec("39.75")},
		},
		Legs: []models.Transaction{
			{AccountNumber: "00000001", Amount: dec("-39.75"), Date: day, Kind: models.KindTransferOut, Counterparty: "00000002"},
			{AccountNumber: "00000002", Amount: dec("39.75"), Date: day, Kind: models.KindTransferIn, Counterparty: "00000001"},
		},
	}
	legs, err = s.Post(ctx, transfer)
	require.NoError(t, err)
	require.EqualValues(t, 2, legs[0].Sequence)
	require.EqualValues(t, 3, legs[1].Sequence)

	history, err := s.LoadForAccount(ctx, "00000001")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.EqualValues(t, 1, history[0].Sequence)
	require.EqualValues(t, 2, history[1].Sequence)
	require.Equal(t, models.KindTransferOut, history[1].Kind)
	require.Equal(t, "00000002", history[1].Counterparty)
	RequireDecimal(t, "-39.75", history[1].Amount)
	require.True(t, history[1].Date.Equal(day))

	accounts, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	RequireDecimal(t, "60.25", accounts[0].Balance)
	RequireDecimal(t, "39.75", accounts[1].Balance)

	next, err := s.NextSequence(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, next)
}

func testPostConflict(t *testing.T, open Opener, dir string) {
	ctx := context.Background()
	s := open(t, dir)
	defer s.Close()
	seed(t, s)

	_, err := s.Post(ctx, models.Posting{
		Date: day,
		Changes: []models.BalanceChange{
			{Number: "00000002", Old: dec("0"), New: dec("10")},
			{Number: "00000001", Old: dec("5"), New: dec("0")},
		},
		Legs: []models.Transaction{{AccountNumber: "00000002", Amount: dec("10"), Date: day, Kind: models.KindDeposit}},
	})
	require.ErrorIs(t, err, interfaces.ErrBalanceConflict)

	accounts, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	RequireDecimal(t, "0", accounts[1].Balance)

	next, err := s.NextSequence(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, next)

	history, err := s.LoadForAccount(ctx, "00000002")
	require.NoError(t, err)
	require.Empty(t, history)
}

func testPostUnknownAccount(t *testing.T, open Opener, dir string) {
	s := open(t, dir)
	defer s.Close()
	seed(t, s)

	_, err := s.Post(context.Background(), deposit("99999999", "0", "1"))
	require.ErrorIs(t, err, interfaces.ErrAccountNotFound)
}

// A row that merely contains the number (here inside a balance) must not be touched.
func testUpdateBalanceExactNumber(t *testing.T, open Opener, dir string) {
	ctx := context.Background()
	s := open(t, dir)
	defer s.Close()
	seed(t, s)

	require.NoError(t, s.InsertAccount(ctx, models.Account{
		Number: "10000000", Variant: models.VariantSavings, Balance: dec("100000001"),
	}))
	require.NoError(t, s.UpdateBalance(ctx, "00000001", dec("0"), dec("5")))

	accounts, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	RequireDecimal(t, "5", accounts[0].Balance)
	RequireDecimal(t, "100000001", accounts[2].Balance)

	err = s.UpdateBalance(ctx, "0000000", dec("0"), dec("1"))
	require.ErrorIs(t, err, interfaces.ErrAccountNotFound)
	err = s.UpdateBalance(ctx, "00000001", dec("0"), dec("1"))
	require.ErrorIs(t, err, interfaces.ErrBalanceConflict)
}

func testAppendTransactions(t *testing.T, open Opener, dir string) {
	ctx := context.Background()
	s := open(t, dir)
	defer s.Close()
	seed(t, s)

	legs, err := s.AppendTransactions(ctx, []models.Transaction{
		{AccountNumber: "00000002", Amount: dec("-20"), Date: day, Kind: models.KindWithdrawal},
		{AccountNumber: "00000001", Amount: dec("7.5"), Date: day, Kind: models.KindDeposit},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, legs[0].Sequence)
	require.EqualValues(t, 2, legs[1].Sequence)

	history, err := s.LoadForAccount(ctx, "00000002")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, models.KindWithdrawal, history[0].Kind)

	next, err := s.NextSequence(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, next)
}

func testCloseAccount(t *testing.T, open Opener, dir string) {
	ctx := context.Background()
	s := open(t, dir)
	defer s.Close()
	seed(t, s)

	require.NoError(t, s.CloseAccount(ctx, 1, "00000001"))

	accounts, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Equal(t, "00000002", accounts[0].Number)

	customers, err := s.LoadCustomers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"00000002"}, customers[0].AccountNumbers)
}

func testRemoveMissing(t *testing.T, open Opener, dir string) {
	s := open(t, dir)
	defer s.Close()
	seed(t, s)

	require.ErrorIs(t, s.RemoveAccount(context.Background(), "00000009"), interfaces.ErrAccountNotFound)
	require.ErrorIs(t, s.CloseAccount(context.Background(), 7, "00000001"), interfaces.ErrCustomerNotFound)
}

func testCustomerIDs(t *testing.T, open Opener, dir string) {
	ctx := context.Background()
	s := open(t, dir)
	defer s.Close()

	id, err := s.NextCustomerID(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, id)

	seed(t, s)
	id, err = s.NextCustomerID(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, id)

	err = s.InsertCustomer(ctx, models.Customer{ID: 1, Name: "Dup", Surname: "Dup", DateOfBirth: day, Address: "x"})
	require.ErrorIs(t, err, interfaces.ErrDuplicate)
}

func testReopen(t *testing.T, open Opener, dir string) {
	ctx := context.Background()
	s := open(t, dir)
	seed(t, s)
	_, err := s.Post(ctx, deposit("00000002", "0", "12.34"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = open(t, dir)
	defer s.Close()

	accounts, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	RequireDecimal(t, "12.34", accounts[1].Balance)
	RequireDecimal(t, "-50", accounts[1].CreditLimit)

	history, err := s.LoadForAccount(ctx, "00000002")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.EqualValues(t, 1, history[0].Sequence)

	next, err := s.NextSequence(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, next)

	customers, err := s.LoadCustomers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"00000001", "00000002"}, customers[0].AccountNumbers)
}
