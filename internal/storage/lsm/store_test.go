package lsm

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/interfaces"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/storage/storetest"
)

func openStore(t *testing.T, dir string) interfaces.Store {
	t.Helper()
	s, err := Open(dir, WithCache(1<<20), WithMemTableSize(1<<20), WithBytesPerSync(64<<10))
	require.NoError(t, err)
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, openStore, true)
}

func TestHistoryIsolatedByAccountPrefix(t *testing.T) {
	s := openStore(t, t.TempDir())
	defer s.Close()
	ctx := context.Background()
	day := time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)

	// "0000001" is a key prefix of "00000012"; the history scan must not mix them.
	_, err := s.AppendTransactions(ctx, []models.Transaction{
		{AccountNumber: "0000001", Amount: decimal.NewFromInt(1), Date: day, Kind: models.KindDeposit},
		{AccountNumber: "00000012", Amount: decimal.NewFromInt(2), Date: day, Kind: models.KindDeposit},
	})
	require.NoError(t, err)

	legs, err := s.LoadForAccount(ctx, "0000001")
	require.NoError(t, err)
	require.Len(t, legs, 1)
	require.EqualValues(t, 1, legs[0].Sequence)
}

func TestHistoryIgnoresNumbersSharingThePrefix(t *testing.T) {
	s := openStore(t, t.TempDir())
	defer s.Close()
	ctx := context.Background()
	day := time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)

	_, err := s.AppendTransactions(ctx, []models.Transaction{
		{AccountNumber: "00000001", Amount: decimal.NewFromInt(1), Date: day, Kind: models.KindDeposit},
		{AccountNumber: "00000001/x", Amount: decimal.NewFromInt(2), Date: day, Kind: models.KindDeposit},
	})
	require.NoError(t, err)

	legs, err := s.LoadForAccount(ctx, "00000001")
	require.NoError(t, err)
	require.Len(t, legs, 1)
	require.Equal(t, "00000001", legs[0].AccountNumber)
}

func TestKeysSortNumerically(t *testing.T) {
	require.Less(t, string(txKey(9)), string(txKey(10)))
	require.Less(t, string(customerKey(99)), string(customerKey(100)))
	require.Equal(t, "account0", string(upperBound([]byte(accountPrefix))))
}
