package flatfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/interfaces"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/storage/storetest"
)

func openStore(t *testing.T, dir string) interfaces.Store {
	t.Helper()
	s, err := Open(dir)
	require.NoError(t, err)
	return s
}

func TestFileStore(t *testing.T) {
	storetest.Run(t, openStore, true)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestLegacyTables(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, AccountsFile, "12345678, SavingsAccount, 150.0\n87654321, CheckAccount, -20.5, -300.0\n")
	writeFile(t, dir, TransactionsFile,
		"1, 12345678, +150.0, 2026-09-01, deposit\n"+
			"\n"+
			"2, 87654321, -20.5, 2026-09-03, transfer to 12345678\n")
	writeFile(t, dir, CustomersFile, "1, Ada, Byrne, 1990, 3, 2, 1 Main Street Dublin D01, 12345678, 87654321\n")

	s, err := Open(dir)
	require.NoError(t, err)
	ctx := context.Background()

	accounts, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	storetest.RequireDecimal(t, "150", accounts[0].Balance)
	storetest.RequireDecimal(t, "-300", accounts[1].CreditLimit)

	legs, err := s.LoadForAccount(ctx, "87654321")
	require.NoError(t, err)
	require.Len(t, legs, 1)
	require.Equal(t, models.KindTransferOut, legs[0].Kind)
	require.Equal(t, "12345678", legs[0].Counterparty)

	next, err := s.NextSequence(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, next)

	customers, err := s.LoadCustomers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"12345678", "87654321"}, customers[0].AccountNumbers)
	require.Equal(t, "1 Main Street Dublin D01", customers[0].Address)
}

func TestRowsKeepTableFormat(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.InsertCustomer(ctx, models.Customer{
		ID: 4, Name: "Ada", Surname: "Byrne", DateOfBirth: storetestDOB, Address: "Quay Road Cork T12",
	}))
	require.NoError(t, s.OpenAccount(ctx, 4, *models.NewChecking("00000002", dec("75"))))
	_, err = s.Post(ctx, models.Posting{
		Changes: []models.BalanceChange{{Number: "00000002", Old: dec("0"), New: dec("-12.5")}},
		Legs: []models.Transaction{{
			AccountNumber: "00000002", Amount: dec("-12.5"), Date: storetestDay, Kind: models.KindWithdrawal,
		}},
	})
	require.NoError(t, err)

	require.Equal(t, "00000002, CheckAccount, -12.5, 75\n", readFile(t, dir, AccountsFile))
	require.Equal(t, "1, 00000002, -12.5, 2026-10-14, withdrawal\n", readFile(t, dir, TransactionsFile))
	require.Equal(t, "4, Ada, Byrne, 1985, 7, 9, Quay Road Cork T12, 00000002\n", readFile(t, dir, CustomersFile))
	require.Equal(t, "1\n", readFile(t, dir, SequenceFile))

	_, err = os.Stat(filepath.Join(dir, JournalFile))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCounterSurvivesLogEdits(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.AppendTransactions(ctx, []models.Transaction{
		{AccountNumber: "00000001", Amount: dec("5"), Date: storetestDay, Kind: models.KindDeposit},
		{AccountNumber: "00000001", Amount: dec("6"), Date: storetestDay, Kind: models.KindDeposit},
	})
	require.NoError(t, err)

	// Sequence numbers no longer depend on how many lines the log holds.
	writeFile(t, dir, TransactionsFile, "")
	next, err := s.NextSequence(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, next)
}

func TestUnterminatedLastRow(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, AccountsFile, "00000001, SavingsAccount, 0")
	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.InsertAccount(context.Background(), *models.NewSavings("00000003")))
	require.Equal(t, "00000001, SavingsAccount, 0\n00000003, SavingsAccount, 0\n", readFile(t, dir, AccountsFile))
}

func TestReplayFinishesInterruptedCommit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, AccountsFile, "00000001, SavingsAccount, 0\n")
	writeFile(t, dir, TransactionsFile, "")

	// The account row was rewritten but the log append never happened.
	leg := "1, 00000001, +10, 2026-10-14, deposit\n"
	j := journal{Writes: []fileWrite{
		{Name: AccountsFile, Data: []byte("00000001, SavingsAccount, 10\n")},
		{Name: TransactionsFile, Append: true, Offset: 0, Data: []byte(leg)},
		{Name: SequenceFile, Data: []byte("1\n")},
	}}
	data, err := json.Marshal(j)
	require.NoError(t, err)
	writeFile(t, dir, JournalFile, string(data))
	writeFile(t, dir, AccountsFile, "00000001, SavingsAccount, 10\n")

	_, err = Open(dir)
	require.NoError(t, err)
	require.Equal(t, leg, readFile(t, dir, TransactionsFile))
	require.Equal(t, "1\n", readFile(t, dir, SequenceFile))
	_, err = os.Stat(filepath.Join(dir, JournalFile))
	require.ErrorIs(t, err, os.ErrNotExist)

	// Replaying the same journal again must not duplicate the leg.
	writeFile(t, dir, JournalFile, string(data))
	_, err = Open(dir)
	require.NoError(t, err)
	require.Equal(t, leg, readFile(t, dir, TransactionsFile))
}

func TestAppendAtTruncatesTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log")
	require.NoError(t, os.WriteFile(path, []byte("a\nhalf-writ"), 0o644))

	require.NoError(t, appendAt(path, 2, []byte("b\n")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", string(data))
}

func TestRejectsSeparatorsInFields(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	err = s.InsertCustomer(context.Background(), models.Customer{
		ID: 1, Name: "Ada", Surname: "Byrne", DateOfBirth: storetestDOB, Address: "1 Main St, Dublin",
	})
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestParseErrorsNameTheLine(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, AccountsFile, "00000001, SavingsAccount, 0\n\n00000002, Brokerage, 1\n")
	s, err := Open(dir)
	require.NoError(t, err)

	_, err = s.LoadAccounts(context.Background())
	require.ErrorContains(t, err, "accounts.txt line 3")
}

// A commit whose last write fails leaves its journal behind. The store must
// finish that journal before planning anything else, or the counter the
// failed write would have advanced hands out a sequence already in the log.
func TestFailedCommitIsFinishedBeforeNextWrite(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.InsertCustomer(ctx, models.Customer{
		ID: 1, Name: "Ada", Surname: "Byrne", DateOfBirth: storetestDOB, Address: "1 Main St",
	}))
	require.NoError(t, s.OpenAccount(ctx, 1, *models.NewSavings("00000001")))
	require.NoError(t, s.OpenAccount(ctx, 1, *models.NewSavings("00000002")))

	deposit := func(number, old, amount string) models.Posting {
		return models.Posting{
			Changes: []models.BalanceChange{{Number: number, Old: dec(old), New: dec(old).Add(dec(amount))}},
			Legs:    []models.Transaction{{AccountNumber: number, Amount: dec(amount), Date: storetestDay, Kind: models.KindDeposit}},
		}
	}

	// A directory in the way of the counter's temp file fails the last write.
	blocker := filepath.Join(dir, SequenceFile+".tmp")
	require.NoError(t, os.Mkdir(blocker, 0o755))

	_, err = s.Post(ctx, deposit("00000001", "0", "10"))
	require.Error(t, err)
	_, err = os.Stat(filepath.Join(dir, JournalFile))
	require.NoError(t, err, "journal must survive a failed commit")

	// While the journal can't be finished nothing else is written.
	_, err = s.Post(ctx, deposit("00000002", "0", "5"))
	require.Error(t, err)
	_, err = s.LoadAccounts(ctx)
	require.Error(t, err)

	require.NoError(t, os.Remove(blocker))

	// The first deposit is durable now, so a posting planned from before it conflicts.
	_, err = s.Post(ctx, deposit("00000001", "0", "1"))
	require.ErrorIs(t, err, interfaces.ErrBalanceConflict)

	legs, err := s.Post(ctx, deposit("00000002", "0", "5"))
	require.NoError(t, err)
	require.EqualValues(t, 2, legs[0].Sequence)

	require.Equal(t,
		"1, 00000001, +10, 2026-10-14, deposit\n2, 00000002, +5, 2026-10-14, deposit\n",
		readFile(t, dir, TransactionsFile))
	require.Equal(t, "2\n", readFile(t, dir, SequenceFile))
	accounts, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	storetest.RequireDecimal(t, "10", accounts[0].Balance)
	storetest.RequireDecimal(t, "5", accounts[1].Balance)
}

func TestCommitRefusesToOverwriteJournal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, JournalFile, `{"writes":[]}`)

	err := commit(dir, fileWrite{Name: SequenceFile, Data: []byte("9\n")})
	require.ErrorIs(t, err, ErrPendingJournal)
	_, err = os.Stat(filepath.Join(dir, SequenceFile))
	require.ErrorIs(t, err, os.ErrNotExist)
}
