// Package flatfile stores the ledger in the comma-separated text tables the
// bank has always used: accounts.txt, accountsTransactions.txt and
// customers.txt. Every multi-file change goes through a write-ahead journal so
// the tables stay consistent with each other across crashes, and sequence
// numbers come from a persisted counter rather than the log length.
package flatfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/interfaces"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
)

// FileStore reads the tables on every call; nothing is cached between calls.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// Open prepares dir, creating empty tables where missing and finishing any
// interrupted write.
func Open(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create data directory: %w", err)
	}
	for _, name := range []string{AccountsFile, TransactionsFile, CustomersFile} {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_RDONLY, 0o644)
		if err != nil {
			return nil, err
		}
		f.Close()
	}
	if _, err := replay(dir); err != nil {
		return nil, fmt.Errorf("replay journal: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(name string) string { return filepath.Join(s.dir, name) }

// settle finishes a journal left by a commit that failed part way. Every
// method calls it under s.mu before reading, so plans are never made from a
// half-applied state. While the journal can't be finished the store refuses
// all work.
func (s *FileStore) settle() error {
	if _, err := replay(s.dir); err != nil {
		return fmt.Errorf("finish pending journal: %w", err)
	}
	return nil
}

func (s *FileStore) readRows(name string) ([]string, []int, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, nil, err
	}
	rows, nums := lines(data)
	return rows, nums, nil
}

func (s *FileStore) readAccounts() ([]models.Account, error) {
	rows, nums, err := s.readRows(AccountsFile)
	if err != nil {
		return nil, err
	}
	accounts := make([]models.Account, 0, len(rows))
	for i, row := range rows {
		a, err := parseAccount(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", AccountsFile, nums[i], err)
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (s *FileStore) readTransactions() ([]models.Transaction, error) {
	rows, nums, err := s.readRows(TransactionsFile)
	if err != nil {
		return nil, err
	}
	out := make([]models.Transaction, 0, len(rows))
	for i, row := range rows {
		t, err := parseTransaction(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", TransactionsFile, nums[i], err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *FileStore) readCustomers() ([]models.Customer, error) {
	rows, nums, err := s.readRows(CustomersFile)
	if err != nil {
		return nil, err
	}
	out := make([]models.Customer, 0, len(rows))
	for i, row := range rows {
		c, err := parseCustomer(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", CustomersFile, nums[i], err)
		}
		out = append(out, c)
	}
	return out, nil
}

// nextSequence reads the counter file. A log written before the counter
// existed is scanned once for its highest sequence.
func (s *FileStore) nextSequence() (int64, error) {
	data, err := os.ReadFile(s.path(SequenceFile))
	if err == nil {
		last, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", SequenceFile, err)
		}
		return last + 1, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	legs, err := s.readTransactions()
	if err != nil {
		return 0, err
	}
	var last int64
	for _, l := range legs {
		if l.Sequence > last {
			last = l.Sequence
		}
	}
	return last + 1, nil
}

func sequenceWrite(next int64) fileWrite {
	return fileWrite{Name: SequenceFile, Data: []byte(strconv.FormatInt(next-1, 10) + "\n")}
}

func (s *FileStore) replaceWrite(name string, rows []string) fileWrite {
	return fileWrite{Name: name, Data: render(rows)}
}

// appendWrite plans adding rows to the end of a table, starting a new line if
// the file's last row was not terminated.
func (s *FileStore) appendWrite(name string, rows []string) (fileWrite, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return fileWrite{}, err
	}
	out := render(rows)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		out = append([]byte("\n"), out...)
	}
	return fileWrite{Name: name, Append: true, Offset: int64(len(data)), Data: out}, nil
}

func accountRows(accounts []models.Account) []string {
	rows := make([]string, len(accounts))
	for i, a := range accounts {
		rows[i] = formatAccount(a)
	}
	return rows
}

func customerRows(customers []models.Customer) []string {
	rows := make([]string, len(customers))
	for i, c := range customers {
		rows[i] = formatCustomer(c)
	}
	return rows
}

func transactionRows(legs []models.Transaction) []string {
	rows := make([]string, len(legs))
	for i, l := range legs {
		rows[i] = formatTransaction(l)
	}
	return rows
}

func findAccount(accounts []models.Account, number string) int {
	for i, a := range accounts {
		if a.Number == number {
			return i
		}
	}
	return -1
}

func findCustomer(customers []models.Customer, id int64) int {
	for i, c := range customers {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func applyChange(accounts []models.Account, ch models.BalanceChange) error {
	i := findAccount(accounts, ch.Number)
	if i < 0 {
		return fmt.Errorf("account %s: %w", ch.Number, interfaces.ErrAccountNotFound)
	}
	if !accounts[i].Balance.Equal(ch.Old) {
		return fmt.Errorf("account %s holds %s, expected %s: %w",
			ch.Number, accounts[i].Balance, ch.Old, interfaces.ErrBalanceConflict)
	}
	accounts[i].Balance = ch.New
	return nil
}

// LoadAccounts parses accounts.txt.
func (s *FileStore) LoadAccounts(ctx context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settle(); err != nil {
		return nil, err
	}
	return s.readAccounts()
}

// InsertAccount appends one row to accounts.txt.
func (s *FileStore) InsertAccount(ctx context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settle(); err != nil {
		return err
	}

	w, err := s.planInsertAccount(account)
	if err != nil {
		return err
	}
	return commit(s.dir, w)
}

func (s *FileStore) planInsertAccount(account models.Account) (fileWrite, error) {
	if account.Number == "" {
		return fileWrite{}, fmt.Errorf("empty account number: %w", ErrInvalidField)
	}
	if err := checkField("account number", account.Number); err != nil {
		return fileWrite{}, err
	}
	accounts, err := s.readAccounts()
	if err != nil {
		return fileWrite{}, err
	}
	if findAccount(accounts, account.Number) >= 0 {
		return fileWrite{}, fmt.Errorf("account %s: %w", account.Number, interfaces.ErrDuplicate)
	}
	return s.appendWrite(AccountsFile, []string{formatAccount(account)})
}

// UpdateBalance rewrites accounts.txt with the one balance changed.
func (s *FileStore) UpdateBalance(ctx context.Context, number string, oldBalance, newBalance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settle(); err != nil {
		return err
	}

	accounts, err := s.readAccounts()
	if err != nil {
		return err
	}
	if err := applyChange(accounts, models.BalanceChange{Number: number, Old: oldBalance, New: newBalance}); err != nil {
		return err
	}
	return commit(s.dir, s.replaceWrite(AccountsFile, accountRows(accounts)))
}

// RemoveAccount rewrites accounts.txt without the row.
func (s *FileStore) RemoveAccount(ctx context.Context, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settle(); err != nil {
		return err
	}

	accounts, err := s.readAccounts()
	if err != nil {
		return err
	}
	accounts, err = removeAccount(accounts, number)
	if err != nil {
		return err
	}
	return commit(s.dir, s.replaceWrite(AccountsFile, accountRows(accounts)))
}

func removeAccount(accounts []models.Account, number string) ([]models.Account, error) {
	i := findAccount(accounts, number)
	if i < 0 {
		return nil, fmt.Errorf("account %s: %w", number, interfaces.ErrAccountNotFound)
	}
	return append(accounts[:i], accounts[i+1:]...), nil
}

// LoadForAccount returns the legs whose account field equals number.
func (s *FileStore) LoadForAccount(ctx context.Context, number string) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settle(); err != nil {
		return nil, err
	}

	legs, err := s.readTransactions()
	if err != nil {
		return nil, err
	}
	var out []models.Transaction
	for _, l := range legs {
		if l.AccountNumber == number {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *FileStore) NextSequence(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settle(); err != nil {
		return 0, err
	}
	return s.nextSequence()
}

// AppendTransactions appends the legs and advances the counter as one journaled unit.
func (s *FileStore) AppendTransactions(ctx context.Context, legs []models.Transaction) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settle(); err != nil {
		return nil, err
	}

	numbered, writes, err := s.planAppend(legs)
	if err != nil {
		return nil, err
	}
	if err := commit(s.dir, writes...); err != nil {
		return nil, err
	}
	return numbered, nil
}

func (s *FileStore) planAppend(legs []models.Transaction) ([]models.Transaction, []fileWrite, error) {
	next, err := s.nextSequence()
	if err != nil {
		return nil, nil, err
	}
	numbered, next := models.NumberLegs(legs, next)
	w, err := s.appendWrite(TransactionsFile, transactionRows(numbered))
	if err != nil {
		return nil, nil, err
	}
	return numbered, []fileWrite{w, sequenceWrite(next)}, nil
}

// LoadCustomers parses customers.txt.
func (s *FileStore) LoadCustomers(ctx context.Context) ([]models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settle(); err != nil {
		return nil, err
	}
	return s.readCustomers()
}

// InsertCustomer appends one row to customers.txt.
func (s *FileStore) InsertCustomer(ctx context.Context, customer models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settle(); err != nil {
		return err
	}

	if err := validateCustomer(customer); err != nil {
		return err
	}
	customers, err := s.readCustomers()
	if err != nil {
		return err
	}
	if findCustomer(customers, customer.ID) >= 0 {
		return fmt.Errorf("customer %d: %w", customer.ID, interfaces.ErrDuplicate)
	}
	w, err := s.appendWrite(CustomersFile, []string{formatCustomer(customer)})
	if err != nil {
		return err
	}
	return commit(s.dir, w)
}

func (s *FileStore) NextCustomerID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settle(); err != nil {
		return 0, err
	}

	customers, err := s.readCustomers()
	if err != nil {
		return 0, err
	}
	var max int64
	for _, c := range customers {
		if c.ID > max {
			max = c.ID
		}
	}
	return max + 1, nil
}

// Post rewrites the account table, appends the legs and advances the counter
// as one journaled unit.
func (s *FileStore) Post(ctx context.Context, posting models.Posting) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settle(); err != nil {
		return nil, err
	}

	accounts, err := s.readAccounts()
	if err != nil {
		return nil, err
	}
	for _, ch := range posting.Changes {
		if err := applyChange(accounts, ch); err != nil {
			return nil, err
		}
	}
	numbered, writes, err := s.planAppend(posting.Legs)
	if err != nil {
		return nil, err
	}
	writes = append([]fileWrite{s.replaceWrite(AccountsFile, accountRows(accounts))}, writes...)
	if err := commit(s.dir, writes...); err != nil {
		return nil, err
	}
	return numbered, nil
}

// OpenAccount rewrites customers.txt and appends the account row as one journaled unit.
func (s *FileStore) OpenAccount(ctx context.Context, customerID int64, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settle(); err != nil {
		return err
	}

	customers, err := s.readCustomers()
	if err != nil {
		return err
	}
	ci := findCustomer(customers, customerID)
	if ci < 0 {
		return fmt.Errorf("customer %d: %w", customerID, interfaces.ErrCustomerNotFound)
	}
	accountWrite, err := s.planInsertAccount(account)
	if err != nil {
		return err
	}
	customers[ci].AccountNumbers = append(customers[ci].AccountNumbers, account.Number)
	return commit(s.dir, s.replaceWrite(CustomersFile, customerRows(customers)), accountWrite)
}

// CloseAccount rewrites both tables as one journaled unit.
func (s *FileStore) CloseAccount(ctx context.Context, customerID int64, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settle(); err != nil {
		return err
	}

	customers, err := s.readCustomers()
	if err != nil {
		return err
	}
	ci := findCustomer(customers, customerID)
	if ci < 0 {
		return fmt.Errorf("customer %d: %w", customerID, interfaces.ErrCustomerNotFound)
	}
	accounts, err := s.readAccounts()
	if err != nil {
		return err
	}
	if accounts, err = removeAccount(accounts, number); err != nil {
		return err
	}
	kept := customers[ci].AccountNumbers[:0]
	for _, n := range customers[ci].AccountNumbers {
		if n != number {
			kept = append(kept, n)
		}
	}
	customers[ci].AccountNumbers = kept
	return commit(s.dir,
		s.replaceWrite(AccountsFile, accountRows(accounts)),
		s.replaceWrite(CustomersFile, customerRows(customers)),
	)
}

// Close does nothing; files are opened per call.
func (s *FileStore) Close() error { return nil }

var _ interfaces.Store = (*FileStore)(nil)
