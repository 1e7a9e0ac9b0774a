package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/interfaces"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
)

// MemoryStore keeps the account table, transaction log and customer table in
// memory. It is safe for concurrent use.
type MemoryStore struct {
	mu        sync.Mutex
	accounts  []models.Account // table order, no history
	entries   []models.Transaction
	customers []models.Customer
	nextSeq   int64
}

// NewMemoryStore creates an empty store whose first leg gets sequence 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextSeq: 1}
}

// LoadAccounts returns a copy of the account table in insertion order.
// Rows carry no history; the ledger attaches it from LoadForAccount.
func (m *MemoryStore) LoadAccounts(ctx context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Account, len(m.accounts))
	copy(out, m.accounts) // callers get a copy so they can't modify the table
	return out, nil
}

// InsertAccount appends a row, refusing a number that is already present.
func (m *MemoryStore) InsertAccount(ctx context.Context, account models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertAccount(account)
}

func (m *MemoryStore) insertAccount(account models.Account) error {
	if m.accountIndex(account.Number) >= 0 {
		return fmt.Errorf("account %s: %w", account.Number, interfaces.ErrDuplicate)
	}
	account.History = nil // history lives in the log, not the row
	m.accounts = append(m.accounts, account)
	return nil
}

// UpdateBalance sets a new balance if the row still holds oldBalance.
func (m *MemoryStore) UpdateBalance(ctx context.Context, number string, oldBalance, newBalance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkBalance(number, oldBalance); err != nil {
		return err
	}
	m.accounts[m.accountIndex(number)].Balance = newBalance
	return nil
}

// RemoveAccount drops the row whose number equals number.
func (m *MemoryStore) RemoveAccount(ctx context.Context, number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeAccount(number)
}

func (m *MemoryStore) removeAccount(number string) error {
	i := m.accountIndex(number)
	if i < 0 {
		return fmt.Errorf("account %s: %w", number, interfaces.ErrAccountNotFound)
	}
	m.accounts = append(m.accounts[:i], m.accounts[i+1:]...)
	return nil
}

// LoadForAccount returns the account's legs in the order they were appended.
func (m *MemoryStore) LoadForAccount(ctx context.Context, number string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Transaction
	for _, e := range m.entries {
		if e.AccountNumber == number {
			result = append(result, e)
		}
	}
	return result, nil
}

// NextSequence returns the sequence the next leg will get.
func (m *MemoryStore) NextSequence(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextSeq, nil
}

// AppendTransactions numbers the legs and appends them to the log.
// Implements the TransactionLog interface.
func (m *MemoryStore) AppendTransactions(ctx context.Context, legs []models.Transaction) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLegs(legs), nil
}

func (m *MemoryStore) appendLegs(legs []models.Transaction) []models.Transaction {
	numbered, next := models.NumberLegs(legs, m.nextSeq)
	m.entries = append(m.entries, numbered...)
	m.nextSeq = next // never moves backwards, so sequences are never reused
	return numbered
}

// LoadCustomers returns copies of every customer, back-references included.
func (m *MemoryStore) LoadCustomers(ctx context.Context) ([]models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Customer, len(m.customers))
	for i, c := range m.customers {
		c.AccountNumbers = append([]string(nil), c.AccountNumbers...)
		out[i] = c
	}
	return out, nil
}

// InsertCustomer stores a customer under its id.
func (m *MemoryStore) InsertCustomer(ctx context.Context, customer models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.customerIndex(customer.ID) >= 0 {
		return fmt.Errorf("customer %d: %w", customer.ID, interfaces.ErrDuplicate)
	}
	customer.Accounts = nil
	customer.AccountNumbers = append([]string(nil), customer.AccountNumbers...)
	m.customers = append(m.customers, customer)
	return nil
}

// NextCustomerID is one more than the highest id in use.
func (m *MemoryStore) NextCustomerID(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var max int64
	for _, c := range m.customers {
		if c.ID > max {
			max = c.ID
		}
	}
	return max + 1, nil
}

// Post verifies every change before touching anything, so a rejected posting
// leaves the store as it was.
func (m *MemoryStore) Post(ctx context.Context, posting models.Posting) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range posting.Changes {
		if err := m.checkBalance(ch.Number, ch.Old); err != nil {
			return nil, err
		}
	}
	// every change was checked above, so none of these can fail
	for _, ch := range posting.Changes {
		m.accounts[m.accountIndex(ch.Number)].Balance = ch.New
	}
	return m.appendLegs(posting.Legs), nil
}

// OpenAccount adds the row and the customer's back-reference under one lock.
func (m *MemoryStore) OpenAccount(ctx context.Context, customerID int64, account models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ci := m.customerIndex(customerID)
	if ci < 0 {
		return fmt.Errorf("customer %d: %w", customerID, interfaces.ErrCustomerNotFound)
	}
	if err := m.insertAccount(account); err != nil {
		return err
	}
	m.customers[ci].AccountNumbers = append(m.customers[ci].AccountNumbers, account.Number)
	return nil
}

// CloseAccount removes the row and the customer's back-reference under one lock.
func (m *MemoryStore) CloseAccount(ctx context.Context, customerID int64, number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ci := m.customerIndex(customerID)
	if ci < 0 {
		return fmt.Errorf("customer %d: %w", customerID, interfaces.ErrCustomerNotFound)
	}
	if err := m.removeAccount(number); err != nil {
		return err
	}
	m.customers[ci].AccountNumbers = removeNumber(m.customers[ci].AccountNumbers, number)
	return nil
}

// Close does nothing; memory needs no release.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) checkBalance(number string, expected decimal.Decimal) error {
	i := m.accountIndex(number)
	if i < 0 {
		return fmt.Errorf("account %s: %w", number, interfaces.ErrAccountNotFound)
	}
	if !m.accounts[i].Balance.Equal(expected) {
		return fmt.Errorf("account %s holds %s, expected %s: %w",
			number, m.accounts[i].Balance, expected, interfaces.ErrBalanceConflict)
	}
	return nil
}

func (m *MemoryStore) accountIndex(number string) int {
	for i, a := range m.accounts {
		if a.Number == number {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) customerIndex(id int64) int {
	for i, c := range m.customers {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func removeNumber(numbers []string, number string) []string {
	out := numbers[:0]
	for _, n := range numbers {
		if n != number {
			out = append(out, n)
		}
	}
	return out
}

// Compile-time check: ensure MemoryStore implements Store interface
var _ interfaces.Store = (*MemoryStore)(nil)
