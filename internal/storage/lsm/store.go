// Package lsm keeps the ledger in an embedded Pebble LSM store. Every
// multi-record change is a single synced batch, so account rows, transaction
// legs and the sequence counter always move together.
package lsm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/interfaces"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
)

type Store struct {
	db *pebble.DB
	// mu serializes read-check-write cycles; pebble batches give atomicity, not isolation.
	mu sync.Mutex
}

func Open(path string, opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	pebbleOpts, cache := o.pebbleOptions()
	defer cache.Unref()

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("open pebble store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) getJSON(key []byte, v any) (bool, error) {
	data, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	return true, json.Unmarshal(data, v)
}

func setJSON(b *pebble.Batch, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Set(key, data, nil)
}

// scan calls fn with every value under prefix, in key order.
func (s *Store) scan(prefix []byte, fn func(value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		return err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			iter.Close()
			return err
		}
	}
	return iter.Close()
}

func commit(b *pebble.Batch) error {
	defer b.Close()
	return b.Commit(pebble.Sync)
}

func (s *Store) account(number string) (models.Account, error) {
	var a models.Account
	found, err := s.getJSON(accountKey(number), &a)
	if err != nil {
		return a, err
	}
	if !found {
		return a, fmt.Errorf("account %s: %w", number, interfaces.ErrAccountNotFound)
	}
	return a, nil
}

func (s *Store) customer(id int64) (models.Customer, error) {
	var c models.Customer
	found, err := s.getJSON(customerKey(id), &c)
	if err != nil {
		return c, err
	}
	if !found {
		return c, fmt.Errorf("customer %d: %w", id, interfaces.ErrCustomerNotFound)
	}
	return c, nil
}

func (s *Store) nextSequence() (int64, error) {
	data, closer, err := s.db.Get(sequenceKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	last, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sequence counter: %w", err)
	}
	return last + 1, nil
}

// stageBalance checks the stored balance and stages the new one.
func (s *Store) stageBalance(b *pebble.Batch, ch models.BalanceChange) error {
	a, err := s.account(ch.Number)
	if err != nil {
		return err
	}
	if !a.Balance.Equal(ch.Old) {
		return fmt.Errorf("account %s holds %s, expected %s: %w",
			ch.Number, a.Balance, ch.Old, interfaces.ErrBalanceConflict)
	}
	a.Balance = ch.New
	return setJSON(b, accountKey(a.Number), a)
}

// stageAccount stages a new account row, refusing numbers already present.
func (s *Store) stageAccount(b *pebble.Batch, account models.Account) error {
	if _, err := s.account(account.Number); err == nil {
		return fmt.Errorf("account %s: %w", account.Number, interfaces.ErrDuplicate)
	} else if !errors.Is(err, interfaces.ErrAccountNotFound) {
		return err
	}
	account.History = nil
	return setJSON(b, accountKey(account.Number), account)
}

func (s *Store) stageLegs(b *pebble.Batch, legs []models.Transaction) ([]models.Transaction, error) {
	next, err := s.nextSequence()
	if err != nil {
		return nil, err
	}
	numbered, next := models.NumberLegs(legs, next)
	for _, leg := range numbered {
		if err := setJSON(b, txKey(leg.Sequence), leg); err != nil {
			return nil, err
		}
		if err := setJSON(b, historyKey(leg.AccountNumber, leg.Sequence), leg); err != nil {
			return nil, err
		}
	}
	if err := b.Set(sequenceKey, []byte(strconv.FormatInt(next-1, 10)), nil); err != nil {
		return nil, err
	}
	return numbered, nil
}

// LoadAccounts scans the account keys, so rows come back ordered by number.
func (s *Store) LoadAccounts(ctx context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accounts []models.Account
	err := s.scan([]byte(accountPrefix), func(v []byte) error {
		var a models.Account
		if err := json.Unmarshal(v, &a); err != nil {
			return err
		}
		accounts = append(accounts, a)
		return nil
	})
	return accounts, err
}

// InsertAccount writes a new account row in its own batch.
func (s *Store) InsertAccount(ctx context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	if err := s.stageAccount(b, account); err != nil {
		b.Close()
		return err
	}
	return commit(b)
}

// UpdateBalance checks the stored balance against oldBalance before writing.
func (s *Store) UpdateBalance(ctx context.Context, number string, oldBalance, newBalance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	if err := s.stageBalance(b, models.BalanceChange{Number: number, Old: oldBalance, New: newBalance}); err != nil {
		b.Close()
		return err
	}
	return commit(b)
}

// RemoveAccount deletes the account row. Its legs stay in the log.
func (s *Store) RemoveAccount(ctx context.Context, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.account(number); err != nil {
		return err
	}
	return s.db.Delete(accountKey(number), pebble.Sync)
}

// LoadForAccount scans the account's history index in sequence order.
func (s *Store) LoadForAccount(ctx context.Context, number string) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var legs []models.Transaction
	err := s.scan(historyPrefixFor(number), func(v []byte) error {
		var leg models.Transaction
		if err := json.Unmarshal(v, &leg); err != nil {
			return err
		}
		// a number holding "/" shares the prefix of a shorter one
		if leg.AccountNumber == number {
			legs = append(legs, leg)
		}
		return nil
	})
	return legs, err
}

// NextSequence reads the counter key; an empty store starts at 1.
func (s *Store) NextSequence(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSequence()
}

// AppendTransactions writes the legs, their history index entries and the
// counter in one synced batch.
func (s *Store) AppendTransactions(ctx context.Context, legs []models.Transaction) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	numbered, err := s.stageLegs(b, legs)
	if err != nil {
		b.Close()
		return nil, err
	}
	if err := commit(b); err != nil {
		return nil, err
	}
	return numbered, nil
}

// LoadCustomers scans the customer keys in id order.
func (s *Store) LoadCustomers(ctx context.Context) ([]models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var customers []models.Customer
	err := s.scan([]byte(customerPrefix), func(v []byte) error {
		var c models.Customer
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		customers = append(customers, c)
		return nil
	})
	return customers, err
}

// InsertCustomer writes a customer row, refusing an id already present.
func (s *Store) InsertCustomer(ctx context.Context, customer models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.customer(customer.ID); err == nil {
		return fmt.Errorf("customer %d: %w", customer.ID, interfaces.ErrDuplicate)
	} else if !errors.Is(err, interfaces.ErrCustomerNotFound) {
		return err
	}
	b := s.db.NewBatch()
	if err := setJSON(b, customerKey(customer.ID), customer); err != nil {
		b.Close()
		return err
	}
	return commit(b)
}

// NextCustomerID is one past the highest id; customer keys sort numerically.
func (s *Store) NextCustomerID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last int64
	err := s.scan([]byte(customerPrefix), func(v []byte) error {
		var c models.Customer
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		last = c.ID
		return nil
	})
	return last + 1, err
}

// Post stages every balance change and every leg in one batch, so a failed
// check or a crash leaves nothing behind.
func (s *Store) Post(ctx context.Context, posting models.Posting) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	for _, ch := range posting.Changes {
		if err := s.stageBalance(b, ch); err != nil {
			b.Close()
			return nil, err
		}
	}
	numbered, err := s.stageLegs(b, posting.Legs)
	if err != nil {
		b.Close()
		return nil, err
	}
	if err := commit(b); err != nil {
		return nil, err
	}
	return numbered, nil
}

// OpenAccount writes the back-reference and the account row in one batch.
func (s *Store) OpenAccount(ctx context.Context, customerID int64, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.customer(customerID)
	if err != nil {
		return err
	}
	b := s.db.NewBatch()
	c.AccountNumbers = append(c.AccountNumbers, account.Number)
	if err := setJSON(b, customerKey(c.ID), c); err != nil {
		b.Close()
		return err
	}
	if err := s.stageAccount(b, account); err != nil {
		b.Close()
		return err
	}
	return commit(b)
}

// CloseAccount deletes the account row and rewrites the customer without it.
func (s *Store) CloseAccount(ctx context.Context, customerID int64, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.customer(customerID)
	if err != nil {
		return err
	}
	if _, err := s.account(number); err != nil {
		return err
	}
	kept := c.AccountNumbers[:0]
	for _, n := range c.AccountNumbers {
		if n != number {
			kept = append(kept, n)
		}
	}
	c.AccountNumbers = kept

	b := s.db.NewBatch()
	if err := b.Delete(accountKey(number), nil); err != nil {
		b.Close()
		return err
	}
	if err := setJSON(b, customerKey(c.ID), c); err != nil {
		b.Close()
		return err
	}
	return commit(b)
}

// Close flushes and closes the pebble database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ interfaces.Store = (*Store)(nil)
