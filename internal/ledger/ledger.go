// Package ledger is the account engine: it materializes accounts and
// customers from a Store, authorizes deposits, withdrawals and transfers per
// account variant, and writes every change through the store as one posting.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/events"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/interfaces"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
	modelevents "github.com/sheikh-saqib/retail-bank-ledger/internal/models/events"
)

const DefaultTopic = "transaction_completed"

// Ledger holds the live accounts and customers and the store they came from.
// Lock order is account lock, then regMu.
type Ledger struct {
	store     interfaces.Store
	publisher interfaces.EventPublisher
	topic     string
	logger    *slog.Logger
	now       func() time.Time
	intN      func(n int) int

	muMap map[string]*sync.Mutex // one per account number
	mapMu sync.Mutex             // protects muMap

	regMu     sync.RWMutex
	accounts  map[string]*models.Account
	order     []string
	customers map[int64]*models.Customer
	custOrder []int64
}

type Option func(*Ledger)

func WithPublisher(p interfaces.EventPublisher, topic string) Option {
	return func(l *Ledger) {
		l.publisher = p
		if topic != "" {
			l.topic = topic
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock replaces time.Now; the transaction date and the age and monthly
// rules all read it.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithNumberSource replaces the random source for new account numbers.
func WithNumberSource(intN func(n int) int) Option {
	return func(l *Ledger) { l.intN = intN }
}

// New returns an empty ledger over store; call Load to materialize it.
func New(store interfaces.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		publisher: events.Discard{},
		topic:     DefaultTopic,
		logger:    slog.Default(),
		now:       time.Now,
		intN:      rand.IntN,
		muMap:     make(map[string]*sync.Mutex),
		accounts:  make(map[string]*models.Account),
		customers: make(map[int64]*models.Customer),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadAccounts reads the account table and attaches each account's history.
func LoadAccounts(ctx context.Context, store interfaces.Store) ([]*models.Account, error) {
	rows, err := store.LoadAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	accounts := make([]*models.Account, 0, len(rows))
	for _, row := range rows {
		a := row
		if a.History, err = store.LoadForAccount(ctx, a.Number); err != nil {
			return nil, fmt.Errorf("load history of %s: %w", a.Number, err)
		}
		accounts = append(accounts, &a)
	}
	return accounts, nil
}

// LoadCustomers reads the customer table and resolves back-references against
// accounts. A reference with no matching account is kept in AccountNumbers
// but gets no entry in Accounts.
func LoadCustomers(ctx context.Context, store interfaces.Store, accounts []*models.Account) ([]*models.Customer, error) {
	rows, err := store.LoadCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	byNumber := make(map[string]*models.Account, len(accounts))
	for _, a := range accounts {
		byNumber[a.Number] = a
	}
	customers := make([]*models.Customer, 0, len(rows))
	for _, row := range rows {
		c := row
		c.Accounts = nil
		for _, n := range c.AccountNumbers {
			if a, ok := byNumber[n]; ok {
				c.Accounts = append(c.Accounts, a)
			}
		}
		customers = append(customers, &c)
	}
	return customers, nil
}

// Load replaces the in-memory state with what the store holds.
func (l *Ledger) Load(ctx context.Context) error {
	accounts, err := LoadAccounts(ctx, l.store)
	if err != nil {
		return err
	}
	customers, err := LoadCustomers(ctx, l.store, accounts)
	if err != nil {
		return err
	}

	l.regMu.Lock()
	defer l.regMu.Unlock()

	l.accounts = make(map[string]*models.Account, len(accounts))
	l.order = l.order[:0]
	for _, a := range accounts {
		l.accounts[a.Number] = a
		l.order = append(l.order, a.Number)
	}
	l.customers = make(map[int64]*models.Customer, len(customers))
	l.custOrder = l.custOrder[:0]
	for _, c := range customers {
		if len(c.Accounts) != len(c.AccountNumbers) {
			l.logger.Warn("customer references unknown accounts", "customer", c.ID, "references", c.AccountNumbers)
		}
		l.customers[c.ID] = c
		l.custOrder = append(l.custOrder, c.ID)
	}
	l.logger.Info("ledger loaded", "accounts", len(accounts), "customers", len(customers))
	return nil
}

func (l *Ledger) getAccountLock(number string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[number]; !exists {
		l.muMap[number] = &sync.Mutex{}
	}
	return l.muMap[number]
}

// lockAccounts takes the locks in sorted order so two opposite transfers can't deadlock.
func (l *Ledger) lockAccounts(numbers ...string) func() {
	sorted := append([]string(nil), numbers...)
	sort.Strings(sorted)
	locks := make([]*sync.Mutex, 0, len(sorted))
	for i, n := range sorted {
		if i > 0 && n == sorted[i-1] {
			continue
		}
		mu := l.getAccountLock(n)
		mu.Lock()
		locks = append(locks, mu)
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

func (l *Ledger) lookup(number string) (*models.Account, error) {
	l.regMu.RLock()
	defer l.regMu.RUnlock()

	a, ok := l.accounts[number]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, number)
	}
	return a, nil
}

func (l *Ledger) lookupCustomer(id int64) (*models.Customer, error) {
	c, ok := l.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrCustomerNotFound, id)
	}
	return c, nil
}

// Account returns a snapshot of the account, safe to keep.
func (l *Ledger) Account(number string) (*models.Account, error) {
	a, err := l.lookup(number)
	if err != nil {
		return nil, err
	}
	unlock := l.lockAccounts(number)
	defer unlock()
	return a.Clone(), nil
}

// Balance of the account.
func (l *Ledger) Balance(number string) (decimal.Decimal, error) {
	a, err := l.Account(number)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

// CreditLimit is the most negative balance the account may reach; zero for savings.
func (l *Ledger) CreditLimit(number string) (decimal.Decimal, error) {
	a, err := l.Account(number)
	if err != nil {
		return decimal.Zero, err
	}
	return a.CreditLimit, nil
}

// History returns the account's legs in sequence order.
func (l *Ledger) History(number string) ([]models.Transaction, error) {
	a, err := l.Account(number)
	if err != nil {
		return nil, err
	}
	return a.History, nil
}

// Accounts returns snapshots of every account in table order.
func (l *Ledger) Accounts() []*models.Account {
	l.regMu.RLock()
	live := make([]*models.Account, 0, len(l.order))
	for _, n := range l.order {
		live = append(live, l.accounts[n])
	}
	l.regMu.RUnlock()

	out := make([]*models.Account, len(live))
	for i, a := range live {
		unlock := l.lockAccounts(a.Number)
		out[i] = a.Clone()
		unlock()
	}
	return out
}

// Customer returns a snapshot of the customer whose Accounts are snapshots too.
func (l *Ledger) Customer(id int64) (*models.Customer, error) {
	l.regMu.RLock()
	c, err := l.lookupCustomer(id)
	if err != nil {
		l.regMu.RUnlock()
		return nil, err
	}
	cp := *c
	cp.AccountNumbers = append([]string(nil), c.AccountNumbers...)
	live := append([]*models.Account(nil), c.Accounts...)
	l.regMu.RUnlock()

	cp.Accounts = make([]*models.Account, len(live))
	for i, a := range live {
		unlock := l.lockAccounts(a.Number)
		cp.Accounts[i] = a.Clone()
		unlock()
	}
	return &cp, nil
}

// Customers returns snapshots of every customer in table order.
func (l *Ledger) Customers() []*models.Customer {
	l.regMu.RLock()
	ids := append([]int64(nil), l.custOrder...)
	l.regMu.RUnlock()

	out := make([]*models.Customer, 0, len(ids))
	for _, id := range ids {
		if c, err := l.Customer(id); err == nil {
			out = append(out, c)
		}
	}
	return out
}

// Deposit credits amount to the account.
func (l *Ledger) Deposit(ctx context.Context, number string, amount decimal.Decimal) ([]models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	unlock := l.lockAccounts(number)
	defer unlock()

	a, err := l.lookup(number)
	if err != nil {
		return nil, err
	}
	today := models.Day(l.now())
	return l.post(ctx, models.Posting{
		Date:    today,
		Changes: []models.BalanceChange{{Number: a.Number, Old: a.Balance, New: a.Balance.Add(amount)}},
		Legs:    []models.Transaction{{AccountNumber: a.Number, Amount: amount, Date: today, Kind: models.KindDeposit}},
	})
}

// Withdraw debits amount if the account's variant allows it.
func (l *Ledger) Withdraw(ctx context.Context, number string, amount decimal.Decimal) ([]models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	unlock := l.lockAccounts(number)
	defer unlock()

	a, err := l.lookup(number)
	if err != nil {
		return nil, err
	}
	now := l.now()
	if err := authorize(a, amount, now); err != nil {
		l.logger.Debug("withdrawal rejected", "account", number, "amount", amount, "reason", err)
		return nil, err
	}
	today := models.Day(now)
	return l.post(ctx, models.Posting{
		Date:    today,
		Changes: []models.BalanceChange{{Number: a.Number, Old: a.Balance, New: a.Balance.Sub(amount)}},
		Legs:    []models.Transaction{{AccountNumber: a.Number, Amount: amount.Neg(), Date: today, Kind: models.KindWithdrawal}},
	})
}

// Transfer moves amount from one account to another as a debit leg on the
// sender followed by a credit leg on the recipient.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) ([]models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if from == to {
		return nil, ErrSameAccount
	}
	unlock := l.lockAccounts(from, to)
	defer unlock()

	sender, err := l.lookup(from)
	if err != nil {
		return nil, err
	}
	recipient, err := l.lookup(to)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRecipientNotFound, to)
	}
	now := l.now()
	if err := authorize(sender, amount, now); err != nil {
		l.logger.Debug("transfer rejected", "from", from, "to", to, "amount", amount, "reason", err)
		return nil, err
	}
	today := models.Day(now)
	return l.post(ctx, models.Posting{
		Date: today,
		Changes: []models.BalanceChange{
			{Number: sender.Number, Old: sender.Balance, New: sender.Balance.Sub(amount)},
			{Number: recipient.Number, Old: recipient.Balance, New: recipient.Balance.Add(amount)},
		},
		Legs: []models.Transaction{
			{AccountNumber: sender.Number, Amount: amount.Neg(), Date: today, Kind: models.KindTransferOut, Counterparty: recipient.Number},
			{AccountNumber: recipient.Number, Amount: amount, Date: today, Kind: models.KindTransferIn, Counterparty: sender.Number},
		},
	})
}

// post writes the posting and, only once it is stored, applies it to the live
// accounts. The caller holds the locks of every account in the posting.
func (l *Ledger) post(ctx context.Context, posting models.Posting) ([]models.Transaction, error) {
	legs, err := l.store.Post(ctx, posting)
	if err != nil {
		l.refresh(ctx, posting)
		return nil, fmt.Errorf("store posting: %w", err)
	}
	for _, ch := range posting.Changes {
		a, err := l.lookup(ch.Number)
		if err != nil {
			return nil, err
		}
		a.Balance = ch.New
	}
	for _, leg := range legs {
		a, err := l.lookup(leg.AccountNumber)
		if err != nil {
			return nil, err
		}
		a.History = append(a.History, leg)
		l.logger.Info("transaction posted",
			"sequence", leg.Sequence, "account", leg.AccountNumber,
			"amount", leg.SignedAmount(), "kind", leg.Description())
	}
	l.publish(ctx, legs)
	return legs, nil
}

// refresh rereads the accounts of a failed posting. A store can fail after
// part of a posting became durable, so the live balances and histories are
// replaced with what the store holds. The caller holds the account locks.
func (l *Ledger) refresh(ctx context.Context, posting models.Posting) {
	rows, err := l.store.LoadAccounts(ctx)
	if err != nil {
		l.logger.Error("cannot reread accounts after failed posting", "error", err)
		return
	}
	for _, ch := range posting.Changes {
		a, err := l.lookup(ch.Number)
		if err != nil {
			continue
		}
		history, err := l.store.LoadForAccount(ctx, ch.Number)
		if err != nil {
			l.logger.Error("cannot reread history after failed posting", "account", ch.Number, "error", err)
			continue
		}
		for _, row := range rows {
			if row.Number == ch.Number {
				if !row.Balance.Equal(a.Balance) {
					l.logger.Warn("account changed in store", "account", a.Number, "memory", a.Balance, "store", row.Balance)
				}
				a.Balance = row.Balance
				a.History = history
				break
			}
		}
	}
}

// publish never fails the operation; the postings are already stored.
func (l *Ledger) publish(ctx context.Context, legs []models.Transaction) {
	occurredAt := l.now()
	for _, leg := range legs {
		event := modelevents.FromLeg(leg, occurredAt)
		if err := l.publisher.Publish(ctx, l.topic, leg.AccountNumber, event); err != nil {
			l.logger.Warn("publish transaction event failed", "sequence", leg.Sequence, "error", err)
		}
	}
}

// mapStoreError turns store conflicts that come from bad input into rejections.
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, interfaces.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrAccountExists, err)
	case errors.Is(err, interfaces.ErrCustomerNotFound):
		return fmt.Errorf("%w: %v", ErrCustomerNotFound, err)
	default:
		return err
	}
}
