package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/interfaces"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/storage/memory"
)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var may15 = time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	ctx    context.Context
	store  interfaces.Store
	clock  *clock
	ledger *Ledger
}

func newFixture(t *testing.T, store interfaces.Store, opts ...Option) *fixture {
	t.Helper()
	if store == nil {
		store = memory.NewMemoryStore()
	}
	f := &fixture{ctx: context.Background(), store: store, clock: newClock(may15)}
	opts = append([]Option{WithClock(f.clock.Now), WithLogger(quietLogger())}, opts...)
	f.ledger = New(store, opts...)
	require.NoError(t, f.ledger.Load(f.ctx))
	return f
}

func (f *fixture) customer(t *testing.T, name string, born time.Time) int64 {
	t.Helper()
	c, err := f.ledger.RegisterCustomer(f.ctx, models.Customer{
		Name: name, Surname: "Byrne", DateOfBirth: born, Address: "1 Main St",
	})
	require.NoError(t, err)
	return c.ID
}

func (f *fixture) adult(t *testing.T) int64 {
	return f.customer(t, "Ada", time.Date(1990, time.March, 2, 0, 0, 0, 0, time.UTC))
}

func (f *fixture) savings(t *testing.T, owner int64, number, funds string) string {
	t.Helper()
	require.NoError(t, f.ledger.AddAccount(f.ctx, owner, models.NewSavings(number)))
	f.fund(t, number, funds)
	return number
}

func (f *fixture) checking(t *testing.T, owner int64, number, limit, funds string) string {
	t.Helper()
	require.NoError(t, f.ledger.AddAccount(f.ctx, owner, models.NewChecking(number, dec(limit))))
	f.fund(t, number, funds)
	return number
}

func (f *fixture) fund(t *testing.T, number, funds string) {
	t.Helper()
	if dec(funds).IsPositive() {
		_, err := f.ledger.Deposit(f.ctx, number, dec(funds))
		require.NoError(t, err)
	}
}

func (f *fixture) balance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.Balance(number)
	require.NoError(t, err)
	return b
}

// spyStore counts destructive calls and can be told to fail postings.
type spyStore struct {
	interfaces.Store
	closeCalls int
	failPost   error
}

func (s *spyStore) CloseAccount(ctx context.Context, customerID int64, number string) error {
	s.closeCalls++
	return s.Store.CloseAccount(ctx, customerID, number)
}

func (s *spyStore) Post(ctx context.Context, posting models.Posting) ([]models.Transaction, error) {
	if s.failPost != nil {
		return nil, s.failPost
	}
	return s.Store.Post(ctx, posting)
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	return errors.New("broker unavailable")
}
