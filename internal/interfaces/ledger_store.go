package interfaces

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
)

var (
	ErrAccountNotFound  = errors.New("account not found in store")
	ErrCustomerNotFound = errors.New("customer not found in store")
	ErrBalanceConflict  = errors.New("stored balance does not match expected balance")
	ErrDuplicate        = errors.New("record already exists")
)

// LedgerStore is the persisted account table. Rows are keyed by account number equality.
type LedgerStore interface {
	LoadAccounts(ctx context.Context) ([]models.Account, error)
	InsertAccount(ctx context.Context, account models.Account) error
	UpdateBalance(ctx context.Context, number string, oldBalance, newBalance decimal.Decimal) error
	RemoveAccount(ctx context.Context, number string) error
}

// TransactionLog is the append-only sequence of transaction legs.
type TransactionLog interface {
	// LoadForAccount returns the account's legs in sequence order.
	LoadForAccount(ctx context.Context, number string) ([]models.Transaction, error)
	// NextSequence is the sequence the next appended leg will get.
	NextSequence(ctx context.Context) (int64, error)
	// AppendTransactions writes all legs as one append. Legs with a zero
	// sequence are numbered from NextSequence; the numbered legs are returned.
	AppendTransactions(ctx context.Context, legs []models.Transaction) ([]models.Transaction, error)
}

// CustomerStore is the persisted customer table with its account back-references.
type CustomerStore interface {
	LoadCustomers(ctx context.Context) ([]models.Customer, error)
	InsertCustomer(ctx context.Context, customer models.Customer) error
	NextCustomerID(ctx context.Context) (int64, error)
}

// Store is everything the ledger persists, plus the multi-record units that
// must land together or not at all.
type Store interface {
	LedgerStore
	TransactionLog
	CustomerStore

	// Post checks and applies every balance change and appends every leg.
	Post(ctx context.Context, posting models.Posting) ([]models.Transaction, error)
	// OpenAccount adds the back-reference on the customer and the account row.
	OpenAccount(ctx context.Context, customerID int64, account models.Account) error
	// CloseAccount removes the account row and the customer's back-reference.
	CloseAccount(ctx context.Context, customerID int64, number string) error
	Close() error
}
