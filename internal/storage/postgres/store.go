package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/interfaces"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
)

const uniqueViolation = "23505"

// PostgresStore keeps every table in Postgres; balances are updated in place
// and each multi-row unit runs in one SQL transaction.
type PostgresStore struct {
	db *sql.DB
}

// Open connects with lib/pq and creates the schema if needed.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
	}
}

// Migrate creates the tables if they don't exist yet.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	if err = fn(dbTx); err != nil {
		return err
	}
	return dbTx.Commit()
}

func mapError(err error, what string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", what, interfaces.ErrDuplicate)
	}
	return err
}

// LoadAccounts returns the account table in insertion order.
func (p *PostgresStore) LoadAccounts(ctx context.Context) ([]models.Account, error) {
	const query = `SELECT number, variant, balance, credit_limit FROM accounts ORDER BY position`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var (
			a       models.Account
			variant string
		)
		if err := rows.Scan(&a.Number, &variant, &a.Balance, &a.CreditLimit); err != nil {
			return nil, err
		}
		if a.Variant, err = models.ParseVariant(variant); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func insertAccount(ctx context.Context, q queryer, a models.Account) error {
	const query = `INSERT INTO accounts (number, variant, balance, credit_limit) VALUES ($1, $2, $3, $4)`

	_, err := q.ExecContext(ctx, query, a.Number, a.Variant.String(), a.Balance, a.CreditLimit)
	return mapError(err, "account "+a.Number)
}

// InsertAccount inserts one row; a taken number maps to ErrDuplicate.
func (p *PostgresStore) InsertAccount(ctx context.Context, account models.Account) error {
	return insertAccount(ctx, p.db, account)
}

// updateBalance only matches the row while it still holds the expected balance.
func updateBalance(ctx context.Context, q queryer, ch models.BalanceChange) error {
	const query = `UPDATE accounts SET balance = $1 WHERE number = $2 AND balance = $3`

	res, err := q.ExecContext(ctx, query, ch.New, ch.Number, ch.Old)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var stored decimal.Decimal
	err = q.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE number = $1`, ch.Number).Scan(&stored)
	if err == sql.ErrNoRows {
		return fmt.Errorf("account %s: %w", ch.Number, interfaces.ErrAccountNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("account %s holds %s, expected %s: %w", ch.Number, stored, ch.Old, interfaces.ErrBalanceConflict)
}

// UpdateBalance updates the balance in place while it still equals oldBalance.
func (p *PostgresStore) UpdateBalance(ctx context.Context, number string, oldBalance, newBalance decimal.Decimal) error {
	return updateBalance(ctx, p.db, models.BalanceChange{Number: number, Old: oldBalance, New: newBalance})
}

func removeAccount(ctx context.Context, q queryer, number string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM accounts WHERE number = $1`, number)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", number, interfaces.ErrAccountNotFound)
	}
	return nil
}

// RemoveAccount deletes the row keyed by number.
func (p *PostgresStore) RemoveAccount(ctx context.Context, number string) error {
	return removeAccount(ctx, p.db, number)
}

// LoadForAccount returns the account's legs ordered by sequence.
func (p *PostgresStore) LoadForAccount(ctx context.Context, number string) ([]models.Transaction, error) {
	const query = `SELECT sequence, account_number, amount, date, kind FROM transactions
	WHERE account_number = $1 ORDER BY sequence`

	rows, err := p.db.QueryContext(ctx, query, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var legs []models.Transaction
	for rows.Next() {
		var (
			leg  models.Transaction
			kind string
		)
		if err := rows.Scan(&leg.Sequence, &leg.AccountNumber, &leg.Amount, &leg.Date, &kind); err != nil {
			return nil, err
		}
		leg.Date = models.Day(leg.Date)
		if leg.Kind, leg.Counterparty, err = models.ParseKind(kind); err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}
	return legs, rows.Err()
}

// NextSequence reads the counter without locking it.
func (p *PostgresStore) NextSequence(ctx context.Context) (int64, error) {
	var last int64
	if err := p.db.QueryRowContext(ctx, `SELECT last FROM ledger_sequence`).Scan(&last); err != nil {
		return 0, err
	}
	return last + 1, nil
}

// appendLegs locks the counter row for the rest of the transaction.
func appendLegs(ctx context.Context, tx *sql.Tx, legs []models.Transaction) ([]models.Transaction, error) {
	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT last FROM ledger_sequence FOR UPDATE`).Scan(&last); err != nil {
		return nil, err
	}
	numbered, next := models.NumberLegs(legs, last+1)

	const query = `INSERT INTO transactions (sequence, account_number, amount, date, kind)
	VALUES ($1, $2, $3, $4, $5)`
	for _, leg := range numbered {
		_, err := tx.ExecContext(ctx, query, leg.Sequence, leg.AccountNumber, leg.Amount,
			leg.Date.Format(models.DateLayout), leg.Description())
		if err != nil {
			return nil, mapError(err, fmt.Sprintf("transaction %d", leg.Sequence))
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE ledger_sequence SET last = $1`, next-1); err != nil {
		return nil, err
	}
	return numbered, nil
}

// AppendTransactions inserts the legs and moves the counter in one transaction.
func (p *PostgresStore) AppendTransactions(ctx context.Context, legs []models.Transaction) ([]models.Transaction, error) {
	var numbered []models.Transaction
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		numbered, err = appendLegs(ctx, tx, legs)
		return err
	})
	return numbered, err
}

// LoadCustomers returns every customer with back-references in link order.
func (p *PostgresStore) LoadCustomers(ctx context.Context) ([]models.Customer, error) {
	const query = `SELECT id, name, surname, date_of_birth, address FROM customers ORDER BY id`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []models.Customer
	index := make(map[int64]int)
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Surname, &c.DateOfBirth, &c.Address); err != nil {
			return nil, err
		}
		c.DateOfBirth = models.Day(c.DateOfBirth)
		index[c.ID] = len(customers)
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links, err := p.db.QueryContext(ctx, `SELECT customer_id, account_number FROM customer_accounts ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer links.Close()
	for links.Next() {
		var (
			id     int64
			number string
		)
		if err := links.Scan(&id, &number); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			customers[i].AccountNumbers = append(customers[i].AccountNumbers, number)
		}
	}
	return customers, links.Err()
}

// InsertCustomer inserts the profile and any back-references it carries.
func (p *PostgresStore) InsertCustomer(ctx context.Context, c models.Customer) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		const query = `INSERT INTO customers (id, name, surname, date_of_birth, address) VALUES ($1, $2, $3, $4, $5)`

		_, err := tx.ExecContext(ctx, query, c.ID, c.Name, c.Surname, c.DateOfBirth.Format(models.DateLayout), c.Address)
		if err != nil {
			return mapError(err, fmt.Sprintf("customer %d", c.ID))
		}
		for _, n := range c.AccountNumbers {
			if err := linkAccount(ctx, tx, c.ID, n); err != nil {
				return err
			}
		}
		return nil
	})
}

// NextCustomerID is one more than the highest stored id.
func (p *PostgresStore) NextCustomerID(ctx context.Context) (int64, error) {
	var max int64
	err := p.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM customers`).Scan(&max)
	return max + 1, err
}

func linkAccount(ctx context.Context, q queryer, customerID int64, number string) error {
	const query = `INSERT INTO customer_accounts (customer_id, account_number) VALUES ($1, $2)`

	_, err := q.ExecContext(ctx, query, customerID, number)
	return mapError(err, "account link "+number)
}

func requireCustomer(ctx context.Context, q queryer, id int64) error {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM customers WHERE id = $1`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("customer %d: %w", id, interfaces.ErrCustomerNotFound)
	}
	return err
}

// Post applies the balance changes and the legs in one SQL transaction.
func (p *PostgresStore) Post(ctx context.Context, posting models.Posting) ([]models.Transaction, error) {
	var numbered []models.Transaction
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		for _, ch := range posting.Changes {
			if err := updateBalance(ctx, tx, ch); err != nil {
				return err
			}
		}
		var err error
		numbered, err = appendLegs(ctx, tx, posting.Legs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return numbered, nil
}

// OpenAccount links the account to the customer and inserts its row.
func (p *PostgresStore) OpenAccount(ctx context.Context, customerID int64, account models.Account) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireCustomer(ctx, tx, customerID); err != nil {
			return err
		}
		if err := linkAccount(ctx, tx, customerID, account.Number); err != nil {
			return err
		}
		return insertAccount(ctx, tx, account)
	})
}

// CloseAccount deletes the row and the customer's link together.
func (p *PostgresStore) CloseAccount(ctx context.Context, customerID int64, number string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireCustomer(ctx, tx, customerID); err != nil {
			return err
		}
		if err := removeAccount(ctx, tx, number); err != nil {
			return err
		}
		const query = `DELETE FROM customer_accounts WHERE customer_id = $1 AND account_number = $2`
		_, err := tx.ExecContext(ctx, query, customerID, number)
		return err
	})
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

var _ interfaces.Store = (*PostgresStore)(nil)
