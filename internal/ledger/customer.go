package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
)

// AddAccount attaches a new, empty account to the customer. The customer's
// back-reference and the account row are written as one unit.
func (l *Ledger) AddAccount(ctx context.Context, customerID int64, account *models.Account) error {
	if account == nil || !account.Balance.IsZero() || len(account.History) > 0 {
		return ErrInvalidAccount
	}
	if !validAccountNumber(account.Number) {
		return fmt.Errorf("%w: number %q is not %d digits", ErrInvalidAccount, account.Number, accountNumberDigits)
	}
	if account.Variant != models.VariantSavings && account.Variant != models.VariantChecking {
		return ErrUnknownVariant
	}
	unlock := l.lockAccounts(account.Number)
	defer unlock()
	return l.addAccount(ctx, customerID, account)
}

// addAccount runs with the account number locked.
func (l *Ledger) addAccount(ctx context.Context, customerID int64, account *models.Account) error {
	l.regMu.RLock()
	c, err := l.lookupCustomer(customerID)
	_, taken := l.accounts[account.Number]
	l.regMu.RUnlock()
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %s", ErrAccountExists, account.Number)
	}
	if err := eligible(c, account, l.now()); err != nil {
		return err
	}

	a := account.Clone()
	a.History = nil
	if err := l.store.OpenAccount(ctx, customerID, *a); err != nil {
		return mapStoreError(err)
	}

	l.regMu.Lock()
	l.accounts[a.Number] = a
	l.order = append(l.order, a.Number)
	c.AccountNumbers = append(c.AccountNumbers, a.Number)
	c.Accounts = append(c.Accounts, a)
	l.regMu.Unlock()

	l.logger.Info("account opened", "customer", customerID, "account", a.Number, "variant", a.Variant)
	return nil
}

// OpenSavings opens a savings account under a freshly drawn number.
func (l *Ledger) OpenSavings(ctx context.Context, customerID int64) (*models.Account, error) {
	return l.open(ctx, customerID, func(number string) *models.Account {
		return models.NewSavings(number)
	})
}

// OpenChecking opens a checking account for an adult customer. limit is the
// overdraft magnitude and must lie in [MinCreditLimit, MaxCreditLimit].
func (l *Ledger) OpenChecking(ctx context.Context, customerID int64, limit decimal.Decimal) (*models.Account, error) {
	if limit.LessThan(MinCreditLimit) || limit.GreaterThan(MaxCreditLimit) {
		return nil, ErrCreditLimitRange
	}
	l.regMu.RLock()
	c, err := l.lookupCustomer(customerID)
	var age int
	if err == nil {
		age = c.Age(l.now())
	}
	l.regMu.RUnlock()
	if err != nil {
		return nil, err
	}
	if age < MinCheckingAge {
		return nil, ErrUnderage
	}
	return l.open(ctx, customerID, func(number string) *models.Account {
		return models.NewChecking(number, limit)
	})
}

func (l *Ledger) open(ctx context.Context, customerID int64, build func(number string) *models.Account) (*models.Account, error) {
	for {
		number, err := l.newAccountNumber()
		if err != nil {
			return nil, err
		}
		unlock := l.lockAccounts(number)
		err = l.addAccount(ctx, customerID, build(number))
		unlock()
		// another caller may have taken the number between draw and lock
		if errors.Is(err, ErrAccountExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return l.Account(number)
	}
}

// DeleteAccount closes one of the customer's accounts. Only an account with a
// zero balance may be deleted; its history stays in the transaction log.
func (l *Ledger) DeleteAccount(ctx context.Context, customerID int64, number string) error {
	unlock := l.lockAccounts(number)
	defer unlock()

	a, err := l.lookup(number)
	if err != nil {
		return err
	}
	l.regMu.RLock()
	c, err := l.lookupCustomer(customerID)
	owns := err == nil && c.Owns(number)
	l.regMu.RUnlock()
	if err != nil {
		return err
	}
	if !owns {
		return fmt.Errorf("%w: %s", ErrNotOwner, number)
	}
	if !a.Balance.IsZero() {
		return fmt.Errorf("%w: %s has %s", ErrNonZeroBalance, number, a.Balance)
	}

	if err := l.store.CloseAccount(ctx, customerID, number); err != nil {
		return mapStoreError(err)
	}

	l.regMu.Lock()
	delete(l.accounts, number)
	l.order = removeString(l.order, number)
	c.AccountNumbers = removeString(c.AccountNumbers, number)
	kept := c.Accounts[:0]
	for _, owned := range c.Accounts {
		if owned.Number != number {
			kept = append(kept, owned)
		}
	}
	c.Accounts = kept
	l.regMu.Unlock()

	l.logger.Info("account deleted", "customer", customerID, "account", number)
	return nil
}

// RegisterCustomer stores a new customer with no accounts and returns it with its id.
func (l *Ledger) RegisterCustomer(ctx context.Context, profile models.Customer) (*models.Customer, error) {
	if strings.TrimSpace(profile.Name) == "" || strings.TrimSpace(profile.Surname) == "" || profile.DateOfBirth.IsZero() {
		return nil, ErrInvalidCustomer
	}
	if strings.ContainsAny(profile.Name+profile.Surname+profile.Address, ",\n") {
		return nil, fmt.Errorf("%w: fields may not contain commas or newlines", ErrInvalidCustomer)
	}
	profile.AccountNumbers = nil
	profile.Accounts = nil

	l.regMu.Lock()
	defer l.regMu.Unlock()

	id, err := l.store.NextCustomerID(ctx)
	if err != nil {
		return nil, fmt.Errorf("next customer id: %w", err)
	}
	profile.ID = id
	if err := l.store.InsertCustomer(ctx, profile); err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	c := profile
	l.customers[id] = &c
	l.custOrder = append(l.custOrder, id)
	l.logger.Info("customer registered", "customer", id)

	cp := c
	return &cp, nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
