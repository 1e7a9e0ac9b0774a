package ledger

import "errors"

// Rejections: the operation was refused and nothing changed. Callers may retry
// with different input. Anything else returned by the ledger is a storage failure.
var (
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInsufficientFunds    = errors.New("savings balance must stay above zero")
	ErrMonthlyLimit         = errors.New("monthly withdrawal limit reached")
	ErrCreditLimit          = errors.New("transaction exceeds credit limit")
	ErrUnknownVariant       = errors.New("unknown account variant")
	ErrAccountNotFound      = errors.New("account not found")
	ErrRecipientNotFound    = errors.New("recipient account not found")
	ErrSameAccount          = errors.New("cannot transfer to the same account")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrUnderage             = errors.New("customer is too young for this account")
	ErrCreditLimitRange     = errors.New("credit limit must be between 50 and 5000")
	ErrNonZeroBalance       = errors.New("account balance must be zero to delete it")
	ErrNotOwner             = errors.New("account does not belong to customer")
	ErrAccountExists        = errors.New("account number already in use")
	ErrInvalidAccount       = errors.New("new account must have an 8-digit number and no funds")
	ErrInvalidCustomer      = errors.New("customer needs a name, surname and date of birth")
	ErrNumberSpaceExhausted = errors.New("could not find a free account number")
)

var rejections = []error{
	ErrInvalidAmount, ErrInsufficientFunds, ErrMonthlyLimit, ErrCreditLimit, ErrUnknownVariant,
	ErrAccountNotFound, ErrRecipientNotFound, ErrSameAccount, ErrCustomerNotFound, ErrUnderage,
	ErrCreditLimitRange, ErrNonZeroBalance, ErrNotOwner, ErrAccountExists, ErrInvalidAccount,
	ErrInvalidCustomer,
}

// IsRejection reports whether err is a validation rejection rather than an I/O failure.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}
