package ledger

import "fmt"

const (
	accountNumberDigits = 8
	accountNumberSpace  = 100_000_000
	maxNumberAttempts   = 10_000
)

// newAccountNumber draws random 8-digit numbers until one is free.
func (l *Ledger) newAccountNumber() (string, error) {
	for i := 0; i < maxNumberAttempts; i++ {
		number := fmt.Sprintf("%0*d", accountNumberDigits, l.intN(accountNumberSpace))
		if _, err := l.lookup(number); err != nil {
			return number, nil
		}
	}
	return "", ErrNumberSpaceExhausted
}

func validAccountNumber(number string) bool {
	if len(number) != accountNumberDigits {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
