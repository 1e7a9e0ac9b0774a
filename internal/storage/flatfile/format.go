package flatfile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
)

// Table file names inside the data directory.
const (
	AccountsFile     = "accounts.txt"
	TransactionsFile = "accountsTransactions.txt"
	CustomersFile    = "customers.txt"
	SequenceFile     = "sequence"
	JournalFile      = "journal.json"
)

const sep = ", "

// ErrInvalidField is returned for values that can't be stored in a comma-separated row.
var ErrInvalidField = errors.New("field contains a separator or line break")

func splitRow(line string, n int) []string {
	parts := strings.SplitN(line, ",", n)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func checkField(name, v string) error {
	if strings.ContainsAny(v, ",\r\n") {
		return fmt.Errorf("%s %q: %w", name, v, ErrInvalidField)
	}
	return nil
}

// <number>, SavingsAccount, <balance>
// <number>, CheckAccount, <balance>, <credit limit magnitude>
func formatAccount(a models.Account) string {
	row := a.Number + sep + a.Variant.String() + sep + a.Balance.String()
	if a.Variant == models.VariantChecking {
		row += sep + a.CreditLimit.Abs().String()
	}
	return row
}

func parseAccount(line string) (models.Account, error) {
	f := splitRow(line, -1)
	if len(f) < 3 {
		return models.Account{}, fmt.Errorf("want at least 3 fields, got %d", len(f))
	}
	variant, err := models.ParseVariant(f[1])
	if err != nil {
		return models.Account{}, err
	}
	balance, err := decimal.NewFromString(f[2])
	if err != nil {
		return models.Account{}, fmt.Errorf("balance: %w", err)
	}
	a := models.Account{Number: f[0], Variant: variant, Balance: balance}
	if variant == models.VariantChecking {
		limit := models.DefaultCreditLimit
		if len(f) > 3 {
			if limit, err = decimal.NewFromString(f[3]); err != nil {
				return models.Account{}, fmt.Errorf("credit limit: %w", err)
			}
		}
		a.CreditLimit = limit.Abs().Neg()
	}
	return a, nil
}

// <sequence>, <account>, <signed amount>, <ISO date>, <kind>
func formatTransaction(t models.Transaction) string {
	return strconv.FormatInt(t.Sequence, 10) + sep + t.AccountNumber + sep + t.SignedAmount() +
		sep + t.Date.Format(models.DateLayout) + sep + t.Description()
}

func parseTransaction(line string) (models.Transaction, error) {
	f := splitRow(line, 5)
	if len(f) != 5 {
		return models.Transaction{}, fmt.Errorf("want 5 fields, got %d", len(f))
	}
	seq, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("sequence: %w", err)
	}
	amount, err := models.ParseSignedAmount(f[2])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	date, err := time.Parse(models.DateLayout, f[3])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("date: %w", err)
	}
	kind, counterparty, err := models.ParseKind(f[4])
	if err != nil {
		return models.Transaction{}, err
	}
	return models.Transaction{
		Sequence:      seq,
		AccountNumber: f[1],
		Amount:        amount,
		Date:          date,
		Kind:          kind,
		Counterparty:  counterparty,
	}, nil
}

// <id>, <name>, <surname>, <year>, <month>, <day>, <address>[, <account>]*
func formatCustomer(c models.Customer) string {
	y, m, d := c.DateOfBirth.Date()
	fields := []string{
		strconv.FormatInt(c.ID, 10), c.Name, c.Surname,
		strconv.Itoa(y), strconv.Itoa(int(m)), strconv.Itoa(d), c.Address,
	}
	return strings.Join(append(fields, c.AccountNumbers...), sep)
}

func parseCustomer(line string) (models.Customer, error) {
	f := splitRow(line, -1)
	if len(f) < 7 {
		return models.Customer{}, fmt.Errorf("want at least 7 fields, got %d", len(f))
	}
	id, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return models.Customer{}, fmt.Errorf("customer id: %w", err)
	}
	var ymd [3]int
	for i := range ymd {
		if ymd[i], err = strconv.Atoi(f[3+i]); err != nil {
			return models.Customer{}, fmt.Errorf("date of birth: %w", err)
		}
	}
	c := models.Customer{
		ID:          id,
		Name:        f[1],
		Surname:     f[2],
		DateOfBirth: time.Date(ymd[0], time.Month(ymd[1]), ymd[2], 0, 0, 0, 0, time.UTC),
		Address:     f[6],
	}
	for _, n := range f[7:] {
		if n != "" {
			c.AccountNumbers = append(c.AccountNumbers, n)
		}
	}
	return c, nil
}

func validateCustomer(c models.Customer) error {
	for _, f := range []struct{ name, v string }{
		{"name", c.Name}, {"surname", c.Surname}, {"address", c.Address},
	} {
		if err := checkField(f.name, f.v); err != nil {
			return err
		}
	}
	for _, n := range c.AccountNumbers {
		if err := checkField("account number", n); err != nil {
			return err
		}
	}
	return nil
}

// lines splits file contents, skipping blank lines, and keeps the 1-based line number.
func lines(data []byte) ([]string, []int) {
	var out []string
	var nums []int
	for i, l := range strings.Split(string(data), "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
		nums = append(nums, i+1)
	}
	return out, nums
}

func render(rows []string) []byte {
	if len(rows) == 0 {
		return nil
	}
	return []byte(strings.Join(rows, "\n") + "\n")
}
