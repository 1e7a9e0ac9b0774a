package models

import "time"

// Customer owns references to accounts; accounts themselves live in the stores.
type Customer struct {
	ID             int64
	Name           string
	Surname        string
	DateOfBirth    time.Time
	Address        string
	AccountNumbers []string
	Accounts       []*Account `json:"-"`
}

// Age in whole years at now, one less if this year's birthday hasn't come yet.
func (c *Customer) Age(now time.Time) int {
	age := now.Year() - c.DateOfBirth.Year()
	birthday := time.Date(now.Year(), c.DateOfBirth.Month(), c.DateOfBirth.Day(), 0, 0, 0, 0, now.Location())
	if Day(now).Before(Day(birthday)) {
		age--
	}
	return age
}

// Owns reports whether number is among the customer's back-references.
func (c *Customer) Owns(number string) bool {
	for _, n := range c.AccountNumbers {
		if n == number {
			return true
		}
	}
	return false
}
