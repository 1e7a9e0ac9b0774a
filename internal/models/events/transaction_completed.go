package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
)

// TransactionCompleted is published once per stored transaction leg.
type TransactionCompleted struct {
	EventID       uuid.UUID       `json:"event_id"`
	Sequence      int64           `json:"sequence"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          string          `json:"kind"`
	Counterparty  string          `json:"counterparty,omitempty"`
	Date          string          `json:"date"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// FromLeg builds the event for a leg that has been assigned its sequence.
func FromLeg(leg models.Transaction, occurredAt time.Time) TransactionCompleted {
	return TransactionCompleted{
		EventID:       uuid.New(),
		Sequence:      leg.Sequence,
		AccountNumber: leg.AccountNumber,
		Amount:        leg.Amount,
		Kind:          leg.Description(),
		Counterparty:  leg.Counterparty,
		Date:          leg.Date.Format(models.DateLayout),
		OccurredAt:    occurredAt,
	}
}
