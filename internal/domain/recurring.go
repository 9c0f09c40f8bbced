package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Valid reports whether f is a supported frequency
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// RecurringDefinition is the persisted template of a repeating transaction.
// LastGeneratedAt is an advisory watermark; nothing relies on it for correctness.
type RecurringDefinition struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Description     string          `json:"description"`
	Type            TransactionType `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Note            *string         `json:"note,omitempty"`
	RecurrenceRule  string          `json:"recurrenceRule"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         *time.Time      `json:"endDate,omitempty"`
	LastGeneratedAt *time.Time      `json:"lastGeneratedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ActiveIn reports whether the definition can produce occurrences inside [start, end]
func (d *RecurringDefinition) ActiveIn(start, end time.Time) bool {
	if d.StartDate.After(end) {
		return false
	}
	if d.EndDate != nil && d.EndDate.Before(start) {
		return false
	}
	return true
}

// RecurrenceSpec is the "repeat N times" input of a transaction create request
type RecurrenceSpec struct {
	Frequency Frequency
	Quantity  int
}

// UpdateRecurringData holds a partial definition update. ClearEndDate removes
// the end date; id, owner and the start anchor are never updatable.
type UpdateRecurringData struct {
	Description    *string
	Type           *TransactionType
	Amount         *decimal.Decimal
	RecurrenceRule *string
	EndDate        *time.Time
	ClearEndDate   bool
	Note           *string
}

// DeleteRecurringResult reports how many real transactions were detached
type DeleteRecurringResult struct {
	Definition *RecurringDefinition `json:"definition"`
	Detached   int64                `json:"detached"`
}

type RecurringRepository interface {
	Create(ctx context.Context, definition *RecurringDefinition) (*RecurringDefinition, error)
	GetByID(ctx context.Context, userID, id string) (*RecurringDefinition, error)
	// ListByUser returns the user's definitions, newest first. When activeFrom
	// is set only definitions without an end date or ending on/after it are returned.
	ListByUser(ctx context.Context, userID string, activeFrom *time.Time) ([]*RecurringDefinition, error)
	// ListActive returns definitions of all users that may produce occurrences in [start, end]
	ListActive(ctx context.Context, start, end time.Time) ([]*RecurringDefinition, error)
	Update(ctx context.Context, definition *RecurringDefinition) (*RecurringDefinition, error)
	Delete(ctx context.Context, userID, id string) error
	// DeleteDetaching clears the recurring link of the definition's transactions
	// and deletes it atomically, returning how many transactions were detached
	DeleteDetaching(ctx context.Context, userID, id string) (int64, error)
	TouchLastGenerated(ctx context.Context, id string, at time.Time) error
}
