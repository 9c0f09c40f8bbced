package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeOutcome TransactionType = "outcome"
)

// Valid reports whether t is a known transaction type
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeOutcome
}

// Transaction is a persisted ("real") transaction row. Labels are resolved
// by the repository so the feed can sort and filter on their descriptions.
type Transaction struct {
	ID                    string          `json:"id"`
	UserID                string          `json:"userId"`
	Description           string          `json:"description"`
	Date                  time.Time       `json:"date"`
	Amount                decimal.Decimal `json:"amount"`
	Type                  TransactionType `json:"type"`
	Note                  *string         `json:"note,omitempty"`
	CategoryID            *string         `json:"categoryId,omitempty"`
	TagID                 *string         `json:"tagId,omitempty"`
	PaymentStatusID       *string         `json:"paymentStatusId,omitempty"`
	RecurringDefinitionID *string         `json:"recurringTransactionId,omitempty"`
	Category              *Label          `json:"category,omitempty"`
	Tag                   *Label          `json:"tag,omitempty"`
	PaymentStatus         *Label          `json:"paymentStatus,omitempty"`
	IsVirtual             bool            `json:"isVirtual,omitempty"`
	IsRecurringGenerated  bool            `json:"isRecurringGenerated,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// Day returns the UTC calendar day of the transaction date
func (t *Transaction) Day() CalendarDay {
	return DayOf(t.Date)
}

// VirtualTransaction is a response-only projection of an occurrence that has
// no real counterpart yet. It is never persisted.
type VirtualTransaction struct {
	Transaction
}

// TransactionFilters holds the user-facing filters of the transaction feed.
// Month, when set, restricts results to that UTC calendar month.
type TransactionFilters struct {
	Type            *TransactionType
	CategoryID      *string
	TagID           *string
	PaymentStatusID *string
	Status          *string
	Month           *time.Time
}

// MonthRange returns the inclusive bounds of the month filter
func (f *TransactionFilters) MonthRange() (start, end time.Time, ok bool) {
	if f == nil || f.Month == nil {
		return time.Time{}, time.Time{}, false
	}
	start, end = MonthBounds(f.Month.Year(), f.Month.Month())
	return start, end, true
}

type SortKey string

const (
	SortByDescription   SortKey = "description"
	SortByDate          SortKey = "date"
	SortByAmount        SortKey = "amount"
	SortByType          SortKey = "type"
	SortByCategory      SortKey = "category"
	SortByTag           SortKey = "tag"
	SortByPaymentStatus SortKey = "paymentStatus"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// TransactionSort selects the feed ordering
type TransactionSort struct {
	Key   SortKey
	Order SortOrder
}

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest is a 1-indexed page of fixed size
type PageRequest struct {
	Page  int
	Limit int
}

// Pagination is the metadata returned with every paginated list
type Pagination struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// NewPagination computes page metadata for a result set of total items.
// Nothing multiplies page by limit, so arbitrarily large pages cannot overflow.
func NewPagination(total, page, limit int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasMore:    page >= 1 && page < totalPages,
	}
}

// PageBounds returns the [from, to) slice bounds of a 1-indexed page over total items
func PageBounds(total, page, limit int) (from, to int) {
	if total <= 0 || limit <= 0 || page < 1 {
		return 0, 0
	}
	if page-1 >= (total+limit-1)/limit {
		return total, total
	}
	from = (page - 1) * limit
	to = from + limit
	if to > total {
		to = total
	}
	return from, to
}

// TransactionPage is one page of the merged transaction feed
type TransactionPage struct {
	Data       []*Transaction `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// UpdateTransactionData holds a partial transaction update; nil fields are left untouched
type UpdateTransactionData struct {
	Description     *string
	Date            *time.Time
	Amount          *decimal.Decimal
	Type            *TransactionType
	Note            *string
	CategoryID      *string
	TagID           *string
	PaymentStatusID *string
}

// BulkDeleteFailure describes one id that could not be deleted
type BulkDeleteFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkDeleteResult is the per-id outcome of a bulk delete
type BulkDeleteResult struct {
	Success []string            `json:"success"`
	Failed  []BulkDeleteFailure `json:"failed"`
}

type TransactionRepository interface {
	Create(ctx context.Context, transaction *Transaction) (*Transaction, error)
	// CreateBatch inserts all transactions atomically
	CreateBatch(ctx context.Context, transactions []*Transaction) ([]*Transaction, error)
	GetByID(ctx context.Context, userID, id string) (*Transaction, error)
	// List returns every real transaction of the user that matches filters, unpaginated
	List(ctx context.Context, userID string, filters *TransactionFilters) ([]*Transaction, error)
	// ListByRecurring returns the transactions linked to a recurring definition, oldest first
	ListByRecurring(ctx context.Context, userID, recurringID string) ([]*Transaction, error)
	Update(ctx context.Context, userID, id string, data *UpdateTransactionData) (*Transaction, error)
	Delete(ctx context.Context, userID, id string) error
	// CountByLabel counts the user's transactions referencing a label
	CountByLabel(ctx context.Context, userID string, kind LabelKind, labelID string) (int64, error)
}
