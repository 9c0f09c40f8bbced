package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrInternalError   = errors.New("internal error")
	ErrUserIDRequired  = fmt.Errorf("%w: user id is required", ErrUnauthorized)
	ErrInvalidArgument = fmt.Errorf("%w: invalid argument", ErrInvalidInput)
	ErrMalformedRule   = fmt.Errorf("%w: malformed recurrence rule", ErrInvalidInput)
	ErrInvalidRule     = fmt.Errorf("%w: unsupported recurrence rule", ErrInvalidInput)

	ErrTransactionNotFound    = fmt.Errorf("transaction %w", ErrNotFound)
	ErrRecurringNotFound      = fmt.Errorf("recurring transaction %w", ErrNotFound)
	ErrLabelNotFound          = fmt.Errorf("label %w", ErrNotFound)
	ErrInvestmentNotFound     = fmt.Errorf("investment %w", ErrNotFound)
	ErrLabelHasTransactions   = fmt.Errorf("%w: label has dependent transactions", ErrConflict)
	ErrTooManyIDs             = fmt.Errorf("%w: too many ids", ErrInvalidInput)
	ErrEmptyIDs               = fmt.Errorf("%w: ids cannot be empty", ErrInvalidInput)
	ErrInvalidSortKey         = fmt.Errorf("%w: unknown sort key", ErrInvalidInput)
	ErrInvalidSortOrder       = fmt.Errorf("%w: unknown sort order", ErrInvalidInput)
	ErrInvalidTransactionType = fmt.Errorf("%w: type must be income or outcome", ErrInvalidInput)
)

// Validation constants
const (
	MaxDescriptionLength = 255
	MaxBulkDeleteIDs     = 50
)

// FieldError is a validation failure tied to a single input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match field errors.
func (e *FieldError) Unwrap() error {
	return ErrInvalidInput
}

// NewFieldError creates a FieldError
func NewFieldError(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}

// StorageError wraps a failure reported by the datastore. The core never
// inspects the underlying error code.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err, returning nil when err is nil.
func NewStorageError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Table: table, Err: err}
}
