package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/recurrence"
	"github.com/dafibh/fortuna/ledger-backend/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultVirtualWindowDays = 90
	DefaultRecurringFanout   = 8
)

// TransactionServiceConfig tunes the read path
type TransactionServiceConfig struct {
	VirtualWindowDays int
	RecurringFanout   int
}

// TransactionService handles transaction-related business logic
type TransactionService struct {
	transactionRepo domain.TransactionRepository
	recurringRepo   domain.RecurringRepository
	eventPublisher  websocket.EventPublisher
	logger          zerolog.Logger
	windowDays      int
	fanout          int
	now             func() time.Time
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(
	transactionRepo domain.TransactionRepository,
	recurringRepo domain.RecurringRepository,
	logger zerolog.Logger,
	config TransactionServiceConfig,
) *TransactionService {
	if config.VirtualWindowDays <= 0 {
		config.VirtualWindowDays = DefaultVirtualWindowDays
	}
	if config.RecurringFanout <= 0 {
		config.RecurringFanout = DefaultRecurringFanout
	}
	return &TransactionService{
		transactionRepo: transactionRepo,
		recurringRepo:   recurringRepo,
		logger:          logger.With().Str("component", "transaction_service").Logger(),
		windowDays:      config.VirtualWindowDays,
		fanout:          config.RecurringFanout,
		now:             time.Now,
	}
}

// SetEventPublisher sets the WebSocket event publisher
func (s *TransactionService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *TransactionService) publishEvent(userID string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(userID, event)
	}
}

// CreateTransactionInput holds the input for creating a transaction
type CreateTransactionInput struct {
	Description     string
	Date            time.Time
	Amount          decimal.Decimal
	Type            domain.TransactionType
	Note            *string
	CategoryID      *string
	TagID           *string
	PaymentStatusID *string
	Recurrent       *domain.RecurrenceSpec
}

// CreateTransactionResult is the created transaction and, for recurring input, its definition
type CreateTransactionResult struct {
	Transaction *domain.Transaction
	Recurring   *domain.RecurringDefinition
}

// CreateTransaction creates a transaction. With a recurrence spec it first
// creates the recurring definition anchored at the transaction date and links
// the transaction to it as the first occurrence.
func (s *TransactionService) CreateTransaction(ctx context.Context, userID string, input CreateTransactionInput) (*CreateTransactionResult, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	description, err := validateDescription(input.Description)
	if err != nil {
		return nil, err
	}
	if !input.Type.Valid() {
		return nil, domain.ErrInvalidTransactionType
	}
	if input.Date.IsZero() {
		return nil, domain.NewFieldError("date", "is required")
	}

	tx := &domain.Transaction{
		UserID:          userID,
		Description:     description,
		Date:            input.Date.UTC(),
		Amount:          input.Amount,
		Type:            input.Type,
		Note:            input.Note,
		CategoryID:      input.CategoryID,
		TagID:           input.TagID,
		PaymentStatusID: input.PaymentStatusID,
	}
	result := &CreateTransactionResult{}

	if input.Recurrent != nil {
		if !input.Recurrent.Frequency.Valid() {
			return nil, domain.NewFieldError("recurrent.frequency", "must be daily, weekly, monthly or yearly")
		}
		rule, err := recurrence.Encode(input.Recurrent.Frequency, input.Recurrent.Quantity)
		if err != nil {
			return nil, err
		}
		def, err := s.recurringRepo.Create(ctx, &domain.RecurringDefinition{
			UserID:         userID,
			Description:    description,
			Type:           input.Type,
			Amount:         input.Amount,
			Note:           input.Note,
			RecurrenceRule: rule,
			StartDate:      tx.Date,
		})
		if err != nil {
			return nil, err
		}
		result.Recurring = def
		defID := def.ID
		tx.RecurringDefinitionID = &defID
	}

	created, err := s.transactionRepo.Create(ctx, tx)
	if err != nil {
		if result.Recurring != nil {
			if delErr := s.recurringRepo.Delete(ctx, userID, result.Recurring.ID); delErr != nil {
				s.logger.Error().Err(delErr).Str("recurring_id", result.Recurring.ID).Msg("Failed to remove orphaned recurring transaction")
			}
		}
		return nil, err
	}
	result.Transaction = created

	s.publishEvent(userID, websocket.NewEvent(websocket.TransactionCreatedEvent, created))
	if result.Recurring != nil {
		s.publishEvent(userID, websocket.NewEvent(websocket.RecurringCreatedEvent, result.Recurring))
	}
	return result, nil
}

// GetTransaction retrieves one real transaction
func (s *TransactionService) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	if IsVirtualID(id) {
		return nil, domain.ErrTransactionNotFound
	}
	return s.transactionRepo.GetByID(ctx, userID, id)
}

// UpdateTransaction applies a partial update to a real transaction
func (s *TransactionService) UpdateTransaction(ctx context.Context, userID, id string, data *domain.UpdateTransactionData) (*domain.Transaction, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	if IsVirtualID(id) {
		return nil, domain.ErrTransactionNotFound
	}
	if data.Description != nil {
		description, err := validateDescription(*data.Description)
		if err != nil {
			return nil, err
		}
		data.Description = &description
	}
	if data.Type != nil && !data.Type.Valid() {
		return nil, domain.ErrInvalidTransactionType
	}
	if data.Date != nil {
		d := data.Date.UTC()
		data.Date = &d
	}

	updated, err := s.transactionRepo.Update(ctx, userID, id, data)
	if err != nil {
		return nil, err
	}
	s.publishEvent(userID, websocket.NewEvent(websocket.TransactionUpdatedEvent, updated))
	return updated, nil
}

// DeleteTransaction deletes a real transaction
func (s *TransactionService) DeleteTransaction(ctx context.Context, userID, id string) error {
	if userID == "" {
		return domain.ErrUserIDRequired
	}
	if IsVirtualID(id) {
		return domain.ErrTransactionNotFound
	}
	if err := s.transactionRepo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.publishEvent(userID, websocket.NewEvent(websocket.TransactionDeletedEvent, map[string]string{"id": id}))
	return nil
}

// BulkDeleteTransactions deletes up to MaxBulkDeleteIDs transactions and reports per id.
// The id list is validated as a whole before anything is deleted.
func (s *TransactionService) BulkDeleteTransactions(ctx context.Context, userID string, ids []string) (*domain.BulkDeleteResult, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	if err := validateBulkIDs(ids); err != nil {
		return nil, err
	}

	result := &domain.BulkDeleteResult{Success: []string{}, Failed: []domain.BulkDeleteFailure{}}
	for _, id := range ids {
		err := s.DeleteTransaction(ctx, userID, id)
		if err != nil {
			result.Failed = append(result.Failed, domain.BulkDeleteFailure{ID: id, Reason: bulkFailureReason(err)})
			continue
		}
		result.Success = append(result.Success, id)
	}
	return result, nil
}

// ListTransactionsInput holds the feed query
type ListTransactionsInput struct {
	Filters   domain.TransactionFilters
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// ListTransactions returns one page of real and virtual transactions merged.
// Without a month filter occurrences are projected over the next
// VirtualWindowDays; with one, over that calendar month.
func (s *TransactionService) ListTransactions(ctx context.Context, userID string, input ListTransactionsInput) (*domain.TransactionPage, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	order, err := ParseSort(input.SortBy, input.SortOrder)
	if err != nil {
		return nil, err
	}
	if input.Filters.Type != nil && !input.Filters.Type.Valid() {
		return nil, domain.ErrInvalidTransactionType
	}
	page := NormalizePage(input.Page, input.Limit)
	filters := &input.Filters

	realTxs, err := s.transactionRepo.List(ctx, userID, filters)
	if err != nil {
		return nil, err
	}

	window := recurrence.DaysWindow(s.now(), s.windowDays)
	if start, end, ok := filters.MonthRange(); ok {
		window = recurrence.Window{Start: start, End: end}
	}

	virtualTxs, err := s.expandRecurring(ctx, userID, window)
	if err != nil {
		return nil, err
	}

	return MergeTransactions(realTxs, virtualTxs, filters, order, page)
}

// expandRecurring projects every active definition of the user over window.
// Definitions are expanded concurrently; a definition that fails is logged and skipped.
func (s *TransactionService) expandRecurring(ctx context.Context, userID string, window recurrence.Window) ([]*domain.VirtualTransaction, error) {
	defs, err := s.recurringRepo.ListByUser(ctx, userID, &window.Start)
	if err != nil {
		return nil, err
	}

	results := make([][]*domain.VirtualTransaction, len(defs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)

	for i, def := range defs {
		if !def.ActiveIn(window.Start, window.End) {
			continue
		}
		i, def := i, def
		g.Go(func() error {
			virtual, err := s.virtualFor(gctx, def, window)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				s.logger.Warn().
					Err(err).
					Str("recurring_id", def.ID).
					Str("user_id", userID).
					Msg("Skipping recurring transaction on read path")
				return nil
			}
			results[i] = virtual
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*domain.VirtualTransaction
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (s *TransactionService) virtualFor(ctx context.Context, def *domain.RecurringDefinition, window recurrence.Window) ([]*domain.VirtualTransaction, error) {
	occurrences, err := recurrence.Generate(def.RecurrenceRule, def.StartDate, def.EndDate, window)
	if err != nil {
		return nil, err
	}
	if len(occurrences) == 0 {
		return nil, nil
	}
	linked, err := s.transactionRepo.ListByRecurring(ctx, def.UserID, def.ID)
	if err != nil {
		return nil, err
	}
	rec := BuildReconciliationIndex(linked).For(def.ID)
	return SynthesizeVirtual(def, occurrences, rec), nil
}

func validateDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", domain.NewFieldError("description", "is required")
	}
	if len(description) > domain.MaxDescriptionLength {
		return "", domain.NewFieldError("description", "must be at most 255 characters")
	}
	return description, nil
}

func validateBulkIDs(ids []string) error {
	if len(ids) == 0 {
		return domain.ErrEmptyIDs
	}
	if len(ids) > domain.MaxBulkDeleteIDs {
		return domain.ErrTooManyIDs
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return domain.NewFieldError("ids", "must not contain empty values")
		}
	}
	return nil
}

func bulkFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "internal error"
	}
}
