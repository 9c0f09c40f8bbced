package service

import (
	"context"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/recurrence"
	"github.com/dafibh/fortuna/ledger-backend/internal/websocket"
	"github.com/rs/zerolog/log"
)

// RecurringService manages recurring transaction definitions
type RecurringService struct {
	recurringRepo  domain.RecurringRepository
	eventPublisher websocket.EventPublisher
}

// NewRecurringService creates a new RecurringService
func NewRecurringService(recurringRepo domain.RecurringRepository) *RecurringService {
	return &RecurringService{recurringRepo: recurringRepo}
}

// SetEventPublisher sets the WebSocket event publisher
func (s *RecurringService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *RecurringService) publishEvent(userID string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(userID, event)
	}
}

// ListRecurring lists definitions; with activeFrom set, ended definitions are left out
func (s *RecurringService) ListRecurring(ctx context.Context, userID string, activeFrom *time.Time) ([]*domain.RecurringDefinition, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	defs, err := s.recurringRepo.ListByUser(ctx, userID, activeFrom)
	if err != nil {
		return nil, err
	}
	if defs == nil {
		defs = []*domain.RecurringDefinition{}
	}
	return defs, nil
}

// GetRecurring retrieves one definition
func (s *RecurringService) GetRecurring(ctx context.Context, userID, id string) (*domain.RecurringDefinition, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	return s.recurringRepo.GetByID(ctx, userID, id)
}

// UpdateRecurring updates definition fields. The start anchor is fixed for
// the life of the definition.
func (s *RecurringService) UpdateRecurring(ctx context.Context, userID, id string, data *domain.UpdateRecurringData) (*domain.RecurringDefinition, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	def, err := s.recurringRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	updated := *def

	if data.Description != nil {
		description, err := validateDescription(*data.Description)
		if err != nil {
			return nil, err
		}
		updated.Description = description
	}
	if data.Type != nil {
		if !data.Type.Valid() {
			return nil, domain.ErrInvalidTransactionType
		}
		updated.Type = *data.Type
	}
	if data.Amount != nil {
		updated.Amount = *data.Amount
	}
	if data.Note != nil {
		updated.Note = data.Note
	}
	if data.RecurrenceRule != nil {
		rule, err := recurrence.Decode(*data.RecurrenceRule)
		if err != nil {
			return nil, err
		}
		updated.RecurrenceRule = rule.String()
	}
	switch {
	case data.ClearEndDate:
		updated.EndDate = nil
	case data.EndDate != nil:
		end := data.EndDate.UTC()
		if end.Before(updated.StartDate) {
			return nil, domain.NewFieldError("endDate", "must not be before startDate")
		}
		updated.EndDate = &end
	}

	saved, err := s.recurringRepo.Update(ctx, &updated)
	if err != nil {
		return nil, err
	}
	s.publishEvent(userID, websocket.NewEvent(websocket.RecurringUpdatedEvent, saved))
	return saved, nil
}

// DeleteRecurring detaches the definition's real transactions, then deletes
// the definition. Materialized history is never removed.
func (s *RecurringService) DeleteRecurring(ctx context.Context, userID, id string) (*domain.DeleteRecurringResult, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	def, err := s.recurringRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	detached, err := s.recurringRepo.DeleteDetaching(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("recurring_id", id).
		Int64("detached", detached).
		Msg("Recurring transaction deleted")

	s.publishEvent(userID, websocket.NewEvent(websocket.RecurringDeletedEvent, map[string]string{"id": id}))
	return &domain.DeleteRecurringResult{Definition: def, Detached: detached}, nil
}

// BulkDeleteRecurring deletes up to MaxBulkDeleteIDs definitions. The whole
// id list is validated before the first deletion.
func (s *RecurringService) BulkDeleteRecurring(ctx context.Context, userID string, ids []string) (*domain.BulkDeleteResult, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	if err := validateBulkIDs(ids); err != nil {
		return nil, err
	}

	result := &domain.BulkDeleteResult{Success: []string{}, Failed: []domain.BulkDeleteFailure{}}
	for _, id := range ids {
		if _, err := s.DeleteRecurring(ctx, userID, id); err != nil {
			result.Failed = append(result.Failed, domain.BulkDeleteFailure{ID: id, Reason: bulkFailureReason(err)})
			continue
		}
		result.Success = append(result.Success, id)
	}
	return result, nil
}
