package service

import (
	"context"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
)

// LabelService manages categories, tags and payment statuses
type LabelService struct {
	labelRepo       domain.LabelRepository
	transactionRepo domain.TransactionRepository
}

// NewLabelService creates a new LabelService
func NewLabelService(labelRepo domain.LabelRepository, transactionRepo domain.TransactionRepository) *LabelService {
	return &LabelService{
		labelRepo:       labelRepo,
		transactionRepo: transactionRepo,
	}
}

// CreateLabel creates a label of the given kind
func (s *LabelService) CreateLabel(ctx context.Context, kind domain.LabelKind, userID, description string) (*domain.Label, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	description, err := validateDescription(description)
	if err != nil {
		return nil, err
	}
	return s.labelRepo.Create(ctx, kind, &domain.Label{UserID: userID, Description: description})
}

// GetLabel retrieves one label
func (s *LabelService) GetLabel(ctx context.Context, kind domain.LabelKind, userID, id string) (*domain.Label, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	return s.labelRepo.GetByID(ctx, kind, userID, id)
}

// ListLabels lists the user's labels of a kind
func (s *LabelService) ListLabels(ctx context.Context, kind domain.LabelKind, userID string) ([]*domain.Label, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	return s.labelRepo.ListByUser(ctx, kind, userID)
}

// UpdateLabel renames a label
func (s *LabelService) UpdateLabel(ctx context.Context, kind domain.LabelKind, userID, id, description string) (*domain.Label, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	description, err := validateDescription(description)
	if err != nil {
		return nil, err
	}
	return s.labelRepo.Update(ctx, kind, &domain.Label{ID: id, UserID: userID, Description: description})
}

// DeleteLabel deletes a label no transaction references
func (s *LabelService) DeleteLabel(ctx context.Context, kind domain.LabelKind, userID, id string) error {
	if userID == "" {
		return domain.ErrUserIDRequired
	}
	if _, err := s.labelRepo.GetByID(ctx, kind, userID, id); err != nil {
		return err
	}
	n, err := s.transactionRepo.CountByLabel(ctx, userID, kind, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrLabelHasTransactions
	}
	return s.labelRepo.Delete(ctx, kind, userID, id)
}
