package domain

import (
	"context"
	"time"
)

// LabelKind distinguishes the single-table label entities a transaction can reference
type LabelKind string

const (
	LabelKindCategory      LabelKind = "category"
	LabelKindTag           LabelKind = "tag"
	LabelKindPaymentStatus LabelKind = "payment_status"
)

// Label is a category, tag or payment status owned by a user
type Label struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type LabelRepository interface {
	Create(ctx context.Context, kind LabelKind, label *Label) (*Label, error)
	GetByID(ctx context.Context, kind LabelKind, userID, id string) (*Label, error)
	ListByUser(ctx context.Context, kind LabelKind, userID string) ([]*Label, error)
	Update(ctx context.Context, kind LabelKind, label *Label) (*Label, error)
	Delete(ctx context.Context, kind LabelKind, userID, id string) error
}
