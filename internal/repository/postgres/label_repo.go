package postgres

import (
	"context"
	"fmt"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// labelTables maps each label kind to its table. The three tables share one shape.
var labelTables = map[domain.LabelKind]string{
	domain.LabelKindCategory:      "categories",
	domain.LabelKindTag:           "tags",
	domain.LabelKindPaymentStatus: "payment_status",
}

// LabelRepository implements domain.LabelRepository using PostgreSQL
type LabelRepository struct {
	pool *pgxpool.Pool
}

// NewLabelRepository creates a new LabelRepository
func NewLabelRepository(pool *pgxpool.Pool) *LabelRepository {
	return &LabelRepository{pool: pool}
}

func labelTable(kind domain.LabelKind) (string, error) {
	table, ok := labelTables[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown label kind %q", domain.ErrInvalidInput, kind)
	}
	return table, nil
}

// Create creates a new label
func (r *LabelRepository) Create(ctx context.Context, kind domain.LabelKind, label *domain.Label) (*domain.Label, error) {
	table, err := labelTable(kind)
	if err != nil {
		return nil, err
	}
	created := domain.Label{}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO `+table+` (id, user_id, description) VALUES ($1, $2, $3)
		 RETURNING id, user_id, description, created_at, updated_at`,
		uuid.NewString(), label.UserID, label.Description,
	).Scan(&created.ID, &created.UserID, &created.Description, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, domain.NewStorageError("insert", table, err)
	}
	return &created, nil
}

// GetByID retrieves a label by its ID
func (r *LabelRepository) GetByID(ctx context.Context, kind domain.LabelKind, userID, id string) (*domain.Label, error) {
	table, err := labelTable(kind)
	if err != nil {
		return nil, err
	}
	l := domain.Label{}
	err = r.pool.QueryRow(ctx,
		`SELECT id, user_id, description, created_at, updated_at FROM `+table+` WHERE user_id = $1 AND id = $2`,
		userID, id,
	).Scan(&l.ID, &l.UserID, &l.Description, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, classify(err, "select", table, domain.ErrLabelNotFound)
	}
	return &l, nil
}

// ListByUser retrieves the user's labels ordered by description
func (r *LabelRepository) ListByUser(ctx context.Context, kind domain.LabelKind, userID string) ([]*domain.Label, error) {
	table, err := labelTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, description, created_at, updated_at FROM `+table+` WHERE user_id = $1 ORDER BY description`,
		userID,
	)
	if err != nil {
		return nil, domain.NewStorageError("select", table, err)
	}
	defer rows.Close()

	labels := []*domain.Label{}
	for rows.Next() {
		l := &domain.Label{}
		if err := rows.Scan(&l.ID, &l.UserID, &l.Description, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, domain.NewStorageError("scan", table, err)
		}
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("select", table, err)
	}
	return labels, nil
}

// Update renames a label
func (r *LabelRepository) Update(ctx context.Context, kind domain.LabelKind, label *domain.Label) (*domain.Label, error) {
	table, err := labelTable(kind)
	if err != nil {
		return nil, err
	}
	updated := domain.Label{}
	err = r.pool.QueryRow(ctx,
		`UPDATE `+table+` SET description = $3, updated_at = now() WHERE user_id = $1 AND id = $2
		 RETURNING id, user_id, description, created_at, updated_at`,
		label.UserID, label.ID, label.Description,
	).Scan(&updated.ID, &updated.UserID, &updated.Description, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		return nil, classify(err, "update", table, domain.ErrLabelNotFound)
	}
	return &updated, nil
}

// Delete removes a label
func (r *LabelRepository) Delete(ctx context.Context, kind domain.LabelKind, userID, id string) error {
	table, err := labelTable(kind)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM `+table+` WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return domain.NewStorageError("delete", table, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLabelNotFound
	}
	return nil
}
