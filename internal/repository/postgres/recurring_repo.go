package postgres

import (
	"context"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recurringTable = "recurring_transactions"

const selectRecurring = `
	SELECT id, user_id, description, type, amount, note, recurrence_rule,
	       start_date, end_date, last_generated_at, created_at, updated_at
	FROM recurring_transactions`

// RecurringRepository implements domain.RecurringRepository using PostgreSQL
type RecurringRepository struct {
	pool *pgxpool.Pool
}

// NewRecurringRepository creates a new RecurringRepository
func NewRecurringRepository(pool *pgxpool.Pool) *RecurringRepository {
	return &RecurringRepository{pool: pool}
}

// Create creates a new recurring definition
func (r *RecurringRepository) Create(ctx context.Context, def *domain.RecurringDefinition) (*domain.RecurringDefinition, error) {
	amount, err := decimalToPgNumeric(def.Amount)
	if err != nil {
		return nil, domain.NewFieldError("amount", err.Error())
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO recurring_transactions (id, user_id, description, type, amount, note, recurrence_rule, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, user_id, description, type, amount, note, recurrence_rule,
		           start_date, end_date, last_generated_at, created_at, updated_at`,
		uuid.NewString(), def.UserID, def.Description, string(def.Type), amount, textFromPtr(def.Note),
		def.RecurrenceRule, timestamptz(def.StartDate), timestamptzFromPtr(def.EndDate),
	)
	created, err := scanRecurring(row)
	if err != nil {
		return nil, domain.NewStorageError("insert", recurringTable, err)
	}
	return created, nil
}

// GetByID retrieves a definition by its ID
func (r *RecurringRepository) GetByID(ctx context.Context, userID, id string) (*domain.RecurringDefinition, error) {
	row := r.pool.QueryRow(ctx, selectRecurring+` WHERE user_id = $1 AND id = $2`, userID, id)
	def, err := scanRecurring(row)
	if err != nil {
		return nil, classify(err, "select", recurringTable, domain.ErrRecurringNotFound)
	}
	return def, nil
}

// ListByUser retrieves the user's definitions, newest first
func (r *RecurringRepository) ListByUser(ctx context.Context, userID string, activeFrom *time.Time) ([]*domain.RecurringDefinition, error) {
	rows, err := r.pool.Query(ctx,
		selectRecurring+` WHERE user_id = $1 AND ($2::timestamptz IS NULL OR end_date IS NULL OR end_date >= $2)
		 ORDER BY created_at DESC, id`,
		userID, timestamptzFromPtr(activeFrom),
	)
	if err != nil {
		return nil, domain.NewStorageError("select", recurringTable, err)
	}
	return collectRecurring(rows)
}

// ListActive retrieves the definitions of every user that may produce occurrences in [start, end]
func (r *RecurringRepository) ListActive(ctx context.Context, start, end time.Time) ([]*domain.RecurringDefinition, error) {
	rows, err := r.pool.Query(ctx,
		selectRecurring+` WHERE start_date <= $2 AND (end_date IS NULL OR end_date >= $1)
		 ORDER BY user_id, created_at, id`,
		timestamptz(start), timestamptz(end),
	)
	if err != nil {
		return nil, domain.NewStorageError("select", recurringTable, err)
	}
	return collectRecurring(rows)
}

// Update writes every mutable field of the definition
func (r *RecurringRepository) Update(ctx context.Context, def *domain.RecurringDefinition) (*domain.RecurringDefinition, error) {
	amount, err := decimalToPgNumeric(def.Amount)
	if err != nil {
		return nil, domain.NewFieldError("amount", err.Error())
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE recurring_transactions
		 SET description = $3, type = $4, amount = $5, note = $6, recurrence_rule = $7, end_date = $8, updated_at = now()
		 WHERE user_id = $1 AND id = $2
		 RETURNING id, user_id, description, type, amount, note, recurrence_rule,
		           start_date, end_date, last_generated_at, created_at, updated_at`,
		def.UserID, def.ID, def.Description, string(def.Type), amount, textFromPtr(def.Note),
		def.RecurrenceRule, timestamptzFromPtr(def.EndDate),
	)
	updated, err := scanRecurring(row)
	if err != nil {
		return nil, classify(err, "update", recurringTable, domain.ErrRecurringNotFound)
	}
	return updated, nil
}

// DeleteDetaching clears the link of the definition's transactions and deletes
// the definition in one database transaction
func (r *RecurringRepository) DeleteDetaching(ctx context.Context, userID, id string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, domain.NewStorageError("begin", recurringTable, err)
	}
	defer tx.Rollback(ctx)

	detached, err := tx.Exec(ctx,
		`UPDATE transactions SET recurrent_transaction_id = NULL, updated_at = now()
		 WHERE user_id = $1 AND recurrent_transaction_id = $2`,
		userID, id,
	)
	if err != nil {
		return 0, domain.NewStorageError("update", transactionsTable, err)
	}

	deleted, err := tx.Exec(ctx, `DELETE FROM recurring_transactions WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return 0, domain.NewStorageError("delete", recurringTable, err)
	}
	if deleted.RowsAffected() == 0 {
		return 0, domain.ErrRecurringNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, domain.NewStorageError("commit", recurringTable, err)
	}
	return detached.RowsAffected(), nil
}

// Delete removes a definition that has no linked transactions
func (r *RecurringRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM recurring_transactions WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return domain.NewStorageError("delete", recurringTable, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecurringNotFound
	}
	return nil
}

// TouchLastGenerated records the advisory generation watermark
func (r *RecurringRepository) TouchLastGenerated(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE recurring_transactions SET last_generated_at = $2 WHERE id = $1`,
		id, timestamptz(at),
	)
	return domain.NewStorageError("update", recurringTable, err)
}

func collectRecurring(rows pgx.Rows) ([]*domain.RecurringDefinition, error) {
	defer rows.Close()

	var out []*domain.RecurringDefinition
	for rows.Next() {
		def, err := scanRecurring(rows)
		if err != nil {
			return nil, domain.NewStorageError("scan", recurringTable, err)
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("select", recurringTable, err)
	}
	return out, nil
}

func scanRecurring(row rowScanner) (*domain.RecurringDefinition, error) {
	var (
		def                           domain.RecurringDefinition
		txType                        string
		amount                        pgtype.Numeric
		note                          pgtype.Text
		startDate, endDate, generated pgtype.Timestamptz
		createdAt, updatedAt          pgtype.Timestamptz
	)
	err := row.Scan(
		&def.ID, &def.UserID, &def.Description, &txType, &amount, &note, &def.RecurrenceRule,
		&startDate, &endDate, &generated, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	def.Type = domain.TransactionType(txType)
	def.Amount = pgNumericToDecimal(amount)
	def.Note = ptrFromText(note)
	def.StartDate = startDate.Time.UTC()
	def.EndDate = ptrFromTimestamptz(endDate)
	def.LastGeneratedAt = ptrFromTimestamptz(generated)
	def.CreatedAt = createdAt.Time
	def.UpdatedAt = updatedAt.Time
	return &def, nil
}
