package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionsTable = "transactions"

const selectTransaction = `
	SELECT t.id, t.user_id, t.description, t.date, t.amount, t.type, t.note,
	       t.category_id, t.tag_id, t.payment_status_id, t.recurrent_transaction_id,
	       t.created_at, t.updated_at,
	       c.description, tg.description, ps.description
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id
	LEFT JOIN tags tg ON tg.id = t.tag_id
	LEFT JOIN payment_status ps ON ps.id = t.payment_status_id`

// TransactionRepository implements domain.TransactionRepository using PostgreSQL
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create creates a new transaction
func (r *TransactionRepository) Create(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	id, err := insertTransaction(ctx, r.pool, transaction)
	if err != nil {
		return nil, err
	}
	return getTransaction(ctx, r.pool, transaction.UserID, id)
}

// CreateBatch inserts all transactions in one database transaction
func (r *TransactionRepository) CreateBatch(ctx context.Context, transactions []*domain.Transaction) ([]*domain.Transaction, error) {
	if len(transactions) == 0 {
		return []*domain.Transaction{}, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, domain.NewStorageError("begin", transactionsTable, err)
	}
	defer tx.Rollback(ctx)

	created := make([]*domain.Transaction, 0, len(transactions))
	for _, t := range transactions {
		id, err := insertTransaction(ctx, tx, t)
		if err != nil {
			return nil, err
		}
		row, err := getTransaction(ctx, tx, t.UserID, id)
		if err != nil {
			return nil, err
		}
		created = append(created, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.NewStorageError("commit", transactionsTable, err)
	}
	return created, nil
}

func insertTransaction(ctx context.Context, q querier, t *domain.Transaction) (string, error) {
	amount, err := decimalToPgNumeric(t.Amount)
	if err != nil {
		return "", domain.NewFieldError("amount", err.Error())
	}

	id := uuid.NewString()
	_, err = q.Exec(ctx,
		`INSERT INTO transactions (id, user_id, description, date, amount, type, note,
		 category_id, tag_id, payment_status_id, recurrent_transaction_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, t.UserID, t.Description, timestamptz(t.Date), amount, string(t.Type), textFromPtr(t.Note),
		textFromPtr(t.CategoryID), textFromPtr(t.TagID), textFromPtr(t.PaymentStatusID), textFromPtr(t.RecurringDefinitionID),
	)
	if err != nil {
		return "", domain.NewStorageError("insert", transactionsTable, err)
	}
	return id, nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	return getTransaction(ctx, r.pool, userID, id)
}

func getTransaction(ctx context.Context, q querier, userID, id string) (*domain.Transaction, error) {
	row := q.QueryRow(ctx, selectTransaction+` WHERE t.user_id = $1 AND t.id = $2`, userID, id)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, classify(err, "select", transactionsTable, domain.ErrTransactionNotFound)
	}
	return t, nil
}

// List retrieves the user's transactions matching filters, newest first
func (r *TransactionRepository) List(ctx context.Context, userID string, filters *domain.TransactionFilters) ([]*domain.Transaction, error) {
	where, args := transactionWhere(userID, filters)
	rows, err := r.pool.Query(ctx, selectTransaction+where+` ORDER BY t.date DESC, t.created_at DESC`, args...)
	if err != nil {
		return nil, domain.NewStorageError("select", transactionsTable, err)
	}
	return collectTransactions(rows)
}

func transactionWhere(userID string, f *domain.TransactionFilters) (string, []any) {
	conds := []string{"t.user_id = $1"}
	args := []any{userID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f != nil {
		if f.Type != nil {
			add("t.type = $%d", string(*f.Type))
		}
		if f.CategoryID != nil {
			add("t.category_id = $%d", *f.CategoryID)
		}
		if f.TagID != nil {
			add("t.tag_id = $%d", *f.TagID)
		}
		if f.PaymentStatusID != nil {
			add("t.payment_status_id = $%d", *f.PaymentStatusID)
		}
		if f.Status != nil {
			add("lower(ps.description) = lower($%d)", *f.Status)
		}
		if start, end, ok := f.MonthRange(); ok {
			add("t.date >= $%d", start)
			add("t.date <= $%d", end)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListByRecurring retrieves the transactions linked to a recurring definition, oldest first
func (r *TransactionRepository) ListByRecurring(ctx context.Context, userID, recurringID string) ([]*domain.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		selectTransaction+` WHERE t.user_id = $1 AND t.recurrent_transaction_id = $2 ORDER BY t.date ASC, t.created_at ASC`,
		userID, recurringID,
	)
	if err != nil {
		return nil, domain.NewStorageError("select", transactionsTable, err)
	}
	return collectTransactions(rows)
}

// Update applies a partial update; nil fields keep their stored value
func (r *TransactionRepository) Update(ctx context.Context, userID, id string, data *domain.UpdateTransactionData) (*domain.Transaction, error) {
	sets := []string{"updated_at = now()"}
	args := []any{userID, id}
	set := func(column string, arg any) {
		args = append(args, arg)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if data.Description != nil {
		set("description", *data.Description)
	}
	if data.Date != nil {
		set("date", timestamptz(*data.Date))
	}
	if data.Amount != nil {
		amount, err := decimalToPgNumeric(*data.Amount)
		if err != nil {
			return nil, domain.NewFieldError("amount", err.Error())
		}
		set("amount", amount)
	}
	if data.Type != nil {
		set("type", string(*data.Type))
	}
	if data.Note != nil {
		set("note", *data.Note)
	}
	if data.CategoryID != nil {
		set("category_id", *data.CategoryID)
	}
	if data.TagID != nil {
		set("tag_id", *data.TagID)
	}
	if data.PaymentStatusID != nil {
		set("payment_status_id", *data.PaymentStatusID)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE user_id = $1 AND id = $2`,
		args...,
	)
	if err != nil {
		return nil, domain.NewStorageError("update", transactionsTable, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrTransactionNotFound
	}
	return r.GetByID(ctx, userID, id)
}

// Delete removes a transaction
func (r *TransactionRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return domain.NewStorageError("delete", transactionsTable, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

var labelColumns = map[domain.LabelKind]string{
	domain.LabelKindCategory:      "category_id",
	domain.LabelKindTag:           "tag_id",
	domain.LabelKindPaymentStatus: "payment_status_id",
}

// CountByLabel counts the user's transactions referencing a label
func (r *TransactionRepository) CountByLabel(ctx context.Context, userID string, kind domain.LabelKind, labelID string) (int64, error) {
	column, ok := labelColumns[kind]
	if !ok {
		return 0, fmt.Errorf("%w: unknown label kind %q", domain.ErrInvalidInput, kind)
	}
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM transactions WHERE user_id = $1 AND `+column+` = $2`,
		userID, labelID,
	).Scan(&n)
	if err != nil {
		return 0, domain.NewStorageError("count", transactionsTable, err)
	}
	return n, nil
}

func collectTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.NewStorageError("scan", transactionsTable, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("select", transactionsTable, err)
	}
	return out, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t                                 domain.Transaction
		date, createdAt, updatedAt        pgtype.Timestamptz
		amount                            pgtype.Numeric
		txType                            string
		note, categoryID, tagID, statusID pgtype.Text
		recurringID                       pgtype.Text
		categoryDesc, tagDesc, statusDesc pgtype.Text
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.Description, &date, &amount, &txType, &note,
		&categoryID, &tagID, &statusID, &recurringID,
		&createdAt, &updatedAt,
		&categoryDesc, &tagDesc, &statusDesc,
	)
	if err != nil {
		return nil, err
	}

	t.Date = date.Time.UTC()
	t.Amount = pgNumericToDecimal(amount)
	t.Type = domain.TransactionType(txType)
	t.Note = ptrFromText(note)
	t.CategoryID = ptrFromText(categoryID)
	t.TagID = ptrFromText(tagID)
	t.PaymentStatusID = ptrFromText(statusID)
	t.RecurringDefinitionID = ptrFromText(recurringID)
	t.CreatedAt = createdAt.Time
	t.UpdatedAt = updatedAt.Time
	t.Category = joinedLabel(t.UserID, t.CategoryID, categoryDesc)
	t.Tag = joinedLabel(t.UserID, t.TagID, tagDesc)
	t.PaymentStatus = joinedLabel(t.UserID, t.PaymentStatusID, statusDesc)
	return &t, nil
}

func joinedLabel(userID string, id *string, description pgtype.Text) *domain.Label {
	if id == nil || !description.Valid {
		return nil
	}
	return &domain.Label{ID: *id, UserID: userID, Description: description.String}
}

