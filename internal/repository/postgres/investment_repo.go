package postgres

import (
	"context"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const investmentsTable = "investments"

const investmentColumns = `id, user_id, ticker, quantity, purchase_price, purchase_date, currency, created_at, updated_at`

// InvestmentRepository implements domain.InvestmentRepository using PostgreSQL
type InvestmentRepository struct {
	pool *pgxpool.Pool
}

// NewInvestmentRepository creates a new InvestmentRepository
func NewInvestmentRepository(pool *pgxpool.Pool) *InvestmentRepository {
	return &InvestmentRepository{pool: pool}
}

// Create creates a new investment
func (r *InvestmentRepository) Create(ctx context.Context, inv *domain.Investment) (*domain.Investment, error) {
	quantity, price, err := investmentNumerics(inv)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO investments (id, user_id, ticker, quantity, purchase_price, purchase_date, currency)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+investmentColumns,
		uuid.NewString(), inv.UserID, inv.Ticker, quantity, price, timestamptz(inv.PurchaseDate), string(inv.Currency),
	)
	created, err := scanInvestment(row)
	if err != nil {
		return nil, domain.NewStorageError("insert", investmentsTable, err)
	}
	return created, nil
}

// GetByID retrieves an investment by its ID
func (r *InvestmentRepository) GetByID(ctx context.Context, userID, id string) (*domain.Investment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	inv, err := scanInvestment(row)
	if err != nil {
		return nil, classify(err, "select", investmentsTable, domain.ErrInvestmentNotFound)
	}
	return inv, nil
}

// List retrieves a page of the user's investments, newest purchase first
func (r *InvestmentRepository) List(ctx context.Context, userID string, filters *domain.InvestmentFilters) (*domain.PaginatedInvestments, error) {
	var currency pgtype.Text
	if filters.Currency != nil {
		currency = pgtype.Text{String: string(*filters.Currency), Valid: true}
	}

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM investments WHERE user_id = $1 AND ($2::text IS NULL OR currency = $2)`,
		userID, currency,
	).Scan(&total)
	if err != nil {
		return nil, domain.NewStorageError("count", investmentsTable, err)
	}

	offset, _ := domain.PageBounds(total, filters.Page, filters.Limit)
	rows, err := r.pool.Query(ctx,
		`SELECT `+investmentColumns+` FROM investments
		 WHERE user_id = $1 AND ($2::text IS NULL OR currency = $2)
		 ORDER BY purchase_date DESC, created_at DESC
		 LIMIT $3 OFFSET $4`,
		userID, currency, filters.Limit, offset,
	)
	if err != nil {
		return nil, domain.NewStorageError("select", investmentsTable, err)
	}
	defer rows.Close()

	data := []*domain.Investment{}
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, domain.NewStorageError("scan", investmentsTable, err)
		}
		data = append(data, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("select", investmentsTable, err)
	}

	return &domain.PaginatedInvestments{
		Data:       data,
		Pagination: domain.NewPagination(total, filters.Page, filters.Limit),
	}, nil
}

// Update replaces an investment's fields
func (r *InvestmentRepository) Update(ctx context.Context, inv *domain.Investment) (*domain.Investment, error) {
	quantity, price, err := investmentNumerics(inv)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE investments
		 SET ticker = $3, quantity = $4, purchase_price = $5, purchase_date = $6, currency = $7, updated_at = now()
		 WHERE user_id = $1 AND id = $2
		 RETURNING `+investmentColumns,
		inv.UserID, inv.ID, inv.Ticker, quantity, price, timestamptz(inv.PurchaseDate), string(inv.Currency),
	)
	updated, err := scanInvestment(row)
	if err != nil {
		return nil, classify(err, "update", investmentsTable, domain.ErrInvestmentNotFound)
	}
	return updated, nil
}

// Delete removes an investment
func (r *InvestmentRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM investments WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return domain.NewStorageError("delete", investmentsTable, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvestmentNotFound
	}
	return nil
}

func investmentNumerics(inv *domain.Investment) (pgtype.Numeric, pgtype.Numeric, error) {
	quantity, err := decimalToPgNumeric(inv.Quantity)
	if err != nil {
		return pgtype.Numeric{}, pgtype.Numeric{}, domain.NewFieldError("quantity", err.Error())
	}
	price, err := decimalToPgNumeric(inv.PurchasePrice)
	if err != nil {
		return pgtype.Numeric{}, pgtype.Numeric{}, domain.NewFieldError("purchasePrice", err.Error())
	}
	return quantity, price, nil
}

func scanInvestment(row rowScanner) (*domain.Investment, error) {
	var (
		inv                  domain.Investment
		quantity, price      pgtype.Numeric
		purchaseDate         pgtype.Timestamptz
		currency             string
		createdAt, updatedAt pgtype.Timestamptz
	)
	err := row.Scan(&inv.ID, &inv.UserID, &inv.Ticker, &quantity, &price, &purchaseDate, &currency, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	inv.Quantity = pgNumericToDecimal(quantity)
	inv.PurchasePrice = pgNumericToDecimal(price)
	inv.PurchaseDate = purchaseDate.Time.UTC()
	inv.Currency = domain.Currency(currency)
	inv.CreatedAt = createdAt.Time
	inv.UpdatedAt = updatedAt.Time
	return &inv, nil
}
