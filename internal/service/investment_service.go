package service

import (
	"context"
	"strings"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/shopspring/decimal"
)

const maxTickerLength = 20

// InvestmentService manages investment positions
type InvestmentService struct {
	investmentRepo domain.InvestmentRepository
}

// NewInvestmentService creates a new InvestmentService
func NewInvestmentService(investmentRepo domain.InvestmentRepository) *InvestmentService {
	return &InvestmentService{investmentRepo: investmentRepo}
}

// InvestmentInput holds the fields of a create or replace request
type InvestmentInput struct {
	Ticker        string
	Quantity      decimal.Decimal
	PurchasePrice decimal.Decimal
	PurchaseDate  time.Time
	Currency      domain.Currency
}

func (in InvestmentInput) validate() (InvestmentInput, error) {
	in.Ticker = strings.ToUpper(strings.TrimSpace(in.Ticker))
	if in.Ticker == "" {
		return in, domain.NewFieldError("ticker", "is required")
	}
	if len(in.Ticker) > maxTickerLength {
		return in, domain.NewFieldError("ticker", "is too long")
	}
	if !in.Quantity.IsPositive() {
		return in, domain.NewFieldError("quantity", "must be positive")
	}
	if in.PurchasePrice.IsNegative() {
		return in, domain.NewFieldError("purchasePrice", "must not be negative")
	}
	if in.PurchaseDate.IsZero() {
		return in, domain.NewFieldError("purchaseDate", "is required")
	}
	if !in.Currency.Valid() {
		return in, domain.NewFieldError("currency", "must be BRL or USD")
	}
	return in, nil
}

// CreateInvestment records a new position
func (s *InvestmentService) CreateInvestment(ctx context.Context, userID string, input InvestmentInput) (*domain.Investment, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	input, err := input.validate()
	if err != nil {
		return nil, err
	}
	return s.investmentRepo.Create(ctx, &domain.Investment{
		UserID:        userID,
		Ticker:        input.Ticker,
		Quantity:      input.Quantity,
		PurchasePrice: input.PurchasePrice,
		PurchaseDate:  input.PurchaseDate.UTC(),
		Currency:      input.Currency,
	})
}

// GetInvestment retrieves one position
func (s *InvestmentService) GetInvestment(ctx context.Context, userID, id string) (*domain.Investment, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	return s.investmentRepo.GetByID(ctx, userID, id)
}

// ListInvestments returns one page of positions
func (s *InvestmentService) ListInvestments(ctx context.Context, userID string, currency *domain.Currency, page, limit int) (*domain.PaginatedInvestments, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	if currency != nil && !currency.Valid() {
		return nil, domain.NewFieldError("currency", "must be BRL or USD")
	}
	p := NormalizePage(page, limit)
	return s.investmentRepo.List(ctx, userID, &domain.InvestmentFilters{Currency: currency, Page: p.Page, Limit: p.Limit})
}

// UpdateInvestment replaces a position's fields
func (s *InvestmentService) UpdateInvestment(ctx context.Context, userID, id string, input InvestmentInput) (*domain.Investment, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	input, err := input.validate()
	if err != nil {
		return nil, err
	}
	return s.investmentRepo.Update(ctx, &domain.Investment{
		ID:            id,
		UserID:        userID,
		Ticker:        input.Ticker,
		Quantity:      input.Quantity,
		PurchasePrice: input.PurchasePrice,
		PurchaseDate:  input.PurchaseDate.UTC(),
		Currency:      input.Currency,
	})
}

// DeleteInvestment removes a position
func (s *InvestmentService) DeleteInvestment(ctx context.Context, userID, id string) error {
	if userID == "" {
		return domain.ErrUserIDRequired
	}
	return s.investmentRepo.Delete(ctx, userID, id)
}
