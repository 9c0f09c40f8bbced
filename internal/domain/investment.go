package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyBRL Currency = "BRL"
	CurrencyUSD Currency = "USD"
)

// Valid reports whether c is a supported currency
func (c Currency) Valid() bool {
	return c == CurrencyBRL || c == CurrencyUSD
}

type Investment struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Ticker        string          `json:"ticker"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	PurchaseDate  time.Time       `json:"purchaseDate"`
	Currency      Currency        `json:"currency"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type InvestmentFilters struct {
	Currency *Currency
	Page     int
	Limit    int
}

type PaginatedInvestments struct {
	Data       []*Investment `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

type InvestmentRepository interface {
	Create(ctx context.Context, investment *Investment) (*Investment, error)
	GetByID(ctx context.Context, userID, id string) (*Investment, error)
	List(ctx context.Context, userID string, filters *InvestmentFilters) (*PaginatedInvestments, error)
	Update(ctx context.Context, investment *Investment) (*Investment, error)
	Delete(ctx context.Context, userID, id string) error
}
