package handler

import (
	"net/http"
	"strings"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// InvestmentHandler handles investment HTTP requests
type InvestmentHandler struct {
	investmentService *service.InvestmentService
}

// NewInvestmentHandler creates a new InvestmentHandler
func NewInvestmentHandler(investmentService *service.InvestmentService) *InvestmentHandler {
	return &InvestmentHandler{investmentService: investmentService}
}

// InvestmentRequest is the body for creating or replacing an investment
type InvestmentRequest struct {
	Ticker        string          `json:"ticker" example:"PETR4"`
	Quantity      decimal.Decimal `json:"quantity" swaggertype:"string" example:"10"`
	PurchasePrice decimal.Decimal `json:"purchasePrice" swaggertype:"string" example:"36.20"`
	PurchaseDate  string          `json:"purchaseDate" example:"2025-01-15"`
	Currency      string          `json:"currency" example:"BRL"`
}

func (r InvestmentRequest) toInput() (service.InvestmentInput, []ValidationError) {
	date, err := parseDate(r.PurchaseDate)
	if err != nil {
		return service.InvestmentInput{}, []ValidationError{
			{Field: "purchaseDate", Message: "Must be in YYYY-MM-DD format"},
		}
	}
	return service.InvestmentInput{
		Ticker:        r.Ticker,
		Quantity:      r.Quantity,
		PurchasePrice: r.PurchasePrice,
		PurchaseDate:  date,
		Currency:      domain.Currency(strings.ToUpper(strings.TrimSpace(r.Currency))),
	}, nil
}

// CreateInvestment godoc
// @Summary Create an investment
// @Tags investments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body InvestmentRequest true "Investment"
// @Success 201 {object} domain.Investment
// @Failure 400 {object} ProblemDetails
// @Router /investments [post]
func (h *InvestmentHandler) CreateInvestment(c echo.Context) error {
	userID := middleware.GetUserID(c)

	var req InvestmentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	input, errs := req.toInput()
	if len(errs) > 0 {
		return NewValidationError(c, "Validation failed", errs)
	}

	investment, err := h.investmentService.CreateInvestment(c.Request().Context(), userID, input)
	if err != nil {
		return handleServiceError(c, err)
	}

	log.Info().Str("user_id", userID).Str("investment_id", investment.ID).Str("ticker", investment.Ticker).Msg("Investment created")
	return c.JSON(http.StatusCreated, investment)
}

// GetInvestments godoc
// @Summary List investments
// @Tags investments
// @Produce json
// @Security BearerAuth
// @Param currency query string false "BRL or USD"
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Page size (default 10, max 100)"
// @Success 200 {object} domain.PaginatedInvestments
// @Failure 400 {object} ProblemDetails
// @Router /investments [get]
func (h *InvestmentHandler) GetInvestments(c echo.Context) error {
	var currency *domain.Currency
	if raw := optionalQuery(c, "currency"); raw != nil {
		cur := domain.Currency(strings.ToUpper(*raw))
		if !cur.Valid() {
			return NewValidationError(c, "Invalid currency", []ValidationError{
				{Field: "currency", Message: "Must be BRL or USD"},
			})
		}
		currency = &cur
	}

	page, err := queryInt(c, "page")
	if err != nil {
		return NewValidationError(c, "Invalid page", []ValidationError{{Field: "page", Message: "Must be a number"}})
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return NewValidationError(c, "Invalid limit", []ValidationError{{Field: "limit", Message: "Must be a number"}})
	}

	result, err := h.investmentService.ListInvestments(c.Request().Context(), middleware.GetUserID(c), currency, page, limit)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetInvestment godoc
// @Summary Get an investment
// @Tags investments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Investment ID"
// @Success 200 {object} domain.Investment
// @Failure 404 {object} ProblemDetails
// @Router /investments/{id} [get]
func (h *InvestmentHandler) GetInvestment(c echo.Context) error {
	investment, err := h.investmentService.GetInvestment(c.Request().Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, investment)
}

// UpdateInvestment godoc
// @Summary Replace an investment
// @Tags investments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Investment ID"
// @Param request body InvestmentRequest true "Investment"
// @Success 200 {object} domain.Investment
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /investments/{id} [put]
func (h *InvestmentHandler) UpdateInvestment(c echo.Context) error {
	var req InvestmentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	input, errs := req.toInput()
	if len(errs) > 0 {
		return NewValidationError(c, "Validation failed", errs)
	}

	investment, err := h.investmentService.UpdateInvestment(c.Request().Context(), middleware.GetUserID(c), c.Param("id"), input)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, investment)
}

// DeleteInvestment godoc
// @Summary Delete an investment
// @Tags investments
// @Security BearerAuth
// @Param id path string true "Investment ID"
// @Success 204
// @Failure 404 {object} ProblemDetails
// @Router /investments/{id} [delete]
func (h *InvestmentHandler) DeleteInvestment(c echo.Context) error {
	userID := middleware.GetUserID(c)
	id := c.Param("id")

	if err := h.investmentService.DeleteInvestment(c.Request().Context(), userID, id); err != nil {
		return handleServiceError(c, err)
	}

	log.Info().Str("user_id", userID).Str("investment_id", id).Msg("Investment deleted")
	return c.NoContent(http.StatusNoContent)
}
