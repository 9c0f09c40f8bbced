package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RecurringHandler handles recurring transaction HTTP requests
type RecurringHandler struct {
	recurringService *service.RecurringService
	materializer     *service.Materializer
}

// NewRecurringHandler creates a new RecurringHandler
func NewRecurringHandler(recurringService *service.RecurringService, materializer *service.Materializer) *RecurringHandler {
	return &RecurringHandler{
		recurringService: recurringService,
		materializer:     materializer,
	}
}

// UpdateRecurringRequest represents a partial recurring definition update.
// Sending "endDate": "" removes the end date.
type UpdateRecurringRequest struct {
	Description    *string          `json:"description,omitempty"`
	Type           *string          `json:"type,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty" swaggertype:"string"`
	RecurrenceRule *string          `json:"recurrenceRule,omitempty" example:"FREQ=MONTHLY;COUNT=12"`
	EndDate        *string          `json:"endDate,omitempty"`
	Note           *string          `json:"note,omitempty"`
}

// MaterializeRequest selects the month to materialize; both fields default to the current UTC month
type MaterializeRequest struct {
	Month int `json:"month" query:"month" example:"3"`
	Year  int `json:"year" query:"year" example:"2025"`
}

// GetRecurringTransactions godoc
// @Summary List recurring transactions
// @Tags recurring-transactions
// @Produce json
// @Security BearerAuth
// @Param startDate query string false "Only definitions still active on or after this date"
// @Success 200 {array} domain.RecurringDefinition
// @Failure 401 {object} ProblemDetails
// @Router /recurring-transactions [get]
func (h *RecurringHandler) GetRecurringTransactions(c echo.Context) error {
	var activeFrom *time.Time
	if raw := optionalQuery(c, "startDate"); raw != nil {
		parsed, err := parseDate(*raw)
		if err != nil {
			return NewValidationError(c, "Invalid startDate", []ValidationError{
				{Field: "startDate", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		activeFrom = &parsed
	}

	defs, err := h.recurringService.ListRecurring(c.Request().Context(), middleware.GetUserID(c), activeFrom)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, defs)
}

// GetRecurringTransaction godoc
// @Summary Get a recurring transaction
// @Tags recurring-transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Recurring transaction ID"
// @Success 200 {object} domain.RecurringDefinition
// @Failure 404 {object} ProblemDetails
// @Router /recurring-transactions/{id} [get]
func (h *RecurringHandler) GetRecurringTransaction(c echo.Context) error {
	def, err := h.recurringService.GetRecurring(c.Request().Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, def)
}

// UpdateRecurringTransaction godoc
// @Summary Update a recurring transaction
// @Description The start date is fixed; a new rule applies to future occurrences only
// @Tags recurring-transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Recurring transaction ID"
// @Param request body UpdateRecurringRequest true "Fields to update"
// @Success 200 {object} domain.RecurringDefinition
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /recurring-transactions/{id} [patch]
func (h *RecurringHandler) UpdateRecurringTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	id := c.Param("id")

	var req UpdateRecurringRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	data := &domain.UpdateRecurringData{
		Description:    req.Description,
		Amount:         req.Amount,
		RecurrenceRule: req.RecurrenceRule,
		Note:           req.Note,
	}
	if req.Type != nil {
		txType := domain.TransactionType(strings.ToLower(*req.Type))
		data.Type = &txType
	}
	if req.EndDate != nil {
		if *req.EndDate == "" {
			data.ClearEndDate = true
		} else {
			end, err := parseDate(*req.EndDate)
			if err != nil {
				return NewValidationError(c, "Validation failed", []ValidationError{
					{Field: "endDate", Message: "Must be in YYYY-MM-DD format"},
				})
			}
			data.EndDate = &end
		}
	}

	updated, err := h.recurringService.UpdateRecurring(c.Request().Context(), userID, id, data)
	if err != nil {
		return handleServiceError(c, err)
	}

	log.Info().Str("user_id", userID).Str("recurring_id", id).Msg("Recurring transaction updated")
	return c.JSON(http.StatusOK, updated)
}

// DeleteRecurringTransaction godoc
// @Summary Delete a recurring transaction
// @Description Linked transactions are kept and detached from the definition
// @Tags recurring-transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Recurring transaction ID"
// @Success 200 {object} domain.DeleteRecurringResult
// @Failure 404 {object} ProblemDetails
// @Router /recurring-transactions/{id} [delete]
func (h *RecurringHandler) DeleteRecurringTransaction(c echo.Context) error {
	result, err := h.recurringService.DeleteRecurring(c.Request().Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// BulkDeleteRecurringTransactions godoc
// @Summary Delete several recurring transactions
// @Tags recurring-transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BulkDeleteRequest true "Recurring transaction IDs"
// @Success 200 {object} domain.BulkDeleteResult
// @Failure 400 {object} ProblemDetails
// @Router /recurring-transactions/bulk-delete [post]
func (h *RecurringHandler) BulkDeleteRecurringTransactions(c echo.Context) error {
	var req BulkDeleteRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	result, err := h.recurringService.BulkDeleteRecurring(c.Request().Context(), middleware.GetUserID(c), req.IDs)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Materialize godoc
// @Summary Materialize recurring transactions
// @Description Persists the caller's occurrences for one month. Safe to call repeatedly.
// @Tags recurring-transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body MaterializeRequest false "Target month"
// @Success 200 {object} service.MaterializeStats
// @Failure 400 {object} ProblemDetails
// @Router /recurring-transactions/materialize [post]
func (h *RecurringHandler) Materialize(c echo.Context) error {
	userID := middleware.GetUserID(c)

	var req MaterializeRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	month, year := h.materializer.CurrentPeriod()
	if req.Month != 0 {
		month = req.Month
	}
	if req.Year != 0 {
		year = req.Year
	}

	stats, err := h.materializer.RunForUser(c.Request().Context(), userID, month, year)
	if err != nil {
		return handleServiceError(c, err)
	}

	log.Info().
		Str("user_id", userID).
		Int("month", month).
		Int("year", year).
		Int("created", stats.TotalTransactionsCreated).
		Int("errors", len(stats.Errors)).
		Msg("Recurring transactions materialized")
	return c.JSON(http.StatusOK, stats)
}
