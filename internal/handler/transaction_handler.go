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

// TransactionHandler handles transaction-related HTTP requests
type TransactionHandler struct {
	transactionService *service.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// RecurrentRequest asks for the transaction to repeat quantity times
type RecurrentRequest struct {
	Frequency string `json:"frequency" example:"monthly"`
	Quantity  int    `json:"quantity" example:"12"`
}

// CreateTransactionRequest represents the create transaction request body
type CreateTransactionRequest struct {
	Description     string            `json:"description"`
	Date            string            `json:"date" example:"2025-03-05"`
	Amount          *decimal.Decimal  `json:"amount" swaggertype:"string" example:"120.50"`
	Type            string            `json:"type" example:"outcome"`
	Note            *string           `json:"note,omitempty"`
	CategoryID      *string           `json:"categoryId,omitempty"`
	TagID           *string           `json:"tagId,omitempty"`
	PaymentStatusID *string           `json:"paymentStatusId,omitempty"`
	Recurrent       *RecurrentRequest `json:"recurrent,omitempty"`
}

// CreateTransactionResponse is the created transaction and, when recurrent, its definition
type CreateTransactionResponse struct {
	Transaction          *domain.Transaction         `json:"transaction"`
	RecurringTransaction *domain.RecurringDefinition `json:"recurringTransaction,omitempty"`
}

// UpdateTransactionRequest represents a partial transaction update
type UpdateTransactionRequest struct {
	Description     *string          `json:"description,omitempty"`
	Date            *string          `json:"date,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty" swaggertype:"string"`
	Type            *string          `json:"type,omitempty"`
	Note            *string          `json:"note,omitempty"`
	CategoryID      *string          `json:"categoryId,omitempty"`
	TagID           *string          `json:"tagId,omitempty"`
	PaymentStatusID *string          `json:"paymentStatusId,omitempty"`
}

// CreateTransaction godoc
// @Summary Create a transaction
// @Description Create an income or outcome transaction, optionally repeating it
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTransactionRequest true "Transaction creation request"
// @Success 201 {object} CreateTransactionResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Router /transactions [post]
func (h *TransactionHandler) CreateTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)

	var req CreateTransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	var errs []ValidationError
	if req.Amount == nil {
		errs = append(errs, ValidationError{Field: "amount", Message: "Amount is required"})
	}
	date, err := parseDate(req.Date)
	if err != nil {
		errs = append(errs, ValidationError{Field: "date", Message: "Must be in YYYY-MM-DD format"})
	}
	if len(errs) > 0 {
		return NewValidationError(c, "Validation failed", errs)
	}

	input := service.CreateTransactionInput{
		Description:     req.Description,
		Date:            date,
		Amount:          *req.Amount,
		Type:            domain.TransactionType(strings.ToLower(req.Type)),
		Note:            req.Note,
		CategoryID:      req.CategoryID,
		TagID:           req.TagID,
		PaymentStatusID: req.PaymentStatusID,
	}
	if req.Recurrent != nil {
		input.Recurrent = &domain.RecurrenceSpec{
			Frequency: domain.Frequency(strings.ToLower(req.Recurrent.Frequency)),
			Quantity:  req.Recurrent.Quantity,
		}
	}

	result, err := h.transactionService.CreateTransaction(c.Request().Context(), userID, input)
	if err != nil {
		return handleServiceError(c, err)
	}

	log.Info().
		Str("user_id", userID).
		Str("transaction_id", result.Transaction.ID).
		Bool("recurrent", result.Recurring != nil).
		Msg("Transaction created")

	return c.JSON(http.StatusCreated, CreateTransactionResponse{
		Transaction:          result.Transaction,
		RecurringTransaction: result.Recurring,
	})
}

// GetTransactions godoc
// @Summary List transactions
// @Description Paginated feed of real transactions merged with projected recurring occurrences
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param type query string false "income or outcome"
// @Param categoryId query string false "Category filter"
// @Param tagId query string false "Tag filter"
// @Param paymentStatusId query string false "Payment status filter"
// @Param status query string false "Payment status description filter"
// @Param date query string false "Month filter (YYYY-MM or YYYY-MM-DD)"
// @Param sortBy query string false "description, date, amount, type, category, tag or paymentStatus"
// @Param sortOrder query string false "asc or desc"
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Page size (default 10, max 100)"
// @Success 200 {object} domain.TransactionPage
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Router /transactions [get]
func (h *TransactionHandler) GetTransactions(c echo.Context) error {
	userID := middleware.GetUserID(c)

	filters := domain.TransactionFilters{
		CategoryID:      optionalQuery(c, "categoryId"),
		TagID:           optionalQuery(c, "tagId"),
		PaymentStatusID: optionalQuery(c, "paymentStatusId"),
		Status:          optionalQuery(c, "status"),
	}
	if raw := optionalQuery(c, "type"); raw != nil {
		txType := domain.TransactionType(strings.ToLower(*raw))
		filters.Type = &txType
	}
	if raw := optionalQuery(c, "date"); raw != nil {
		month, err := parseMonth(*raw)
		if err != nil {
			return NewValidationError(c, "Invalid date", []ValidationError{
				{Field: "date", Message: "Must be in YYYY-MM or YYYY-MM-DD format"},
			})
		}
		filters.Month = &month
	}

	page, err := queryInt(c, "page")
	if err != nil {
		return NewValidationError(c, "Invalid page", []ValidationError{{Field: "page", Message: "Must be a number"}})
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return NewValidationError(c, "Invalid limit", []ValidationError{{Field: "limit", Message: "Must be a number"}})
	}

	result, err := h.transactionService.ListTransactions(c.Request().Context(), userID, service.ListTransactionsInput{
		Filters:   filters,
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetTransaction godoc
// @Summary Get a transaction
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} domain.Transaction
// @Failure 404 {object} ProblemDetails
// @Router /transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(c echo.Context) error {
	tx, err := h.transactionService.GetTransaction(c.Request().Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, tx)
}

// UpdateTransaction godoc
// @Summary Update a transaction
// @Description Partially update a real transaction. Projected occurrences cannot be updated.
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Param request body UpdateTransactionRequest true "Fields to update"
// @Success 200 {object} domain.Transaction
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	id := c.Param("id")

	var req UpdateTransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	data := &domain.UpdateTransactionData{
		Description:     req.Description,
		Amount:          req.Amount,
		Note:            req.Note,
		CategoryID:      req.CategoryID,
		TagID:           req.TagID,
		PaymentStatusID: req.PaymentStatusID,
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "date", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		data.Date = &date
	}
	if req.Type != nil {
		txType := domain.TransactionType(strings.ToLower(*req.Type))
		data.Type = &txType
	}

	updated, err := h.transactionService.UpdateTransaction(c.Request().Context(), userID, id, data)
	if err != nil {
		return handleServiceError(c, err)
	}

	log.Info().Str("user_id", userID).Str("transaction_id", id).Msg("Transaction updated")
	return c.JSON(http.StatusOK, updated)
}

// DeleteTransaction godoc
// @Summary Delete a transaction
// @Tags transactions
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 204
// @Failure 404 {object} ProblemDetails
// @Router /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	id := c.Param("id")

	if err := h.transactionService.DeleteTransaction(c.Request().Context(), userID, id); err != nil {
		return handleServiceError(c, err)
	}

	log.Info().Str("user_id", userID).Str("transaction_id", id).Msg("Transaction deleted")
	return c.NoContent(http.StatusNoContent)
}

// BulkDeleteTransactions godoc
// @Summary Delete several transactions
// @Description Deletes up to 50 transactions and reports the outcome per id
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BulkDeleteRequest true "Transaction IDs"
// @Success 200 {object} domain.BulkDeleteResult
// @Failure 400 {object} ProblemDetails
// @Router /transactions/bulk-delete [post]
func (h *TransactionHandler) BulkDeleteTransactions(c echo.Context) error {
	userID := middleware.GetUserID(c)

	var req BulkDeleteRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	start := time.Now()
	result, err := h.transactionService.BulkDeleteTransactions(c.Request().Context(), userID, req.IDs)
	if err != nil {
		return handleServiceError(c, err)
	}

	log.Info().
		Str("user_id", userID).
		Int("deleted", len(result.Success)).
		Int("failed", len(result.Failed)).
		Dur("elapsed", time.Since(start)).
		Msg("Transactions bulk deleted")
	return c.JSON(http.StatusOK, result)
}
