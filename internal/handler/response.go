package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ProblemDetails is an RFC 7807 response body
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError is one field-level entry of a validation problem
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const errorTypeBase = "https://fortuna.app/errors/"

const (
	ErrorTypeValidation   = errorTypeBase + "validation"
	ErrorTypeNotFound     = errorTypeBase + "not-found"
	ErrorTypeUnauthorized = errorTypeBase + "unauthorized"
	ErrorTypeForbidden    = errorTypeBase + "forbidden"
	ErrorTypeConflict     = errorTypeBase + "conflict"
	ErrorTypeInternal     = errorTypeBase + "internal"
)

type problemKind struct {
	status  int
	errType string
	title   string
}

var (
	validationProblem   = problemKind{http.StatusBadRequest, ErrorTypeValidation, "Validation Error"}
	unauthorizedProblem = problemKind{http.StatusUnauthorized, ErrorTypeUnauthorized, "Unauthorized"}
	internalProblem     = problemKind{http.StatusInternalServerError, ErrorTypeInternal, "Internal Server Error"}
)

// domainProblems maps domain error kinds to responses, checked in order
var domainProblems = []struct {
	err  error
	kind problemKind
}{
	{domain.ErrInvalidInput, validationProblem},
	{domain.ErrUnauthorized, unauthorizedProblem},
	{domain.ErrForbidden, problemKind{http.StatusForbidden, ErrorTypeForbidden, "Forbidden"}},
	{domain.ErrNotFound, problemKind{http.StatusNotFound, ErrorTypeNotFound, "Not Found"}},
	{domain.ErrConflict, problemKind{http.StatusConflict, ErrorTypeConflict, "Conflict"}},
}

func writeProblem(c echo.Context, kind problemKind, detail string, errs []ValidationError) error {
	return c.JSON(kind.status, ProblemDetails{
		Type:     kind.errType,
		Title:    kind.title,
		Status:   kind.status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errs,
	})
}

// NewValidationError writes a 400 problem, optionally listing field errors
func NewValidationError(c echo.Context, detail string, errs []ValidationError) error {
	return writeProblem(c, validationProblem, detail, errs)
}

func NewInternalError(c echo.Context, detail string) error {
	return writeProblem(c, internalProblem, detail, nil)
}

// handleServiceError maps a service error onto its problem details response.
// Unclassified errors are logged and reported as a generic 500.
func handleServiceError(c echo.Context, err error) error {
	var fieldErr *domain.FieldError
	if errors.As(err, &fieldErr) {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: fieldErr.Field, Message: fieldErr.Message},
		})
	}

	for _, p := range domainProblems {
		if !errors.Is(err, p.err) {
			continue
		}
		detail := err.Error()
		if p.kind == unauthorizedProblem {
			detail = "Authentication required"
		}
		return writeProblem(c, p.kind, detail, nil)
	}

	log.Error().
		Err(err).
		Str("path", c.Request().URL.Path).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("Request failed")
	return NewInternalError(c, "An unexpected error occurred")
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// parseMonth accepts 2006-01 or anything parseDate accepts
func parseMonth(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01", value); err == nil {
		return t, nil
	}
	return parseDate(value)
}

// queryInt parses an optional integer query parameter; absent yields 0
func queryInt(c echo.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func optionalQuery(c echo.Context, name string) *string {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil
	}
	return &raw
}

// BulkDeleteRequest is the body of the bulk-delete endpoints
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}
