package handler

import (
	"net/http"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// LabelHandler serves one label kind; routes mounts one per kind
type LabelHandler struct {
	labelService *service.LabelService
	kind         domain.LabelKind
}

// NewLabelHandler creates a new LabelHandler for kind
func NewLabelHandler(labelService *service.LabelService, kind domain.LabelKind) *LabelHandler {
	return &LabelHandler{labelService: labelService, kind: kind}
}

// LabelRequest is the body for creating or renaming a label
type LabelRequest struct {
	Description string `json:"description" example:"Groceries"`
}

// CreateLabel godoc
// @Summary Create a label
// @Description Creates a category, tag or payment status depending on the route
// @Tags labels
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body LabelRequest true "Label"
// @Success 201 {object} domain.Label
// @Failure 400 {object} ProblemDetails
// @Router /categories [post]
// @Router /tags [post]
// @Router /payment-statuses [post]
func (h *LabelHandler) CreateLabel(c echo.Context) error {
	userID := middleware.GetUserID(c)

	var req LabelRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	label, err := h.labelService.CreateLabel(c.Request().Context(), h.kind, userID, req.Description)
	if err != nil {
		return handleServiceError(c, err)
	}

	log.Info().Str("user_id", userID).Str("kind", string(h.kind)).Str("label_id", label.ID).Msg("Label created")
	return c.JSON(http.StatusCreated, label)
}

// GetLabels godoc
// @Summary List labels
// @Tags labels
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Label
// @Router /categories [get]
// @Router /tags [get]
// @Router /payment-statuses [get]
func (h *LabelHandler) GetLabels(c echo.Context) error {
	labels, err := h.labelService.ListLabels(c.Request().Context(), h.kind, middleware.GetUserID(c))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, labels)
}

// GetLabel godoc
// @Summary Get a label
// @Tags labels
// @Produce json
// @Security BearerAuth
// @Param id path string true "Label ID"
// @Success 200 {object} domain.Label
// @Failure 404 {object} ProblemDetails
// @Router /categories/{id} [get]
// @Router /tags/{id} [get]
// @Router /payment-statuses/{id} [get]
func (h *LabelHandler) GetLabel(c echo.Context) error {
	label, err := h.labelService.GetLabel(c.Request().Context(), h.kind, middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, label)
}

// UpdateLabel godoc
// @Summary Rename a label
// @Tags labels
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Label ID"
// @Param request body LabelRequest true "Label"
// @Success 200 {object} domain.Label
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /categories/{id} [put]
// @Router /tags/{id} [put]
// @Router /payment-statuses/{id} [put]
func (h *LabelHandler) UpdateLabel(c echo.Context) error {
	var req LabelRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	label, err := h.labelService.UpdateLabel(c.Request().Context(), h.kind, middleware.GetUserID(c), c.Param("id"), req.Description)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, label)
}

// DeleteLabel godoc
// @Summary Delete a label
// @Description Fails with 409 while any transaction references the label
// @Tags labels
// @Security BearerAuth
// @Param id path string true "Label ID"
// @Success 204
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /categories/{id} [delete]
// @Router /tags/{id} [delete]
// @Router /payment-statuses/{id} [delete]
func (h *LabelHandler) DeleteLabel(c echo.Context) error {
	userID := middleware.GetUserID(c)
	id := c.Param("id")

	if err := h.labelService.DeleteLabel(c.Request().Context(), h.kind, userID, id); err != nil {
		return handleServiceError(c, err)
	}

	log.Info().Str("user_id", userID).Str("kind", string(h.kind)).Str("label_id", id).Msg("Label deleted")
	return c.NoContent(http.StatusNoContent)
}
