package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const problemTypeBase = "https://fortuna.app/errors/"

// problemDetails is the RFC 7807 body written by middleware rejections.
// Handlers use the richer handler.ProblemDetails.
type problemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeProblem(c echo.Context, status int, slug, detail string) error {
	return c.JSON(status, problemDetails{
		Type:     problemTypeBase + slug,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

func unauthorizedError(c echo.Context, detail string) error {
	return writeProblem(c, http.StatusUnauthorized, "unauthorized", detail)
}

func rateLimitError(c echo.Context, detail string) error {
	return writeProblem(c, http.StatusTooManyRequests, "rate-limit", detail)
}
