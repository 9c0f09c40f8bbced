package handler

import (
	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Handlers groups everything RegisterRoutes mounts
type Handlers struct {
	Transaction    *TransactionHandler
	Recurring      *RecurringHandler
	Category       *LabelHandler
	Tag            *LabelHandler
	PaymentStatus  *LabelHandler
	Investment     *InvestmentHandler
	WebSocket      *WebSocketHandler
	OpenAPIServers []Server
}

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter, h Handlers) {
	// Upgrade requests authenticate with ?token= instead of the header
	e.GET("/ws", h.WebSocket.HandleWS)

	e.GET("/swagger/openapi3.json", ServeOpenAPI3Spec(h.OpenAPIServers))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api/v1")
	api.Use(authMiddleware.Authenticate())
	api.Use(middleware.RateLimitMiddleware(rateLimiter))

	transactions := api.Group("/transactions")
	transactions.POST("", h.Transaction.CreateTransaction)
	transactions.GET("", h.Transaction.GetTransactions)
	transactions.POST("/bulk-delete", h.Transaction.BulkDeleteTransactions)
	transactions.GET("/:id", h.Transaction.GetTransaction)
	transactions.PUT("/:id", h.Transaction.UpdateTransaction)
	transactions.DELETE("/:id", h.Transaction.DeleteTransaction)

	recurring := api.Group("/recurring-transactions")
	recurring.GET("", h.Recurring.GetRecurringTransactions)
	recurring.POST("/bulk-delete", h.Recurring.BulkDeleteRecurringTransactions)
	recurring.POST("/materialize", h.Recurring.Materialize)
	recurring.GET("/:id", h.Recurring.GetRecurringTransaction)
	recurring.PATCH("/:id", h.Recurring.UpdateRecurringTransaction)
	recurring.DELETE("/:id", h.Recurring.DeleteRecurringTransaction)

	registerLabelRoutes(api.Group("/categories"), h.Category)
	registerLabelRoutes(api.Group("/tags"), h.Tag)
	registerLabelRoutes(api.Group("/payment-statuses"), h.PaymentStatus)

	investments := api.Group("/investments")
	investments.POST("", h.Investment.CreateInvestment)
	investments.GET("", h.Investment.GetInvestments)
	investments.GET("/:id", h.Investment.GetInvestment)
	investments.PUT("/:id", h.Investment.UpdateInvestment)
	investments.DELETE("/:id", h.Investment.DeleteInvestment)
}

func registerLabelRoutes(g *echo.Group, h *LabelHandler) {
	g.POST("", h.CreateLabel)
	g.GET("", h.GetLabels)
	g.GET("/:id", h.GetLabel)
	g.PUT("/:id", h.UpdateLabel)
	g.DELETE("/:id", h.DeleteLabel)
}
