// Package docs holds the swagger document served under /swagger.
// Regenerate with: swag init -g cmd/api/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/transactions": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"transactions"
				],
				"summary": "List transactions",
				"description": "Paginated feed of real transactions merged with projected recurring occurrences",
				"parameters": [
					{
						"type": "string",
						"description": "income or outcome",
						"name": "type",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Category filter",
						"name": "categoryId",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Tag filter",
						"name": "tagId",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Payment status filter",
						"name": "paymentStatusId",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Payment status description filter",
						"name": "status",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Month filter (YYYY-MM or YYYY-MM-DD)",
						"name": "date",
						"in": "query"
					},
					{
						"type": "string",
						"description": "description, date, amount, type, category, tag or paymentStatus",
						"name": "sortBy",
						"in": "query"
					},
					{
						"type": "string",
						"description": "asc or desc",
						"name": "sortOrder",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Page number (default 1)",
						"name": "page",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Page size (default 10, max 100)",
						"name": "limit",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.TransactionPage"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					},
					"401": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"transactions"
				],
				"summary": "Create a transaction",
				"description": "Create an income or outcome transaction, optionally repeating it",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.CreateTransactionRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/handler.CreateTransactionResponse"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					},
					"401": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/transactions/bulk-delete": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"transactions"
				],
				"summary": "Delete several transactions",
				"description": "Deletes up to 50 transactions and reports the outcome per id",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.BulkDeleteRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.BulkDeleteResult"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/transactions/{id}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"transactions"
				],
				"summary": "Get a transaction",
				"parameters": [
					{
						"type": "string",
						"description": "Transaction ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.Transaction"
						}
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"put": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"transactions"
				],
				"summary": "Update a transaction",
				"description": "Partially update a real transaction. Projected occurrences cannot be updated.",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Transaction ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.UpdateTransactionRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.Transaction"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"transactions"
				],
				"summary": "Delete a transaction",
				"parameters": [
					{
						"type": "string",
						"description": "Transaction ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"204": {
						"description": "No Content"
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/recurring-transactions": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"recurring-transactions"
				],
				"summary": "List recurring transactions",
				"parameters": [
					{
						"type": "string",
						"description": "Only definitions still active on or after this date",
						"name": "startDate",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/domain.RecurringDefinition"
							}
						}
					},
					"401": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/recurring-transactions/bulk-delete": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"recurring-transactions"
				],
				"summary": "Delete several recurring transactions",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.BulkDeleteRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.BulkDeleteResult"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/recurring-transactions/materialize": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"recurring-transactions"
				],
				"summary": "Materialize recurring transactions",
				"description": "Persists the caller's occurrences for one month. Safe to call repeatedly.",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": false,
						"schema": {
							"$ref": "#/definitions/handler.MaterializeRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/service.MaterializeStats"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/recurring-transactions/{id}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"recurring-transactions"
				],
				"summary": "Get a recurring transaction",
				"parameters": [
					{
						"type": "string",
						"description": "Recurring transaction ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.RecurringDefinition"
						}
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"patch": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"recurring-transactions"
				],
				"summary": "Update a recurring transaction",
				"description": "The start date is fixed; a new rule applies to future occurrences only",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Recurring transaction ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.UpdateRecurringRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.RecurringDefinition"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"recurring-transactions"
				],
				"summary": "Delete a recurring transaction",
				"description": "Linked transactions are kept and detached from the definition",
				"parameters": [
					{
						"type": "string",
						"description": "Recurring transaction ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.DeleteRecurringResult"
						}
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/categories": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "List labels",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/domain.Label"
							}
						}
					}
				}
			},
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "Create a label",
				"description": "Creates a category, tag or payment status depending on the route",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.LabelRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/domain.Label"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/categories/{id}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "Get a label",
				"parameters": [
					{
						"type": "string",
						"description": "Label ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.Label"
						}
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"put": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "Rename a label",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Label ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.LabelRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.Label"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "Delete a label",
				"description": "Fails with 409 while any transaction references the label",
				"parameters": [
					{
						"type": "string",
						"description": "Label ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"204": {
						"description": "No Content"
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					},
					"409": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/tags": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "List labels",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/domain.Label"
							}
						}
					}
				}
			},
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "Create a label",
				"description": "Creates a category, tag or payment status depending on the route",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.LabelRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/domain.Label"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/tags/{id}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "Get a label",
				"parameters": [
					{
						"type": "string",
						"description": "Label ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.Label"
						}
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"put": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "Rename a label",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Label ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.LabelRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.Label"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "Delete a label",
				"description": "Fails with 409 while any transaction references the label",
				"parameters": [
					{
						"type": "string",
						"description": "Label ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"204": {
						"description": "No Content"
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					},
					"409": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/payment-statuses": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "List labels",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/domain.Label"
							}
						}
					}
				}
			},
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "Create a label",
				"description": "Creates a category, tag or payment status depending on the route",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.LabelRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/domain.Label"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/payment-statuses/{id}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "Get a label",
				"parameters": [
					{
						"type": "string",
						"description": "Label ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.Label"
						}
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"put": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "Rename a label",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Label ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.LabelRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.Label"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"labels"
				],
				"summary": "Delete a label",
				"description": "Fails with 409 while any transaction references the label",
				"parameters": [
					{
						"type": "string",
						"description": "Label ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"204": {
						"description": "No Content"
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					},
					"409": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/investments": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"investments"
				],
				"summary": "List investments",
				"parameters": [
					{
						"type": "string",
						"description": "BRL or USD",
						"name": "currency",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Page number (default 1)",
						"name": "page",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Page size (default 10, max 100)",
						"name": "limit",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.PaginatedInvestments"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"investments"
				],
				"summary": "Create an investment",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.InvestmentRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/domain.Investment"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		},
		"/investments/{id}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"investments"
				],
				"summary": "Get an investment",
				"parameters": [
					{
						"type": "string",
						"description": "Investment ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.Investment"
						}
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"put": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"investments"
				],
				"summary": "Replace an investment",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Investment ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.InvestmentRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/domain.Investment"
						}
					},
					"400": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			},
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"investments"
				],
				"summary": "Delete an investment",
				"parameters": [
					{
						"type": "string",
						"description": "Investment ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"204": {
						"description": "No Content"
					},
					"404": {
						"description": "Problem details",
						"schema": {
							"$ref": "#/definitions/handler.ProblemDetails"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"domain.Label": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"userId": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"createdAt": {
					"type": "string"
				},
				"updatedAt": {
					"type": "string"
				}
			}
		},
		"domain.Transaction": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"userId": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"date": {
					"type": "string"
				},
				"amount": {
					"type": "string",
					"example": "120.50"
				},
				"type": {
					"type": "string",
					"enum": [
						"income",
						"outcome"
					]
				},
				"note": {
					"type": "string"
				},
				"categoryId": {
					"type": "string"
				},
				"tagId": {
					"type": "string"
				},
				"paymentStatusId": {
					"type": "string"
				},
				"recurringTransactionId": {
					"type": "string"
				},
				"category": {
					"$ref": "#/definitions/domain.Label"
				},
				"tag": {
					"$ref": "#/definitions/domain.Label"
				},
				"paymentStatus": {
					"$ref": "#/definitions/domain.Label"
				},
				"isVirtual": {
					"type": "boolean"
				},
				"isRecurringGenerated": {
					"type": "boolean"
				},
				"createdAt": {
					"type": "string"
				},
				"updatedAt": {
					"type": "string"
				}
			}
		},
		"domain.Pagination": {
			"type": "object",
			"properties": {
				"total": {
					"type": "integer"
				},
				"page": {
					"type": "integer"
				},
				"limit": {
					"type": "integer"
				},
				"totalPages": {
					"type": "integer"
				},
				"hasMore": {
					"type": "boolean"
				}
			}
		},
		"domain.TransactionPage": {
			"type": "object",
			"properties": {
				"data": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/domain.Transaction"
					}
				},
				"pagination": {
					"$ref": "#/definitions/domain.Pagination"
				}
			}
		},
		"domain.BulkDeleteFailure": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"reason": {
					"type": "string"
				}
			}
		},
		"domain.BulkDeleteResult": {
			"type": "object",
			"properties": {
				"success": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"failed": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/domain.BulkDeleteFailure"
					}
				}
			}
		},
		"domain.RecurringDefinition": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"userId": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"type": {
					"type": "string",
					"enum": [
						"income",
						"outcome"
					]
				},
				"amount": {
					"type": "string"
				},
				"note": {
					"type": "string"
				},
				"recurrenceRule": {
					"type": "string",
					"example": "FREQ=MONTHLY;COUNT=12"
				},
				"startDate": {
					"type": "string"
				},
				"endDate": {
					"type": "string"
				},
				"lastGeneratedAt": {
					"type": "string"
				},
				"createdAt": {
					"type": "string"
				},
				"updatedAt": {
					"type": "string"
				}
			}
		},
		"domain.DeleteRecurringResult": {
			"type": "object",
			"properties": {
				"definition": {
					"$ref": "#/definitions/domain.RecurringDefinition"
				},
				"detached": {
					"type": "integer"
				}
			}
		},
		"domain.Investment": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"userId": {
					"type": "string"
				},
				"ticker": {
					"type": "string"
				},
				"quantity": {
					"type": "string"
				},
				"purchasePrice": {
					"type": "string"
				},
				"purchaseDate": {
					"type": "string"
				},
				"currency": {
					"type": "string",
					"enum": [
						"BRL",
						"USD"
					]
				},
				"createdAt": {
					"type": "string"
				},
				"updatedAt": {
					"type": "string"
				}
			}
		},
		"domain.PaginatedInvestments": {
			"type": "object",
			"properties": {
				"data": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/domain.Investment"
					}
				},
				"pagination": {
					"$ref": "#/definitions/domain.Pagination"
				}
			}
		},
		"handler.ValidationError": {
			"type": "object",
			"properties": {
				"field": {
					"type": "string"
				},
				"message": {
					"type": "string"
				}
			}
		},
		"handler.ProblemDetails": {
			"type": "object",
			"properties": {
				"type": {
					"type": "string"
				},
				"title": {
					"type": "string"
				},
				"status": {
					"type": "integer"
				},
				"detail": {
					"type": "string"
				},
				"instance": {
					"type": "string"
				},
				"errors": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/handler.ValidationError"
					}
				}
			}
		},
		"handler.BulkDeleteRequest": {
			"type": "object",
			"properties": {
				"ids": {
					"type": "array",
					"items": {
						"type": "string"
					}
				}
			}
		},
		"handler.RecurrentRequest": {
			"type": "object",
			"properties": {
				"frequency": {
					"type": "string",
					"example": "monthly"
				},
				"quantity": {
					"type": "integer",
					"example": 12
				}
			}
		},
		"handler.CreateTransactionRequest": {
			"type": "object",
			"properties": {
				"description": {
					"type": "string"
				},
				"date": {
					"type": "string",
					"example": "2025-03-05"
				},
				"amount": {
					"type": "string",
					"example": "120.50"
				},
				"type": {
					"type": "string",
					"example": "outcome"
				},
				"note": {
					"type": "string"
				},
				"categoryId": {
					"type": "string"
				},
				"tagId": {
					"type": "string"
				},
				"paymentStatusId": {
					"type": "string"
				},
				"recurrent": {
					"$ref": "#/definitions/handler.RecurrentRequest"
				}
			}
		},
		"handler.CreateTransactionResponse": {
			"type": "object",
			"properties": {
				"transaction": {
					"$ref": "#/definitions/domain.Transaction"
				},
				"recurringTransaction": {
					"$ref": "#/definitions/domain.RecurringDefinition"
				}
			}
		},
		"handler.UpdateTransactionRequest": {
			"type": "object",
			"properties": {
				"description": {
					"type": "string"
				},
				"date": {
					"type": "string"
				},
				"amount": {
					"type": "string"
				},
				"type": {
					"type": "string"
				},
				"note": {
					"type": "string"
				},
				"categoryId": {
					"type": "string"
				},
				"tagId": {
					"type": "string"
				},
				"paymentStatusId": {
					"type": "string"
				}
			}
		},
		"handler.UpdateRecurringRequest": {
			"type": "object",
			"properties": {
				"description": {
					"type": "string"
				},
				"type": {
					"type": "string"
				},
				"amount": {
					"type": "string"
				},
				"recurrenceRule": {
					"type": "string",
					"example": "FREQ=MONTHLY;COUNT=12"
				},
				"endDate": {
					"type": "string"
				},
				"note": {
					"type": "string"
				}
			}
		},
		"handler.MaterializeRequest": {
			"type": "object",
			"properties": {
				"month": {
					"type": "integer",
					"example": 3
				},
				"year": {
					"type": "integer",
					"example": 2025
				}
			}
		},
		"handler.LabelRequest": {
			"type": "object",
			"properties": {
				"description": {
					"type": "string",
					"example": "Groceries"
				}
			}
		},
		"handler.InvestmentRequest": {
			"type": "object",
			"properties": {
				"ticker": {
					"type": "string",
					"example": "PETR4"
				},
				"quantity": {
					"type": "string",
					"example": "10"
				},
				"purchasePrice": {
					"type": "string",
					"example": "36.20"
				},
				"purchaseDate": {
					"type": "string",
					"example": "2025-01-15"
				},
				"currency": {
					"type": "string",
					"example": "BRL"
				}
			}
		},
		"service.MaterializeError": {
			"type": "object",
			"properties": {
				"definitionId": {
					"type": "string"
				},
				"error": {
					"type": "string"
				}
			}
		},
		"service.MaterializeStats": {
			"type": "object",
			"properties": {
				"month": {
					"type": "integer"
				},
				"year": {
					"type": "integer"
				},
				"totalDefinitions": {
					"type": "integer"
				},
				"totalOccurrencesGenerated": {
					"type": "integer"
				},
				"totalTransactionsCreated": {
					"type": "integer"
				},
				"errors": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/service.MaterializeError"
					}
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"description": "Type \"Bearer\" followed by a space and the Auth0 access token.",
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Fortuna Ledger API",
	Description:      "Personal finance ledger with recurring transactions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
