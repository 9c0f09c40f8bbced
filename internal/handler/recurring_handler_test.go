package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/dafibh/fortuna/ledger-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRecurringHandler() (*RecurringHandler, *testutil.MockRecurringRepository, *testutil.MockTransactionRepository) {
	recRepo := testutil.NewMockRecurringRepository()
	txRepo := testutil.NewMockTransactionRepository()
	recRepo.Transactions = txRepo
	recurringService := service.NewRecurringService(recRepo)
	materializer := service.NewMaterializer(recRepo, txRepo, zerolog.Nop())
	return NewRecurringHandler(recurringService, materializer), recRepo, txRepo
}

func addGymDefinition(recRepo *testutil.MockRecurringRepository) *domain.RecurringDefinition {
	def := &domain.RecurringDefinition{
		ID:             "def-gym",
		UserID:         testUserID,
		Description:    "Gym",
		Type:           domain.TransactionTypeOutcome,
		Amount:         decimal.NewFromInt(90),
		RecurrenceRule: "FREQ=MONTHLY;COUNT=12",
		StartDate:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	recRepo.AddDefinition(def)
	return def
}

func TestGetRecurringTransactions(t *testing.T) {
	handler, recRepo, _ := setupRecurringHandler()
	addGymDefinition(recRepo)
	ended := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	recRepo.AddDefinition(&domain.RecurringDefinition{
		ID:             "def-old",
		UserID:         testUserID,
		Description:    "Old",
		Type:           domain.TransactionTypeOutcome,
		RecurrenceRule: "FREQ=WEEKLY",
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        &ended,
	})

	c, rec := newRequestContext(http.MethodGet, "/api/v1/recurring-transactions", "", testUserID)
	require.NoError(t, handler.GetRecurringTransactions(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var all []domain.RecurringDefinition
	decodeBody(t, rec, &all)
	assert.Len(t, all, 2)

	c, rec = newRequestContext(http.MethodGet, "/api/v1/recurring-transactions?startDate=2025-01-01", "", testUserID)
	require.NoError(t, handler.GetRecurringTransactions(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var active []domain.RecurringDefinition
	decodeBody(t, rec, &active)
	require.Len(t, active, 1)
	assert.Equal(t, "def-gym", active[0].ID)
}

func TestGetRecurringTransactions_BadStartDate(t *testing.T) {
	handler, _, _ := setupRecurringHandler()

	c, rec := newRequestContext(http.MethodGet, "/api/v1/recurring-transactions?startDate=soon", "", testUserID)
	require.NoError(t, handler.GetRecurringTransactions(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRecurringTransaction(t *testing.T) {
	handler, recRepo, _ := setupRecurringHandler()
	addGymDefinition(recRepo)

	c, rec := newRequestContext(http.MethodGet, "/api/v1/recurring-transactions/def-gym", "", testUserID)
	withParam(c, "def-gym")
	require.NoError(t, handler.GetRecurringTransaction(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newRequestContext(http.MethodGet, "/api/v1/recurring-transactions/def-gym", "", "auth0|other")
	withParam(c, "def-gym")
	require.NoError(t, handler.GetRecurringTransaction(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRecurringTransaction(t *testing.T) {
	handler, recRepo, _ := setupRecurringHandler()
	addGymDefinition(recRepo)

	body := `{"amount": "95.00", "recurrenceRule": "RRULE:FREQ=MONTHLY;COUNT=6", "endDate": "2025-12-31"}`
	c, rec := newRequestContext(http.MethodPatch, "/api/v1/recurring-transactions/def-gym", body, testUserID)
	withParam(c, "def-gym")
	require.NoError(t, handler.UpdateRecurringTransaction(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated domain.RecurringDefinition
	decodeBody(t, rec, &updated)
	assert.True(t, updated.Amount.Equal(decimal.RequireFromString("95")))
	assert.Equal(t, "FREQ=MONTHLY;COUNT=6", updated.RecurrenceRule)
	require.NotNil(t, updated.EndDate)
	assert.True(t, updated.StartDate.Equal(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)))

	// empty string clears the end date
	c, rec = newRequestContext(http.MethodPatch, "/api/v1/recurring-transactions/def-gym", `{"endDate": ""}`, testUserID)
	withParam(c, "def-gym")
	require.NoError(t, handler.UpdateRecurringTransaction(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var cleared domain.RecurringDefinition
	decodeBody(t, rec, &cleared)
	assert.Nil(t, cleared.EndDate)
}

func TestUpdateRecurringTransaction_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unsupported frequency", `{"recurrenceRule": "FREQ=HOURLY"}`},
		{"malformed rule", `{"recurrenceRule": "every month"}`},
		{"end before start", `{"endDate": "2024-01-01"}`},
		{"bad end date", `{"endDate": "someday"}`},
		{"bad type", `{"type": "transfer"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, recRepo, _ := setupRecurringHandler()
			addGymDefinition(recRepo)

			c, rec := newRequestContext(http.MethodPatch, "/api/v1/recurring-transactions/def-gym", tt.body, testUserID)
			withParam(c, "def-gym")
			require.NoError(t, handler.UpdateRecurringTransaction(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestDeleteRecurringTransaction_DetachesHistory(t *testing.T) {
	handler, recRepo, txRepo := setupRecurringHandler()
	def := addGymDefinition(recRepo)
	defID := def.ID
	txRepo.AddTransaction(&domain.Transaction{
		UserID:                testUserID,
		Description:           "Gym",
		Date:                  def.StartDate,
		Type:                  domain.TransactionTypeOutcome,
		RecurringDefinitionID: &defID,
	})

	c, rec := newRequestContext(http.MethodDelete, "/api/v1/recurring-transactions/def-gym", "", testUserID)
	withParam(c, "def-gym")
	require.NoError(t, handler.DeleteRecurringTransaction(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.DeleteRecurringResult
	decodeBody(t, rec, &result)
	assert.Equal(t, int64(1), result.Detached)
	assert.Len(t, txRepo.All(), 1)
	assert.Nil(t, txRepo.All()[0].RecurringDefinitionID)
	assert.Empty(t, recRepo.Definitions)
}

func TestBulkDeleteRecurringTransactions(t *testing.T) {
	handler, recRepo, _ := setupRecurringHandler()
	addGymDefinition(recRepo)

	c, rec := newRequestContext(http.MethodPost, "/api/v1/recurring-transactions/bulk-delete", `{"ids": ["def-gym", "nope"]}`, testUserID)
	require.NoError(t, handler.BulkDeleteRecurringTransactions(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.BulkDeleteResult
	decodeBody(t, rec, &result)
	assert.Equal(t, []string{"def-gym"}, result.Success)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "nope", result.Failed[0].ID)
	assert.Equal(t, "not found", result.Failed[0].Reason)

	c, rec = newRequestContext(http.MethodPost, "/api/v1/recurring-transactions/bulk-delete", `{"ids": []}`, testUserID)
	require.NoError(t, handler.BulkDeleteRecurringTransactions(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMaterialize_IsIdempotent(t *testing.T) {
	handler, recRepo, txRepo := setupRecurringHandler()
	addGymDefinition(recRepo)

	for i := 0; i < 2; i++ {
		c, rec := newRequestContext(http.MethodPost, "/api/v1/recurring-transactions/materialize", `{"month": 3, "year": 2025}`, testUserID)
		require.NoError(t, handler.Materialize(c))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var stats service.MaterializeStats
		decodeBody(t, rec, &stats)
		assert.Equal(t, 3, stats.Month)
		assert.Equal(t, 2025, stats.Year)
		assert.Equal(t, 1, stats.TotalOccurrencesGenerated)
		if i == 0 {
			assert.Equal(t, 1, stats.TotalTransactionsCreated)
		} else {
			assert.Equal(t, 0, stats.TotalTransactionsCreated)
		}
	}

	all := txRepo.All()
	require.Len(t, all, 1)
	assert.True(t, all[0].Date.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, all[0].RecurringDefinitionID)
	assert.Equal(t, "def-gym", *all[0].RecurringDefinitionID)
}

func TestMaterialize_InvalidPeriod(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"month out of range", `{"month": 13, "year": 2025}`},
		{"year out of range", `{"month": 1, "year": 1999}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _, _ := setupRecurringHandler()
			c, rec := newRequestContext(http.MethodPost, "/api/v1/recurring-transactions/materialize", tt.body, testUserID)
			require.NoError(t, handler.Materialize(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMaterialize_DefaultsToCurrentMonth(t *testing.T) {
	handler, _, _ := setupRecurringHandler()

	c, rec := newRequestContext(http.MethodPost, "/api/v1/recurring-transactions/materialize", "", testUserID)
	require.NoError(t, handler.Materialize(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats service.MaterializeStats
	decodeBody(t, rec, &stats)
	now := time.Now().UTC()
	assert.Equal(t, int(now.Month()), stats.Month)
	assert.Equal(t, now.Year(), stats.Year)
}
