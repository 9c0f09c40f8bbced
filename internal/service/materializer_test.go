package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMaterializerTest() (*Materializer, *testutil.MockRecurringRepository, *testutil.MockTransactionRepository) {
	recurringRepo := testutil.NewMockRecurringRepository()
	transactionRepo := testutil.NewMockTransactionRepository()
	m := NewMaterializer(recurringRepo, transactionRepo, zerolog.Nop())
	m.now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	return m, recurringRepo, transactionRepo
}

func monthlyDef(id, userID string, start time.Time, rule string) *domain.RecurringDefinition {
	return &domain.RecurringDefinition{
		ID:             id,
		UserID:         userID,
		Description:    "Gym",
		Type:           domain.TransactionTypeOutcome,
		Amount:         decimal.NewFromInt(50),
		RecurrenceRule: rule,
		StartDate:      start,
	}
}

func TestMaterializer_RunIsIdempotent(t *testing.T) {
	m, recurringRepo, transactionRepo := setupMaterializerTest()
	recurringRepo.AddDefinition(monthlyDef("def-1", "user-1", day(2025, 1, 5), "FREQ=MONTHLY"))
	recurringRepo.AddDefinition(monthlyDef("def-2", "user-2", day(2025, 3, 1), "FREQ=WEEKLY;COUNT=3"))

	first, err := m.Run(context.Background(), 3, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, first.TotalDefinitions)
	assert.Equal(t, 4, first.TotalOccurrencesGenerated)
	assert.Equal(t, 4, first.TotalTransactionsCreated)
	assert.Empty(t, first.Errors)
	afterFirst := len(transactionRepo.All())

	second, err := m.Run(context.Background(), 3, 2025)
	require.NoError(t, err)
	assert.Equal(t, 4, second.TotalOccurrencesGenerated)
	assert.Equal(t, 0, second.TotalTransactionsCreated)
	assert.Len(t, transactionRepo.All(), afterFirst)

	for _, tx := range transactionRepo.All() {
		require.NotNil(t, tx.RecurringDefinitionID)
		assert.False(t, tx.IsVirtual)
		assert.Equal(t, time.March, tx.Date.Month())
	}
}

func TestMaterializer_SkipsExistingDates(t *testing.T) {
	m, recurringRepo, transactionRepo := setupMaterializerTest()
	recurringRepo.AddDefinition(monthlyDef("def-1", "user-1", day(2025, 3, 1), "FREQ=DAILY;COUNT=3"))
	existing := realTx("manual", time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC), 50)
	existing.UserID = "user-1"
	existing.RecurringDefinitionID = strPtr("def-1")
	existing.CategoryID = strPtr("cat-9")
	transactionRepo.AddTransaction(existing)

	stats, err := m.Run(context.Background(), 3, 2025)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalOccurrencesGenerated)
	assert.Equal(t, 2, stats.TotalTransactionsCreated)

	byDay := map[string]int{}
	for _, tx := range transactionRepo.All() {
		byDay[domain.DayOf(tx.Date).String()]++
		assert.Equal(t, "cat-9", *tx.CategoryID)
	}
	assert.Equal(t, map[string]int{"2025-03-01": 1, "2025-03-02": 1, "2025-03-03": 1}, byDay)
}

func TestMaterializer_BadRuleDoesNotAbortRun(t *testing.T) {
	m, recurringRepo, transactionRepo := setupMaterializerTest()
	recurringRepo.AddDefinition(monthlyDef("broken", "user-1", day(2025, 1, 1), "FREQ=SOMETIMES"))
	recurringRepo.AddDefinition(monthlyDef("ok", "user-1", day(2025, 1, 10), "FREQ=MONTHLY"))

	stats, err := m.Run(context.Background(), 3, 2025)
	require.NoError(t, err)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, "broken", stats.Errors[0].DefinitionID)
	assert.Equal(t, 1, stats.TotalTransactionsCreated)
	assert.Len(t, transactionRepo.All(), 1)
}

func TestMaterializer_BatchFailureIsRecorded(t *testing.T) {
	m, recurringRepo, transactionRepo := setupMaterializerTest()
	recurringRepo.AddDefinition(monthlyDef("def-1", "user-1", day(2025, 3, 1), "FREQ=WEEKLY"))
	transactionRepo.CreateBatchFn = func([]*domain.Transaction) ([]*domain.Transaction, error) {
		return nil, domain.NewStorageError("insert", "transactions", errors.New("connection reset"))
	}

	stats, err := m.Run(context.Background(), 3, 2025)
	require.NoError(t, err)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, "def-1", stats.Errors[0].DefinitionID)
	assert.Contains(t, stats.Errors[0].Error, "connection reset")
	assert.Equal(t, 0, stats.TotalTransactionsCreated)
	assert.Equal(t, 1, transactionRepo.CreateBatchCalls)
	assert.Empty(t, recurringRepo.Touched)
}

func TestMaterializer_TouchesWatermarkOnlyOnInsert(t *testing.T) {
	m, recurringRepo, _ := setupMaterializerTest()
	recurringRepo.AddDefinition(monthlyDef("def-1", "user-1", day(2025, 3, 1), "FREQ=MONTHLY;COUNT=1"))

	_, err := m.Run(context.Background(), 3, 2025)
	require.NoError(t, err)
	assert.Contains(t, recurringRepo.Touched, "def-1")

	delete(recurringRepo.Touched, "def-1")
	_, err = m.Run(context.Background(), 3, 2025)
	require.NoError(t, err)
	assert.NotContains(t, recurringRepo.Touched, "def-1")
}

func TestMaterializer_RunForUserScopesDefinitions(t *testing.T) {
	m, recurringRepo, transactionRepo := setupMaterializerTest()
	publisher := testutil.NewMockEventPublisher()
	m.SetEventPublisher(publisher)
	recurringRepo.AddDefinition(monthlyDef("mine", "user-1", day(2025, 1, 1), "FREQ=MONTHLY"))
	recurringRepo.AddDefinition(monthlyDef("theirs", "user-2", day(2025, 1, 1), "FREQ=MONTHLY"))
	ended := monthlyDef("ended", "user-1", day(2024, 1, 1), "FREQ=MONTHLY")
	end := day(2024, 6, 1)
	ended.EndDate = &end
	recurringRepo.AddDefinition(ended)

	stats, err := m.RunForUser(context.Background(), "user-1", 3, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDefinitions)
	assert.Equal(t, 1, stats.TotalTransactionsCreated)
	for _, tx := range transactionRepo.All() {
		assert.Equal(t, "user-1", tx.UserID)
	}
	assert.Equal(t, []string{"projection.synced"}, publisher.Types())
}

func TestMaterializer_ValidatesPeriod(t *testing.T) {
	m, _, _ := setupMaterializerTest()

	_, err := m.Run(context.Background(), 13, 2025)
	var fe *domain.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "month", fe.Field)

	_, err = m.Run(context.Background(), 1, 1999)
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "year", fe.Field)

	_, err = m.RunForUser(context.Background(), "", 1, 2025)
	assert.True(t, errors.Is(err, domain.ErrUserIDRequired))
}

func TestMaterializer_CurrentPeriod(t *testing.T) {
	m, _, _ := setupMaterializerTest()
	month, year := m.CurrentPeriod()
	assert.Equal(t, 3, month)
	assert.Equal(t, 2025, year)
}
