package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRecurringServiceTest() (*RecurringService, *testutil.MockRecurringRepository, *testutil.MockTransactionRepository, *testutil.MockEventPublisher) {
	recurringRepo := testutil.NewMockRecurringRepository()
	transactionRepo := testutil.NewMockTransactionRepository()
	publisher := testutil.NewMockEventPublisher()
	recurringRepo.Transactions = transactionRepo
	svc := NewRecurringService(recurringRepo)
	svc.SetEventPublisher(publisher)
	return svc, recurringRepo, transactionRepo, publisher
}

func TestDeleteRecurring_DetachesLinkedTransactions(t *testing.T) {
	svc, recurringRepo, transactionRepo, publisher := setupRecurringServiceTest()
	recurringRepo.AddDefinition(monthlyDef("R", "user-1", day(2025, 1, 1), "FREQ=MONTHLY"))
	for i := 1; i <= 5; i++ {
		tx := realTx(fmt.Sprintf("t%d", i), day(2025, time.Month(i), 1), 50)
		tx.RecurringDefinitionID = strPtr("R")
		transactionRepo.AddTransaction(tx)
	}

	result, err := svc.DeleteRecurring(context.Background(), "user-1", "R")
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Detached)
	assert.Equal(t, "R", result.Definition.ID)

	assert.Empty(t, recurringRepo.Definitions)
	require.Len(t, transactionRepo.All(), 5)
	for _, tx := range transactionRepo.All() {
		assert.Nil(t, tx.RecurringDefinitionID)
	}
	assert.Equal(t, []string{"recurring.deleted"}, publisher.Types())
}

func TestDeleteRecurring_NotFound(t *testing.T) {
	svc, recurringRepo, _, _ := setupRecurringServiceTest()
	recurringRepo.AddDefinition(monthlyDef("R", "user-2", day(2025, 1, 1), "FREQ=MONTHLY"))

	_, err := svc.DeleteRecurring(context.Background(), "user-1", "R")
	assert.True(t, errors.Is(err, domain.ErrRecurringNotFound))
	assert.Len(t, recurringRepo.Definitions, 1)
}

func TestDeleteRecurring_DetachFailureKeepsDefinition(t *testing.T) {
	svc, recurringRepo, transactionRepo, publisher := setupRecurringServiceTest()
	recurringRepo.AddDefinition(monthlyDef("R", "user-1", day(2025, 1, 1), "FREQ=MONTHLY"))
	transactionRepo.DetachRecurringFn = func(string, string) (int64, error) {
		return 0, errors.New("deadlock")
	}

	_, err := svc.DeleteRecurring(context.Background(), "user-1", "R")
	require.Error(t, err)
	assert.Contains(t, recurringRepo.Definitions, "R")
	assert.Empty(t, publisher.Types())
}

func TestDeleteRecurring_DeleteFailureKeepsHistoryLinked(t *testing.T) {
	svc, recurringRepo, transactionRepo, publisher := setupRecurringServiceTest()
	recurringRepo.AddDefinition(monthlyDef("R", "user-1", day(2025, 3, 5), "FREQ=MONTHLY"))
	tx := realTx("t1", day(2025, 3, 5), 50)
	tx.RecurringDefinitionID = strPtr("R")
	transactionRepo.AddTransaction(tx)
	recurringRepo.DeleteFn = func(string, string) error {
		return domain.NewStorageError("delete", "recurring_transactions", errors.New("connection reset"))
	}

	_, err := svc.DeleteRecurring(context.Background(), "user-1", "R")
	require.Error(t, err)
	assert.Empty(t, publisher.Types())

	require.Len(t, transactionRepo.All(), 1)
	require.NotNil(t, transactionRepo.All()[0].RecurringDefinitionID)
	assert.Equal(t, "R", *transactionRepo.All()[0].RecurringDefinitionID)

	// the surviving definition is still reconciled against its history
	transactions := NewTransactionService(transactionRepo, recurringRepo, zerolog.Nop(), TransactionServiceConfig{})
	march := day(2025, 3, 1)
	page, err := transactions.ListTransactions(context.Background(), "user-1", ListTransactionsInput{
		Filters: domain.TransactionFilters{Month: &march},
	})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "t1", page.Data[0].ID)
	assert.False(t, page.Data[0].IsVirtual)
}

func TestBulkDeleteRecurring_TooManyIDsDeletesNothing(t *testing.T) {
	svc, recurringRepo, _, _ := setupRecurringServiceTest()

	tooMany := make([]string, domain.MaxBulkDeleteIDs+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("r%d", i)
		recurringRepo.AddDefinition(monthlyDef(tooMany[i], "user-1", day(2025, 1, 1), "FREQ=MONTHLY"))
	}

	_, err := svc.BulkDeleteRecurring(context.Background(), "user-1", tooMany)
	assert.True(t, errors.Is(err, domain.ErrTooManyIDs))
	assert.Equal(t, 0, recurringRepo.DeleteCalls)
	assert.Len(t, recurringRepo.Definitions, domain.MaxBulkDeleteIDs+1)
}

func TestBulkDeleteRecurring_ReportsPerID(t *testing.T) {
	svc, recurringRepo, _, _ := setupRecurringServiceTest()
	recurringRepo.AddDefinition(monthlyDef("a", "user-1", day(2025, 1, 1), "FREQ=MONTHLY"))
	recurringRepo.AddDefinition(monthlyDef("b", "user-1", day(2025, 1, 1), "FREQ=MONTHLY"))

	result, err := svc.BulkDeleteRecurring(context.Background(), "user-1", []string{"a", "ghost", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, result.Success)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "ghost", result.Failed[0].ID)
	assert.Equal(t, "not found", result.Failed[0].Reason)

	_, err = svc.BulkDeleteRecurring(context.Background(), "user-1", []string{"a", " "})
	var fe *domain.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "ids", fe.Field)
}

func TestUpdateRecurring(t *testing.T) {
	svc, recurringRepo, _, publisher := setupRecurringServiceTest()
	recurringRepo.AddDefinition(monthlyDef("R", "user-1", day(2025, 1, 10), "FREQ=MONTHLY"))
	ctx := context.Background()

	rule := "RRULE:FREQ=WEEKLY;COUNT=4"
	amount := decimal.NewFromInt(75)
	updated, err := svc.UpdateRecurring(ctx, "user-1", "R", &domain.UpdateRecurringData{
		RecurrenceRule: &rule,
		Amount:         &amount,
	})
	require.NoError(t, err)
	assert.Equal(t, "FREQ=WEEKLY;COUNT=4", updated.RecurrenceRule)
	assert.True(t, updated.Amount.Equal(amount))
	assert.True(t, updated.StartDate.Equal(day(2025, 1, 10)))

	end := day(2025, 6, 30)
	updated, err = svc.UpdateRecurring(ctx, "user-1", "R", &domain.UpdateRecurringData{EndDate: &end})
	require.NoError(t, err)
	require.NotNil(t, updated.EndDate)
	assert.True(t, updated.EndDate.Equal(end))

	updated, err = svc.UpdateRecurring(ctx, "user-1", "R", &domain.UpdateRecurringData{ClearEndDate: true})
	require.NoError(t, err)
	assert.Nil(t, updated.EndDate)

	assert.Equal(t, []string{"recurring.updated", "recurring.updated", "recurring.updated"}, publisher.Types())
}

func TestUpdateRecurring_KeepsByParts(t *testing.T) {
	svc, recurringRepo, _, _ := setupRecurringServiceTest()
	recurringRepo.AddDefinition(monthlyDef("R", "user-1", day(2025, 1, 10), "FREQ=MONTHLY"))

	rule := "RRULE:FREQ=MONTHLY;BYMONTHDAY=1,15"
	updated, err := svc.UpdateRecurring(context.Background(), "user-1", "R", &domain.UpdateRecurringData{RecurrenceRule: &rule})
	require.NoError(t, err)
	assert.Equal(t, "FREQ=MONTHLY;BYMONTHDAY=1,15", updated.RecurrenceRule)
	assert.Equal(t, "FREQ=MONTHLY;BYMONTHDAY=1,15", recurringRepo.Definitions["R"].RecurrenceRule)
}

func TestUpdateRecurring_RejectsUnboundedCount(t *testing.T) {
	svc, recurringRepo, _, publisher := setupRecurringServiceTest()
	recurringRepo.AddDefinition(monthlyDef("R", "user-1", day(2025, 1, 10), "FREQ=MONTHLY;COUNT=3"))

	for _, rule := range []string{"FREQ=MONTHLY;COUNT=0", "FREQ=MONTHLY;INTERVAL=0"} {
		_, err := svc.UpdateRecurring(context.Background(), "user-1", "R", &domain.UpdateRecurringData{RecurrenceRule: &rule})
		assert.True(t, errors.Is(err, domain.ErrMalformedRule), "rule %q", rule)
	}
	assert.Equal(t, "FREQ=MONTHLY;COUNT=3", recurringRepo.Definitions["R"].RecurrenceRule)
	assert.Empty(t, publisher.Types())
}

func TestUpdateRecurring_Validation(t *testing.T) {
	svc, recurringRepo, _, publisher := setupRecurringServiceTest()
	recurringRepo.AddDefinition(monthlyDef("R", "user-1", day(2025, 1, 10), "FREQ=MONTHLY"))
	ctx := context.Background()

	bad := "FREQ=HOURLY"
	_, err := svc.UpdateRecurring(ctx, "user-1", "R", &domain.UpdateRecurringData{RecurrenceRule: &bad})
	assert.True(t, errors.Is(err, domain.ErrInvalidRule))

	early := day(2024, 12, 31)
	_, err = svc.UpdateRecurring(ctx, "user-1", "R", &domain.UpdateRecurringData{EndDate: &early})
	var fe *domain.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "endDate", fe.Field)

	blank := "  "
	_, err = svc.UpdateRecurring(ctx, "user-1", "R", &domain.UpdateRecurringData{Description: &blank})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	assert.Empty(t, publisher.Types())
	assert.Equal(t, "FREQ=MONTHLY", recurringRepo.Definitions["R"].RecurrenceRule)
}

func TestListRecurring(t *testing.T) {
	svc, recurringRepo, _, _ := setupRecurringServiceTest()
	ended := monthlyDef("old", "user-1", day(2024, 1, 1), "FREQ=MONTHLY")
	end := day(2024, 3, 1)
	ended.EndDate = &end
	recurringRepo.AddDefinition(ended)
	recurringRepo.AddDefinition(monthlyDef("current", "user-1", day(2025, 1, 1), "FREQ=MONTHLY"))

	all, err := svc.ListRecurring(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	from := day(2025, 1, 1)
	active, err := svc.ListRecurring(context.Background(), "user-1", &from)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "current", active[0].ID)

	none, err := svc.ListRecurring(context.Background(), "user-3", nil)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
