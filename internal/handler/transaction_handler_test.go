package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/dafibh/fortuna/ledger-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func setupTransactionHandler() (*TransactionHandler, *testutil.MockTransactionRepository, *testutil.MockRecurringRepository) {
	txRepo := testutil.NewMockTransactionRepository()
	recRepo := testutil.NewMockRecurringRepository()
	svc := service.NewTransactionService(txRepo, recRepo, zerolog.Nop(), service.TransactionServiceConfig{})
	return NewTransactionHandler(svc), txRepo, recRepo
}

func TestCreateTransaction_Success(t *testing.T) {
	handler, txRepo, _ := setupTransactionHandler()

	body := `{"description": "Groceries", "date": "2025-03-05", "amount": "120.50", "type": "OUTCOME"}`
	c, rec := newRequestContext(http.MethodPost, "/api/v1/transactions", body, testUserID)

	if err := handler.CreateTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CreateTransactionResponse
	decodeBody(t, rec, &resp)
	if resp.Transaction == nil || resp.Transaction.ID == "" {
		t.Fatal("Expected transaction in response")
	}
	if resp.RecurringTransaction != nil {
		t.Error("Expected no recurring transaction")
	}
	if resp.Transaction.Type != domain.TransactionTypeOutcome {
		t.Errorf("Expected type outcome, got %s", resp.Transaction.Type)
	}
	if !resp.Transaction.Amount.Equal(decimal.RequireFromString("120.50")) {
		t.Errorf("Expected amount 120.50, got %s", resp.Transaction.Amount)
	}
	if len(txRepo.All()) != 1 {
		t.Errorf("Expected 1 stored transaction, got %d", len(txRepo.All()))
	}
}

func TestCreateTransaction_WithRecurrence(t *testing.T) {
	handler, _, recRepo := setupTransactionHandler()

	body := `{"description": "Rent", "date": "2025-01-31", "amount": 1500, "type": "outcome",
		"recurrent": {"frequency": "Monthly", "quantity": 12}}`
	c, rec := newRequestContext(http.MethodPost, "/api/v1/transactions", body, testUserID)

	if err := handler.CreateTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CreateTransactionResponse
	decodeBody(t, rec, &resp)
	if resp.RecurringTransaction == nil {
		t.Fatal("Expected recurring transaction in response")
	}
	if resp.RecurringTransaction.RecurrenceRule != "FREQ=MONTHLY;COUNT=12" {
		t.Errorf("Expected rule FREQ=MONTHLY;COUNT=12, got %s", resp.RecurringTransaction.RecurrenceRule)
	}
	if resp.Transaction.RecurringDefinitionID == nil || *resp.Transaction.RecurringDefinitionID != resp.RecurringTransaction.ID {
		t.Error("Expected transaction linked to the recurring definition")
	}
	if len(recRepo.Definitions) != 1 {
		t.Errorf("Expected 1 definition, got %d", len(recRepo.Definitions))
	}
}

func TestCreateTransaction_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing amount", `{"description": "x", "date": "2025-03-05", "type": "income"}`, "amount"},
		{"bad date", `{"description": "x", "date": "05/03/2025", "amount": "1", "type": "income"}`, "date"},
		{"blank description", `{"description": "  ", "date": "2025-03-05", "amount": "1", "type": "income"}`, "description"},
		{"bad frequency", `{"description": "x", "date": "2025-03-05", "amount": "1", "type": "income", "recurrent": {"frequency": "hourly", "quantity": 2}}`, "recurrent.frequency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _, _ := setupTransactionHandler()
			c, rec := newRequestContext(http.MethodPost, "/api/v1/transactions", tt.body, testUserID)

			if err := handler.CreateTransaction(c); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d", rec.Code)
			}
			problem := decodeProblem(t, rec)
			if problem.Type != ErrorTypeValidation {
				t.Errorf("Expected validation problem type, got %s", problem.Type)
			}
			found := false
			for _, e := range problem.Errors {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected error on field %s, got %+v", tt.wantField, problem.Errors)
			}
		})
	}
}

func TestCreateTransaction_InvalidType(t *testing.T) {
	handler, _, _ := setupTransactionHandler()

	body := `{"description": "x", "date": "2025-03-05", "amount": "1", "type": "transfer"}`
	c, rec := newRequestContext(http.MethodPost, "/api/v1/transactions", body, testUserID)

	if err := handler.CreateTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestGetTransactions_MergesVirtualOccurrences(t *testing.T) {
	handler, txRepo, recRepo := setupTransactionHandler()

	def := &domain.RecurringDefinition{
		ID:             "def-1",
		UserID:         testUserID,
		Description:    "Gym",
		Type:           domain.TransactionTypeOutcome,
		Amount:         decimal.NewFromInt(90),
		RecurrenceRule: "FREQ=MONTHLY;COUNT=12",
		StartDate:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	recRepo.AddDefinition(def)
	txRepo.AddTransaction(&domain.Transaction{
		UserID:      testUserID,
		Description: "Coffee",
		Date:        time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(5),
		Type:        domain.TransactionTypeOutcome,
	})
	txRepo.AddTransaction(&domain.Transaction{
		UserID:      testUserID,
		Description: "Outside month",
		Date:        time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(5),
		Type:        domain.TransactionTypeOutcome,
	})

	c, rec := newRequestContext(http.MethodGet, "/api/v1/transactions?date=2025-04&sortBy=date&sortOrder=asc", "", testUserID)

	if err := handler.GetTransactions(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var page domain.TransactionPage
	decodeBody(t, rec, &page)
	if len(page.Data) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(page.Data))
	}
	if page.Data[0].Description != "Coffee" || page.Data[0].IsVirtual {
		t.Errorf("Expected real Coffee first, got %+v", page.Data[0])
	}
	virtual := page.Data[1]
	if !virtual.IsVirtual {
		t.Error("Expected second row to be virtual")
	}
	wantID := service.VirtualID("def-1", time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC))
	if virtual.ID != wantID {
		t.Errorf("Expected virtual id %s, got %s", wantID, virtual.ID)
	}
	if page.Pagination.Total != 2 {
		t.Errorf("Expected total 2, got %d", page.Pagination.Total)
	}
}

func TestGetTransactions_InvalidQuery(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"bad month", "/api/v1/transactions?date=April"},
		{"bad page", "/api/v1/transactions?page=one"},
		{"bad limit", "/api/v1/transactions?limit=ten"},
		{"unknown sort key", "/api/v1/transactions?sortBy=merchant"},
		{"unknown sort order", "/api/v1/transactions?sortOrder=up"},
		{"unknown type", "/api/v1/transactions?type=transfer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _, _ := setupTransactionHandler()
			c, rec := newRequestContext(http.MethodGet, tt.target, "", testUserID)

			if err := handler.GetTransactions(c); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rec.Code)
			}
		})
	}
}

func TestGetTransactions_Unauthenticated(t *testing.T) {
	handler, _, _ := setupTransactionHandler()
	c, rec := newRequestContext(http.MethodGet, "/api/v1/transactions", "", "")

	if err := handler.GetTransactions(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func TestGetTransaction_NotFound(t *testing.T) {
	handler, _, _ := setupTransactionHandler()

	for _, id := range []string{"missing", "virtual-def-1-20250410T000000Z"} {
		c, rec := newRequestContext(http.MethodGet, "/api/v1/transactions/"+id, "", testUserID)
		withParam(c, id)

		if err := handler.GetTransaction(c); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", id, rec.Code)
		}
	}
}

func TestGetTransaction_OtherUser(t *testing.T) {
	handler, txRepo, _ := setupTransactionHandler()
	tx := &domain.Transaction{UserID: "auth0|someone-else", Description: "x", Type: domain.TransactionTypeIncome}
	txRepo.AddTransaction(tx)

	c, rec := newRequestContext(http.MethodGet, "/api/v1/transactions/"+tx.ID, "", testUserID)
	withParam(c, tx.ID)

	if err := handler.GetTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestUpdateTransaction_Success(t *testing.T) {
	handler, txRepo, _ := setupTransactionHandler()
	tx := &domain.Transaction{
		UserID:      testUserID,
		Description: "Old",
		Date:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(10),
		Type:        domain.TransactionTypeIncome,
	}
	txRepo.AddTransaction(tx)

	c, rec := newRequestContext(http.MethodPut, "/api/v1/transactions/"+tx.ID, `{"description": "New", "date": "2025-03-09"}`, testUserID)
	withParam(c, tx.ID)

	if err := handler.UpdateTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var updated domain.Transaction
	decodeBody(t, rec, &updated)
	if updated.Description != "New" {
		t.Errorf("Expected description New, got %s", updated.Description)
	}
	if !updated.Date.Equal(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected date 2025-03-09, got %s", updated.Date)
	}
}

func TestUpdateTransaction_BadDate(t *testing.T) {
	handler, _, _ := setupTransactionHandler()

	c, rec := newRequestContext(http.MethodPut, "/api/v1/transactions/x", `{"date": "tomorrow"}`, testUserID)
	withParam(c, "x")

	if err := handler.UpdateTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestDeleteTransaction(t *testing.T) {
	handler, txRepo, _ := setupTransactionHandler()
	tx := &domain.Transaction{UserID: testUserID, Description: "x", Type: domain.TransactionTypeIncome}
	txRepo.AddTransaction(tx)

	c, rec := newRequestContext(http.MethodDelete, "/api/v1/transactions/"+tx.ID, "", testUserID)
	withParam(c, tx.ID)

	if err := handler.DeleteTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}
	if len(txRepo.All()) != 0 {
		t.Error("Expected transaction to be deleted")
	}

	// second delete is a 404
	c, rec = newRequestContext(http.MethodDelete, "/api/v1/transactions/"+tx.ID, "", testUserID)
	withParam(c, tx.ID)
	if err := handler.DeleteTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestDeleteTransaction_StorageFailure(t *testing.T) {
	handler, txRepo, _ := setupTransactionHandler()
	txRepo.DeleteFn = func(userID, id string) error {
		return domain.NewStorageError("delete", "transactions", errors.New("connection reset"))
	}

	c, rec := newRequestContext(http.MethodDelete, "/api/v1/transactions/abc", "", testUserID)
	withParam(c, "abc")

	if err := handler.DeleteTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Error("Expected storage detail to stay out of the response")
	}
}

func TestBulkDeleteTransactions(t *testing.T) {
	handler, txRepo, _ := setupTransactionHandler()
	tx := &domain.Transaction{UserID: testUserID, Description: "x", Type: domain.TransactionTypeIncome}
	txRepo.AddTransaction(tx)

	body := fmt.Sprintf(`{"ids": [%q, "missing"]}`, tx.ID)
	c, rec := newRequestContext(http.MethodPost, "/api/v1/transactions/bulk-delete", body, testUserID)

	if err := handler.BulkDeleteTransactions(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.BulkDeleteResult
	decodeBody(t, rec, &result)
	if len(result.Success) != 1 || result.Success[0] != tx.ID {
		t.Errorf("Expected %s deleted, got %v", tx.ID, result.Success)
	}
	if len(result.Failed) != 1 || result.Failed[0].ID != "missing" {
		t.Errorf("Expected missing to fail, got %+v", result.Failed)
	}
}

func TestBulkDeleteTransactions_TooMany(t *testing.T) {
	handler, _, _ := setupTransactionHandler()

	ids := make([]string, domain.MaxBulkDeleteIDs+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("%q", fmt.Sprintf("id-%d", i))
	}
	body := `{"ids": [` + strings.Join(ids, ",") + `]}`
	c, rec := newRequestContext(http.MethodPost, "/api/v1/transactions/bulk-delete", body, testUserID)

	if err := handler.BulkDeleteTransactions(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}
