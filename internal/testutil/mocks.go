package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/websocket"
	"github.com/google/uuid"
)

// MockTransactionRepository is a mock implementation of domain.TransactionRepository.
// It is safe for concurrent use.
type MockTransactionRepository struct {
	mu           sync.Mutex
	Transactions map[string]*domain.Transaction
	order        []string

	CreateFn          func(transaction *domain.Transaction) (*domain.Transaction, error)
	CreateBatchFn     func(transactions []*domain.Transaction) ([]*domain.Transaction, error)
	ListFn            func(userID string, filters *domain.TransactionFilters) ([]*domain.Transaction, error)
	ListByRecurringFn func(userID, recurringID string) ([]*domain.Transaction, error)
	DeleteFn          func(userID, id string) error
	DetachRecurringFn func(userID, recurringID string) (int64, error)

	CreateBatchCalls int
}

// NewMockTransactionRepository creates a new MockTransactionRepository
func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		Transactions: make(map[string]*domain.Transaction),
	}
}

// AddTransaction adds a transaction to the mock repository (helper for tests)
func (m *MockTransactionRepository) AddTransaction(tx *domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(tx)
}

func (m *MockTransactionRepository) put(tx *domain.Transaction) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if _, exists := m.Transactions[tx.ID]; !exists {
		m.order = append(m.order, tx.ID)
	}
	m.Transactions[tx.ID] = tx
}

// All returns every stored transaction in insertion order
func (m *MockTransactionRepository) All() []*domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Transaction, 0, len(m.order))
	for _, id := range m.order {
		if tx, ok := m.Transactions[id]; ok {
			out = append(out, tx)
		}
	}
	return out
}

// Create creates a new transaction
func (m *MockTransactionRepository) Create(_ context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	if m.CreateFn != nil {
		return m.CreateFn(transaction)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *transaction
	created.ID = uuid.NewString()
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.put(&created)
	return &created, nil
}

// CreateBatch creates all transactions or none
func (m *MockTransactionRepository) CreateBatch(_ context.Context, transactions []*domain.Transaction) ([]*domain.Transaction, error) {
	m.mu.Lock()
	m.CreateBatchCalls++
	m.mu.Unlock()
	if m.CreateBatchFn != nil {
		return m.CreateBatchFn(transactions)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		created := *tx
		created.ID = uuid.NewString()
		created.CreatedAt = time.Now()
		created.UpdatedAt = created.CreatedAt
		m.put(&created)
		out = append(out, &created)
	}
	return out, nil
}

// GetByID retrieves a transaction by ID
func (m *MockTransactionRepository) GetByID(_ context.Context, userID, id string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.Transactions[id]; ok && tx.UserID == userID {
		return tx, nil
	}
	return nil, domain.ErrTransactionNotFound
}

// List retrieves the user's transactions matching filters
func (m *MockTransactionRepository) List(_ context.Context, userID string, filters *domain.TransactionFilters) ([]*domain.Transaction, error) {
	if m.ListFn != nil {
		return m.ListFn(userID, filters)
	}
	var out []*domain.Transaction
	for _, tx := range m.All() {
		if tx.UserID == userID && matches(tx, filters) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// ListByRecurring retrieves the transactions spawned by a recurring definition
func (m *MockTransactionRepository) ListByRecurring(_ context.Context, userID, recurringID string) ([]*domain.Transaction, error) {
	if m.ListByRecurringFn != nil {
		return m.ListByRecurringFn(userID, recurringID)
	}
	var out []*domain.Transaction
	for _, tx := range m.All() {
		if tx.UserID == userID && tx.RecurringDefinitionID != nil && *tx.RecurringDefinitionID == recurringID {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Update applies a partial update
func (m *MockTransactionRepository) Update(_ context.Context, userID, id string, data *domain.UpdateTransactionData) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.Transactions[id]
	if !ok || tx.UserID != userID {
		return nil, domain.ErrTransactionNotFound
	}
	if data.Description != nil {
		tx.Description = *data.Description
	}
	if data.Date != nil {
		tx.Date = *data.Date
	}
	if data.Amount != nil {
		tx.Amount = *data.Amount
	}
	if data.Type != nil {
		tx.Type = *data.Type
	}
	if data.Note != nil {
		tx.Note = data.Note
	}
	if data.CategoryID != nil {
		tx.CategoryID = data.CategoryID
	}
	if data.TagID != nil {
		tx.TagID = data.TagID
	}
	if data.PaymentStatusID != nil {
		tx.PaymentStatusID = data.PaymentStatusID
	}
	tx.UpdatedAt = time.Now()
	return tx, nil
}

// Delete removes a transaction
func (m *MockTransactionRepository) Delete(_ context.Context, userID, id string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(userID, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.Transactions[id]
	if !ok || tx.UserID != userID {
		return domain.ErrTransactionNotFound
	}
	delete(m.Transactions, id)
	return nil
}

// DetachRecurring clears the recurring link of the definition's transactions
func (m *MockTransactionRepository) DetachRecurring(_ context.Context, userID, recurringID string) (int64, error) {
	if m.DetachRecurringFn != nil {
		return m.DetachRecurringFn(userID, recurringID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, tx := range m.Transactions {
		if tx.UserID == userID && tx.RecurringDefinitionID != nil && *tx.RecurringDefinitionID == recurringID {
			tx.RecurringDefinitionID = nil
			n++
		}
	}
	return n, nil
}

// CountByLabel counts the user's transactions referencing a label
func (m *MockTransactionRepository) CountByLabel(_ context.Context, userID string, kind domain.LabelKind, labelID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, tx := range m.Transactions {
		if tx.UserID != userID {
			continue
		}
		var ref *string
		switch kind {
		case domain.LabelKindCategory:
			ref = tx.CategoryID
		case domain.LabelKindTag:
			ref = tx.TagID
		case domain.LabelKindPaymentStatus:
			ref = tx.PaymentStatusID
		}
		if ref != nil && *ref == labelID {
			n++
		}
	}
	return n, nil
}

func matches(tx *domain.Transaction, f *domain.TransactionFilters) bool {
	if f == nil {
		return true
	}
	if f.Type != nil && tx.Type != *f.Type {
		return false
	}
	if f.CategoryID != nil && (tx.CategoryID == nil || *tx.CategoryID != *f.CategoryID) {
		return false
	}
	if f.TagID != nil && (tx.TagID == nil || *tx.TagID != *f.TagID) {
		return false
	}
	if f.PaymentStatusID != nil && (tx.PaymentStatusID == nil || *tx.PaymentStatusID != *f.PaymentStatusID) {
		return false
	}
	if f.Status != nil && (tx.PaymentStatus == nil || !strings.EqualFold(tx.PaymentStatus.Description, *f.Status)) {
		return false
	}
	if start, end, ok := f.MonthRange(); ok && (tx.Date.Before(start) || tx.Date.After(end)) {
		return false
	}
	return true
}

// MockRecurringRepository is a mock implementation of domain.RecurringRepository
type MockRecurringRepository struct {
	mu          sync.Mutex
	Definitions map[string]*domain.RecurringDefinition
	order       []string

	CreateFn     func(definition *domain.RecurringDefinition) (*domain.RecurringDefinition, error)
	ListByUserFn func(userID string, activeFrom *time.Time) ([]*domain.RecurringDefinition, error)
	ListActiveFn func(start, end time.Time) ([]*domain.RecurringDefinition, error)
	DeleteFn     func(userID, id string) error

	// Transactions receives the detach half of DeleteDetaching when set
	Transactions *MockTransactionRepository

	DeleteCalls int
	Touched     map[string]time.Time
}

// NewMockRecurringRepository creates a new MockRecurringRepository
func NewMockRecurringRepository() *MockRecurringRepository {
	return &MockRecurringRepository{
		Definitions: make(map[string]*domain.RecurringDefinition),
		Touched:     make(map[string]time.Time),
	}
}

// AddDefinition adds a definition to the mock repository (helper for tests)
func (m *MockRecurringRepository) AddDefinition(def *domain.RecurringDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if _, exists := m.Definitions[def.ID]; !exists {
		m.order = append(m.order, def.ID)
	}
	m.Definitions[def.ID] = def
}

func (m *MockRecurringRepository) all() []*domain.RecurringDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.RecurringDefinition, 0, len(m.order))
	for _, id := range m.order {
		if def, ok := m.Definitions[id]; ok {
			out = append(out, def)
		}
	}
	return out
}

// Create creates a new definition
func (m *MockRecurringRepository) Create(_ context.Context, definition *domain.RecurringDefinition) (*domain.RecurringDefinition, error) {
	if m.CreateFn != nil {
		return m.CreateFn(definition)
	}
	created := *definition
	created.ID = uuid.NewString()
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.AddDefinition(&created)
	return &created, nil
}

// GetByID retrieves a definition by ID
func (m *MockRecurringRepository) GetByID(_ context.Context, userID, id string) (*domain.RecurringDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if def, ok := m.Definitions[id]; ok && def.UserID == userID {
		return def, nil
	}
	return nil, domain.ErrRecurringNotFound
}

// ListByUser retrieves the user's definitions, newest first
func (m *MockRecurringRepository) ListByUser(_ context.Context, userID string, activeFrom *time.Time) ([]*domain.RecurringDefinition, error) {
	if m.ListByUserFn != nil {
		return m.ListByUserFn(userID, activeFrom)
	}
	all := m.all()
	var out []*domain.RecurringDefinition
	for i := len(all) - 1; i >= 0; i-- {
		def := all[i]
		if def.UserID != userID {
			continue
		}
		if activeFrom != nil && def.EndDate != nil && def.EndDate.Before(*activeFrom) {
			continue
		}
		out = append(out, def)
	}
	return out, nil
}

// ListActive retrieves every definition that may produce occurrences in [start, end]
func (m *MockRecurringRepository) ListActive(_ context.Context, start, end time.Time) ([]*domain.RecurringDefinition, error) {
	if m.ListActiveFn != nil {
		return m.ListActiveFn(start, end)
	}
	var out []*domain.RecurringDefinition
	for _, def := range m.all() {
		if def.ActiveIn(start, end) {
			out = append(out, def)
		}
	}
	return out, nil
}

// Update replaces a definition
func (m *MockRecurringRepository) Update(_ context.Context, definition *domain.RecurringDefinition) (*domain.RecurringDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.Definitions[definition.ID]
	if !ok || existing.UserID != definition.UserID {
		return nil, domain.ErrRecurringNotFound
	}
	updated := *definition
	updated.UpdatedAt = time.Now()
	m.Definitions[definition.ID] = &updated
	return &updated, nil
}

// Delete removes a definition
func (m *MockRecurringRepository) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	m.DeleteCalls++
	m.mu.Unlock()
	if m.DeleteFn != nil {
		return m.DeleteFn(userID, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.Definitions[id]
	if !ok || def.UserID != userID {
		return domain.ErrRecurringNotFound
	}
	delete(m.Definitions, id)
	return nil
}

// DeleteDetaching mirrors the single database transaction of the real
// repository: on any failure neither the links nor the definition change.
func (m *MockRecurringRepository) DeleteDetaching(ctx context.Context, userID, id string) (int64, error) {
	m.mu.Lock()
	m.DeleteCalls++
	def, ok := m.Definitions[id]
	m.mu.Unlock()

	if !ok || def.UserID != userID {
		return 0, domain.ErrRecurringNotFound
	}
	if m.DeleteFn != nil {
		if err := m.DeleteFn(userID, id); err != nil {
			return 0, err
		}
	}

	var detached int64
	if m.Transactions != nil {
		n, err := m.Transactions.DetachRecurring(ctx, userID, id)
		if err != nil {
			return 0, err
		}
		detached = n
	}

	m.mu.Lock()
	delete(m.Definitions, id)
	m.mu.Unlock()
	return detached, nil
}

// TouchLastGenerated records the advisory watermark
func (m *MockRecurringRepository) TouchLastGenerated(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Touched[id] = at
	if def, ok := m.Definitions[id]; ok {
		def.LastGeneratedAt = &at
	}
	return nil
}

type labelKey struct {
	kind domain.LabelKind
	id   string
}

// MockLabelRepository is a mock implementation of domain.LabelRepository
type MockLabelRepository struct {
	mu     sync.Mutex
	Labels map[labelKey]*domain.Label

	CreateFn func(kind domain.LabelKind, label *domain.Label) (*domain.Label, error)
}

// NewMockLabelRepository creates a new MockLabelRepository
func NewMockLabelRepository() *MockLabelRepository {
	return &MockLabelRepository{
		Labels: make(map[labelKey]*domain.Label),
	}
}

// AddLabel adds a label to the mock repository (helper for tests)
func (m *MockLabelRepository) AddLabel(kind domain.LabelKind, label *domain.Label) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if label.ID == "" {
		label.ID = uuid.NewString()
	}
	m.Labels[labelKey{kind, label.ID}] = label
}

// Create creates a new label
func (m *MockLabelRepository) Create(_ context.Context, kind domain.LabelKind, label *domain.Label) (*domain.Label, error) {
	if m.CreateFn != nil {
		return m.CreateFn(kind, label)
	}
	created := *label
	created.ID = uuid.NewString()
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.AddLabel(kind, &created)
	return &created, nil
}

// GetByID retrieves a label by ID
func (m *MockLabelRepository) GetByID(_ context.Context, kind domain.LabelKind, userID, id string) (*domain.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.Labels[labelKey{kind, id}]; ok && l.UserID == userID {
		return l, nil
	}
	return nil, domain.ErrLabelNotFound
}

// ListByUser retrieves the user's labels of a kind ordered by description
func (m *MockLabelRepository) ListByUser(_ context.Context, kind domain.LabelKind, userID string) ([]*domain.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Label{}
	for k, l := range m.Labels {
		if k.kind == kind && l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Description < out[j].Description })
	return out, nil
}

// Update updates a label's description
func (m *MockLabelRepository) Update(_ context.Context, kind domain.LabelKind, label *domain.Label) (*domain.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.Labels[labelKey{kind, label.ID}]
	if !ok || existing.UserID != label.UserID {
		return nil, domain.ErrLabelNotFound
	}
	existing.Description = label.Description
	existing.UpdatedAt = time.Now()
	return existing, nil
}

// Delete removes a label
func (m *MockLabelRepository) Delete(_ context.Context, kind domain.LabelKind, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.Labels[labelKey{kind, id}]
	if !ok || l.UserID != userID {
		return domain.ErrLabelNotFound
	}
	delete(m.Labels, labelKey{kind, id})
	return nil
}

// MockInvestmentRepository is a mock implementation of domain.InvestmentRepository
type MockInvestmentRepository struct {
	mu          sync.Mutex
	Investments map[string]*domain.Investment
}

// NewMockInvestmentRepository creates a new MockInvestmentRepository
func NewMockInvestmentRepository() *MockInvestmentRepository {
	return &MockInvestmentRepository{
		Investments: make(map[string]*domain.Investment),
	}
}

// Create creates a new investment
func (m *MockInvestmentRepository) Create(_ context.Context, investment *domain.Investment) (*domain.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *investment
	created.ID = uuid.NewString()
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.Investments[created.ID] = &created
	return &created, nil
}

// GetByID retrieves an investment by ID
func (m *MockInvestmentRepository) GetByID(_ context.Context, userID, id string) (*domain.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.Investments[id]; ok && inv.UserID == userID {
		return inv, nil
	}
	return nil, domain.ErrInvestmentNotFound
}

// List retrieves a page of the user's investments, newest purchase first
func (m *MockInvestmentRepository) List(_ context.Context, userID string, filters *domain.InvestmentFilters) (*domain.PaginatedInvestments, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := []*domain.Investment{}
	for _, inv := range m.Investments {
		if inv.UserID != userID {
			continue
		}
		if filters.Currency != nil && inv.Currency != *filters.Currency {
			continue
		}
		all = append(all, inv)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].PurchaseDate.After(all[j].PurchaseDate) })

	total := len(all)
	from, to := domain.PageBounds(total, filters.Page, filters.Limit)
	return &domain.PaginatedInvestments{
		Data:       all[from:to],
		Pagination: domain.NewPagination(total, filters.Page, filters.Limit),
	}, nil
}

// Update replaces an investment
func (m *MockInvestmentRepository) Update(_ context.Context, investment *domain.Investment) (*domain.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.Investments[investment.ID]
	if !ok || existing.UserID != investment.UserID {
		return nil, domain.ErrInvestmentNotFound
	}
	updated := *investment
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	m.Investments[investment.ID] = &updated
	return &updated, nil
}

// Delete removes an investment
func (m *MockInvestmentRepository) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.Investments[id]
	if !ok || inv.UserID != userID {
		return domain.ErrInvestmentNotFound
	}
	delete(m.Investments, id)
	return nil
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

// PublishedEvent is one recorded publish call
type PublishedEvent struct {
	UserID string
	Event  websocket.Event
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// Publish records an event
func (m *MockEventPublisher) Publish(userID string, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{UserID: userID, Event: event})
}

// Types returns the recorded event types in order
func (m *MockEventPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Event.Type
	}
	return out
}
