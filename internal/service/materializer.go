package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/recurrence"
	"github.com/dafibh/fortuna/ledger-backend/internal/util"
	"github.com/dafibh/fortuna/ledger-backend/internal/websocket"
	"github.com/rs/zerolog"
)

const (
	minMaterializeYear = 2000
	maxMaterializeYear = 2100
)

// MaterializeError records a definition that could not be materialized
type MaterializeError struct {
	DefinitionID string `json:"definitionId"`
	Error        string `json:"error"`
}

// MaterializeStats is the report of one materialization run
type MaterializeStats struct {
	Month                     int                `json:"month"`
	Year                      int                `json:"year"`
	TotalDefinitions          int                `json:"totalDefinitions"`
	TotalOccurrencesGenerated int                `json:"totalOccurrencesGenerated"`
	TotalTransactionsCreated  int                `json:"totalTransactionsCreated"`
	Errors                    []MaterializeError `json:"errors"`
}

// Materializer persists the occurrences of a month as real transactions.
// Re-runs are safe: existing dates are re-read right before every insert, and
// last_generated_at is only written as a hint.
type Materializer struct {
	recurringRepo   domain.RecurringRepository
	transactionRepo domain.TransactionRepository
	eventPublisher  websocket.EventPublisher
	logger          zerolog.Logger
	now             func() time.Time
}

// NewMaterializer creates a new Materializer
func NewMaterializer(
	recurringRepo domain.RecurringRepository,
	transactionRepo domain.TransactionRepository,
	logger zerolog.Logger,
) *Materializer {
	return &Materializer{
		recurringRepo:   recurringRepo,
		transactionRepo: transactionRepo,
		logger:          logger.With().Str("component", "materializer").Logger(),
		now:             time.Now,
	}
}

// SetEventPublisher sets the WebSocket event publisher
func (m *Materializer) SetEventPublisher(publisher websocket.EventPublisher) {
	m.eventPublisher = publisher
}

// CurrentPeriod returns the current UTC month and year
func (m *Materializer) CurrentPeriod() (int, int) {
	return util.CurrentPeriod(m.now())
}

// Run materializes the target month for every user's definitions
func (m *Materializer) Run(ctx context.Context, month, year int) (*MaterializeStats, error) {
	window, err := materializeWindow(month, year)
	if err != nil {
		return nil, err
	}
	defs, err := m.recurringRepo.ListActive(ctx, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	return m.run(ctx, defs, window, month, year)
}

// RunForUser materializes the target month for one user's definitions
func (m *Materializer) RunForUser(ctx context.Context, userID string, month, year int) (*MaterializeStats, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	window, err := materializeWindow(month, year)
	if err != nil {
		return nil, err
	}
	all, err := m.recurringRepo.ListByUser(ctx, userID, &window.Start)
	if err != nil {
		return nil, err
	}
	defs := make([]*domain.RecurringDefinition, 0, len(all))
	for _, def := range all {
		if def.ActiveIn(window.Start, window.End) {
			defs = append(defs, def)
		}
	}
	return m.run(ctx, defs, window, month, year)
}

func materializeWindow(month, year int) (recurrence.Window, error) {
	if month < 1 || month > 12 {
		return recurrence.Window{}, domain.NewFieldError("month", "must be between 1 and 12")
	}
	if year < minMaterializeYear || year > maxMaterializeYear {
		return recurrence.Window{}, domain.NewFieldError("year", fmt.Sprintf("must be between %d and %d", minMaterializeYear, maxMaterializeYear))
	}
	return recurrence.MonthWindow(year, time.Month(month)), nil
}

func (m *Materializer) run(ctx context.Context, defs []*domain.RecurringDefinition, window recurrence.Window, month, year int) (*MaterializeStats, error) {
	started := m.now()
	stats := &MaterializeStats{
		Month:            month,
		Year:             year,
		TotalDefinitions: len(defs),
		Errors:           make([]MaterializeError, 0),
	}
	createdByUser := make(map[string]int)

	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		generated, created, err := m.materializeDefinition(ctx, def, window)
		stats.TotalOccurrencesGenerated += generated
		if err != nil {
			m.logger.Warn().
				Err(err).
				Str("recurring_id", def.ID).
				Str("user_id", def.UserID).
				Msg("Failed to materialize recurring transaction")
			stats.Errors = append(stats.Errors, MaterializeError{DefinitionID: def.ID, Error: err.Error()})
			continue
		}
		stats.TotalTransactionsCreated += created
		if created > 0 {
			createdByUser[def.UserID] += created
		}
	}

	if m.eventPublisher != nil {
		for userID := range createdByUser {
			m.eventPublisher.Publish(userID, websocket.NewEvent(websocket.ProjectionSyncedEvent, stats))
		}
	}

	m.logger.Info().
		Int("month", month).
		Int("year", year).
		Bool("backfill", util.IsPastPeriod(month, year, started)).
		Int("definitions", stats.TotalDefinitions).
		Int("occurrences", stats.TotalOccurrencesGenerated).
		Int("created", stats.TotalTransactionsCreated).
		Int("errors", len(stats.Errors)).
		Dur("elapsed", m.now().Sub(started)).
		Msg("Completed materialization")

	return stats, nil
}

// materializeDefinition returns how many occurrences fell in the window and how many were inserted
func (m *Materializer) materializeDefinition(ctx context.Context, def *domain.RecurringDefinition, window recurrence.Window) (int, int, error) {
	occurrences, err := recurrence.Generate(def.RecurrenceRule, def.StartDate, def.EndDate, window)
	if err != nil {
		return 0, 0, err
	}
	if len(occurrences) == 0 {
		return 0, 0, nil
	}

	existing, err := m.transactionRepo.ListByRecurring(ctx, def.UserID, def.ID)
	if err != nil {
		return len(occurrences), 0, err
	}
	rec := BuildReconciliationIndex(existing).For(def.ID)

	batch := make([]*domain.Transaction, 0, len(occurrences))
	for _, occ := range occurrences {
		if rec.Has(domain.DayOf(occ)) {
			continue
		}
		batch = append(batch, materialize(def, occ, rec))
	}
	if len(batch) == 0 {
		return len(occurrences), 0, nil
	}

	created, err := m.transactionRepo.CreateBatch(ctx, batch)
	if err != nil {
		return len(occurrences), 0, fmt.Errorf("insert %d occurrences: %w", len(batch), err)
	}

	if err := m.recurringRepo.TouchLastGenerated(ctx, def.ID, m.now().UTC()); err != nil {
		m.logger.Debug().Err(err).Str("recurring_id", def.ID).Msg("Failed to update last_generated_at")
	}

	return len(occurrences), len(created), nil
}
