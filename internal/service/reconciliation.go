package service

import (
	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
)

// Reconciliation is what is already persisted for one recurring definition
type Reconciliation struct {
	Materialized map[domain.CalendarDay]struct{}
	// Reference is the first real transaction seen for the definition; its
	// labels are copied onto synthesized occurrences
	Reference *domain.Transaction
}

// Has reports whether day already has a real transaction
func (r *Reconciliation) Has(day domain.CalendarDay) bool {
	if r == nil {
		return false
	}
	_, ok := r.Materialized[day]
	return ok
}

// ReconciliationIndex maps recurring definition ids to their reconciliation
type ReconciliationIndex map[string]*Reconciliation

// BuildReconciliationIndex indexes real transactions by their recurring link.
// Standalone transactions are ignored.
func BuildReconciliationIndex(transactions []*domain.Transaction) ReconciliationIndex {
	idx := make(ReconciliationIndex)
	for _, tx := range transactions {
		if tx == nil || tx.RecurringDefinitionID == nil {
			continue
		}
		id := *tx.RecurringDefinitionID
		rec, ok := idx[id]
		if !ok {
			rec = &Reconciliation{
				Materialized: make(map[domain.CalendarDay]struct{}),
				Reference:    tx,
			}
			idx[id] = rec
		}
		rec.Materialized[tx.Day()] = struct{}{}
	}
	return idx
}

// For returns the reconciliation of a definition, empty when nothing is materialized
func (idx ReconciliationIndex) For(definitionID string) *Reconciliation {
	if rec, ok := idx[definitionID]; ok {
		return rec
	}
	return &Reconciliation{Materialized: map[domain.CalendarDay]struct{}{}}
}
