package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
)

const virtualIDPrefix = "virtual-"

// VirtualID derives the synthetic id of an occurrence. Real ids are UUIDs so
// the prefix keeps the two spaces apart.
func VirtualID(definitionID string, occurrence time.Time) string {
	return fmt.Sprintf("%s%s-%s", virtualIDPrefix, definitionID, occurrence.UTC().Format("20060102T150405Z"))
}

// IsVirtualID reports whether id was produced by VirtualID
func IsVirtualID(id string) bool {
	return strings.HasPrefix(id, virtualIDPrefix)
}

// SynthesizeVirtual projects occurrences lacking a real counterpart into
// virtual transactions shaped like the definition.
func SynthesizeVirtual(def *domain.RecurringDefinition, occurrences []time.Time, rec *Reconciliation) []*domain.VirtualTransaction {
	out := make([]*domain.VirtualTransaction, 0, len(occurrences))
	for _, occ := range occurrences {
		if rec.Has(domain.DayOf(occ)) {
			continue
		}
		out = append(out, newVirtual(def, occ, rec))
	}
	return out
}

func newVirtual(def *domain.RecurringDefinition, occ time.Time, rec *Reconciliation) *domain.VirtualTransaction {
	defID := def.ID
	v := &domain.VirtualTransaction{
		Transaction: domain.Transaction{
			ID:                    VirtualID(def.ID, occ),
			UserID:                def.UserID,
			Description:           def.Description,
			Date:                  occ.UTC(),
			Amount:                def.Amount,
			Type:                  def.Type,
			Note:                  def.Note,
			RecurringDefinitionID: &defID,
			IsVirtual:             true,
			IsRecurringGenerated:  true,
			CreatedAt:             def.CreatedAt,
			UpdatedAt:             def.UpdatedAt,
		},
	}
	if rec != nil && rec.Reference != nil {
		ref := rec.Reference
		v.CategoryID = ref.CategoryID
		v.TagID = ref.TagID
		v.PaymentStatusID = ref.PaymentStatusID
		v.Category = ref.Category
		v.Tag = ref.Tag
		v.PaymentStatus = ref.PaymentStatus
	}
	return v
}

// materialize turns an occurrence into a real transaction ready for insert
func materialize(def *domain.RecurringDefinition, occ time.Time, rec *Reconciliation) *domain.Transaction {
	tx := newVirtual(def, occ, rec).Transaction
	tx.ID = ""
	tx.IsVirtual = false
	tx.IsRecurringGenerated = false
	tx.Category = nil
	tx.Tag = nil
	tx.PaymentStatus = nil
	tx.CreatedAt = time.Time{}
	tx.UpdatedAt = time.Time{}
	return &tx
}
