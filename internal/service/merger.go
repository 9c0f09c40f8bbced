package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
)

var sortKeyAliases = map[string]domain.SortKey{
	"description":    domain.SortByDescription,
	"date":           domain.SortByDate,
	"amount":         domain.SortByAmount,
	"type":           domain.SortByType,
	"category":       domain.SortByCategory,
	"tag":            domain.SortByTag,
	"paymentStatus":  domain.SortByPaymentStatus,
	"payment_status": domain.SortByPaymentStatus,
}

// ParseSort validates the sortBy/sortOrder query values. Empty values fall
// back to date descending.
func ParseSort(sortBy, sortOrder string) (domain.TransactionSort, error) {
	s := domain.TransactionSort{Key: domain.SortByDate, Order: domain.SortDesc}
	if sortBy != "" {
		key, ok := sortKeyAliases[sortBy]
		if !ok {
			return s, fmt.Errorf("%w: %q", domain.ErrInvalidSortKey, sortBy)
		}
		s.Key = key
	}
	switch strings.ToLower(sortOrder) {
	case "":
	case string(domain.SortAsc):
		s.Order = domain.SortAsc
	case string(domain.SortDesc):
		s.Order = domain.SortDesc
	default:
		return s, fmt.Errorf("%w: %q", domain.ErrInvalidSortOrder, sortOrder)
	}
	return s, nil
}

// NormalizePage applies the paging defaults and caps the page size
func NormalizePage(page, limit int) domain.PageRequest {
	if page < 1 {
		page = domain.DefaultPage
	}
	if limit < 1 {
		limit = domain.DefaultPageSize
	}
	if limit > domain.MaxPageSize {
		limit = domain.MaxPageSize
	}
	return domain.PageRequest{Page: page, Limit: limit}
}

type occurrenceKey struct {
	recurringID string
	day         domain.CalendarDay
}

// MergeTransactions combines real and virtual rows into one filtered, sorted
// page. Paging happens after the merge and sort so totals cover both sets.
// A virtual row never shares a (definition, day) with a real one.
func MergeTransactions(
	realTxs []*domain.Transaction,
	virtualTxs []*domain.VirtualTransaction,
	filters *domain.TransactionFilters,
	order domain.TransactionSort,
	page domain.PageRequest,
) (*domain.TransactionPage, error) {
	if _, ok := sortKeyAliases[string(order.Key)]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSortKey, order.Key)
	}
	if order.Order != domain.SortAsc && order.Order != domain.SortDesc {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSortOrder, order.Order)
	}
	page = NormalizePage(page.Page, page.Limit)

	merged := make([]*domain.Transaction, 0, len(realTxs)+len(virtualTxs))
	taken := make(map[occurrenceKey]struct{})

	// real rows claim their day even when filtered out
	for _, tx := range realTxs {
		if tx.RecurringDefinitionID != nil {
			taken[occurrenceKey{*tx.RecurringDefinitionID, tx.Day()}] = struct{}{}
		}
		if MatchesFilters(tx, filters) {
			merged = append(merged, tx)
		}
	}
	for _, v := range virtualTxs {
		tx := &v.Transaction
		if tx.RecurringDefinitionID != nil {
			key := occurrenceKey{*tx.RecurringDefinitionID, tx.Day()}
			if _, dup := taken[key]; dup {
				continue
			}
			taken[key] = struct{}{}
		}
		if !MatchesFilters(tx, filters) {
			continue
		}
		merged = append(merged, tx)
	}

	sortTransactions(merged, order)

	total := len(merged)
	from, to := domain.PageBounds(total, page.Page, page.Limit)

	return &domain.TransactionPage{
		Data:       merged[from:to],
		Pagination: domain.NewPagination(total, page.Page, page.Limit),
	}, nil
}

// MatchesFilters is the single predicate used for both real and virtual rows
func MatchesFilters(tx *domain.Transaction, f *domain.TransactionFilters) bool {
	if f == nil {
		return true
	}
	if f.Type != nil && tx.Type != *f.Type {
		return false
	}
	if f.CategoryID != nil && !equalPtr(tx.CategoryID, *f.CategoryID) {
		return false
	}
	if f.TagID != nil && !equalPtr(tx.TagID, *f.TagID) {
		return false
	}
	if f.PaymentStatusID != nil && !equalPtr(tx.PaymentStatusID, *f.PaymentStatusID) {
		return false
	}
	if f.Status != nil {
		if tx.PaymentStatus == nil || !strings.EqualFold(tx.PaymentStatus.Description, *f.Status) {
			return false
		}
	}
	if start, end, ok := f.MonthRange(); ok {
		if tx.Date.Before(start) || tx.Date.After(end) {
			return false
		}
	}
	return true
}

func equalPtr(p *string, v string) bool {
	return p != nil && *p == v
}

func sortTransactions(items []*domain.Transaction, order domain.TransactionSort) {
	desc := order.Order == domain.SortDesc
	sort.SliceStable(items, func(i, j int) bool {
		c, aNil, bNil := compareBy(items[i], items[j], order.Key)
		// absent values go last in both directions
		if aNil || bNil {
			return !aNil
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// compareBy returns the ordering of a and b on key and whether either side lacks a value
func compareBy(a, b *domain.Transaction, key domain.SortKey) (int, bool, bool) {
	switch key {
	case domain.SortByDescription:
		return strings.Compare(strings.ToLower(a.Description), strings.ToLower(b.Description)), false, false
	case domain.SortByAmount:
		return a.Amount.Cmp(b.Amount), false, false
	case domain.SortByType:
		return strings.Compare(string(a.Type), string(b.Type)), false, false
	case domain.SortByCategory:
		return compareLabels(a.Category, b.Category)
	case domain.SortByTag:
		return compareLabels(a.Tag, b.Tag)
	case domain.SortByPaymentStatus:
		return compareLabels(a.PaymentStatus, b.PaymentStatus)
	default:
		return a.Date.Compare(b.Date), false, false
	}
}

func compareLabels(a, b *domain.Label) (int, bool, bool) {
	if a == nil || b == nil {
		return 0, a == nil, b == nil
	}
	return strings.Compare(strings.ToLower(a.Description), strings.ToLower(b.Description)), false, false
}
