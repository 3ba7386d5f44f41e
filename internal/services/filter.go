package services

import (
	"time"

	"github.com/karansanghvi/spendly/internal/core"
)

// PageSize is the fixed page length of expense listings.
const PageSize = 20

// Filter narrows an expense collection. Zero-valued fields do not
// filter. WithinDays keeps records dated inside the trailing window
// ending today; Date keeps records on that exact calendar day and wins
// over WithinDays when both are set.
type Filter struct {
	Currency   core.Currency
	Category   string
	WithinDays int
	Date       core.Date

	// now overrides the window reference time in tests.
	now func() time.Time
}

// ExpensePage is one page of a filtered collection. Totals covers the
// whole filtered set, not just this page.
type ExpensePage struct {
	Records      []core.ExpenseRecord
	Page         int
	TotalPages   int
	TotalRecords int
	Totals       map[core.Currency]int64
}

// ApplyFilter returns the records matching f, preserving input order.
func ApplyFilter(records []core.ExpenseRecord, f Filter) []core.ExpenseRecord {
	out := make([]core.ExpenseRecord, 0, len(records))
	for _, e := range records {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f Filter) matches(e core.ExpenseRecord) bool {
	if f.Currency != "" && e.Currency != f.Currency {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.Date.IsZero() {
		return e.Date.String() == f.Date.String()
	}
	if f.WithinDays > 0 {
		now := time.Now
		if f.now != nil {
			now = f.now
		}
		// Compare calendar days, not instants: a record dated exactly
		// WithinDays ago stays in the window whatever the clock reads.
		ref := now().UTC()
		day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
		if e.Date.Before(day.AddDate(0, 0, -f.WithinDays)) {
			return false
		}
	}
	return true
}

// CurrencyTotals sums the records into the fixed currency buckets.
// Unparseable amounts count zero; unknown currencies are skipped.
func CurrencyTotals(records []core.ExpenseRecord) map[core.Currency]int64 {
	totals := make(map[core.Currency]int64, len(core.Currencies))
	for _, cur := range core.Currencies {
		totals[cur] = 0
	}
	for _, e := range records {
		if _, ok := totals[e.Currency]; ok {
			totals[e.Currency] += core.AmountCents(e.Amount)
		}
	}
	return totals
}

// Paginate slices one fixed-size page out of records. Pages are
// 1-based; a page past the end comes back empty. The second return is
// the total page count of the collection.
func Paginate(records []core.ExpenseRecord, page int) ([]core.ExpenseRecord, int) {
	totalPages := (len(records) + PageSize - 1) / PageSize
	if page < 1 || len(records) == 0 {
		return nil, totalPages
	}
	start := (page - 1) * PageSize
	if start >= len(records) {
		return nil, totalPages
	}
	end := start + PageSize
	if end > len(records) {
		end = len(records)
	}
	return records[start:end], totalPages
}
