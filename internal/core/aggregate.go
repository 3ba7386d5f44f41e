package core

import "sort"

// The aggregation engine converts an unordered expense collection into
// display-ready derived values. Every function here is pure and never
// fails; the full set is recomputed on each change of the underlying
// collection. At personal-finance scale that is an O(n log n) recompute
// per mutation, which keeps the engine stateless and trivially testable.

// NoCategory is the sentinel returned for highest/lowest when there are no
// category buckets at all.
const NoCategory = "-"

type (
	CategoryAmount struct {
		Category string
		Cents    int64
	}

	CurrencyAmount struct {
		Currency Currency
		Cents    int64
	}

	TrendPoint struct {
		Date  Date
		Cents int64
	}

	// CategoryTotals is an insertion-ordered grouping of summed amounts by
	// the literal category string. Order of first appearance is preserved
	// so extreme-category tie-breaks are deterministic.
	CategoryTotals struct {
		names  []string
		totals map[string]int64
	}

	// Summary bundles everything one dashboard render needs.
	Summary struct {
		Totals       map[Currency]int64
		Transactions int
		Highest      string
		Lowest       string
		ByCategory   []CategoryAmount
		Trend        []TrendPoint
		ByCurrency   []CurrencyAmount
		Top          []ExpenseRecord
	}
)

// ComputeTotals sums amounts into one bucket per recognized currency.
// Every enumerated currency is present in the result, zero when unused.
// Records in an unrecognized currency are excluded from all buckets.
func ComputeTotals(records []ExpenseRecord) map[Currency]int64 {
	totals := make(map[Currency]int64, len(Currencies))
	for _, c := range Currencies {
		totals[c] = 0
	}
	for _, r := range records {
		if _, ok := totals[r.Currency]; ok {
			totals[r.Currency] += AmountCents(r.Amount)
		}
	}
	return totals
}

// ComputeCategoryTotals groups amounts by the literal category string,
// preserving order of first appearance.
func ComputeCategoryTotals(records []ExpenseRecord) *CategoryTotals {
	ct := &CategoryTotals{totals: make(map[string]int64)}
	for _, r := range records {
		if _, seen := ct.totals[r.Category]; !seen {
			ct.names = append(ct.names, r.Category)
		}
		ct.totals[r.Category] += AmountCents(r.Amount)
	}
	return ct
}

// Get returns the summed amount for a category bucket.
func (ct *CategoryTotals) Get(category string) (int64, bool) {
	cents, ok := ct.totals[category]
	return cents, ok
}

func (ct *CategoryTotals) Len() int {
	return len(ct.names)
}

// Ordered returns the buckets in first-appearance order.
func (ct *CategoryTotals) Ordered() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(ct.names))
	for _, name := range ct.names {
		out = append(out, CategoryAmount{Category: name, Cents: ct.totals[name]})
	}
	return out
}

// FindExtremeCategories returns the highest- and lowest-spending category.
// Ties go to the first-encountered bucket. With zero buckets both results
// are the NoCategory sentinel.
func FindExtremeCategories(ct *CategoryTotals) (highest, lowest string) {
	if ct == nil || len(ct.names) == 0 {
		return NoCategory, NoCategory
	}
	highest, lowest = ct.names[0], ct.names[0]
	maxCents, minCents := ct.totals[highest], ct.totals[lowest]
	for _, name := range ct.names[1:] {
		cents := ct.totals[name]
		if cents > maxCents {
			maxCents, highest = cents, name
		}
		if cents < minCents {
			minCents, lowest = cents, name
		}
	}
	return highest, lowest
}

// BuildTrendSeries returns one point per record, sorted ascending by
// calendar date. The sort is stable, so same-day entries keep their input
// order and are not merged.
func BuildTrendSeries(records []ExpenseRecord) []TrendPoint {
	points := make([]TrendPoint, len(records))
	for i, r := range records {
		points[i] = TrendPoint{Date: r.Date, Cents: AmountCents(r.Amount)}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date.Time)
	})
	return points
}

// BuildCurrencyBreakdown sums each enumerated currency independently and
// returns the buckets in the fixed enumeration order, always fully
// populated (zero when no records match).
func BuildCurrencyBreakdown(records []ExpenseRecord) []CurrencyAmount {
	totals := ComputeTotals(records)
	out := make([]CurrencyAmount, len(Currencies))
	for i, c := range Currencies {
		out[i] = CurrencyAmount{Currency: c, Cents: totals[c]}
	}
	return out
}

// TopN returns the n largest expenses by parsed amount, descending, stable
// for ties. The input slice is not modified.
func TopN(records []ExpenseRecord, n int) []ExpenseRecord {
	if n <= 0 {
		return nil
	}
	sorted := make([]ExpenseRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return AmountCents(sorted[i].Amount) > AmountCents(sorted[j].Amount)
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// BuildSummary runs the whole engine over one snapshot.
func BuildSummary(records []ExpenseRecord, topN int) Summary {
	ct := ComputeCategoryTotals(records)
	highest, lowest := FindExtremeCategories(ct)
	return Summary{
		Totals:       ComputeTotals(records),
		Transactions: len(records),
		Highest:      highest,
		Lowest:       lowest,
		ByCategory:   ct.Ordered(),
		Trend:        BuildTrendSeries(records),
		ByCurrency:   BuildCurrencyBreakdown(records),
		Top:          TopN(records, topN),
	}
}
