package types

import "time"

// Intent is the single retrieval intent derived from a question
type Intent string

const (
	IntentCount        Intent = "count"
	IntentReport       Intent = "report"
	IntentDateRange    Intent = "date_range"
	IntentPersonLookup Intent = "person_lookup"
	IntentMode         Intent = "mode"
	IntentDomain       Intent = "domain"
	IntentHybridSearch Intent = "hybrid_search"
)

// Classification holds the structured signals extracted from one question.
// It is built at request start and discarded once routing finishes.
type Classification struct {
	Text string // lowercased, whitespace-collapsed question

	Year       *int
	Month      *int
	FeeCeiling *float64 // 0 = free only

	Mode   Mode
	Domain string

	PersonLookup bool
	Person       string

	Count    bool
	Report   bool
	WantsAll bool

	Intent Intent
}

// HasFee reports whether a fee constraint was extracted
func (c *Classification) HasFee() bool {
	return c.FeeCeiling != nil
}

// HasMonthYear reports whether both month and year are known
func (c *Classification) HasMonthYear() bool {
	return c.Year != nil && c.Month != nil
}

// DateFilter restricts events by date. From alone is a lower bound;
// with To set the range is inclusive on both ends. A nil filter means
// no date constraint.
type DateFilter struct {
	From time.Time
	To   *time.Time
}

// MonthRange returns the inclusive range covering one calendar month
func MonthRange(year, month int) *DateFilter {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	// day 0 of the next month is the last day of this one
	to := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
	return &DateFilter{From: from, To: &to}
}

// YearRange returns the inclusive range covering one calendar year
func YearRange(year int) *DateFilter {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return &DateFilter{From: from, To: &to}
}

// DateFilterFor converts the year/month signals of a classification into a
// date filter. Month without a year carries no constraint.
func DateFilterFor(c Classification) *DateFilter {
	switch {
	case c.Year != nil && c.Month != nil:
		return MonthRange(*c.Year, *c.Month)
	case c.Year != nil:
		return YearRange(*c.Year)
	default:
		return nil
	}
}

// Contains reports whether d falls inside the filter
func (f *DateFilter) Contains(d time.Time) bool {
	if f == nil {
		return true
	}
	day := d.Format(DateLayout)
	if day < f.From.Format(DateLayout) {
		return false
	}
	return f.To == nil || day <= f.To.Format(DateLayout)
}
