package calendar

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// =============================================================================
// PERIOD - Inclusive range of calendar days
// =============================================================================

// Period is the inclusive range [Start, End]. A period whose End is
// before its Start is empty; it contains no days and is never an error.
type Period struct {
	Start Date
	End   Date
}

// IsEmpty reports whether the period contains no days.
func (p Period) IsEmpty() bool { return p.End.Before(p.Start) }

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Len returns the number of days in the period, 0 when empty.
func (p Period) Len() int {
	if p.IsEmpty() {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Days returns every day in the period in order.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Overlaps reports whether the two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	if p.IsEmpty() || other.IsEmpty() {
		return false
	}
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Clip returns the intersection of p and bounds. ok is false when they do
// not overlap.
func (p Period) Clip(bounds Period) (Period, bool) {
	clipped := Period{
		Start: MaxDate(p.Start, bounds.Start),
		End:   MinDate(p.End, bounds.End),
	}
	if clipped.IsEmpty() {
		return Period{}, false
	}
	return clipped, true
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// MONTH - "YYYY-MM" reporting key
// =============================================================================

// Month identifies a calendar month.
type Month struct {
	year  int
	month time.Month
}

var monthPattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// NewMonth normalizes year and month (month 13 rolls into the next year).
func NewMonth(year int, month time.Month) Month {
	d := NewDate(year, month, 1)
	return Month{year: d.year, month: d.month}
}

// MonthOf returns the month containing d.
func MonthOf(d Date) Month { return Month{year: d.year, month: d.month} }

// CurrentMonth returns the month containing today's local date.
func CurrentMonth() Month { return MonthOf(Today()) }

// ParseMonth parses a strict "YYYY-MM" string.
func ParseMonth(s string) (Month, error) {
	m := monthPattern.FindStringSubmatch(s)
	if m == nil {
		return Month{}, fmt.Errorf("%w: %q (want YYYY-MM)", ErrInvalidMonth, s)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("%w: %q month out of range", ErrInvalidMonth, s)
	}
	return Month{year: year, month: time.Month(month)}, nil
}

func (m Month) Year() int          { return m.year }
func (m Month) Month() time.Month  { return m.month }
func (m Month) IsZero() bool       { return m == Month{} }
func (m Month) Start() Date        { return NewDate(m.year, m.month, 1) }
func (m Month) End() Date          { return m.Next().Start() } // exclusive
func (m Month) Last() Date         { return m.End().AddDays(-1) }
func (m Month) Next() Month        { return NewMonth(m.year, m.month+1) }
func (m Month) Prev() Month        { return NewMonth(m.year, m.month-1) }
func (m Month) Days() int          { return m.Last().Day() }
func (m Month) Period() Period     { return Period{Start: m.Start(), End: m.Last()} }
func (m Month) Contains(d Date) bool { return d.year == m.year && d.month == m.month }

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.year, int(m.month))
}

// =============================================================================
// DATE SET - Excluded days
// =============================================================================

// DateSet is a set of calendar days keyed by their components.
type DateSet map[Date]struct{}

func NewDateSet(dates ...Date) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s.Add(d)
	}
	return s
}

func (s DateSet) Add(d Date)          { s[d] = struct{}{} }
func (s DateSet) Has(d Date) bool     { _, ok := s[d]; return ok }
func (s DateSet) Len() int            { return len(s) }

// AddPeriod adds every day of p. Empty periods add nothing.
func (s DateSet) AddPeriod(p Period) {
	for _, d := range p.Days() {
		s.Add(d)
	}
}

// Union returns a new set holding the days of both sets.
func (s DateSet) Union(other DateSet) DateSet {
	out := make(DateSet, len(s)+len(other))
	for d := range s {
		out.Add(d)
	}
	for d := range other {
		out.Add(d)
	}
	return out
}

// Within returns the days of s that fall inside p.
func (s DateSet) Within(p Period) DateSet {
	out := make(DateSet)
	for d := range s {
		if p.Contains(d) {
			out.Add(d)
		}
	}
	return out
}

// Sorted returns the days in ascending order.
func (s DateSet) Sorted() []Date {
	out := make([]Date, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
