/*
Package calendar provides plain calendar dates for the capacity engine.

PURPOSE:
  Holidays, time off and time entries are calendar dates, not instants.
  Date is a (year, month, day) triple: equality, ordering and set
  membership all work on those components, never on timestamps, so a
  row stored as "2024-02-19" can not drift to Feb 18 because some
  layer normalized it to UTC.

KEY TYPES:
  - Date:    a calendar day
  - Month:   a "YYYY-MM" month with half-open [Start, End) bounds
  - Period:  an inclusive [Start, End] range of days
  - DateSet: a set of excluded days (holidays, time off)

KEY FUNCTIONS:
  - CountWorkingDays: weekdays in [start, end) not in an excluded set
  - Weeks:            Monday-Sunday windows of a month

SEE ALSO:
  - quota/resolver.go: builds DateSets from holiday and time-off rows
  - quota/proration.go: consumes CountWorkingDays
*/
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidDate is returned when a string is not a YYYY-MM-DD date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidMonth is returned when a string is not a YYYY-MM month.
	ErrInvalidMonth = errors.New("invalid month")
)

// =============================================================================
// DATE - Calendar day without time of day or zone
// =============================================================================

// Date is a calendar day. The zero value is not a valid date; see IsZero.
type Date struct {
	year  int
	month time.Month
	day   int
}

// NewDate builds a date from components. Out-of-range values are
// normalized the way time.Date does (Feb 30 becomes Mar 1 or 2).
func NewDate(year int, month time.Month, day int) Date {
	y, m, d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
	return Date{year: y, month: m, day: d}
}

// DateOf returns the calendar day of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: m, day: d}
}

// Today returns the local calendar day.
func Today() Date { return DateOf(time.Now()) }

// ParseDate reads the leading YYYY-MM-DD of s. Longer values such as
// RFC3339 timestamps ("2024-02-19T00:00:00-05:00") keep the day written
// in the string; the offset is never applied.
func ParseDate(s string) (Date, error) {
	if len(s) < len(DateLayout) {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	head := s[:len(DateLayout)]
	if head[4] != '-' || head[7] != '-' {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	year, errY := strconv.Atoi(head[0:4])
	month, errM := strconv.Atoi(head[5:7])
	day, errD := strconv.Atoi(head[8:10])
	if errY != nil || errM != nil || errD != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	d := NewDate(year, time.Month(month), day)
	if d.year != year || int(d.month) != month || d.day != day {
		return Date{}, fmt.Errorf("%w: %q out of range", ErrInvalidDate, s)
	}
	return d, nil
}

// MustParseDate is ParseDate for literals known to be valid. It panics otherwise.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Properties
func (d Date) Year() int            { return d.year }
func (d Date) Month() time.Month    { return d.month }
func (d Date) Day() int             { return d.day }
func (d Date) IsZero() bool         { return d == Date{} }
func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }
func (d Date) IsWeekend() bool      { wd := d.Weekday(); return wd == time.Saturday || wd == time.Sunday }
func (d Date) IsWorkday() bool      { return !d.IsWeekend() }

// Time returns midnight UTC of the day. Only use it for arithmetic and
// formatting; never compare the result against zoned timestamps.
func (d Date) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date   { return NewDate(d.year, d.month, d.day+n) }
func (d Date) AddMonths(n int) Date { return NewDate(d.year, d.month+time.Month(n), d.day) }

// Compare returns -1, 0 or +1 comparing components in (year, month, day) order.
func (d Date) Compare(other Date) int {
	switch {
	case d.year != other.year:
		return cmpInt(d.year, other.year)
	case d.month != other.month:
		return cmpInt(int(d.month), int(other.month))
	default:
		return cmpInt(d.day, other.day)
	}
}

func (d Date) Before(other Date) bool        { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool         { return d.Compare(other) > 0 }
func (d Date) Equal(other Date) bool         { return d == other }
func (d Date) BeforeOrEqual(other Date) bool { return d.Compare(other) <= 0 }
func (d Date) AfterOrEqual(other Date) bool  { return d.Compare(other) >= 0 }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null for the zero date.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD" (or an RFC3339 string) and null.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// DATE UTILITIES
// =============================================================================

// DaysBetween returns the number of days from `from` to `to` (negative if to is earlier).
func DaysBetween(from, to Date) int {
	return int(to.Time().Sub(from.Time()).Hours() / 24)
}

func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
