package calendar

import "time"

// =============================================================================
// WORKING DAYS
// =============================================================================

// CountWorkingDays counts the days in the half-open range [start, end)
// that fall Monday to Friday and are not in excluded. A nil set excludes
// nothing. When end is not after start the count is 0.
func CountWorkingDays(start, end Date, excluded DateSet) int {
	count := 0
	for current := start; current.Before(end); current = current.AddDays(1) {
		if current.IsWorkday() && !excluded.Has(current) {
			count++
		}
	}
	return count
}

// CountWorkingDates counts the days of dates that are weekdays and not in
// excluded. Used to turn a time-off set into lost working days without
// double counting days already removed as holidays.
func CountWorkingDates(dates DateSet, excluded DateSet) int {
	count := 0
	for d := range dates {
		if d.IsWorkday() && !excluded.Has(d) {
			count++
		}
	}
	return count
}

// =============================================================================
// WEEKLY WINDOWS
// =============================================================================

// Weeks splits a month into Monday-Sunday windows clipped to the month.
// The first window starts on the first Monday on or after the 1st, so days
// before that Monday belong to no window.
func Weeks(m Month) []Period {
	start := m.Start()
	switch wd := start.Weekday(); wd {
	case time.Monday:
	case time.Sunday:
		start = start.AddDays(1)
	default:
		start = start.AddDays(8 - int(wd))
	}

	last := m.Last()
	var weeks []Period
	for weekStart := start; weekStart.BeforeOrEqual(last); weekStart = weekStart.AddDays(7) {
		weeks = append(weeks, Period{
			Start: weekStart,
			End:   MinDate(weekStart.AddDays(6), last),
		})
	}
	return weeks
}
