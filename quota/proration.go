/*
proration.go - Target proration engine

PURPOSE:
  Scales a monthly hour target to the working days a subject actually
  has, and apportions it over the days elapsed so far.

ALGORITHM:
  standard   = weekdays in the month, holidays ignored
  afterHol   = weekdays in the month minus holidays
  available  = afterHol - working days of personal time off
  adjusted   = target * available / standard       (target if standard == 0)
  elapsed    = working days from the 1st through the query date,
               minus time off already taken
  pacingDays = max(0, elapsed - 1)                  one-day grace buffer
  expected   = adjusted * pacingDays / available    (0 if available == 0)

  The grace buffer keeps the query date itself out of the expectation:
  hours for today are usually logged tomorrow, so nobody is behind
  before the close of their most recent working day.

TIME OFF:
  Only time-off days that are weekdays and not already holidays reduce
  availability, so a holiday taken as leave is not subtracted twice and
  weekend leave subtracts nothing. Client and sub-account subjects have
  no personal time off.

INVARIANTS:
  - 0 <= adjusted <= target
  - adjusted == target when no working day is excluded
  - expected never decreases as the query date advances within a month
*/
package quota

import (
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/calendar"
)

// ProrationInput is everything Prorate needs for one subject and month.
type ProrationInput struct {
	Month         calendar.Month
	MonthlyTarget decimal.Decimal
	Holidays      calendar.DateSet // excluded days of the month
	TimeOff       calendar.DateSet // personal time off; nil for clients and sub-accounts
	AsOf          calendar.Date    // query date
}

// Proration is the outcome of Prorate at full precision.
type Proration struct {
	MonthlyTarget            decimal.Decimal
	AdjustedTarget           decimal.Decimal
	ExpectedHoursToDate      decimal.Decimal
	StandardWorkingDays      int
	WorkingDaysAfterHolidays int
	TimeOffDays              int
	AvailableWorkingDays     int
	WorkingDaysElapsed       int
	DaysForPacing            int
}

// Prorate computes the adjusted target and expected hours to date.
func Prorate(in ProrationInput) Proration {
	start, end := in.Month.Start(), in.Month.End()

	standard := calendar.CountWorkingDays(start, end, nil)
	afterHolidays := calendar.CountWorkingDays(start, end, in.Holidays)
	timeOff := calendar.CountWorkingDates(in.TimeOff.Within(in.Month.Period()), in.Holidays)
	available := max(afterHolidays-timeOff, 0)

	adjusted := in.MonthlyTarget
	if standard > 0 {
		adjusted = in.MonthlyTarget.
			Mul(decimal.NewFromInt(int64(available))).
			Div(decimal.NewFromInt(int64(standard)))
	}

	// Elapsed window: the 1st through the query date, capped at the month.
	elapsedEnd := calendar.MinDate(in.AsOf.AddDays(1), end)
	elapsedWindow := calendar.Period{Start: start, End: elapsedEnd.AddDays(-1)}
	elapsed := calendar.CountWorkingDays(start, elapsedEnd, in.Holidays) -
		calendar.CountWorkingDates(in.TimeOff.Within(elapsedWindow), in.Holidays)
	elapsed = max(elapsed, 0)

	pacingDays := max(elapsed-1, 0)

	expected := decimal.Zero
	if available > 0 {
		expected = adjusted.
			Mul(decimal.NewFromInt(int64(pacingDays))).
			Div(decimal.NewFromInt(int64(available)))
	}

	return Proration{
		MonthlyTarget:            in.MonthlyTarget,
		AdjustedTarget:           adjusted,
		ExpectedHoursToDate:      expected,
		StandardWorkingDays:      standard,
		WorkingDaysAfterHolidays: afterHolidays,
		TimeOffDays:              timeOff,
		AvailableWorkingDays:     available,
		WorkingDaysElapsed:       elapsed,
		DaysForPacing:            pacingDays,
	}
}

// percentOf returns part / whole * 100, or 0 when whole is not positive.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100))
}

// paceStatus classifies billed hours against the proration.
func paceStatus(billed decimal.Decimal, p Proration) PaceStatus {
	switch {
	case p.AdjustedTarget.IsPositive() && billed.GreaterThanOrEqual(p.AdjustedTarget):
		return PaceMet
	case billed.LessThan(p.ExpectedHoursToDate):
		return PaceBehind
	default:
		return PaceOnTrack
	}
}
