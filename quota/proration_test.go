package quota_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/quota"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) calendar.Date {
	return calendar.NewDate(year, month, day)
}

func hours(n float64) decimal.Decimal {
	return decimal.NewFromFloat(n)
}

func feb2024() calendar.Month {
	return calendar.NewMonth(2024, time.February)
}

func presidentsDay() calendar.DateSet {
	return calendar.NewDateSet(date(2024, time.February, 19))
}

// assertHours compares after rounding to one decimal place.
func assertHours(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, got.Round(1).String(), msgAndArgs...)
}

// =============================================================================
// PRORATION
// =============================================================================

func TestProrate_PresidentsDayScenario(t *testing.T) {
	// GIVEN: February 2024 (leap year), Presidents' Day on Monday the 19th,
	//        a 160h target, no time off, queried on Tuesday the 20th
	p := quota.Prorate(quota.ProrationInput{
		Month:         feb2024(),
		MonthlyTarget: hours(160),
		Holidays:      presidentsDay(),
		AsOf:          date(2024, time.February, 20),
	})

	// THEN: 21 standard days, 20 after the holiday
	assert.Equal(t, 21, p.StandardWorkingDays)
	assert.Equal(t, 20, p.WorkingDaysAfterHolidays)
	assert.Equal(t, 20, p.AvailableWorkingDays)
	assertHours(t, "152.4", p.AdjustedTarget)

	// Feb 1-20 holds 14 weekdays, 13 once the holiday is removed; the grace
	// buffer leaves 12 days of expectation.
	assert.Equal(t, 13, p.WorkingDaysElapsed)
	assert.Equal(t, 12, p.DaysForPacing)
	assertHours(t, "91.4", p.ExpectedHoursToDate)
}

func TestProrate_NoExclusionsKeepsTarget(t *testing.T) {
	p := quota.Prorate(quota.ProrationInput{
		Month:         feb2024(),
		MonthlyTarget: hours(160),
		AsOf:          date(2024, time.February, 20),
	})
	assert.True(t, p.AdjustedTarget.Equal(hours(160)), "got %s", p.AdjustedTarget)
}

func TestProrate_TimeOffReducesAvailability(t *testing.T) {
	// Mon Feb 12 - Fri Feb 16 off, plus a weekend that must not count.
	off := make(calendar.DateSet)
	off.AddPeriod(calendar.Period{Start: date(2024, time.February, 12), End: date(2024, time.February, 18)})

	p := quota.Prorate(quota.ProrationInput{
		Month:         feb2024(),
		MonthlyTarget: hours(160),
		Holidays:      presidentsDay(),
		TimeOff:       off,
		AsOf:          date(2024, time.February, 20),
	})

	assert.Equal(t, 5, p.TimeOffDays)
	assert.Equal(t, 15, p.AvailableWorkingDays)
	assertHours(t, "114.3", p.AdjustedTarget)
	assert.Equal(t, 8, p.WorkingDaysElapsed)
	assertHours(t, "53.3", p.ExpectedHoursToDate)
}

func TestProrate_TimeOffOnHolidayNotDoubleCounted(t *testing.T) {
	off := calendar.NewDateSet(date(2024, time.February, 19), date(2024, time.February, 20))

	p := quota.Prorate(quota.ProrationInput{
		Month:         feb2024(),
		MonthlyTarget: hours(160),
		Holidays:      presidentsDay(),
		TimeOff:       off,
		AsOf:          date(2024, time.March, 10),
	})

	assert.Equal(t, 1, p.TimeOffDays)
	assert.Equal(t, 19, p.AvailableWorkingDays)
}

func TestProrate_FirstWorkingDayExpectsNothing(t *testing.T) {
	// Feb 1 2024 is a Thursday and the first working day of the month.
	p := quota.Prorate(quota.ProrationInput{
		Month:         feb2024(),
		MonthlyTarget: hours(160),
		AsOf:          date(2024, time.February, 1),
	})
	assert.Equal(t, 1, p.WorkingDaysElapsed)
	assert.True(t, p.ExpectedHoursToDate.IsZero())

	// September 2024 opens on a weekend; the first working day is Monday the 2nd.
	sep := quota.Prorate(quota.ProrationInput{
		Month:         calendar.NewMonth(2024, time.September),
		MonthlyTarget: hours(160),
		AsOf:          date(2024, time.September, 2),
	})
	assert.True(t, sep.ExpectedHoursToDate.IsZero())
}

func TestProrate_FutureMonthExpectsNothing(t *testing.T) {
	p := quota.Prorate(quota.ProrationInput{
		Month:         calendar.NewMonth(2024, time.March),
		MonthlyTarget: hours(160),
		AsOf:          date(2024, time.February, 20),
	})
	assert.Equal(t, 0, p.WorkingDaysElapsed)
	assert.True(t, p.ExpectedHoursToDate.IsZero())
}

func TestProrate_WholeMonthOffIsZeroNotError(t *testing.T) {
	off := make(calendar.DateSet)
	off.AddPeriod(feb2024().Period())

	p := quota.Prorate(quota.ProrationInput{
		Month:         feb2024(),
		MonthlyTarget: hours(160),
		TimeOff:       off,
		AsOf:          date(2024, time.February, 29),
	})
	assert.Equal(t, 0, p.AvailableWorkingDays)
	assert.True(t, p.AdjustedTarget.IsZero())
	assert.True(t, p.ExpectedHoursToDate.IsZero())
}

func TestProrate_AdjustedStaysWithinTarget(t *testing.T) {
	target := hours(160)
	for m := 0; m < 24; m++ {
		month := calendar.NewMonth(2024, time.January+time.Month(m))
		for offDays := 0; offDays <= 12; offDays++ {
			off := make(calendar.DateSet)
			off.AddPeriod(calendar.Period{Start: month.Start().AddDays(9), End: month.Start().AddDays(9 + offDays - 1)})
			holidays := calendar.NewDateSet(month.Start(), month.Start().AddDays(3))

			p := quota.Prorate(quota.ProrationInput{
				Month:         month,
				MonthlyTarget: target,
				Holidays:      holidays,
				TimeOff:       off,
				AsOf:          month.Last(),
			})
			assert.False(t, p.AdjustedTarget.IsNegative(), "%s off=%d", month, offDays)
			assert.True(t, p.AdjustedTarget.LessThanOrEqual(target), "%s off=%d", month, offDays)
		}
	}
}

func TestProrate_ExpectedNeverDecreasesWithinMonth(t *testing.T) {
	off := make(calendar.DateSet)
	off.AddPeriod(calendar.Period{Start: date(2024, time.February, 12), End: date(2024, time.February, 16)})

	previous := decimal.Zero
	for _, day := range feb2024().Period().Days() {
		p := quota.Prorate(quota.ProrationInput{
			Month:         feb2024(),
			MonthlyTarget: hours(160),
			Holidays:      presidentsDay(),
			TimeOff:       off,
			AsOf:          day,
		})
		assert.True(t, p.ExpectedHoursToDate.GreaterThanOrEqual(previous), "decreased on %s", day)
		previous = p.ExpectedHoursToDate
	}
}
