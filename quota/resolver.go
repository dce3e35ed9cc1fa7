package quota

import (
	"context"
	"fmt"
	"log"

	"github.com/warp/capacity-engine/calendar"
)

// =============================================================================
// HOLIDAY WINDOW RESOLVER
// =============================================================================

// ResolveHolidays fetches the holidays overlapping month and expands them
// into the set of excluded days inside it.
func ResolveHolidays(ctx context.Context, src Source, month calendar.Month) (calendar.DateSet, error) {
	records, err := src.FetchHolidays(ctx, month.Period())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holidays for %s: %w", month, err)
	}
	return HolidayDates(records, month), nil
}

// HolidayDates clips every active holiday to month and enumerates its days.
// A holiday whose end precedes its start contributes nothing. Recurring
// holidays with an unparsable rule are skipped and logged.
func HolidayDates(records []HolidayRecord, month calendar.Month) calendar.DateSet {
	bounds := month.Period()
	dates := make(calendar.DateSet)
	for _, h := range records {
		if !h.Active {
			continue
		}
		if h.Recurring() {
			days, err := h.Occurrences(bounds)
			if err != nil {
				log.Printf("[Holidays] skipping %s: %v", h.ID, err)
				continue
			}
			for _, d := range days {
				dates.Add(d)
			}
			continue
		}
		span := calendar.Period{Start: h.StartDate, End: h.EffectiveEnd()}
		if clipped, ok := span.Clip(bounds); ok {
			dates.AddPeriod(clipped)
		}
	}
	return dates
}

// =============================================================================
// TIME-OFF WINDOW RESOLVER
// =============================================================================

// TimeOffDates returns the days of personID's time off inside window.
func TimeOffDates(records []TimeOffRecord, personID string, window calendar.Period) calendar.DateSet {
	dates := make(calendar.DateSet)
	for _, r := range records {
		if r.PersonID != personID {
			continue
		}
		span := calendar.Period{Start: r.StartDate, End: r.EndDate}
		if clipped, ok := span.Clip(window); ok {
			dates.AddPeriod(clipped)
		}
	}
	return dates
}

// TimeOffByPerson groups the days of every record inside window by person.
func TimeOffByPerson(records []TimeOffRecord, window calendar.Period) map[string]calendar.DateSet {
	byPerson := make(map[string]calendar.DateSet)
	for _, r := range records {
		span := calendar.Period{Start: r.StartDate, End: r.EndDate}
		clipped, ok := span.Clip(window)
		if !ok {
			continue
		}
		set, exists := byPerson[r.PersonID]
		if !exists {
			set = make(calendar.DateSet)
			byPerson[r.PersonID] = set
		}
		set.AddPeriod(clipped)
	}
	return byPerson
}

// ResolveTimeOff fetches one person's time off and expands it for month.
func ResolveTimeOff(ctx context.Context, src Source, personID string, month calendar.Month) (calendar.DateSet, error) {
	records, err := src.FetchTimeOff(ctx, personID, month.Period())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch time off for %s in %s: %w", personID, month, err)
	}
	return TimeOffDates(records, personID, month.Period()), nil
}
