package quota

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/calendar"
)

// =============================================================================
// WEEKLY BONUS ELIGIBILITY
// =============================================================================

// MinBonusWeeks is the fewest windows a month needs before a bonus can be earned.
const MinBonusWeeks = 4

// EvaluateBonus checks billed hours against each Monday-Sunday window of
// month. A window's target is the monthly target spread evenly over the
// month's calendar days, times the window's days inside the month.
// Eligibility is all or nothing: every window must hit its target and
// there must be at least MinBonusWeeks windows.
func EvaluateBonus(month calendar.Month, monthlyTarget decimal.Decimal, entries []TimeEntry) EligibilityResult {
	daysInMonth := decimal.NewFromInt(int64(month.Days()))
	windows := calendar.Weeks(month)

	result := EligibilityResult{
		Month:         month,
		MonthlyTarget: monthlyTarget,
		Weeks:         make([]WeekResult, 0, len(windows)),
		TotalWeeks:    len(windows),
	}

	for _, w := range windows {
		days := w.Len()
		// Multiply before dividing so whole-week targets stay exact.
		target := monthlyTarget.Mul(decimal.NewFromInt(int64(days))).Div(daysInMonth)

		billed := decimal.Zero
		for _, e := range entries {
			if e.Classification == Billed && w.Contains(e.Date) {
				billed = billed.Add(e.ActualHours)
			}
		}

		hit := billed.GreaterThanOrEqual(target)
		if hit {
			result.WeeksHit++
		}
		result.Weeks = append(result.Weeks, WeekResult{
			Period:       w,
			DaysInWindow: days,
			Target:       target,
			BilledHours:  billed,
			HitTarget:    hit,
		})
	}

	result.Eligible = result.WeeksHit == result.TotalWeeks && result.TotalWeeks >= MinBonusWeeks
	return result
}

// WeeklyBonusEligibility evaluates the current month for every client
// with a tracked quota.
func (t *Tracker) WeeklyBonusEligibility(ctx context.Context) ([]EligibilityResult, error) {
	return t.WeeklyBonusEligibilityFor(ctx, calendar.MonthOf(t.clock()))
}

// WeeklyBonusEligibilityFor evaluates month for every client with a tracked quota.
func (t *Tracker) WeeklyBonusEligibilityFor(ctx context.Context, month calendar.Month) ([]EligibilityResult, error) {
	quotas, err := trackedQuotas(ctx, t.source, ScopeClient, month, t.resolution)
	if err != nil {
		return nil, err
	}
	if len(quotas) == 0 {
		return []EligibilityResult{}, nil
	}

	entries, err := t.source.FetchTimeEntries(ctx, month.Period(), EntryFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch time entries for %s: %w", month, err)
	}
	byClient := make(map[string][]TimeEntry)
	for _, e := range entries {
		if e.Classification == Billed {
			byClient[e.ClientID] = append(byClient[e.ClientID], e)
		}
	}

	results := make([]EligibilityResult, len(quotas))
	forEach(len(quotas), func(i int) {
		q := quotas[i]
		r := EvaluateBonus(month, q.MonthlyTarget, byClient[q.SubjectID])
		r.ClientID = q.SubjectID
		r.Name = q.Name
		results[i] = r
	})

	sortEligibility(results)
	return results, nil
}

func sortEligibility(results []EligibilityResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Name != results[j].Name {
			return results[i].Name < results[j].Name
		}
		return results[i].ClientID < results[j].ClientID
	})
}
