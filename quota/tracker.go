/*
tracker.go - Aggregation views over the proration engine

PURPOSE:
  Three read-only projections keyed by month:
    ResourceTracker: one row per person with a tracked quota
    ClientTracker:   one row per client with a tracked quota
    AccountTracker:  one row per sub-account, optionally for one client

REQUEST FLOW:
  1. Load tracked quota configs for the scope (others are omitted)
  2. Read holidays, time off and time entries for the month once
  3. Prorate and total each subject independently (in parallel)
  4. Sort rows by name, then subject ID

HOURS:
  Totals are sums of ActualHours. The resource view reports billed and
  prebilled entries separately; client and sub-account views count
  billed entries only. PercentageComplete is billed / adjusted * 100.

STATELESS:
  A Tracker holds no data between calls. At and WithResolution return
  copies, so one Tracker can serve concurrent requests.
*/
package quota

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/calendar"
)

// Tracker serves the tracker views from a Source.
type Tracker struct {
	source     Source
	resolution Resolution
	clock      func() calendar.Date
}

// NewTracker returns a Tracker using CurrentOnly resolution and today's date.
func NewTracker(src Source) *Tracker {
	return &Tracker{
		source:     src,
		resolution: Resolution{Kind: CurrentOnly},
		clock:      calendar.Today,
	}
}

// At returns a copy that evaluates as of asOf instead of today.
func (t *Tracker) At(asOf calendar.Date) *Tracker {
	c := *t
	c.clock = func() calendar.Date { return asOf }
	return &c
}

// WithResolution returns a copy using res to pick quota targets.
func (t *Tracker) WithResolution(res Resolution) *Tracker {
	c := *t
	c.resolution = res
	return &c
}

// AsOf returns the query date the tracker evaluates against.
func (t *Tracker) AsOf() calendar.Date { return t.clock() }

// Resolution returns the quota resolution mode in use.
func (t *Tracker) Resolution() Resolution { return t.resolution }

// =============================================================================
// RESOURCE VIEW
// =============================================================================

// ResourceTracker returns one row per person with a tracked quota.
func (t *Tracker) ResourceTracker(ctx context.Context, month calendar.Month) ([]TrackerResult, error) {
	quotas, err := trackedQuotas(ctx, t.source, ScopeResource, month, t.resolution)
	if err != nil {
		return nil, err
	}
	if len(quotas) == 0 {
		return []TrackerResult{}, nil
	}

	holidays, err := ResolveHolidays(ctx, t.source, month)
	if err != nil {
		return nil, err
	}
	records, err := t.source.FetchTimeOff(ctx, "", month.Period())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch time off for %s: %w", month, err)
	}
	timeOff := TimeOffByPerson(records, month.Period())

	entries, err := t.source.FetchTimeEntries(ctx, month.Period(), EntryFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch time entries for %s: %w", month, err)
	}
	totals := sumHours(entries, func(e TimeEntry) string { return e.PersonID })

	asOf := t.clock()
	results := make([]TrackerResult, len(quotas))
	forEach(len(quotas), func(i int) {
		q := quotas[i]
		p := Prorate(ProrationInput{
			Month:         month,
			MonthlyTarget: q.MonthlyTarget,
			Holidays:      holidays,
			TimeOff:       timeOff[q.SubjectID],
			AsOf:          asOf,
		})
		prebilled := totals.prebilled[q.SubjectID]
		r := newResult(q, p, totals.billed[q.SubjectID])
		r.PrebilledHours = &prebilled
		results[i] = r
	})

	sortResults(results)
	return results, nil
}

// =============================================================================
// CLIENT VIEW
// =============================================================================

// ClientTracker returns one row per client with a tracked quota.
func (t *Tracker) ClientTracker(ctx context.Context, month calendar.Month) ([]TrackerResult, error) {
	quotas, err := trackedQuotas(ctx, t.source, ScopeClient, month, t.resolution)
	if err != nil {
		return nil, err
	}
	return t.billedView(ctx, month, quotas, EntryFilter{}, func(e TimeEntry) string { return e.ClientID })
}

// =============================================================================
// SUB-ACCOUNT VIEW
// =============================================================================

// AccountTracker returns one row per sub-account with a tracked quota.
// A non-empty clientID restricts the view to that client's sub-accounts.
func (t *Tracker) AccountTracker(ctx context.Context, month calendar.Month, clientID string) ([]TrackerResult, error) {
	quotas, err := trackedQuotas(ctx, t.source, ScopeSubAccount, month, t.resolution)
	if err != nil {
		return nil, err
	}
	if clientID != "" {
		filtered := quotas[:0]
		for _, q := range quotas {
			if q.ParentID == clientID {
				filtered = append(filtered, q)
			}
		}
		quotas = filtered
	}
	return t.billedView(ctx, month, quotas, EntryFilter{ClientID: clientID}, func(e TimeEntry) string { return e.SubAccountID })
}

// billedView is the shared body of the client and sub-account views:
// no personal time off, billed hours only.
func (t *Tracker) billedView(ctx context.Context, month calendar.Month, quotas []QuotaConfig, filter EntryFilter, key func(TimeEntry) string) ([]TrackerResult, error) {
	if len(quotas) == 0 {
		return []TrackerResult{}, nil
	}

	holidays, err := ResolveHolidays(ctx, t.source, month)
	if err != nil {
		return nil, err
	}
	entries, err := t.source.FetchTimeEntries(ctx, month.Period(), filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch time entries for %s: %w", month, err)
	}
	totals := sumHours(entries, key)

	asOf := t.clock()
	results := make([]TrackerResult, len(quotas))
	forEach(len(quotas), func(i int) {
		q := quotas[i]
		p := Prorate(ProrationInput{
			Month:         month,
			MonthlyTarget: q.MonthlyTarget,
			Holidays:      holidays,
			AsOf:          asOf,
		})
		results[i] = newResult(q, p, totals.billed[q.SubjectID])
	})

	sortResults(results)
	return results, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func newResult(q QuotaConfig, p Proration, billed decimal.Decimal) TrackerResult {
	return TrackerResult{
		Scope:                q.Scope,
		SubjectID:            q.SubjectID,
		Name:                 q.Name,
		ParentID:             q.ParentID,
		MonthlyTarget:        p.MonthlyTarget,
		AdjustedTarget:       p.AdjustedTarget,
		ExpectedHoursToDate:  p.ExpectedHoursToDate,
		BilledHours:          billed,
		PercentageComplete:   percentOf(billed, p.AdjustedTarget),
		Pacing:               billed.Sub(p.ExpectedHoursToDate),
		Status:               paceStatus(billed, p),
		StandardWorkingDays:  p.StandardWorkingDays,
		AvailableWorkingDays: p.AvailableWorkingDays,
		WorkingDaysElapsed:   p.WorkingDaysElapsed,
	}
}

type hourTotals struct {
	billed    map[string]decimal.Decimal
	prebilled map[string]decimal.Decimal
}

// sumHours totals ActualHours per key and classification. Entries with an
// empty key are ignored.
func sumHours(entries []TimeEntry, key func(TimeEntry) string) hourTotals {
	totals := hourTotals{
		billed:    make(map[string]decimal.Decimal),
		prebilled: make(map[string]decimal.Decimal),
	}
	for _, e := range entries {
		k := key(e)
		if k == "" {
			continue
		}
		switch e.Classification {
		case Billed:
			totals.billed[k] = totals.billed[k].Add(e.ActualHours)
		case Prebilled:
			totals.prebilled[k] = totals.prebilled[k].Add(e.ActualHours)
		}
	}
	return totals
}

// forEach runs fn for 0..n-1 concurrently and waits. fn must only write
// to its own index.
func forEach(n int, fn func(i int)) {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			fn(i)
		}(i)
	}
	wg.Wait()
}

func sortResults(results []TrackerResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Name != results[j].Name {
			return results[i].Name < results[j].Name
		}
		return results[i].SubjectID < results[j].SubjectID
	})
}
