/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates quotas, holidays,
	time off and time entries that demonstrate specific features.

AVAILABLE SCENARIOS:

	presidents-day:  February 2024 with a Monday holiday and personal time off
	weekly-bonus:    February 2021 (four full weeks), one client hits every week
	quota-history:   Dated targets for versioned resolution
	current-month:   Recurring US holidays and steady logging up to yesterday

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Save quota configs for every scope
 3. Save holidays and time off
 4. Add time entries

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "presidents-day"}

USAGE VIA CLI:

	quotactl seed presidents-day

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: seedXxx(ctx, store, today)
 3. Add case to Seed

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - quota/recurrence.go: Default holiday rules
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/quota"
)

// ErrUnknownScenario is returned by Seed for an unlisted scenario ID.
var ErrUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "presidents-day",
		Name:        "Presidents' Day",
		Description: "February 2024: a Monday holiday lowers every target, one person takes a week off",
		Category:    "trackers",
		Month:       "2024-02",
		AsOf:        "2024-02-20",
	},
	{
		ID:          "weekly-bonus",
		Name:        "Weekly Bonus",
		Description: "February 2021: Acme bills 80h every week, Globex misses the last week",
		Category:    "bonus",
		Month:       "2021-02",
		AsOf:        "2021-02-28",
	},
	{
		ID:          "quota-history",
		Name:        "Quota History",
		Description: "Targets that changed over Q1 2024; compare current and versioned resolution",
		Category:    "trackers",
		Month:       "2024-03",
		AsOf:        "2024-03-15",
	},
	{
		ID:          "current-month",
		Name:        "Current Month",
		Description: "Default US holidays and steady logging up to yesterday",
		Category:    "trackers",
	},
}

// Scenarios returns the available demo scenarios.
func Scenarios() []ScenarioDTO {
	out := make([]ScenarioDTO, len(scenarios))
	copy(out, scenarios)
	return out
}

// Seed resets store and loads scenario id. today anchors current-month.
func Seed(ctx context.Context, store Store, id string, today calendar.Date) error {
	var seed func(context.Context, Store, calendar.Date) error
	switch id {
	case "presidents-day":
		seed = seedPresidentsDay
	case "weekly-bonus":
		seed = seedWeeklyBonus
	case "quota-history":
		seed = seedQuotaHistory
	case "current-month":
		seed = seedCurrentMonth
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}

	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	return seed(ctx, store, today)
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          current,
		Name:        current,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.currentScenario = ""
	if err := Seed(r.Context(), h.Store, req.ScenarioID, h.Now()); err != nil {
		if errors.Is(err, ErrUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", err)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func seedPresidentsDay(ctx context.Context, store Store, _ calendar.Date) error {
	if err := saveAgency(ctx, store); err != nil {
		return err
	}

	if err := store.SaveHoliday(ctx, quota.HolidayRecord{
		ID:        "presidents-day-2024",
		Name:      "Presidents' Day",
		StartDate: calendar.NewDate(2024, time.February, 19),
		Active:    true,
	}); err != nil {
		return err
	}

	// Bob is out the week of Feb 12
	if err := store.AddTimeOff(ctx, quota.TimeOffRecord{
		ID:        "bob-feb-vacation",
		PersonID:  "bob",
		StartDate: calendar.NewDate(2024, time.February, 12),
		EndDate:   calendar.NewDate(2024, time.February, 16),
		Reason:    "Vacation",
	}); err != nil {
		return err
	}

	logged := calendar.Period{Start: calendar.NewDate(2024, time.February, 1), End: calendar.NewDate(2024, time.February, 19)}
	skip := calendar.NewDateSet(calendar.NewDate(2024, time.February, 19))
	bobOff := calendar.NewDateSet()
	bobOff.AddPeriod(calendar.Period{Start: calendar.NewDate(2024, time.February, 12), End: calendar.NewDate(2024, time.February, 16)})

	var entries []quota.TimeEntry
	entries = append(entries, workdayEntries("alice", "acme", "acme-web", logged, skip, 7, quota.Billed)...)
	entries = append(entries, workdayEntries("alice", "acme", "acme-mobile", logged, skip, 1, quota.Prebilled)...)
	entries = append(entries, workdayEntries("bob", "globex", "globex-app", logged, skip.Union(bobOff), 8, quota.Billed)...)
	entries = append(entries, workdayEntries("dana", "acme", "acme-mobile", logged, skip, 6, quota.Billed)...)
	return store.AddTimeEntries(ctx, entries...)
}

func seedWeeklyBonus(ctx context.Context, store Store, _ calendar.Date) error {
	for _, q := range []quota.QuotaConfig{
		{Scope: quota.ScopeClient, SubjectID: "acme", Name: "Acme Corp", MonthlyTarget: decimal.NewFromInt(320), Active: true},
		{Scope: quota.ScopeClient, SubjectID: "globex", Name: "Globex", MonthlyTarget: decimal.NewFromInt(320), Active: true},
		{Scope: quota.ScopeClient, SubjectID: "initech", Name: "Initech", MonthlyTarget: decimal.NewFromInt(200), Active: true, Invisible: true},
		{Scope: quota.ScopeResource, SubjectID: "alice", Name: "Alice Johnson", MonthlyTarget: decimal.NewFromInt(160), Active: true},
		{Scope: quota.ScopeResource, SubjectID: "bob", Name: "Bob Smith", MonthlyTarget: decimal.NewFromInt(160), Active: true},
	} {
		if err := store.SaveQuota(ctx, q); err != nil {
			return err
		}
	}

	month := calendar.NewMonth(2021, time.February)
	var entries []quota.TimeEntry
	for _, week := range calendar.Weeks(month) {
		// 2 people x 5 days x 8h = 80h per week for Acme
		entries = append(entries, workdayEntries("alice", "acme", "", week, nil, 8, quota.Billed)...)
		entries = append(entries, workdayEntries("bob", "acme", "", week, nil, 8, quota.Billed)...)

		globexHours := 16.0
		if week.End == month.Last() {
			globexHours = 15.5
		}
		entries = append(entries, workdayEntries("carol", "globex", "", week, nil, globexHours, quota.Billed)...)
	}
	return store.AddTimeEntries(ctx, entries...)
}

func seedQuotaHistory(ctx context.Context, store Store, today calendar.Date) error {
	if err := seedPresidentsDay(ctx, store, today); err != nil {
		return err
	}

	versions := []quota.QuotaVersion{
		{Scope: quota.ScopeResource, SubjectID: "alice", EffectiveFrom: calendar.NewDate(2024, time.January, 1), MonthlyTarget: decimal.NewFromInt(140)},
		{Scope: quota.ScopeResource, SubjectID: "alice", EffectiveFrom: calendar.NewDate(2024, time.March, 1), MonthlyTarget: decimal.NewFromInt(160)},
		{Scope: quota.ScopeResource, SubjectID: "bob", EffectiveFrom: calendar.NewDate(2024, time.January, 1), MonthlyTarget: decimal.NewFromInt(100)},
		{Scope: quota.ScopeClient, SubjectID: "acme", EffectiveFrom: calendar.NewDate(2024, time.January, 1), MonthlyTarget: decimal.NewFromInt(280)},
		{Scope: quota.ScopeClient, SubjectID: "acme", EffectiveFrom: calendar.NewDate(2024, time.March, 1), MonthlyTarget: decimal.NewFromInt(320)},
		{Scope: quota.ScopeClient, SubjectID: "globex", EffectiveFrom: calendar.NewDate(2024, time.January, 1), MonthlyTarget: decimal.NewFromInt(120)},
	}
	for _, v := range versions {
		if err := store.SaveQuotaVersion(ctx, v); err != nil {
			return err
		}
	}

	logged := calendar.Period{Start: calendar.NewDate(2024, time.March, 1), End: calendar.NewDate(2024, time.March, 14)}
	var entries []quota.TimeEntry
	entries = append(entries, workdayEntries("alice", "acme", "acme-web", logged, nil, 8, quota.Billed)...)
	entries = append(entries, workdayEntries("bob", "globex", "globex-app", logged, nil, 6, quota.Billed)...)
	return store.AddTimeEntries(ctx, entries...)
}

func seedCurrentMonth(ctx context.Context, store Store, today calendar.Date) error {
	if err := saveAgency(ctx, store); err != nil {
		return err
	}
	for _, h := range quota.DefaultHolidays(today.Year() - 1) {
		if err := store.SaveHoliday(ctx, h); err != nil {
			return err
		}
	}

	month := calendar.MonthOf(today)
	holidays := quota.HolidayDates(quota.DefaultHolidays(today.Year()-1), month)

	// Bob takes the Monday to Wednesday of the second full week off
	weeks := calendar.Weeks(month)
	bobOff := calendar.NewDateSet()
	if len(weeks) > 1 {
		off := calendar.Period{Start: weeks[1].Start, End: weeks[1].Start.AddDays(2)}
		bobOff.AddPeriod(off)
		if err := store.AddTimeOff(ctx, quota.TimeOffRecord{
			ID: "bob-current-month", PersonID: "bob", StartDate: off.Start, EndDate: off.End, Reason: "Personal",
		}); err != nil {
			return err
		}
	}

	logged := calendar.Period{Start: month.Start(), End: today.AddDays(-1)}
	var entries []quota.TimeEntry
	entries = append(entries, workdayEntries("alice", "acme", "acme-web", logged, holidays, 8, quota.Billed)...)
	entries = append(entries, workdayEntries("bob", "globex", "globex-app", logged, holidays.Union(bobOff), 6, quota.Billed)...)
	entries = append(entries, workdayEntries("bob", "globex", "globex-app", logged, holidays.Union(bobOff), 2, quota.Prebilled)...)
	entries = append(entries, workdayEntries("dana", "acme", "acme-mobile", logged, holidays, 7, quota.Billed)...)
	if len(entries) == 0 {
		return nil
	}
	return store.AddTimeEntries(ctx, entries...)
}

// =============================================================================
// HELPERS
// =============================================================================

// saveAgency saves the people, clients and sub-accounts shared by the
// tracker scenarios. Carol's quota is inactive and Initech is invisible,
// so both are omitted from the views.
func saveAgency(ctx context.Context, store Store) error {
	configs := []quota.QuotaConfig{
		{Scope: quota.ScopeResource, SubjectID: "alice", Name: "Alice Johnson", MonthlyTarget: decimal.NewFromInt(160), Active: true},
		{Scope: quota.ScopeResource, SubjectID: "bob", Name: "Bob Smith", MonthlyTarget: decimal.NewFromInt(120), Active: true},
		{Scope: quota.ScopeResource, SubjectID: "carol", Name: "Carol White", MonthlyTarget: decimal.NewFromInt(160), Active: false},
		{Scope: quota.ScopeResource, SubjectID: "dana", Name: "Dana Lee", MonthlyTarget: decimal.NewFromInt(140), Active: true},
		{Scope: quota.ScopeClient, SubjectID: "acme", Name: "Acme Corp", MonthlyTarget: decimal.NewFromInt(320), Active: true},
		{Scope: quota.ScopeClient, SubjectID: "globex", Name: "Globex", MonthlyTarget: decimal.NewFromInt(150), Active: true},
		{Scope: quota.ScopeClient, SubjectID: "initech", Name: "Initech", MonthlyTarget: decimal.NewFromInt(80), Active: true, Invisible: true},
		{Scope: quota.ScopeSubAccount, SubjectID: "acme-web", ParentID: "acme", Name: "Acme Web", MonthlyTarget: decimal.NewFromInt(160), Active: true},
		{Scope: quota.ScopeSubAccount, SubjectID: "acme-mobile", ParentID: "acme", Name: "Acme Mobile", MonthlyTarget: decimal.NewFromInt(120), Active: true},
		{Scope: quota.ScopeSubAccount, SubjectID: "globex-app", ParentID: "globex", Name: "Globex App", MonthlyTarget: decimal.NewFromInt(150), Active: true},
	}
	for _, q := range configs {
		if err := store.SaveQuota(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// workdayEntries logs hours on every weekday of p that is not in skip.
func workdayEntries(personID, clientID, subAccountID string, p calendar.Period, skip calendar.DateSet, hours float64, class quota.Classification) []quota.TimeEntry {
	var entries []quota.TimeEntry
	for _, day := range p.Days() {
		if day.IsWeekend() || skip.Has(day) {
			continue
		}
		entries = append(entries, quota.TimeEntry{
			ID:             fmt.Sprintf("%s-%s-%s-%s", personID, subAccountOr(clientID, subAccountID), class, day),
			PersonID:       personID,
			ClientID:       clientID,
			SubAccountID:   subAccountID,
			Date:           day,
			ActualHours:    decimal.NewFromFloat(hours),
			BilledHours:    decimal.NewFromFloat(hours),
			Classification: class,
		})
	}
	return entries
}

func subAccountOr(clientID, subAccountID string) string {
	if subAccountID != "" {
		return subAccountID
	}
	return clientID
}
