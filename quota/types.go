/*
Package quota implements the quota and capacity tracking engine.

PURPOSE:
  Turns raw time entries, holiday calendars, personal time off and quota
  configuration into tracker rows: how much of a monthly hour target a
  person, client or sub-account has delivered, how much they should have
  delivered by today, and whether a client earned its weekly bonus.

DATA FLOW:
  Source rows -> resolvers (holidays, time off) -> proration engine
  -> views (resource, client, sub-account, weekly bonus)

  Nothing in this package writes to storage. Every call re-reads the
  Source, so an edited holiday or time-off row shows up on the next
  request without invalidation.

KEY CONCEPTS IN THIS FILE (types.go):
  - TimeEntry, HolidayRecord, TimeOffRecord: input rows
  - QuotaConfig: one current target per subject and scope
  - TrackerResult, EligibilityResult: computed read models

PRECISION:
  Hours and targets are decimal.Decimal. Results keep full precision;
  the Rounded helpers produce one-decimal display values.

SEE ALSO:
  - source.go: storage boundary
  - proration.go: adjusted target and expected hours to date
  - tracker.go: aggregation views
  - bonus.go: weekly bonus eligibility
*/
package quota

import (
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/calendar"
)

// =============================================================================
// INPUT ROWS
// =============================================================================

// Classification is the billing classification of a time entry.
type Classification string

const (
	Billed    Classification = "billed"
	Prebilled Classification = "prebilled"
)

// TimeEntry is one logged block of work. Many entries may exist per
// person per day.
type TimeEntry struct {
	ID             string
	PersonID       string
	ClientID       string
	SubAccountID   string // empty when the entry is not tied to a sub-account
	Date           calendar.Date
	ActualHours    decimal.Decimal
	BilledHours    decimal.Decimal
	Classification Classification
}

// HolidayRecord is a company holiday. EndDate defaults to StartDate.
// A non-empty Rule makes the row recurring: StartDate anchors the
// RFC 5545 rule and every occurrence is a one-day holiday.
type HolidayRecord struct {
	ID        string
	Name      string
	StartDate calendar.Date
	EndDate   *calendar.Date
	Active    bool
	Rule      string
}

// EffectiveEnd returns EndDate, or StartDate when the holiday has no end.
func (h HolidayRecord) EffectiveEnd() calendar.Date {
	if h.EndDate == nil || h.EndDate.IsZero() {
		return h.StartDate
	}
	return *h.EndDate
}

// Recurring reports whether the holiday is expanded from a rule.
func (h HolidayRecord) Recurring() bool { return h.Rule != "" }

// TimeOffRecord is one stretch of personal unavailability.
type TimeOffRecord struct {
	ID        string
	PersonID  string
	StartDate calendar.Date
	EndDate   calendar.Date
	Reason    string
}

// =============================================================================
// QUOTA CONFIGURATION
// =============================================================================

// Scope is the aggregation axis a quota applies to.
type Scope string

const (
	ScopeResource   Scope = "resource"
	ScopeClient     Scope = "client"
	ScopeSubAccount Scope = "sub_account"
)

// ParseScope validates a scope string.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeResource, ScopeClient, ScopeSubAccount:
		return Scope(s), nil
	}
	return "", &UnknownScopeError{Scope: s}
}

// QuotaConfig is the single current target of a subject. ResourceQuota,
// ClientQuotaConfig and SubAccountQuotaConfig all share this shape.
type QuotaConfig struct {
	Scope         Scope
	SubjectID     string
	ParentID      string // owning client, for sub-accounts
	Name          string
	MonthlyTarget decimal.Decimal
	Active        bool
	Invisible     bool
	NoQuota       bool
}

// Tracked reports whether the subject belongs in tracker views. Subjects
// that are not tracked are omitted, never given a default target.
func (q QuotaConfig) Tracked() bool {
	return q.Active && !q.Invisible && !q.NoQuota && q.MonthlyTarget.IsPositive()
}

// QuotaVersion is a dated target, read only under Versioned resolution.
type QuotaVersion struct {
	Scope         Scope
	SubjectID     string
	EffectiveFrom calendar.Date
	MonthlyTarget decimal.Decimal
}

// =============================================================================
// RESULTS
// =============================================================================

// PaceStatus summarizes pacing for display.
type PaceStatus string

const (
	PaceMet     PaceStatus = "met"      // billed hours reached the adjusted target
	PaceOnTrack PaceStatus = "on_track" // at or above expected hours to date
	PaceBehind  PaceStatus = "behind"
)

// TrackerResult is one row of a tracker view. It is computed per request
// and never stored.
type TrackerResult struct {
	Scope               Scope
	SubjectID           string
	Name                string
	ParentID            string
	MonthlyTarget       decimal.Decimal
	AdjustedTarget      decimal.Decimal
	ExpectedHoursToDate decimal.Decimal
	BilledHours         decimal.Decimal
	PrebilledHours      *decimal.Decimal // resource view only
	PercentageComplete  decimal.Decimal
	Pacing              decimal.Decimal
	Status              PaceStatus

	StandardWorkingDays  int
	AvailableWorkingDays int
	WorkingDaysElapsed   int
}

// Rounded returns a copy with every hour and percentage figure rounded to
// one decimal place.
func (r TrackerResult) Rounded() TrackerResult {
	out := r
	out.MonthlyTarget = r.MonthlyTarget.Round(1)
	out.AdjustedTarget = r.AdjustedTarget.Round(1)
	out.ExpectedHoursToDate = r.ExpectedHoursToDate.Round(1)
	out.BilledHours = r.BilledHours.Round(1)
	out.PercentageComplete = r.PercentageComplete.Round(1)
	out.Pacing = r.Pacing.Round(1)
	if r.PrebilledHours != nil {
		p := r.PrebilledHours.Round(1)
		out.PrebilledHours = &p
	}
	return out
}

// WeekResult is the outcome of one bonus window.
type WeekResult struct {
	Period       calendar.Period
	DaysInWindow int
	Target       decimal.Decimal
	BilledHours  decimal.Decimal
	HitTarget    bool
}

// EligibilityResult is the weekly bonus verdict for one client and month.
type EligibilityResult struct {
	ClientID      string
	Name          string
	Month         calendar.Month
	MonthlyTarget decimal.Decimal
	Weeks         []WeekResult
	WeeksHit      int
	TotalWeeks    int
	Eligible      bool
}
