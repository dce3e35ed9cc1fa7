/*
source.go - Storage boundary consumed by the engine

PURPOSE:
  The engine reads four kinds of rows and writes none. Source is the
  whole contract; implementations decide transport and schema.

OVERLAP SEMANTICS:
  FetchHolidays and FetchTimeOff return every row that overlaps the
  period, including rows that started before it. For holidays that is

    start_date <= period.End AND coalesce(end_date, start_date) >= period.Start

  plus every recurring row anchored on or before period.End. Inactive
  holidays may be returned; the resolver skips them.

CONSISTENCY:
  A view issues one call per row kind for the requested month and then
  computes in memory, so one consistent read of each table is enough.

IMPLEMENTATIONS:
  - quota/store/memory.go: in-memory, for tests and demos
  - store/sqlite/sqlite.go: default persistent store
  - store/postgres/postgres.go: pgx-backed production store
*/
package quota

import (
	"context"

	"github.com/warp/capacity-engine/calendar"
)

// EntryFilter narrows FetchTimeEntries. Empty fields do not filter.
type EntryFilter struct {
	PersonID     string
	ClientID     string
	SubAccountID string
}

// Matches reports whether e passes the filter.
func (f EntryFilter) Matches(e TimeEntry) bool {
	return (f.PersonID == "" || f.PersonID == e.PersonID) &&
		(f.ClientID == "" || f.ClientID == e.ClientID) &&
		(f.SubAccountID == "" || f.SubAccountID == e.SubAccountID)
}

// Source supplies the rows the engine reads. All methods are read-only.
type Source interface {
	// FetchTimeEntries returns entries dated inside period that match filter.
	FetchTimeEntries(ctx context.Context, period calendar.Period, filter EntryFilter) ([]TimeEntry, error)

	// FetchHolidays returns holidays overlapping period.
	FetchHolidays(ctx context.Context, period calendar.Period) ([]HolidayRecord, error)

	// FetchTimeOff returns time off overlapping period, for one person or,
	// when personID is empty, for everyone.
	FetchTimeOff(ctx context.Context, personID string, period calendar.Period) ([]TimeOffRecord, error)

	// FetchActiveQuotas returns the current active configs of a scope.
	FetchActiveQuotas(ctx context.Context, scope Scope) ([]QuotaConfig, error)
}

// VersionedSource is a Source that also keeps dated quota targets.
// Required only for Versioned resolution.
type VersionedSource interface {
	Source

	// FetchQuotaVersions returns, per subject of scope, the latest version
	// effective on or before asOf. Subjects without one are absent.
	FetchQuotaVersions(ctx context.Context, scope Scope, asOf calendar.Date) ([]QuotaVersion, error)
}
