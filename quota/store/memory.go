// Package store provides in-memory quota.Source implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/quota"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	entries  []quota.TimeEntry
	holidays map[string]quota.HolidayRecord
	timeOff  []quota.TimeOffRecord
	quotas   map[key]quota.QuotaConfig
	versions map[key][]quota.QuotaVersion
}

type key struct {
	Scope     quota.Scope
	SubjectID string
}

// Compile-time check that Memory serves versioned resolution.
var _ quota.VersionedSource = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		holidays: make(map[string]quota.HolidayRecord),
		quotas:   make(map[key]quota.QuotaConfig),
		versions: make(map[key][]quota.QuotaVersion),
	}
}

// =============================================================================
// WRITES - used by tests and scenario seeding, never by the engine
// =============================================================================

func (m *Memory) AddTimeEntries(entries ...quota.TimeEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
}

func (m *Memory) SaveHoliday(h quota.HolidayRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays[h.ID] = h
}

func (m *Memory) DeleteHoliday(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.holidays[id]; !ok {
		return quota.ErrHolidayNotFound
	}
	delete(m.holidays, id)
	return nil
}

func (m *Memory) AddTimeOff(records ...quota.TimeOffRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeOff = append(m.timeOff, records...)
}

// SaveQuota replaces the current config of the subject.
func (m *Memory) SaveQuota(q quota.QuotaConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotas[key{Scope: q.Scope, SubjectID: q.SubjectID}] = q
}

// SaveQuotaVersion records a dated target, keeping versions ordered by date.
func (m *Memory) SaveQuotaVersion(v quota.QuotaVersion) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{Scope: v.Scope, SubjectID: v.SubjectID}
	vs := m.versions[k]

	// Binary search for insertion point
	i := sort.Search(len(vs), func(i int) bool {
		return vs[i].EffectiveFrom.After(v.EffectiveFrom)
	})
	vs = append(vs, quota.QuotaVersion{})
	copy(vs[i+1:], vs[i:])
	vs[i] = v
	m.versions[k] = vs
}

// =============================================================================
// READS - quota.Source
// =============================================================================

func (m *Memory) FetchTimeEntries(_ context.Context, period calendar.Period, filter quota.EntryFilter) ([]quota.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []quota.TimeEntry
	for _, e := range m.entries {
		if period.Contains(e.Date) && filter.Matches(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) FetchHolidays(_ context.Context, period calendar.Period) ([]quota.HolidayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []quota.HolidayRecord
	for _, h := range m.holidays {
		if h.Recurring() {
			if h.StartDate.BeforeOrEqual(period.End) {
				result = append(result, h)
			}
			continue
		}
		if h.StartDate.BeforeOrEqual(period.End) && h.EffectiveEnd().AfterOrEqual(period.Start) {
			result = append(result, h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartDate.Before(result[j].StartDate) })
	return result, nil
}

func (m *Memory) FetchTimeOff(_ context.Context, personID string, period calendar.Period) ([]quota.TimeOffRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []quota.TimeOffRecord
	for _, r := range m.timeOff {
		if personID != "" && r.PersonID != personID {
			continue
		}
		if r.StartDate.BeforeOrEqual(period.End) && r.EndDate.AfterOrEqual(period.Start) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *Memory) FetchActiveQuotas(_ context.Context, scope quota.Scope) ([]quota.QuotaConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []quota.QuotaConfig
	for k, q := range m.quotas {
		if k.Scope == scope && q.Active {
			result = append(result, q)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubjectID < result[j].SubjectID })
	return result, nil
}

func (m *Memory) FetchQuotaVersions(_ context.Context, scope quota.Scope, asOf calendar.Date) ([]quota.QuotaVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []quota.QuotaVersion
	for k, vs := range m.versions {
		if k.Scope != scope {
			continue
		}
		// Versions are ordered; take the last one not after asOf.
		i := sort.Search(len(vs), func(i int) bool { return vs[i].EffectiveFrom.After(asOf) })
		if i > 0 {
			result = append(result, vs[i-1])
		}
	}
	return result, nil
}
