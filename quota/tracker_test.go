package quota_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/quota"
	"github.com/warp/capacity-engine/quota/store"
)

// =============================================================================
// FIXTURE
// =============================================================================

// newAgencyStore builds February 2024 for a small agency:
//   - alice (160h) and bob (120h) have tracked resource quotas
//   - carol's quota is inactive, erin's target is zero, dave has none
//   - acme (320h) is a tracked client, globex has no_quota, initech is invisible
//   - acme-web and acme-mobile belong to acme, globex-app to globex
func newAgencyStore(t *testing.T) *store.Memory {
	t.Helper()
	s := store.NewMemory()

	s.SaveHoliday(quota.HolidayRecord{ID: "pd", Name: "Presidents' Day", StartDate: date(2024, time.February, 19), Active: true})

	for _, q := range []quota.QuotaConfig{
		{Scope: quota.ScopeResource, SubjectID: "alice", Name: "Alice", MonthlyTarget: hours(160), Active: true},
		{Scope: quota.ScopeResource, SubjectID: "bob", Name: "Bob", MonthlyTarget: hours(120), Active: true},
		{Scope: quota.ScopeResource, SubjectID: "carol", Name: "Carol", MonthlyTarget: hours(160), Active: false},
		{Scope: quota.ScopeResource, SubjectID: "erin", Name: "Erin", MonthlyTarget: hours(0), Active: true},
		{Scope: quota.ScopeClient, SubjectID: "acme", Name: "Acme", MonthlyTarget: hours(320), Active: true},
		{Scope: quota.ScopeClient, SubjectID: "globex", Name: "Globex", MonthlyTarget: hours(100), Active: true, NoQuota: true},
		{Scope: quota.ScopeClient, SubjectID: "initech", Name: "Initech", MonthlyTarget: hours(100), Active: true, Invisible: true},
		{Scope: quota.ScopeSubAccount, SubjectID: "acme-web", ParentID: "acme", Name: "Acme Web", MonthlyTarget: hours(100), Active: true},
		{Scope: quota.ScopeSubAccount, SubjectID: "acme-mobile", ParentID: "acme", Name: "Acme Mobile", MonthlyTarget: hours(50), Active: true},
		{Scope: quota.ScopeSubAccount, SubjectID: "globex-app", ParentID: "globex", Name: "Globex App", MonthlyTarget: hours(40), Active: true},
	} {
		s.SaveQuota(q)
	}

	// alice: ten billed 8h days on acme-web, two prebilled 4h blocks
	for _, d := range []int{1, 2, 5, 6, 7, 8, 9, 12, 13, 14} {
		s.AddTimeEntries(quota.TimeEntry{
			PersonID: "alice", ClientID: "acme", SubAccountID: "acme-web",
			Date: date(2024, time.February, d), ActualHours: hours(8), Classification: quota.Billed,
		})
	}
	s.AddTimeEntries(
		quota.TimeEntry{PersonID: "alice", ClientID: "acme", SubAccountID: "acme-mobile", Date: date(2024, time.February, 15), ActualHours: hours(4), Classification: quota.Prebilled},
		quota.TimeEntry{PersonID: "alice", ClientID: "acme", SubAccountID: "acme-mobile", Date: date(2024, time.February, 16), ActualHours: hours(4), Classification: quota.Prebilled},
	)
	// bob: 40h billed to globex
	for _, d := range []int{5, 6, 7, 8, 9} {
		s.AddTimeEntries(quota.TimeEntry{
			PersonID: "bob", ClientID: "globex", SubAccountID: "globex-app",
			Date: date(2024, time.February, d), ActualHours: hours(8), Classification: quota.Billed,
		})
	}
	// dave logs time without a quota; January entries fall outside the month
	s.AddTimeEntries(
		quota.TimeEntry{PersonID: "dave", ClientID: "acme", Date: date(2024, time.February, 5), ActualHours: hours(30), Classification: quota.Billed},
		quota.TimeEntry{PersonID: "alice", ClientID: "acme", SubAccountID: "acme-web", Date: date(2024, time.January, 31), ActualHours: hours(100), Classification: quota.Billed},
	)
	return s
}

func subjects(results []quota.TrackerResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.SubjectID)
	}
	return ids
}

// =============================================================================
// RESOURCE VIEW
// =============================================================================

func TestResourceTracker_RowsAndTotals(t *testing.T) {
	ctx := context.Background()
	tracker := quota.NewTracker(newAgencyStore(t)).At(date(2024, time.February, 20))

	results, err := tracker.ResourceTracker(ctx, feb2024())
	require.NoError(t, err)

	// carol (inactive), erin (zero target) and dave (no quota) are omitted
	require.Equal(t, []string{"alice", "bob"}, subjects(results))

	alice := results[0]
	assert.Equal(t, quota.ScopeResource, alice.Scope)
	assertHours(t, "152.4", alice.AdjustedTarget)
	assertHours(t, "91.4", alice.ExpectedHoursToDate)
	assertHours(t, "80", alice.BilledHours)
	require.NotNil(t, alice.PrebilledHours)
	assertHours(t, "8", *alice.PrebilledHours)
	assertHours(t, "52.5", alice.PercentageComplete)
	assertHours(t, "-11.4", alice.Pacing)
	assert.Equal(t, quota.PaceBehind, alice.Status)
	assert.Equal(t, 21, alice.StandardWorkingDays)
	assert.Equal(t, 20, alice.AvailableWorkingDays)

	bob := results[1]
	assertHours(t, "114.3", bob.AdjustedTarget)
	assertHours(t, "68.6", bob.ExpectedHoursToDate)
	assertHours(t, "40", bob.BilledHours)
	require.NotNil(t, bob.PrebilledHours)
	assert.True(t, bob.PrebilledHours.IsZero())
}

func TestResourceTracker_TimeOffIsPersonal(t *testing.T) {
	ctx := context.Background()
	s := newAgencyStore(t)
	s.AddTimeOff(quota.TimeOffRecord{
		ID: "vac", PersonID: "bob",
		StartDate: date(2024, time.January, 29), EndDate: date(2024, time.February, 2),
	})

	results, err := quota.NewTracker(s).At(date(2024, time.February, 20)).ResourceTracker(ctx, feb2024())
	require.NoError(t, err)
	require.Len(t, results, 2)

	// alice is unaffected; bob loses Feb 1 and 2 only
	assert.Equal(t, 20, results[0].AvailableWorkingDays)
	assert.Equal(t, 18, results[1].AvailableWorkingDays)
	assertHours(t, "102.9", results[1].AdjustedTarget)
}

func TestResourceTracker_MetStatus(t *testing.T) {
	ctx := context.Background()
	s := newAgencyStore(t)
	s.AddTimeEntries(quota.TimeEntry{
		PersonID: "bob", ClientID: "globex", Date: date(2024, time.February, 12),
		ActualHours: hours(80), Classification: quota.Billed,
	})

	results, err := quota.NewTracker(s).At(date(2024, time.February, 20)).ResourceTracker(ctx, feb2024())
	require.NoError(t, err)
	assert.Equal(t, quota.PaceMet, results[1].Status)
}

func TestResourceTracker_EmptyIsNotNil(t *testing.T) {
	results, err := quota.NewTracker(store.NewMemory()).ResourceTracker(context.Background(), feb2024())
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestTrackerResult_Rounded(t *testing.T) {
	ctx := context.Background()
	results, err := quota.NewTracker(newAgencyStore(t)).At(date(2024, time.February, 20)).ResourceTracker(ctx, feb2024())
	require.NoError(t, err)

	r := results[0].Rounded()
	assert.Equal(t, "152.4", r.AdjustedTarget.String())
	assert.Equal(t, "8", r.PrebilledHours.String())
	// the original keeps full precision
	assert.NotEqual(t, "152.4", results[0].AdjustedTarget.String())
}

// =============================================================================
// CLIENT AND SUB-ACCOUNT VIEWS
// =============================================================================

func TestClientTracker_BilledOnly(t *testing.T) {
	ctx := context.Background()
	results, err := quota.NewTracker(newAgencyStore(t)).At(date(2024, time.February, 20)).ClientTracker(ctx, feb2024())
	require.NoError(t, err)

	// globex (no_quota) and initech (invisible) are omitted
	require.Equal(t, []string{"acme"}, subjects(results))
	acme := results[0]
	assertHours(t, "304.8", acme.AdjustedTarget)
	// alice's 80 billed plus dave's 30; prebilled hours and January are excluded
	assertHours(t, "110", acme.BilledHours)
	assert.Nil(t, acme.PrebilledHours)
}

func TestAccountTracker_FiltersByClient(t *testing.T) {
	ctx := context.Background()
	tracker := quota.NewTracker(newAgencyStore(t)).At(date(2024, time.February, 20))

	all, err := tracker.AccountTracker(ctx, feb2024(), "")
	require.NoError(t, err)
	// sorted by name
	assert.Equal(t, []string{"acme-mobile", "acme-web", "globex-app"}, subjects(all))

	acme, err := tracker.AccountTracker(ctx, feb2024(), "acme")
	require.NoError(t, err)
	require.Equal(t, []string{"acme-mobile", "acme-web"}, subjects(acme))
	assert.Equal(t, "acme", acme[0].ParentID)
	assert.True(t, acme[0].BilledHours.IsZero(), "prebilled hours do not count")
	assertHours(t, "80", acme[1].BilledHours)

	none, err := tracker.AccountTracker(ctx, feb2024(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// RESOLUTION
// =============================================================================

func TestVersionedResolution(t *testing.T) {
	ctx := context.Background()
	s := newAgencyStore(t)
	s.SaveQuotaVersion(quota.QuotaVersion{Scope: quota.ScopeResource, SubjectID: "alice", EffectiveFrom: date(2024, time.March, 1), MonthlyTarget: hours(170)})
	s.SaveQuotaVersion(quota.QuotaVersion{Scope: quota.ScopeResource, SubjectID: "alice", EffectiveFrom: date(2024, time.January, 1), MonthlyTarget: hours(140)})

	tracker := quota.NewTracker(s).At(date(2024, time.February, 20)).WithResolution(quota.Resolution{Kind: quota.Versioned})

	feb, err := tracker.ResourceTracker(ctx, feb2024())
	require.NoError(t, err)
	// bob has no version and is omitted
	require.Equal(t, []string{"alice"}, subjects(feb))
	assertHours(t, "140", feb[0].MonthlyTarget)

	mar, err := tracker.ResourceTracker(ctx, calendar.NewMonth(2024, time.March))
	require.NoError(t, err)
	require.Len(t, mar, 1)
	assertHours(t, "170", mar[0].MonthlyTarget)

	// CurrentOnly keeps the config target for every month
	current, err := quota.NewTracker(s).At(date(2024, time.February, 20)).ResourceTracker(ctx, feb2024())
	require.NoError(t, err)
	assertHours(t, "160", current[0].MonthlyTarget)
}

// plainSource hides the versioned methods of the memory store.
type plainSource struct{ quota.Source }

func TestVersionedResolution_RequiresHistory(t *testing.T) {
	src := plainSource{Source: newAgencyStore(t)}
	tracker := quota.NewTracker(src).WithResolution(quota.Resolution{Kind: quota.Versioned})

	_, err := tracker.ClientTracker(context.Background(), feb2024())
	assert.ErrorIs(t, err, quota.ErrStoreRequired)
	assert.True(t, quota.IsUnsupported(err))
}

func TestParseResolution(t *testing.T) {
	r, err := quota.ParseResolution("")
	require.NoError(t, err)
	assert.Equal(t, quota.CurrentOnly, r.Kind)

	r, err = quota.ParseResolution("versioned")
	require.NoError(t, err)
	assert.Equal(t, quota.Versioned, r.Kind)

	_, err = quota.ParseResolution("latest")
	assert.ErrorIs(t, err, quota.ErrUnknownResolution)
	assert.True(t, quota.IsClientError(err))
}

func TestParseScope(t *testing.T) {
	s, err := quota.ParseScope("sub_account")
	require.NoError(t, err)
	assert.Equal(t, quota.ScopeSubAccount, s)

	_, err = quota.ParseScope("team")
	var scopeErr *quota.UnknownScopeError
	require.ErrorAs(t, err, &scopeErr)
	assert.Equal(t, "team", scopeErr.Scope)
	assert.ErrorIs(t, err, quota.ErrUnknownScope)
}
