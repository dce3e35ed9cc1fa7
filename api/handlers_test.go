/*
handlers_test.go - HTTP tests for the tracker, bonus and holiday endpoints

Tests for:
- Tracker views over the presidents-day scenario
- Query validation (month, as_of, resolution)
- Weekly bonus over the weekly-bonus scenario
- Holiday create, validate, delete and defaults
- Health check
*/
package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/store/sqlite"
)

// setupTestServer returns a router over an in-memory store with the clock
// pinned to the day after Presidents' Day 2024.
func setupTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store)
	h.Now = func() calendar.Date { return calendar.NewDate(2024, time.February, 20) }
	return h, NewRouter(h, nil)
}

func seedScenario(t *testing.T, h *Handler, id string) {
	t.Helper()
	require.NoError(t, Seed(context.Background(), h.Store, id, h.Now()))
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// TRACKERS
// =============================================================================

func TestResourceTracker_PresidentsDay(t *testing.T) {
	// GIVEN: The presidents-day scenario, queried the day after the holiday
	h, router := setupTestServer(t)
	seedScenario(t, h, "presidents-day")

	// WHEN: Requesting the resource view without a month
	rec := doRequest(t, router, http.MethodGet, "/api/trackers/resources", nil)

	// THEN: Month defaults to the as_of month and carol (inactive) is omitted
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[TrackerResponse](t, rec)
	assert.Equal(t, "resource", resp.Scope)
	assert.Equal(t, "2024-02", resp.Month)
	assert.Equal(t, "2024-02-20", resp.AsOf)
	assert.Equal(t, "current", resp.Resolution)
	require.Len(t, resp.Rows, 3)

	alice := resp.Rows[0]
	assert.Equal(t, "alice", alice.SubjectID)
	assert.Equal(t, 160.0, alice.MonthlyTarget)
	assert.Equal(t, 152.4, alice.AdjustedTarget)
	assert.Equal(t, 91.4, alice.ExpectedHoursToDate)
	assert.Equal(t, 84.0, alice.BilledHours)
	require.NotNil(t, alice.PrebilledHours)
	assert.Equal(t, 12.0, *alice.PrebilledHours)
	assert.Equal(t, 55.1, alice.PercentageComplete)
	assert.Equal(t, -7.4, alice.Pacing)
	assert.Equal(t, "behind", alice.Status)
	assert.Equal(t, 21, alice.StandardWorkingDays)
	assert.Equal(t, 20, alice.AvailableWorkingDays)
	assert.Equal(t, 13, alice.WorkingDaysElapsed)

	// Bob was out Feb 12-16
	bob := resp.Rows[1]
	assert.Equal(t, "bob", bob.SubjectID)
	assert.Equal(t, 15, bob.AvailableWorkingDays)
	assert.Equal(t, 85.7, bob.AdjustedTarget)
	assert.Equal(t, 8, bob.WorkingDaysElapsed)
	assert.Equal(t, 40.0, bob.ExpectedHoursToDate)
	assert.Equal(t, 56.0, bob.BilledHours)
	assert.Equal(t, "on_track", bob.Status)

	assert.Equal(t, "dana", resp.Rows[2].SubjectID)
}

func TestClientTracker_HidesInvisibleClients(t *testing.T) {
	h, router := setupTestServer(t)
	seedScenario(t, h, "presidents-day")

	rec := doRequest(t, router, http.MethodGet, "/api/trackers/clients?month=2024-02", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[TrackerResponse](t, rec)
	require.Len(t, resp.Rows, 2)

	acme := resp.Rows[0]
	assert.Equal(t, "acme", acme.SubjectID)
	assert.Equal(t, 304.8, acme.AdjustedTarget)
	assert.Equal(t, 156.0, acme.BilledHours, "alice 84h + dana 72h, prebilled excluded")
	assert.Nil(t, acme.PrebilledHours)

	globex := resp.Rows[1]
	assert.Equal(t, "globex", globex.SubjectID)
	assert.Equal(t, 142.9, globex.AdjustedTarget)
	assert.Equal(t, 56.0, globex.BilledHours)
}

func TestAccountTracker_FilterByClient(t *testing.T) {
	h, router := setupTestServer(t)
	seedScenario(t, h, "presidents-day")

	rec := doRequest(t, router, http.MethodGet, "/api/trackers/accounts?client_id=acme", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[TrackerResponse](t, rec)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "acme-mobile", resp.Rows[0].SubjectID)
	assert.Equal(t, 72.0, resp.Rows[0].BilledHours, "dana only; alice's mobile hours are prebilled")
	assert.Equal(t, "acme-web", resp.Rows[1].SubjectID)
	assert.Equal(t, 84.0, resp.Rows[1].BilledHours)
	for _, row := range resp.Rows {
		assert.Equal(t, "acme", row.ParentID)
	}
}

func TestTracker_EmptyStoreReturnsEmptyRows(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/api/trackers/resources", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":[]`)
}

func TestTracker_InvalidQuery(t *testing.T) {
	_, router := setupTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"bad month", "/api/trackers/resources?month=2024-13"},
		{"month not zero padded", "/api/trackers/clients?month=2024-2"},
		{"bad as_of", "/api/trackers/resources?as_of=20-02-2024"},
		{"bad resolution", "/api/trackers/accounts?resolution=latest"},
		{"bad bonus month", "/api/bonus/weekly?month=february"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, tt.path, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			resp := decodeBody[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestTracker_VersionedResolution(t *testing.T) {
	// GIVEN: Quota history where alice was on 140h until March
	h, router := setupTestServer(t)
	seedScenario(t, h, "quota-history")

	// WHEN: Asking for February with versioned targets
	rec := doRequest(t, router, http.MethodGet, "/api/trackers/resources?month=2024-02&resolution=versioned", nil)

	// THEN: The February version applies instead of the current config
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[TrackerResponse](t, rec)
	assert.Equal(t, "versioned", resp.Resolution)

	targets := map[string]float64{}
	for _, row := range resp.Rows {
		targets[row.SubjectID] = row.MonthlyTarget
	}
	assert.Equal(t, 140.0, targets["alice"])
	assert.Equal(t, 100.0, targets["bob"])
}

// =============================================================================
// BONUS
// =============================================================================

func TestWeeklyBonus_Feb2021(t *testing.T) {
	h, router := setupTestServer(t)
	seedScenario(t, h, "weekly-bonus")

	rec := doRequest(t, router, http.MethodGet, "/api/bonus/weekly?month=2021-02", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[BonusResponse](t, rec)
	assert.Equal(t, "2021-02", resp.Month)
	require.Len(t, resp.Clients, 2, "initech is invisible")

	acme := resp.Clients[0]
	assert.Equal(t, "acme", acme.ClientID)
	assert.True(t, acme.Eligible)
	assert.Equal(t, 4, acme.WeeksHit)
	assert.Equal(t, 4, acme.TotalWeeks)
	require.Len(t, acme.Weeks, 4)
	assert.Equal(t, "2021-02-01", acme.Weeks[0].Start)
	assert.Equal(t, 80.0, acme.Weeks[0].Target)
	assert.Equal(t, 80.0, acme.Weeks[0].BilledHours)

	globex := resp.Clients[1]
	assert.Equal(t, "globex", globex.ClientID)
	assert.False(t, globex.Eligible)
	assert.Equal(t, 3, globex.WeeksHit)
	assert.Equal(t, 77.5, globex.Weeks[3].BilledHours)
	assert.False(t, globex.Weeks[3].HitTarget)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestHoliday_CreateAndList(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodPost, "/api/holidays", CreateHolidayRequest{
		Name:      "Company Offsite",
		StartDate: "2024-02-21",
		EndDate:   "2024-02-22",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[HolidayDTO](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Active)
	assert.Equal(t, "2024-02-22", created.EndDate)

	rec = doRequest(t, router, http.MethodGet, "/api/holidays", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[map[string][]HolidayDTO](t, rec)
	require.Len(t, list["holidays"], 1)
	assert.Equal(t, created.ID, list["holidays"][0].ID)
}

func TestHoliday_CreatedHolidayChangesTracker(t *testing.T) {
	// GIVEN: presidents-day data
	h, router := setupTestServer(t)
	seedScenario(t, h, "presidents-day")

	// WHEN: Adding another holiday later in the month
	rec := doRequest(t, router, http.MethodPost, "/api/holidays", CreateHolidayRequest{
		Name:      "Snow Day",
		StartDate: "2024-02-26",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: The next request sees one fewer available day
	rec = doRequest(t, router, http.MethodGet, "/api/trackers/resources", nil)
	resp := decodeBody[TrackerResponse](t, rec)
	require.NotEmpty(t, resp.Rows)
	assert.Equal(t, 19, resp.Rows[0].AvailableWorkingDays)
}

func TestHoliday_CreateValidation(t *testing.T) {
	_, router := setupTestServer(t)

	tests := []struct {
		name string
		req  CreateHolidayRequest
	}{
		{"missing name", CreateHolidayRequest{StartDate: "2024-02-19"}},
		{"missing start", CreateHolidayRequest{Name: "Nothing"}},
		{"bad start", CreateHolidayRequest{Name: "Bad", StartDate: "2024-02-30"}},
		{"end before start", CreateHolidayRequest{Name: "Backwards", StartDate: "2024-02-19", EndDate: "2024-02-18"}},
		{"rule with end date", CreateHolidayRequest{Name: "Both", StartDate: "2024-02-19", EndDate: "2024-02-20", Rule: "FREQ=YEARLY"}},
		{"bad rule", CreateHolidayRequest{Name: "Garbage", StartDate: "2024-02-19", Rule: "FREQ=SOMETIMES"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/holidays", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestHoliday_Delete(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodPost, "/api/holidays", CreateHolidayRequest{
		Name:      "Thanksgiving",
		StartDate: "2023-11-23",
		Rule:      "FREQ=YEARLY;BYMONTH=11;BYDAY=+4TH",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[HolidayDTO](t, rec)
	assert.Equal(t, "FREQ=YEARLY;BYMONTH=11;BYDAY=+4TH", created.Rule)

	rec = doRequest(t, router, http.MethodDelete, "/api/holidays/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Deleting again is a 404
	rec = doRequest(t, router, http.MethodDelete, "/api/holidays/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestHoliday_DefaultsAreIdempotent(t *testing.T) {
	_, router := setupTestServer(t)

	for i := 0; i < 2; i++ {
		rec := doRequest(t, router, http.MethodPost, "/api/holidays/defaults", DefaultHolidaysRequest{FromYear: 2023})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := doRequest(t, router, http.MethodGet, "/api/holidays", nil)
	list := decodeBody[map[string][]HolidayDTO](t, rec)
	assert.Len(t, list["holidays"], 9)

	// Presidents' Day now comes from the recurring rule
	rec = doRequest(t, router, http.MethodGet, "/api/trackers/clients", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHoliday_DefaultsWithoutBody(t *testing.T) {
	_, router := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/holidays/defaults", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, float64(9), resp["count"])
}

// =============================================================================
// OPERATIONS
// =============================================================================

func TestHealthz(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestHealthz_StoreClosed(t *testing.T) {
	h, router := setupTestServer(t)
	h.Store.(*sqlite.Store).Close()

	rec := doRequest(t, router, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
