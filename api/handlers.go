/*
handlers.go - HTTP API handlers for the quota tracking engine

PURPOSE:
  Exposes the tracker views, weekly bonus evaluation and holiday
  maintenance via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the quota package.

ENDPOINTS:
  Trackers:
    GET    /api/trackers/resources     One row per person with a quota
    GET    /api/trackers/clients       One row per client with a quota
    GET    /api/trackers/accounts      One row per sub-account (?client_id=)

    Query: month=YYYY-MM (default: month of as_of)
           as_of=YYYY-MM-DD (default: today)
           resolution=current|versioned (default: current)

  Bonus:
    GET    /api/bonus/weekly           Weekly bonus eligibility (?month=)

  Holidays:
    GET    /api/holidays               List all holidays
    POST   /api/holidays               Create holiday (one-off or RRULE)
    POST   /api/holidays/defaults      Add the default US holiday rules
    DELETE /api/holidays/{id}          Delete holiday

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (sqlite or postgres)
  - Now: Clock used when as_of is omitted

  Every request builds a fresh quota.Tracker, so edits to holidays or
  time off show up on the next request.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed month, date, scope, resolution or holiday
  - 404: Holiday not found
  - 501: Versioned resolution on a store without quota history
  - 500: Storage failures

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/quota"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the storage the API needs: the engine's read side plus the
// write methods used by holiday maintenance and scenario seeding.
// Both store/sqlite and store/postgres satisfy it.
type Store interface {
	quota.VersionedSource

	SaveHoliday(ctx context.Context, h quota.HolidayRecord) error
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context) ([]quota.HolidayRecord, error)

	AddTimeEntries(ctx context.Context, entries ...quota.TimeEntry) error
	AddTimeOff(ctx context.Context, records ...quota.TimeOffRecord) error
	SaveQuota(ctx context.Context, q quota.QuotaConfig) error
	SaveQuotaVersion(ctx context.Context, v quota.QuotaVersion) error

	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store Store

	// Now is the default query date. Tests pin it.
	Now func() calendar.Date

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store Store) *Handler {
	return &Handler{
		Store: store,
		Now:   calendar.Today,
	}
}

// =============================================================================
// TRACKER ENDPOINTS
// =============================================================================

// trackerQuery is the parsed form of the shared tracker query string.
type trackerQuery struct {
	month   calendar.Month
	tracker *quota.Tracker
}

func (h *Handler) parseTrackerQuery(r *http.Request) (trackerQuery, error) {
	q := r.URL.Query()

	asOf := h.Now()
	if s := q.Get("as_of"); s != "" {
		d, err := calendar.ParseDate(s)
		if err != nil {
			return trackerQuery{}, err
		}
		asOf = d
	}

	month := calendar.MonthOf(asOf)
	if s := q.Get("month"); s != "" {
		m, err := calendar.ParseMonth(s)
		if err != nil {
			return trackerQuery{}, err
		}
		month = m
	}

	res, err := quota.ParseResolution(q.Get("resolution"))
	if err != nil {
		return trackerQuery{}, err
	}

	return trackerQuery{
		month:   month,
		tracker: quota.NewTracker(h.Store).At(asOf).WithResolution(res),
	}, nil
}

func (h *Handler) writeTracker(w http.ResponseWriter, scope quota.Scope, tq trackerQuery, rows []quota.TrackerResult) {
	writeJSON(w, http.StatusOK, NewTrackerResponse(scope, tq.month, tq.tracker, rows))
}

// GetResourceTracker returns one row per tracked person.
// GET /api/trackers/resources
func (h *Handler) GetResourceTracker(w http.ResponseWriter, r *http.Request) {
	tq, err := h.parseTrackerQuery(r)
	if err != nil {
		writeQuotaError(w, "Invalid tracker query", err)
		return
	}

	rows, err := tq.tracker.ResourceTracker(r.Context(), tq.month)
	if err != nil {
		writeQuotaError(w, "Failed to compute resource tracker", err)
		return
	}
	h.writeTracker(w, quota.ScopeResource, tq, rows)
}

// GetClientTracker returns one row per tracked client.
// GET /api/trackers/clients
func (h *Handler) GetClientTracker(w http.ResponseWriter, r *http.Request) {
	tq, err := h.parseTrackerQuery(r)
	if err != nil {
		writeQuotaError(w, "Invalid tracker query", err)
		return
	}

	rows, err := tq.tracker.ClientTracker(r.Context(), tq.month)
	if err != nil {
		writeQuotaError(w, "Failed to compute client tracker", err)
		return
	}
	h.writeTracker(w, quota.ScopeClient, tq, rows)
}

// GetAccountTracker returns one row per tracked sub-account.
// GET /api/trackers/accounts?client_id=
func (h *Handler) GetAccountTracker(w http.ResponseWriter, r *http.Request) {
	tq, err := h.parseTrackerQuery(r)
	if err != nil {
		writeQuotaError(w, "Invalid tracker query", err)
		return
	}

	clientID := r.URL.Query().Get("client_id")
	rows, err := tq.tracker.AccountTracker(r.Context(), tq.month, clientID)
	if err != nil {
		writeQuotaError(w, "Failed to compute sub-account tracker", err)
		return
	}
	h.writeTracker(w, quota.ScopeSubAccount, tq, rows)
}

// =============================================================================
// BONUS ENDPOINTS
// =============================================================================

// GetWeeklyBonus returns the weekly bonus verdict of every tracked client.
// GET /api/bonus/weekly?month=
func (h *Handler) GetWeeklyBonus(w http.ResponseWriter, r *http.Request) {
	tq, err := h.parseTrackerQuery(r)
	if err != nil {
		writeQuotaError(w, "Invalid bonus query", err)
		return
	}

	results, err := tq.tracker.WeeklyBonusEligibilityFor(r.Context(), tq.month)
	if err != nil {
		writeQuotaError(w, "Failed to evaluate weekly bonus", err)
		return
	}

	writeJSON(w, http.StatusOK, NewBonusResponse(tq.month, results))
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListHolidays returns all holidays.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holidays", err)
		return
	}

	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, toHolidayDTO(hol))
	}

	writeJSON(w, http.StatusOK, map[string]any{"holidays": dtos})
}

// CreateHoliday creates a new holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	holiday, err := holidayFromRequest(req)
	if err != nil {
		writeQuotaError(w, "Invalid holiday", err)
		return
	}
	holiday.ID = uuid.NewString()

	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create holiday", err)
		return
	}
	log.Printf("[Holidays] Created %s %q starting %s", holiday.ID, holiday.Name, holiday.StartDate)

	writeJSON(w, http.StatusCreated, toHolidayDTO(holiday))
}

// holidayFromRequest validates a create request.
func holidayFromRequest(req CreateHolidayRequest) (quota.HolidayRecord, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.StartDate == "" {
		return quota.HolidayRecord{}, fmt.Errorf("%w: name and start_date are required", quota.ErrInvalidHoliday)
	}
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		return quota.HolidayRecord{}, err
	}

	holiday := quota.HolidayRecord{
		Name:      name,
		StartDate: start,
		Active:    req.Active == nil || *req.Active,
		Rule:      strings.TrimSpace(req.Rule),
	}

	if req.EndDate != "" {
		if holiday.Rule != "" {
			return quota.HolidayRecord{}, fmt.Errorf("%w: recurring holidays are single days", quota.ErrInvalidHoliday)
		}
		end, err := calendar.ParseDate(req.EndDate)
		if err != nil {
			return quota.HolidayRecord{}, err
		}
		if end.Before(start) {
			return quota.HolidayRecord{}, fmt.Errorf("%w: end_date %s is before start_date %s", quota.ErrInvalidHoliday, end, start)
		}
		holiday.EndDate = &end
	}

	if holiday.Rule != "" {
		if _, err := quota.ParseRule(holiday.Rule); err != nil {
			return quota.HolidayRecord{}, err
		}
	}
	return holiday, nil
}

// DeleteHoliday deletes a holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteHoliday(r.Context(), id); err != nil {
		writeQuotaError(w, "Failed to delete holiday", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// AddDefaultHolidays adds the default recurring US holidays. Default rows
// have fixed IDs, so calling this twice does not duplicate them.
// POST /api/holidays/defaults
func (h *Handler) AddDefaultHolidays(w http.ResponseWriter, r *http.Request) {
	var req DefaultHolidaysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FromYear == 0 {
		req.FromYear = h.Now().Year()
	}

	defaults := quota.DefaultHolidays(req.FromYear)
	for _, hol := range defaults {
		if err := h.Store.SaveHoliday(r.Context(), hol); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save default holidays", err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "created",
		"count":  len(defaults),
	})
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Healthz reports whether the store is reachable.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.Store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeQuotaError maps quota errors to HTTP status codes.
func writeQuotaError(w http.ResponseWriter, message string, err error) {
	switch {
	case quota.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case quota.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case quota.IsUnsupported(err):
		writeError(w, http.StatusNotImplemented, message, err)
	default:
		log.Printf("[API] %s: %v", message, err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
