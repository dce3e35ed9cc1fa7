/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the quota read models from the external API contract, allowing:
  - Field renaming without breaking clients
  - Display rounding at the edge (the engine keeps full precision)
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Trackers:
    TrackerResponse, TrackerRowDTO

  Bonus:
    BonusResponse, EligibilityDTO, WeekDTO

  Holidays:
    HolidayDTO, CreateHolidayRequest, DefaultHolidaysRequest

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

ROUNDING:
  Hours and percentages are rounded to one decimal place and emitted as
  JSON numbers.

SEE ALSO:
  - handlers.go: Uses these types
  - quota/types.go: TrackerResult, EligibilityResult
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/quota"
)

// =============================================================================
// TRACKERS
// =============================================================================

// TrackerResponse wraps the rows of one tracker view.
type TrackerResponse struct {
	Scope      string          `json:"scope"`
	Month      string          `json:"month"`
	AsOf       string          `json:"as_of"`
	Resolution string          `json:"resolution"`
	Rows       []TrackerRowDTO `json:"rows"`
}

// TrackerRowDTO is one subject's progress for the month.
type TrackerRowDTO struct {
	SubjectID            string   `json:"subject_id"`
	Name                 string   `json:"name"`
	ParentID             string   `json:"parent_id,omitempty"`
	MonthlyTarget        float64  `json:"monthly_target"`
	AdjustedTarget       float64  `json:"adjusted_target"`
	ExpectedHoursToDate  float64  `json:"expected_hours_to_date"`
	BilledHours          float64  `json:"billed_hours"`
	PrebilledHours       *float64 `json:"prebilled_hours,omitempty"` // resource view only
	PercentageComplete   float64  `json:"percentage_complete"`
	Pacing               float64  `json:"pacing"`
	Status               string   `json:"status"`
	StandardWorkingDays  int      `json:"standard_working_days"`
	AvailableWorkingDays int      `json:"available_working_days"`
	WorkingDaysElapsed   int      `json:"working_days_elapsed"`
}

// =============================================================================
// WEEKLY BONUS
// =============================================================================

// BonusResponse lists the weekly bonus verdict of every tracked client.
type BonusResponse struct {
	Month   string           `json:"month"`
	Clients []EligibilityDTO `json:"clients"`
}

// EligibilityDTO is one client's bonus verdict.
type EligibilityDTO struct {
	ClientID      string    `json:"client_id"`
	Name          string    `json:"name"`
	MonthlyTarget float64   `json:"monthly_target"`
	WeeksHit      int       `json:"weeks_hit"`
	TotalWeeks    int       `json:"total_weeks"`
	Eligible      bool      `json:"eligible"`
	Weeks         []WeekDTO `json:"weeks"`
}

// WeekDTO is one Monday-anchored bonus window.
type WeekDTO struct {
	Start        string  `json:"start"`
	End          string  `json:"end"`
	DaysInWindow int     `json:"days_in_window"`
	Target       float64 `json:"target"`
	BilledHours  float64 `json:"billed_hours"`
	HitTarget    bool    `json:"hit_target"`
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// HolidayDTO represents a holiday in API responses.
type HolidayDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	Active    bool   `json:"active"`
	Rule      string `json:"rule,omitempty"`
}

// CreateHolidayRequest is the request to create a holiday. Active
// defaults to true.
type CreateHolidayRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	Active    *bool  `json:"active,omitempty"`
	Rule      string `json:"rule,omitempty"`
}

// DefaultHolidaysRequest anchors the default rules. Zero means the current year.
type DefaultHolidaysRequest struct {
	FromYear int `json:"from_year,omitempty"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario. Month and AsOf name the view
// that best shows it off.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"` // "trackers" or "bonus"
	Month       string `json:"month,omitempty"`
	AsOf        string `json:"as_of,omitempty"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func hoursValue(d decimal.Decimal) float64 {
	return d.Round(1).InexactFloat64()
}

func toTrackerRowDTO(r quota.TrackerResult) TrackerRowDTO {
	dto := TrackerRowDTO{
		SubjectID:            r.SubjectID,
		Name:                 r.Name,
		ParentID:             r.ParentID,
		MonthlyTarget:        hoursValue(r.MonthlyTarget),
		AdjustedTarget:       hoursValue(r.AdjustedTarget),
		ExpectedHoursToDate:  hoursValue(r.ExpectedHoursToDate),
		BilledHours:          hoursValue(r.BilledHours),
		PercentageComplete:   hoursValue(r.PercentageComplete),
		Pacing:               hoursValue(r.Pacing),
		Status:               string(r.Status),
		StandardWorkingDays:  r.StandardWorkingDays,
		AvailableWorkingDays: r.AvailableWorkingDays,
		WorkingDaysElapsed:   r.WorkingDaysElapsed,
	}
	if r.PrebilledHours != nil {
		p := hoursValue(*r.PrebilledHours)
		dto.PrebilledHours = &p
	}
	return dto
}

func toTrackerRowDTOs(results []quota.TrackerResult) []TrackerRowDTO {
	dtos := make([]TrackerRowDTO, len(results))
	for i, r := range results {
		dtos[i] = toTrackerRowDTO(r)
	}
	return dtos
}

// NewTrackerResponse builds the wire form of one tracker view. The CLI
// uses it for --format json so both surfaces emit the same document.
func NewTrackerResponse(scope quota.Scope, month calendar.Month, t *quota.Tracker, rows []quota.TrackerResult) TrackerResponse {
	return TrackerResponse{
		Scope:      string(scope),
		Month:      month.String(),
		AsOf:       t.AsOf().String(),
		Resolution: t.Resolution().String(),
		Rows:       toTrackerRowDTOs(rows),
	}
}

// NewBonusResponse builds the wire form of a weekly bonus evaluation.
func NewBonusResponse(month calendar.Month, results []quota.EligibilityResult) BonusResponse {
	clients := make([]EligibilityDTO, len(results))
	for i, res := range results {
		clients[i] = toEligibilityDTO(res)
	}
	return BonusResponse{Month: month.String(), Clients: clients}
}

func toEligibilityDTO(r quota.EligibilityResult) EligibilityDTO {
	weeks := make([]WeekDTO, len(r.Weeks))
	for i, w := range r.Weeks {
		weeks[i] = WeekDTO{
			Start:        w.Period.Start.String(),
			End:          w.Period.End.String(),
			DaysInWindow: w.DaysInWindow,
			Target:       hoursValue(w.Target),
			BilledHours:  hoursValue(w.BilledHours),
			HitTarget:    w.HitTarget,
		}
	}
	return EligibilityDTO{
		ClientID:      r.ClientID,
		Name:          r.Name,
		MonthlyTarget: hoursValue(r.MonthlyTarget),
		WeeksHit:      r.WeeksHit,
		TotalWeeks:    r.TotalWeeks,
		Eligible:      r.Eligible,
		Weeks:         weeks,
	}
}

func toHolidayDTO(h quota.HolidayRecord) HolidayDTO {
	dto := HolidayDTO{
		ID:        h.ID,
		Name:      h.Name,
		StartDate: h.StartDate.String(),
		Active:    h.Active,
		Rule:      h.Rule,
	}
	if h.EndDate != nil && !h.EndDate.IsZero() {
		dto.EndDate = h.EndDate.String()
	}
	return dto
}
