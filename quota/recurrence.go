package quota

import (
	"fmt"

	"github.com/teambition/rrule-go"

	"github.com/warp/capacity-engine/calendar"
)

// ParseRule validates an RFC 5545 recurrence rule body such as
// "FREQ=YEARLY;BYMONTH=11;BYDAY=+4TH".
func ParseRule(rule string) (*rrule.ROption, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return opt, nil
}

// Occurrences returns the days of a recurring holiday inside window.
// StartDate anchors the rule, so no occurrence precedes it.
func (h HolidayRecord) Occurrences(window calendar.Period) ([]calendar.Date, error) {
	if !h.Recurring() || window.IsEmpty() {
		return nil, nil
	}
	opt, err := rrule.StrToROption(h.Rule)
	if err != nil {
		return nil, &RuleError{HolidayID: h.ID, Rule: h.Rule, Err: err}
	}
	opt.Dtstart = h.StartDate.Time()
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, &RuleError{HolidayID: h.ID, Rule: h.Rule, Err: err}
	}

	var days []calendar.Date
	for _, t := range r.Between(window.Start.Time(), window.End.Time(), true) {
		days = append(days, calendar.DateOf(t))
	}
	return days, nil
}

// DefaultHolidayRule is a named recurring holiday.
type DefaultHolidayRule struct {
	Key  string
	Name string
	Rule string
}

// DefaultHolidayRules are the US federal holidays most agencies observe.
var DefaultHolidayRules = []DefaultHolidayRule{
	{"new-years-day", "New Year's Day", "FREQ=YEARLY;BYMONTH=1;BYMONTHDAY=1"},
	{"mlk-day", "Martin Luther King Jr. Day", "FREQ=YEARLY;BYMONTH=1;BYDAY=+3MO"},
	{"presidents-day", "Presidents' Day", "FREQ=YEARLY;BYMONTH=2;BYDAY=+3MO"},
	{"memorial-day", "Memorial Day", "FREQ=YEARLY;BYMONTH=5;BYDAY=-1MO"},
	{"juneteenth", "Juneteenth", "FREQ=YEARLY;BYMONTH=6;BYMONTHDAY=19"},
	{"independence-day", "Independence Day", "FREQ=YEARLY;BYMONTH=7;BYMONTHDAY=4"},
	{"labor-day", "Labor Day", "FREQ=YEARLY;BYMONTH=9;BYDAY=+1MO"},
	{"thanksgiving", "Thanksgiving Day", "FREQ=YEARLY;BYMONTH=11;BYDAY=+4TH"},
	{"christmas-day", "Christmas Day", "FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25"},
}

// DefaultHolidays returns the default rules as active recurring holidays
// anchored on January 1 of fromYear.
func DefaultHolidays(fromYear int) []HolidayRecord {
	anchor := calendar.NewDate(fromYear, 1, 1)
	out := make([]HolidayRecord, 0, len(DefaultHolidayRules))
	for _, d := range DefaultHolidayRules {
		out = append(out, HolidayRecord{
			ID:        fmt.Sprintf("default-%s", d.Key),
			Name:      d.Name,
			StartDate: anchor,
			Active:    true,
			Rule:      d.Rule,
		})
	}
	return out
}
