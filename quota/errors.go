package quota

import (
	"errors"
	"fmt"

	"github.com/warp/capacity-engine/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

// The calculator itself never fails on pre-validated rows: missing quotas
// are omitted and degenerate ranges count as zero. These errors cover the
// edges around it: parsing request parameters, storage capabilities and
// holiday maintenance.
var (
	// ErrInvalidMonth is returned when a month key is not YYYY-MM.
	ErrInvalidMonth = calendar.ErrInvalidMonth

	// ErrInvalidDate is returned when a date is not YYYY-MM-DD.
	ErrInvalidDate = calendar.ErrInvalidDate

	// ErrUnknownScope is returned for a scope other than resource, client or sub_account.
	ErrUnknownScope = errors.New("unknown quota scope")

	// ErrUnknownResolution is returned for a resolution other than current or versioned.
	ErrUnknownResolution = errors.New("unknown quota resolution")

	// ErrStoreRequired is returned when Versioned resolution is requested
	// from a Source that keeps no quota history.
	ErrStoreRequired = errors.New("operation requires extended store interface")

	// ErrInvalidRule is returned when a holiday recurrence rule can not be parsed.
	ErrInvalidRule = errors.New("invalid recurrence rule")

	// ErrInvalidHoliday is returned when a holiday row is missing a name or start date.
	ErrInvalidHoliday = errors.New("invalid holiday")

	// ErrHolidayNotFound is returned when deleting a holiday that does not exist.
	ErrHolidayNotFound = errors.New("holiday not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnknownScopeError names the rejected scope.
type UnknownScopeError struct {
	Scope string
}

func (e *UnknownScopeError) Error() string {
	return fmt.Sprintf("unknown quota scope %q (want resource, client or sub_account)", e.Scope)
}

func (e *UnknownScopeError) Unwrap() error { return ErrUnknownScope }

// RuleError reports a holiday whose recurrence rule does not parse.
type RuleError struct {
	HolidayID string
	Rule      string
	Err       error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("holiday %s: invalid rule %q: %v", e.HolidayID, e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error { return ErrInvalidRule }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrUnknownScope) ||
		errors.Is(err, ErrUnknownResolution) ||
		errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrInvalidHoliday)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrHolidayNotFound)
}

// IsUnsupported returns true if the store lacks a capability the caller asked for.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrStoreRequired)
}
