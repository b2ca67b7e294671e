package scheduler

import (
	"errors"
	"fmt"
)

// Reason classifies why a request was rejected.
type Reason string

const (
	ReasonInvalidRequest Reason = "invalid_request"
	ReasonPastTime       Reason = "past_time"
	ReasonSlotTaken      Reason = "slot_taken"
	ReasonNotFound       Reason = "not_found"
	ReasonNoAvailability Reason = "no_availability"
)

// Rules name the check that fired inside a Reason.
const (
	RuleMissingOwner        = "missing_owner"
	RuleMalformedDate       = "malformed_date"
	RuleMalformedTime       = "malformed_time"
	RuleDurationNotAllowed  = "duration_not_allowed"
	RuleOutsideWorkingHours = "outside_working_hours"
	RuleInvalidWorkingHours = "invalid_working_hours"
	RuleWindowTooLarge      = "window_too_large"
	RuleDateInPast          = "date_in_past"
	RuleStartElapsed        = "start_elapsed"
	RuleOverlap             = "overlap"
	RuleUnknownReservation  = "unknown_reservation"
	RuleAlreadyCompleted    = "already_completed"
	RuleFullyBooked         = "fully_booked"
)

// RejectionError is returned for every request the scheduler refuses.
// errors.Is matches it against the Err* sentinels by Reason.
type RejectionError struct {
	Reason Reason
	Rule   string
	Detail string
}

func (e *RejectionError) Error() string {
	switch {
	case e.Rule == "":
		return string(e.Reason)
	case e.Detail == "":
		return fmt.Sprintf("%s: %s", e.Reason, e.Rule)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Reason, e.Rule, e.Detail)
	}
}

func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason && (t.Rule == "" || t.Rule == e.Rule)
}

var (
	ErrInvalidRequest = &RejectionError{Reason: ReasonInvalidRequest}
	ErrPastTime       = &RejectionError{Reason: ReasonPastTime}
	ErrSlotTaken      = &RejectionError{Reason: ReasonSlotTaken}
	ErrNotFound       = &RejectionError{Reason: ReasonNotFound}
	ErrNoAvailability = &RejectionError{Reason: ReasonNoAvailability}

	// ErrInfrastructure marks store failures and timeouts. Callers may retry.
	ErrInfrastructure = errors.New("infrastructure failure")
)

func reject(reason Reason, rule, format string, args ...interface{}) error {
	return &RejectionError{Reason: reason, Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

func infraError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInfrastructure, op, err)
}

// ReasonOf extracts the rejection reason, or "" for other errors.
func ReasonOf(err error) Reason {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}

// RuleOf extracts the rule that fired, or "" for other errors.
func RuleOf(err error) string {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Rule
	}
	return ""
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrInfrastructure)
}

func resultLabel(err error, ok string) string {
	switch {
	case err == nil:
		return ok
	case IsRetryable(err):
		return "infrastructure"
	case ReasonOf(err) != "":
		return string(ReasonOf(err))
	default:
		return "error"
	}
}
