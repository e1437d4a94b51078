// Package booking validates proposed booking windows and tracks the client
// side lifecycle of a booking.
package booking

import (
	"errors"
)

// Kind classifies a validation failure.
type Kind string

const (
	KindScheduleMismatch Kind = "schedule_mismatch"
	KindInvalidRange     Kind = "invalid_range"
	KindPastTime         Kind = "past_time"
	KindOutsideSchedule  Kind = "outside_schedule"
	KindConflict         Kind = "conflict"
)

// Sentinels for errors.Is checks against a *ValidationError.
var (
	ErrScheduleMismatch = errors.New("date not available for this resource")
	ErrInvalidRange     = errors.New("end time must be after start time")
	ErrPastTime         = errors.New("cannot book a time in the past")
	ErrOutsideSchedule  = errors.New("time is outside the resource schedule")
	ErrConflict         = errors.New("time overlaps an existing booking")
)

var sentinels = map[Kind]error{
	KindScheduleMismatch: ErrScheduleMismatch,
	KindInvalidRange:     ErrInvalidRange,
	KindPastTime:         ErrPastTime,
	KindOutsideSchedule:  ErrOutsideSchedule,
	KindConflict:         ErrConflict,
}

var userMessages = map[Kind]string{
	KindScheduleMismatch: "This date is not available for the selected resource.",
	KindInvalidRange:     "End time must be after start time.",
	KindPastTime:         "Cannot select a past time.",
	KindOutsideSchedule:  "Selected time is outside the resource's schedule.",
	KindConflict:         "This time slot is already booked.",
}

// ValidationError is returned by Validate. It matches the sentinel of its kind.
type ValidationError struct {
	Kind    Kind
	Message string
}

// NewValidationError builds a failure of kind; an empty msg uses the kind default.
func NewValidationError(kind Kind, msg string) *ValidationError {
	if msg == "" {
		msg = sentinels[kind].Error()
	}
	return &ValidationError{Kind: kind, Message: msg}
}

func (e *ValidationError) Error() string { return e.Message }

// Is lets errors.Is(err, ErrConflict) match.
func (e *ValidationError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// UserMessage maps a validation failure to the text shown to the user. Other
// errors produce a generic message.
func UserMessage(err error) string {
	if ve, ok := AsValidationError(err); ok {
		return userMessages[ve.Kind]
	}
	return "Failed to process booking. Please try again."
}
