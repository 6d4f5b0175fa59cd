// Package apperr implements the typed error taxonomy of SPEC_FULL.md §7,
// replacing the teacher's strings.Contains(err.Error(), ...) status
// mapping in internal/handlers/booking_handler.go with a single typed
// path from the engine to the HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error code, part of the public API.
type Code string

const (
	// Input/validation
	CodeInvalidRequest     Code = "InvalidRequest"
	CodeUnknownService     Code = "UnknownService"
	CodeUnknownAddOn       Code = "UnknownAddOn"
	CodeUnknownBarber      Code = "UnknownBarber"
	CodeUnknownAppointment Code = "UnknownAppointment"

	// Policy/admission
	CodeOutsideBookingWindow Code = "OutsideBookingWindow"
	CodeDayOff               Code = "DayOff"
	CodeBarberOffline        Code = "BarberOffline"
	CodeQueueFull            Code = "QueueFull"
	CodeLunchConflict        Code = "LunchConflict"
	CodeWorkingHoursExceeded Code = "WorkingHoursExceeded"
	CodeSlotNotAvailable     Code = "SlotNotAvailable"

	// State machine
	CodeInvalidTransition Code = "InvalidTransition"

	// Concurrency
	CodeVersionConflict Code = "VersionConflict"
	CodeTimeout         Code = "Timeout"

	// Infrastructure
	CodeRepositoryUnavailable Code = "RepositoryUnavailable"
	CodeInternal              Code = "Internal"

	// Not found (shared across entity kinds at the boundary)
	CodeNotFound Code = "NotFound"
)

// Suggestions is the best-effort recovery payload attached to policy and
// validation rejections: alternative times, alternative barbers, or a
// next-available date. Fields are optional and populated only when the
// caller computed them without holding external resources.
type Suggestions struct {
	AlternativeStartMinutes []int    `json:"alternative_start_minutes,omitempty"`
	AlternativeBarberIDs    []string `json:"alternative_barber_ids,omitempty"`
	NextAvailableDate       string   `json:"next_available_date,omitempty"`
}

// Error is the typed error carried from the engine to the transport.
type Error struct {
	Code        Code
	Message     string
	Suggestions *Suggestions
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error with no suggestions and no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs an Error that carries an underlying cause, used for
// Internal/RepositoryUnavailable where the cause is diagnostic context
// rather than something the caller branches on.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithSuggestions attaches a recovery payload and returns the receiver
// for chaining at the construction site.
func (e *Error) WithSuggestions(s *Suggestions) *Error {
	e.Suggestions = s
	return e
}

// CodeOf extracts the Code from err, returning CodeInternal for any
// error that isn't an *Error. Invariant violations surfaced by the
// Timeline Builder are already *Error values carrying CodeInternal, per
// §7: they indicate a corrupt snapshot, not a recognized rejection.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err (or something it wraps) carries code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
