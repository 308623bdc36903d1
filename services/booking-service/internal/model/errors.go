package model

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotConflict means the requested time range overlaps a blocking
	// booking for the same service. Raised by the database exclusion
	// constraint, never by an application-level check.
	ErrSlotConflict = errors.New("slot conflict")

	// ErrInvalidTransition means the requested status change is not allowed
	// from the booking's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrNotFound = errors.New("not found")

	// ErrUnavailable means a dependency (cache, broker, database) could not
	// serve the request. Handlers map it to 503.
	ErrUnavailable = errors.New("temporarily unavailable")
)

// ValidationError rejects malformed input before any storage work happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
