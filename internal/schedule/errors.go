package schedule

import (
	"errors"
	"fmt"

	"github.com/calmpoint/counselbook/internal/model"
)

var (
	// ErrNotFound marks a missing or inactive referenced entity.
	// Callers map it to a 404-class response, never to "unavailable".
	ErrNotFound = errors.New("not found")

	// ErrTerminalStatus rejects scheduling operations on appointments
	// that are cancelled, completed or marked no-show.
	ErrTerminalStatus = errors.New("appointment is in a terminal status")
)

func notFound(entity, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, ErrNotFound)
}

// ValidationError reports malformed input. It is always detected before
// any store access.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// ConflictError reports that a requested slot is taken. It carries the
// typed reason code and, where known, the concrete appointments in the
// way.
type ConflictError struct {
	Code         Code
	Reason       string
	Appointments []model.Appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot unavailable: %s", e.Reason)
}
