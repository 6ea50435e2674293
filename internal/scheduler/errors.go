package scheduler

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by this package matches exactly one
// of these with errors.Is.
var (
	// ErrPermissionDenied: precise scheduling is not permitted; nothing was armed.
	ErrPermissionDenied = errors.New("precise scheduling not permitted")

	// ErrStoreWriteFailed: the reset record could not be written.
	ErrStoreWriteFailed = errors.New("reset state write failed")

	// ErrPortRegistrationFailed: the alarm port refused the registration.
	ErrPortRegistrationFailed = errors.New("alarm registration failed")
)

// SchedulingError carries an error kind, the step that failed, and the cause.
type SchedulingError struct {
	Kind error
	Op   string
	Err  error
}

func (e *SchedulingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *SchedulingError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Outcome is a short label for a scheduling result, used in logs, metrics
// and telemetry.
type Outcome string

const (
	OutcomeScheduled          Outcome = "scheduled"
	OutcomePermissionDenied   Outcome = "permission_denied"
	OutcomeRegistrationFailed Outcome = "registration_failed"
	OutcomeStoreWriteFailed   Outcome = "store_write_failed"
	OutcomeError              Outcome = "error"
)

// OutcomeOf classifies err. A nil error is OutcomeScheduled.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeScheduled
	case errors.Is(err, ErrPermissionDenied):
		return OutcomePermissionDenied
	case errors.Is(err, ErrPortRegistrationFailed):
		return OutcomeRegistrationFailed
	case errors.Is(err, ErrStoreWriteFailed):
		return OutcomeStoreWriteFailed
	default:
		return OutcomeError
	}
}
