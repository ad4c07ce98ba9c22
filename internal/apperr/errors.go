// Package apperr holds the error taxonomy shared by the approval store, the orchestrator
// and the HTTP layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload rejects a malformed submission before any state is created.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrNotFound is returned for an unknown request id.
	ErrNotFound = errors.New("approval request not found")
	// ErrConflictAlreadyDecided is returned when the compare-and-swap on status loses.
	ErrConflictAlreadyDecided = errors.New("approval request already decided")
	// ErrNotDecided is returned when resuming a request that is still pending.
	ErrNotDecided = errors.New("approval request is not decided yet")
	// ErrAlreadyGranted is returned by the role store when the account already holds the role.
	ErrAlreadyGranted = errors.New("role already granted")
)

// InvalidPayload wraps a validation problem so that errors.Is(err, ErrInvalidPayload) holds.
func InvalidPayload(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

// StepFailure reports a failed post-commit step. The decision itself stays committed.
type StepFailure struct {
	Step    string
	Cause   error
	Timeout bool
}

// NewStepFailure builds a StepFailure, flagging deadline overruns as timeouts.
func NewStepFailure(step string, cause error) *StepFailure {
	return &StepFailure{
		Step:    step,
		Cause:   cause,
		Timeout: errors.Is(cause, context.DeadlineExceeded),
	}
}

func (e *StepFailure) Error() string {
	if e.Timeout {
		return fmt.Sprintf("step %s timed out: %v", e.Step, e.Cause)
	}
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Cause)
}

func (e *StepFailure) Unwrap() error {
	return e.Cause
}
