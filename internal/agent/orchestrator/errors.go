package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/opsight/opsight/internal/evidence"
)

// ErrorKind classifies a workflow failure for callers and API clients.
type ErrorKind string

const (
	// ErrInvalidRequest marks a request that failed validation.
	ErrInvalidRequest ErrorKind = "invalid_request"
	// ErrEvidenceUnavailable marks a failed detection-phase evidence fetch.
	ErrEvidenceUnavailable ErrorKind = "evidence_unavailable"
	// ErrModelUnavailable marks a model call that failed outright.
	ErrModelUnavailable ErrorKind = "model_unavailable"
	// ErrModelTimeout marks a model call that exceeded its deadline.
	ErrModelTimeout ErrorKind = "model_timeout"
)

// PhaseError wraps a failure with the workflow phase it occurred in and a
// classification. Detection-phase errors abort the request; diagnosis
// directives degrade instead (see DirectiveOutcome).
type PhaseError struct {
	Phase string
	Kind  ErrorKind
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Phase, e.Kind, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// AsPhaseError extracts a PhaseError from err, if present.
func AsPhaseError(err error) (*PhaseError, bool) {
	var pe *PhaseError
	ok := errors.As(err, &pe)
	return pe, ok
}

// evidenceError classifies a detection-phase fetch failure.
func evidenceError(phase string, err error) *PhaseError {
	if pe, ok := AsPhaseError(err); ok {
		return pe
	}
	if evidence.IsValidation(err) {
		return &PhaseError{Phase: phase, Kind: ErrInvalidRequest, Err: err}
	}
	return &PhaseError{Phase: phase, Kind: ErrEvidenceUnavailable, Err: err}
}

// modelError classifies a model call failure.
func modelError(phase string, err error) *PhaseError {
	if pe, ok := AsPhaseError(err); ok {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &PhaseError{Phase: phase, Kind: ErrModelTimeout, Err: err}
	}
	return &PhaseError{Phase: phase, Kind: ErrModelUnavailable, Err: err}
}
