package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an entity does not exist in the database.
var ErrNotFound = errors.New("entity not found")

// ErrInvalidTransition is the sentinel wrapped by InvalidTransitionError.
// Use errors.Is(err, ErrInvalidTransition) to branch on it.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrValidation is the sentinel wrapped by ValidationError.
var ErrValidation = errors.New("validation failed")

// ErrStaleReport is returned when a transition was computed against an
// outdated report version. The caller must re-read and retry the decision,
// never the write.
var ErrStaleReport = errors.New("report version is stale")

// ErrAlreadyProcessed is returned when a classification commit finds the
// report already carries pipeline results. Redeliveries hit this and must
// ack without writing.
var ErrAlreadyProcessed = errors.New("report already processed")

// InvalidTransitionError reports an attempted lifecycle transition that is
// not in the adjacency table. It is a user-facing validation failure, never
// retried and never coerced into a legal transition.
type InvalidTransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid status transition %s -> %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NewInvalidTransition builds an InvalidTransitionError for the given edge.
func NewInvalidTransition(from, to Status) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to}
}

// ValidationError reports a request that violates a domain precondition,
// naming the precondition so the caller can surface it.
type ValidationError struct {
	Precondition string
	Message      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Precondition, e.Message)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(precondition, format string, args ...any) *ValidationError {
	return &ValidationError{
		Precondition: precondition,
		Message:      fmt.Sprintf(format, args...),
	}
}
