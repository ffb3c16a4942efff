package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrAnalysisNotFound = fmt.Errorf("%w: analysis run", ErrNotFound)

	// Parameter errors
	ErrInvalidParameter = errors.New("invalid parameter")

	// Estimation errors
	ErrInsufficientSample = errors.New("insufficient sample for stable estimation")
	ErrNumericDegeneracy  = errors.New("numerically degenerate regression")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewParameterError(name string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidParameter, name, reason)
}

func NewSampleError(context string, got, min int) error {
	return fmt.Errorf("%w: %s has %d rows, need at least %d", ErrInsufficientSample, context, got, min)
}

func NewDegeneracyError(reason string) error {
	return fmt.Errorf("%w: %s", ErrNumericDegeneracy, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsParameterError(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

func IsSampleError(err error) bool {
	return errors.Is(err, ErrInsufficientSample)
}

func IsDegeneracyError(err error) bool {
	return errors.Is(err, ErrNumericDegeneracy)
}

// IsEstimationError reports whether err is any failure the estimator core can
// raise, as opposed to an infrastructure error.
func IsEstimationError(err error) bool {
	return errors.Is(err, ErrInvalidParameter) ||
		errors.Is(err, ErrInsufficientSample) ||
		errors.Is(err, ErrNumericDegeneracy)
}
