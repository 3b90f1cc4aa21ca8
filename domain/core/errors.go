package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Calculator configuration errors
	ErrConfiguration = errors.New("invalid calculator configuration")

	// Observation errors
	ErrDimensionMismatch = errors.New("series dimension mismatch")
	ErrInsufficientData  = errors.New("insufficient data for requested embedding")
	ErrNotInitialised    = errors.New("calculator queried before observations supplied")

	// Numeric errors
	ErrNumericalDegeneracy = errors.New("numerically degenerate covariance")

	// Storage errors
	ErrNotFound      = errors.New("resource not found")
	ErrRunNotFound   = fmt.Errorf("%w: run", ErrNotFound)
	ErrSweepNotFound = fmt.Errorf("%w: sweep", ErrNotFound)
)

// Error constructors with context. Every failure names the validation that
// tripped and the offending values, never a bare sentinel.

func NewConfigurationError(param string, value interface{}, reason string) error {
	return fmt.Errorf("%w: %s=%v (%s)", ErrConfiguration, param, value, reason)
}

func NewDimensionMismatchError(what string, want, got int) error {
	return fmt.Errorf("%w: %s expected %d, got %d", ErrDimensionMismatch, what, want, got)
}

func NewInsufficientDataError(what string, required, available int) error {
	return fmt.Errorf("%w: %s requires %d samples, only %d available", ErrInsufficientData, what, required, available)
}

func NewNotInitialisedError(operation string) error {
	return fmt.Errorf("%w: %s", ErrNotInitialised, operation)
}

func NewDegeneracyError(block string, detail string) error {
	return fmt.Errorf("%w: %s block %s", ErrNumericalDegeneracy, block, detail)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsDimensionMismatchError(err error) bool {
	return errors.Is(err, ErrDimensionMismatch)
}

func IsInsufficientDataError(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsNotInitialisedError(err error) bool {
	return errors.Is(err, ErrNotInitialised)
}

func IsDegeneracyError(err error) bool {
	return errors.Is(err, ErrNumericalDegeneracy)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
