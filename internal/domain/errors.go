package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrOutOfRange       = errors.New("out of range input")
	ErrProviderFailure  = errors.New("provider failure")
)

type FailureKind string

const (
	FailureInsufficientData FailureKind = "insufficient_data"
	FailureOutOfRange       FailureKind = "out_of_range"
	FailureProvider         FailureKind = "provider_failure"
	FailureInternal         FailureKind = "internal"
)

// InsufficientDataError reports missing bars, levels or predictions at a pipeline stage.
type InsufficientDataError struct {
	Stage  string
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data in %s: %s", e.Stage, e.Reason)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

func NewInsufficientData(stage, format string, args ...any) error {
	return &InsufficientDataError{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// OutOfRangeError reports a score, probability or strength outside its documented bounds.
type OutOfRangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s=%g outside [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

// CheckRange returns an *OutOfRangeError when v is NaN or outside [min, max].
func CheckRange(field string, v, min, max float64) error {
	if v != v || v < min || v > max {
		return &OutOfRangeError{Field: field, Value: v, Min: min, Max: max}
	}
	return nil
}

type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() []error { return []error{ErrProviderFailure, e.Err} }

// Classify maps an error onto the failure taxonomy used for skipped records and metrics.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOutOfRange):
		return FailureOutOfRange
	case errors.Is(err, ErrInsufficientData):
		return FailureInsufficientData
	case errors.Is(err, ErrProviderFailure):
		return FailureProvider
	default:
		return FailureInternal
	}
}
