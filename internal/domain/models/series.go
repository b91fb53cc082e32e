package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrValidation is the sentinel matched by every input validation failure.
var ErrValidation = errors.New("validation failed")

// ValidationError describes which input was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TimeSeriesData is an ordered univariate series. Timestamps and Values are
// index-aligned; Metadata is carried along untouched.
type TimeSeriesData struct {
	Timestamps []time.Time    `json:"timestamps"`
	Values     []float64      `json:"values"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// MinSeriesLength is the shortest series any operation accepts.
const MinSeriesLength = 2

// NewTimeSeries validates and returns a series. Inputs are copied.
func NewTimeSeries(timestamps []time.Time, values []float64, metadata map[string]any) (TimeSeriesData, error) {
	s := TimeSeriesData{
		Timestamps: append([]time.Time(nil), timestamps...),
		Values:     append([]float64(nil), values...),
		Metadata:   metadata,
	}
	if err := s.Validate(); err != nil {
		return TimeSeriesData{}, err
	}
	return s, nil
}

// Len returns the number of observations.
func (s TimeSeriesData) Len() int { return len(s.Values) }

// Validate enforces equal lengths, a minimum length of two, strictly
// increasing timestamps and finite values.
func (s TimeSeriesData) Validate() error {
	if len(s.Timestamps) != len(s.Values) {
		return NewValidationError("series", "timestamps (%d) and values (%d) differ in length", len(s.Timestamps), len(s.Values))
	}
	if len(s.Values) < MinSeriesLength {
		return NewValidationError("series", "need at least %d observations, got %d", MinSeriesLength, len(s.Values))
	}
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewValidationError("values", "non-finite value at index %d", i)
		}
	}
	for i := 1; i < len(s.Timestamps); i++ {
		if !s.Timestamps[i].After(s.Timestamps[i-1]) {
			return NewValidationError("timestamps", "not strictly increasing at index %d", i)
		}
	}
	return nil
}

// Slice returns the sub-series [from, to). The backing arrays are shared,
// callers must not mutate the result.
func (s TimeSeriesData) Slice(from, to int) TimeSeriesData {
	return TimeSeriesData{
		Timestamps: s.Timestamps[from:to],
		Values:     s.Values[from:to],
		Metadata:   s.Metadata,
	}
}

// Last returns the final observation.
func (s TimeSeriesData) Last() (time.Time, float64) {
	n := len(s.Values)
	return s.Timestamps[n-1], s.Values[n-1]
}
