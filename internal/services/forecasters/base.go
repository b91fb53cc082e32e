// Package forecasters holds the concrete ForecastModel variants.
package forecasters

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"FinCast/internal/domain/models"
)

var (
	ErrNotFitted    = errors.New("model not fitted")
	ErrShortSeries  = errors.New("series too short")
	ErrInvalidParam = errors.New("invalid parameter")
)

// fitState is the shared fitted state of the local models.
type fitState struct {
	mu     sync.RWMutex
	n      int
	fitted []float64
	ok     bool
}

func (s *fitState) reset() {
	s.mu.Lock()
	s.ok = false
	s.fitted = nil
	s.n = 0
	s.mu.Unlock()
}

func (s *fitState) isFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ok
}

// Fitted returns one-step-ahead in-sample predictions of the last fit.
func (s *fitState) Fitted() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.fitted...)
}

func checkFit(ctx context.Context, data models.TimeSeriesData, minLen int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if data.Len() < minLen {
		return fmt.Errorf("%w: need %d observations, got %d", ErrShortSeries, minLen, data.Len())
	}
	return nil
}

func checkPredict(ctx context.Context, horizon int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if horizon < 1 {
		return models.NewValidationError("horizon", "must be >= 1, got %d", horizon)
	}
	return nil
}

func flat(v float64, horizon int) []float64 {
	out := make([]float64, horizon)
	for i := range out {
		out[i] = v
	}
	return out
}

func linear(start, slope float64, horizon int) []float64 {
	out := make([]float64, horizon)
	for i := range out {
		out[i] = start + slope*float64(i+1)
	}
	return out
}
