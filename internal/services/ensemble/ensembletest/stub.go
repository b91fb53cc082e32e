// Package ensembletest provides scripted forecast models for tests.
package ensembletest

import (
	"context"
	"sync"
	"time"

	"FinCast/internal/domain/models"
)

// Model is a scripted ForecastModel. The zero value forecasts Value for
// every step.
type Model struct {
	ModelName  string
	Value      float64
	FitErr     error
	PredictErr error
	// Forecast overrides Value when set. It receives the last fitted series.
	Forecast func(data models.TimeSeriesData, horizon int) []float64
	// Delay is applied inside Fit. With IgnoreContext the delay cannot be
	// interrupted.
	Delay         time.Duration
	IgnoreContext bool
	PanicOn       string

	mu           sync.Mutex
	last         models.TimeSeriesData
	fitCalls     int
	predictCalls int
}

// Constant returns a model forecasting v at every step.
func Constant(name string, v float64) *Model {
	return &Model{ModelName: name, Value: v}
}

func (m *Model) Name() string { return m.ModelName }

func (m *Model) Fit(ctx context.Context, data models.TimeSeriesData) error {
	m.mu.Lock()
	m.fitCalls++
	m.mu.Unlock()

	if m.PanicOn == "fit" {
		panic("scripted fit panic")
	}
	if m.Delay > 0 {
		if m.IgnoreContext {
			time.Sleep(m.Delay)
		} else {
			select {
			case <-time.After(m.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if m.FitErr != nil {
		return m.FitErr
	}
	m.mu.Lock()
	m.last = data
	m.mu.Unlock()
	return nil
}

func (m *Model) Predict(_ context.Context, horizon int) ([]float64, error) {
	m.mu.Lock()
	m.predictCalls++
	last := m.last
	m.mu.Unlock()

	if m.PanicOn == "predict" {
		panic("scripted predict panic")
	}
	if m.PredictErr != nil {
		return nil, m.PredictErr
	}
	if m.Forecast != nil {
		return m.Forecast(last, horizon), nil
	}
	out := make([]float64, horizon)
	for i := range out {
		out[i] = m.Value
	}
	return out, nil
}

func (m *Model) Describe() models.ModelInfo {
	return models.ModelInfo{Name: m.ModelName, Family: "stub", Fitted: m.FitCalls() > 0}
}

func (m *Model) FitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fitCalls
}

func (m *Model) PredictCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictCalls
}

// LastFit returns the series passed to the most recent successful Fit.
func (m *Model) LastFit() models.TimeSeriesData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// InSample is a Model that also reports fixed fitted values.
type InSample struct {
	*Model
	FittedValues []float64
}

func (m *InSample) Fitted() []float64 { return append([]float64(nil), m.FittedValues...) }

// Series builds a minute-spaced series starting at a fixed time.
func Series(values ...float64) models.TimeSeriesData {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := make([]time.Time, len(values))
	for i := range ts {
		ts[i] = base.Add(time.Duration(i) * time.Minute)
	}
	return models.TimeSeriesData{Timestamps: ts, Values: append([]float64(nil), values...)}
}

// Ramp builds a series 1, 2, ..., n.
func Ramp(n int) models.TimeSeriesData {
	vs := make([]float64, n)
	for i := range vs {
		vs[i] = float64(i + 1)
	}
	return Series(vs...)
}
