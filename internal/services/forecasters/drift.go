package forecasters

import (
	"context"

	"FinCast/internal/domain/models"
)

// Drift extrapolates the average change between the first and last observation.
type Drift struct {
	fitState
	last  float64
	slope float64
}

func NewDrift() *Drift { return &Drift{} }

func (m *Drift) Name() string { return "drift" }

func (m *Drift) Fit(ctx context.Context, data models.TimeSeriesData) error {
	if err := checkFit(ctx, data, 2); err != nil {
		m.reset()
		return err
	}
	v := data.Values
	n := len(v)
	slope := (v[n-1] - v[0]) / float64(n-1)
	fitted := make([]float64, n)
	fitted[0] = v[0]
	for i := 1; i < n; i++ {
		fitted[i] = v[i-1] + slope
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = v[n-1]
	m.slope = slope
	m.fitted = fitted
	m.n = n
	m.ok = true
	return nil
}

func (m *Drift) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if err := checkPredict(ctx, horizon); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ok {
		return nil, ErrNotFitted
	}
	return linear(m.last, m.slope, horizon), nil
}

func (m *Drift) Describe() models.ModelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.ModelInfo{
		Name:        m.Name(),
		Family:      "trend",
		Params:      map[string]float64{"slope": m.slope},
		Fitted:      m.ok,
		Description: "last value plus average historical change per step",
	}
}
