package forecasters

import (
	"context"
	"errors"

	"FinCast/internal/domain/models"
)

// LinearTrend fits y = a + b*t by ordinary least squares on the index t.
type LinearTrend struct {
	fitState
	intercept float64
	slope     float64
}

func NewLinearTrend() *LinearTrend { return &LinearTrend{} }

func (m *LinearTrend) Name() string { return "linear_trend" }

func (m *LinearTrend) Fit(ctx context.Context, data models.TimeSeriesData) error {
	if err := checkFit(ctx, data, 2); err != nil {
		m.reset()
		return err
	}
	v := data.Values
	n := float64(len(v))
	var sx, sy, sxx, sxy float64
	for i, y := range v {
		x := float64(i)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if den == 0 {
		m.reset()
		return errors.New("degenerate design matrix")
	}
	b := (n*sxy - sx*sy) / den
	a := (sy - b*sx) / n

	fitted := make([]float64, len(v))
	for i := range fitted {
		fitted[i] = a + b*float64(i)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.intercept = a
	m.slope = b
	m.fitted = fitted
	m.n = len(v)
	m.ok = true
	return nil
}

func (m *LinearTrend) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if err := checkPredict(ctx, horizon); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ok {
		return nil, ErrNotFitted
	}
	end := m.intercept + m.slope*float64(m.n-1)
	return linear(end, m.slope, horizon), nil
}

func (m *LinearTrend) Describe() models.ModelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.ModelInfo{
		Name:        m.Name(),
		Family:      "regression",
		Params:      map[string]float64{"intercept": m.intercept, "slope": m.slope},
		Fitted:      m.ok,
		Description: "least-squares line over the observation index",
	}
}
