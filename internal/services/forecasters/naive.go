package forecasters

import (
	"context"

	"FinCast/internal/domain/models"
)

// Naive repeats the last observation.
type Naive struct {
	fitState
	last float64
}

func NewNaive() *Naive { return &Naive{} }

func (m *Naive) Name() string { return "naive" }

func (m *Naive) Fit(ctx context.Context, data models.TimeSeriesData) error {
	if err := checkFit(ctx, data, 1); err != nil {
		m.reset()
		return err
	}
	v := data.Values
	fitted := make([]float64, len(v))
	fitted[0] = v[0]
	for i := 1; i < len(v); i++ {
		fitted[i] = v[i-1]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = v[len(v)-1]
	m.fitted = fitted
	m.n = len(v)
	m.ok = true
	return nil
}

func (m *Naive) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if err := checkPredict(ctx, horizon); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ok {
		return nil, ErrNotFitted
	}
	return flat(m.last, horizon), nil
}

func (m *Naive) Describe() models.ModelInfo {
	return models.ModelInfo{
		Name:        m.Name(),
		Family:      "baseline",
		Fitted:      m.isFitted(),
		Description: "repeats the last observed value",
	}
}
