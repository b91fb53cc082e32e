package forecasters

import (
	"context"
	"fmt"

	"FinCast/internal/domain/models"
)

// SES is simple exponential smoothing with a fixed alpha.
type SES struct {
	fitState
	alpha float64
	level float64
}

func NewSES(alpha float64) (*SES, error) {
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: ses alpha must be in (0, 1], got %v", ErrInvalidParam, alpha)
	}
	return &SES{alpha: alpha}, nil
}

func (m *SES) Name() string { return "ses" }

func (m *SES) Fit(ctx context.Context, data models.TimeSeriesData) error {
	if err := checkFit(ctx, data, 2); err != nil {
		m.reset()
		return err
	}
	v := data.Values
	fitted := make([]float64, len(v))
	level := v[0]
	fitted[0] = level
	for i := 1; i < len(v); i++ {
		fitted[i] = level
		level = m.alpha*v[i] + (1-m.alpha)*level
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = level
	m.fitted = fitted
	m.n = len(v)
	m.ok = true
	return nil
}

func (m *SES) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if err := checkPredict(ctx, horizon); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ok {
		return nil, ErrNotFitted
	}
	return flat(m.level, horizon), nil
}

func (m *SES) Describe() models.ModelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.ModelInfo{
		Name:        m.Name(),
		Family:      "smoothing",
		Params:      map[string]float64{"alpha": m.alpha, "level": m.level},
		Fitted:      m.ok,
		Description: "simple exponential smoothing",
	}
}

// Holt is double exponential smoothing with additive trend.
type Holt struct {
	fitState
	alpha, beta  float64
	level, trend float64
}

func NewHolt(alpha, beta float64) (*Holt, error) {
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: holt alpha must be in (0, 1], got %v", ErrInvalidParam, alpha)
	}
	if beta <= 0 || beta > 1 {
		return nil, fmt.Errorf("%w: holt beta must be in (0, 1], got %v", ErrInvalidParam, beta)
	}
	return &Holt{alpha: alpha, beta: beta}, nil
}

func (m *Holt) Name() string { return "holt" }

func (m *Holt) Fit(ctx context.Context, data models.TimeSeriesData) error {
	if err := checkFit(ctx, data, 2); err != nil {
		m.reset()
		return err
	}
	v := data.Values
	fitted := make([]float64, len(v))
	level, trend := v[0], v[1]-v[0]
	fitted[0] = v[0]
	for i := 1; i < len(v); i++ {
		fitted[i] = level + trend
		next := m.alpha*v[i] + (1-m.alpha)*(level+trend)
		trend = m.beta*(next-level) + (1-m.beta)*trend
		level = next
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = level
	m.trend = trend
	m.fitted = fitted
	m.n = len(v)
	m.ok = true
	return nil
}

func (m *Holt) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if err := checkPredict(ctx, horizon); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ok {
		return nil, ErrNotFitted
	}
	return linear(m.level, m.trend, horizon), nil
}

func (m *Holt) Describe() models.ModelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.ModelInfo{
		Name:        m.Name(),
		Family:      "smoothing",
		Params:      map[string]float64{"alpha": m.alpha, "beta": m.beta, "level": m.level, "trend": m.trend},
		Fitted:      m.ok,
		Description: "Holt linear trend exponential smoothing",
	}
}
