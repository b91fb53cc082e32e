package forecasters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinCast/internal/domain/models"
)

// Remote delegates forecasting to an external HTTP model service. Fit keeps
// the series; the service fits and forecasts in a single call on Predict.
type Remote struct {
	name     string
	base     *HTTPServiceBase
	attempts int

	mu     sync.RWMutex
	series *models.TimeSeriesData
}

type remoteReq struct {
	Model      string      `json:"model"`
	Timestamps []time.Time `json:"timestamps"`
	Values     []float64   `json:"values"`
	Horizon    int         `json:"horizon"`
}

type remoteResp struct {
	Predictions []float64 `json:"predictions"`
}

func NewRemote(name string, base *HTTPServiceBase, attempts int) *Remote {
	if name == "" {
		name = "remote"
	}
	return &Remote{name: name, base: base, attempts: attempts}
}

func (m *Remote) Name() string { return m.name }

func (m *Remote) Fit(ctx context.Context, data models.TimeSeriesData) error {
	if err := checkFit(ctx, data, 2); err != nil {
		m.mu.Lock()
		m.series = nil
		m.mu.Unlock()
		return err
	}
	cp := models.TimeSeriesData{
		Timestamps: append([]time.Time(nil), data.Timestamps...),
		Values:     append([]float64(nil), data.Values...),
	}
	m.mu.Lock()
	m.series = &cp
	m.mu.Unlock()
	return nil
}

func (m *Remote) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if err := checkPredict(ctx, horizon); err != nil {
		return nil, err
	}
	m.mu.RLock()
	s := m.series
	m.mu.RUnlock()
	if s == nil {
		return nil, ErrNotFitted
	}

	var resp remoteResp
	req := remoteReq{Model: m.name, Timestamps: s.Timestamps, Values: s.Values, Horizon: horizon}
	if err := m.base.PostJSONWithRetry(ctx, "/forecast", req, &resp, m.attempts); err != nil {
		return nil, fmt.Errorf("remote forecast: %w", err)
	}
	if len(resp.Predictions) != horizon {
		return nil, fmt.Errorf("remote forecast: expected %d predictions, got %d", horizon, len(resp.Predictions))
	}
	return resp.Predictions, nil
}

func (m *Remote) Describe() models.ModelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.ModelInfo{
		Name:        m.name,
		Family:      "remote",
		Params:      map[string]float64{"attempts": float64(m.attempts)},
		Fitted:      m.series != nil,
		Description: "forecast served by " + m.base.baseURL,
	}
}
