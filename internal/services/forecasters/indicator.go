package forecasters

import (
	"context"
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"FinCast/internal/domain/models"
)

type movingAverage interface {
	Compute(c <-chan float64) <-chan float64
}

// MovingAverage forecasts the latest simple or exponential moving average
// flat over the horizon. Its fitted value at i is the average available
// after observation i-1; the warm-up steps repeat the first observation.
type MovingAverage struct {
	fitState
	kind   string
	period int
	newMA  func() movingAverage
	value  float64
}

func NewSMA(period int) (*MovingAverage, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: sma period must be >= 1, got %d", ErrInvalidParam, period)
	}
	return &MovingAverage{
		kind:   "sma",
		period: period,
		newMA:  func() movingAverage { return trend.NewSmaWithPeriod[float64](period) },
	}, nil
}

func NewEMA(period int) (*MovingAverage, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: ema period must be >= 1, got %d", ErrInvalidParam, period)
	}
	return &MovingAverage{
		kind:   "ema",
		period: period,
		newMA:  func() movingAverage { return trend.NewEmaWithPeriod[float64](period) },
	}, nil
}

func (m *MovingAverage) Name() string { return m.kind }

func (m *MovingAverage) Fit(ctx context.Context, data models.TimeSeriesData) error {
	if err := checkFit(ctx, data, m.period); err != nil {
		m.reset()
		return err
	}
	v := data.Values
	out := helper.ChanToSlice(m.newMA().Compute(helper.SliceToChan(v)))
	if len(out) == 0 {
		m.reset()
		return fmt.Errorf("%w: %s(%d) produced no values for %d observations", ErrShortSeries, m.kind, m.period, data.Len())
	}

	// out[j] is the average ending at observation j+idle
	idle := len(v) - len(out)
	fitted := make([]float64, len(v))
	for i := range fitted {
		if j := i - 1 - idle; j >= 0 {
			fitted[i] = out[j]
		} else {
			fitted[i] = v[0]
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = out[len(out)-1]
	m.fitted = fitted
	m.n = len(v)
	m.ok = true
	return nil
}

func (m *MovingAverage) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if err := checkPredict(ctx, horizon); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ok {
		return nil, ErrNotFitted
	}
	return flat(m.value, horizon), nil
}

func (m *MovingAverage) Describe() models.ModelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.ModelInfo{
		Name:        m.Name(),
		Family:      "moving_average",
		Params:      map[string]float64{"period": float64(m.period), "value": m.value},
		Fitted:      m.ok,
		Description: fmt.Sprintf("latest %s over %d observations", m.kind, m.period),
	}
}
