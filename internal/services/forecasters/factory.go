package forecasters

import (
	"fmt"
	"time"

	"FinCast/internal/domain/service"
	"FinCast/internal/service/ratelimit"
)

// Settings selects the model line-up and its parameters.
type Settings struct {
	Models    []string
	SESAlpha  float64
	HoltAlpha float64
	HoltBeta  float64
	SMAPeriod int
	EMAPeriod int

	RemoteURL      string
	RemoteTimeout  time.Duration
	RemoteAttempts int
}

// DefaultSettings is the line-up used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Models:    []string{"naive", "drift", "linear_trend", "ses", "holt", "sma", "ema"},
		SESAlpha:  0.5,
		HoltAlpha: 0.5,
		HoltBeta:  0.3,
		SMAPeriod: 5,
		EMAPeriod: 5,
	}
}

// NewFactory returns a ModelFactory producing a fresh, unfitted line-up on
// every call. Each engine needs its own instances since models keep state.
// limiter is shared by every remote model the factory creates.
func NewFactory(s Settings, limiter *ratelimit.Limiter) service.ModelFactory {
	var remote *HTTPServiceBase
	if s.RemoteURL != "" {
		remote = NewHTTPServiceBase(s.RemoteURL, s.RemoteTimeout, limiter)
	}
	return func() ([]service.ForecastModel, error) {
		out := make([]service.ForecastModel, 0, len(s.Models))
		for _, name := range s.Models {
			m, err := build(name, s, remote)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	}
}

func build(name string, s Settings, remote *HTTPServiceBase) (service.ForecastModel, error) {
	switch name {
	case "naive":
		return NewNaive(), nil
	case "drift":
		return NewDrift(), nil
	case "linear_trend":
		return NewLinearTrend(), nil
	case "ses":
		return NewSES(s.SESAlpha)
	case "holt":
		return NewHolt(s.HoltAlpha, s.HoltBeta)
	case "sma":
		return NewSMA(s.SMAPeriod)
	case "ema":
		return NewEMA(s.EMAPeriod)
	case "remote":
		if remote == nil {
			return nil, fmt.Errorf("%w: remote model requires a service url", ErrInvalidParam)
		}
		return NewRemote("remote", remote, s.RemoteAttempts), nil
	default:
		return nil, fmt.Errorf("%w: unknown model %q", ErrInvalidParam, name)
	}
}
