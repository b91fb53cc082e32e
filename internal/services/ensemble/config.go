package ensemble

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/repository"
	"FinCast/pkg/logger"
)

const tracerName = "FinCast/ensemble"

// Config controls validation splitting, weighting and per-model timeouts.
type Config struct {
	// HoldoutFraction of the series reserved for validation.
	HoldoutFraction float64
	// MinHoldoutSize is the series length below which models are scored in-sample.
	MinHoldoutSize int
	// Epsilon keeps inverse-error weights finite for perfect models.
	Epsilon float64
	// ModelTimeout bounds a single model's fit+predict task. Zero disables it.
	ModelTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		HoldoutFraction: 0.1,
		MinHoldoutSize:  10,
		Epsilon:         1e-6,
		ModelTimeout:    5 * time.Second,
	}
}

// Validate rejects out-of-range settings.
func (c Config) Validate() error {
	if c.HoldoutFraction <= 0 || c.HoldoutFraction >= 1 {
		return models.NewValidationError("holdout_fraction", "must be in (0, 1), got %v", c.HoldoutFraction)
	}
	if c.MinHoldoutSize < models.MinSeriesLength {
		return models.NewValidationError("min_holdout_size", "must be >= %d, got %d", models.MinSeriesLength, c.MinHoldoutSize)
	}
	if c.Epsilon <= 0 {
		return models.NewValidationError("epsilon", "must be > 0, got %v", c.Epsilon)
	}
	if c.ModelTimeout < 0 {
		return models.NewValidationError("model_timeout", "must be >= 0, got %v", c.ModelTimeout)
	}
	return nil
}

type options struct {
	cfg     Config
	log     *logger.Logger
	metrics repository.Metrics
	tracer  trace.Tracer
	key     string
	now     func() time.Time
}

func defaultOptions() options {
	return options{
		cfg:     DefaultConfig(),
		log:     logger.Nop(),
		metrics: repository.NopMetrics{},
		tracer:  otel.Tracer(tracerName),
		key:     "default",
		now:     time.Now,
	}
}

// Option configures an Engine.
type Option func(*options)

func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

func WithHoldoutFraction(f float64) Option {
	return func(o *options) { o.cfg.HoldoutFraction = f }
}

func WithMinHoldoutSize(n int) Option {
	return func(o *options) { o.cfg.MinHoldoutSize = n }
}

func WithEpsilon(eps float64) Option {
	return func(o *options) { o.cfg.Epsilon = eps }
}

func WithModelTimeout(d time.Duration) Option {
	return func(o *options) { o.cfg.ModelTimeout = d }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithKey labels logs and metrics emitted by the engine.
func WithKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.key = key
		}
	}
}

// WithClock overrides the time source for TrainedAt/GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
