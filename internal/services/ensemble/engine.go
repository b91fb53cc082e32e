package ensemble

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"FinCast/internal/domain/models"
	"FinCast/internal/services/features"
	"FinCast/pkg/logger"
)

// Engine trains a weighted ensemble over a fixed registry and produces fused
// forecasts. The trained state is replaced atomically; a failed training run
// leaves the previous state in place. Runs are serialized because models
// carry fitted state.
type Engine struct {
	registry *Registry
	orch     *Orchestrator
	opts     options
	log      *logger.Logger

	mu    sync.Mutex
	state atomic.Pointer[models.TrainingResult]
}

// NewEngine validates the configuration and returns an untrained engine.
func NewEngine(reg *Registry, opts ...Option) (*Engine, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, models.NewValidationError("models", "at least one model is required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	o.log = o.log.With(logger.String("ensemble", o.key))
	return &Engine{
		registry: reg,
		orch:     newOrchestrator(reg, o),
		opts:     o,
		log:      o.log,
	}, nil
}

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) Config() Config { return e.opts.cfg }

// Key is the label the engine logs and records metrics under.
func (e *Engine) Key() string { return e.opts.key }

// State returns a copy of the current trained state, or nil if untrained.
func (e *Engine) State() *models.TrainingResult {
	return e.state.Load().Clone()
}

func (e *Engine) Trained() bool { return e.state.Load() != nil }

// TrainEnsemble fits all models, scores them on a holdout and installs
// inverse-error weights for the models that succeeded.
func (e *Engine) TrainEnsemble(ctx context.Context, data models.TimeSeriesData) (*models.TrainingResult, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	ctx, span := e.opts.tracer.Start(ctx, "ensemble.train", trace.WithAttributes(
		attribute.String("ensemble.key", e.opts.key),
		attribute.Int("series.length", data.Len()),
		attribute.Int("models", e.registry.Len()),
	))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	report, err := e.orch.TrainAll(ctx, data)
	e.opts.metrics.RecordLatency("ensemble.train", time.Since(start).Seconds())
	if err != nil {
		e.opts.metrics.RecordTraining(e.opts.key, false)
		e.opts.metrics.RecordError("ensemble.train")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Error("ensemble training failed", logger.Error(err))
		return nil, err
	}

	weights := ComputeWeights(report.Errors, e.opts.cfg.Epsilon)
	res := &models.TrainingResult{
		ModelErrors:  report.Errors,
		ModelWeights: weights,
		FailedModels: failedNames(report.Failures),
		Failures:     failureInfos(report.Failures),
		SeriesLength: data.Len(),
		HoldoutSize:  report.HoldoutSize,
		InSample:     report.InSample,
		TrainedAt:    e.opts.now(),
	}
	e.state.Store(res)

	e.opts.metrics.RecordTraining(e.opts.key, true)
	for name, w := range weights {
		e.opts.metrics.RecordModelWeight(e.opts.key, name, w)
	}
	span.SetAttributes(
		attribute.Int("models.failed", len(res.FailedModels)),
		attribute.Bool("validation.in_sample", res.InSample),
	)
	e.log.Info("ensemble trained",
		logger.Int("series_length", res.SeriesLength),
		logger.Int("holdout", res.HoldoutSize),
		logger.Bool("in_sample", res.InSample),
		logger.Any("weights", weights),
		logger.Strings("failed", res.FailedModels),
		logger.Duration("elapsed_ms", time.Since(start)),
	)
	return res.Clone(), nil
}

// PredictEnsemble re-fits the weighted models on data, forecasts horizon
// steps and fuses the results with the trained weights.
func (e *Engine) PredictEnsemble(ctx context.Context, data models.TimeSeriesData, horizon int) (*models.ForecastResult, error) {
	if horizon < 1 {
		return nil, models.NewValidationError("horizon", "must be >= 1, got %d", horizon)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	ctx, span := e.opts.tracer.Start(ctx, "ensemble.predict", trace.WithAttributes(
		attribute.String("ensemble.key", e.opts.key),
		attribute.Int("series.length", data.Len()),
		attribute.Int("horizon", horizon),
	))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state.Load()
	if st == nil {
		span.SetStatus(codes.Error, ErrNotTrained.Error())
		return nil, ErrNotTrained
	}

	names := make([]string, 0, len(st.ModelWeights))
	for _, name := range e.registry.Names() {
		if w, ok := st.ModelWeights[name]; ok && w > 0 {
			names = append(names, name)
		}
	}

	start := time.Now()
	perModel, failures, err := e.orch.PredictAll(ctx, data, horizon, names)
	e.opts.metrics.RecordLatency("ensemble.predict", time.Since(start).Seconds())
	if err != nil {
		e.fail(span, err)
		return nil, err
	}

	fusion, err := Fuse(perModel, st.ModelWeights, st.ModelErrors)
	if err != nil {
		err = fmt.Errorf("%w (%d models failed)", err, len(failures))
		e.fail(span, err)
		return nil, err
	}

	res := &models.ForecastResult{
		Horizon:             horizon,
		Predictions:         fusion.Predictions,
		Timestamps:          features.ProjectTimestamps(data.Timestamps, horizon),
		ConfidenceScore:     fusion.Confidence,
		Agreement:           fusion.Agreement,
		Accuracy:            fusion.Accuracy,
		ModelWeights:        fusion.Weights,
		TrainedWeights:      st.Clone().ModelWeights,
		PerModelPredictions: perModel,
		FailedModels:        failedNames(failures),
		Failures:            failureInfos(failures),
		GeneratedAt:         e.opts.now(),
	}

	e.opts.metrics.RecordConfidence(e.opts.key, res.ConfidenceScore)
	span.SetAttributes(
		attribute.Float64("forecast.confidence", res.ConfidenceScore),
		attribute.Int("models.used", len(fusion.Used)),
	)
	e.log.Debug("ensemble forecast",
		logger.Int("horizon", horizon),
		logger.Float64("confidence", res.ConfidenceScore),
		logger.Strings("used", fusion.Used),
		logger.Strings("failed", res.FailedModels),
	)
	return res, nil
}

func (e *Engine) fail(span trace.Span, err error) {
	e.opts.metrics.RecordError("ensemble.predict")
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.log.Error("ensemble forecast failed", logger.Error(err))
}
