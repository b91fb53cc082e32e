package ensemble

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/repository"
	"FinCast/internal/domain/service"
	"FinCast/internal/services/features"
	"FinCast/pkg/logger"
)

// Split returns the holdout size for a series of length n and whether the
// series is too short for a holdout, in which case models are scored in-sample.
func (c Config) Split(n int) (k int, inSample bool) {
	k = int(math.Round(c.HoldoutFraction * float64(n)))
	if k < 1 {
		k = 1
	}
	if n < c.MinHoldoutSize {
		if k >= n {
			k = n - 1
		}
		return k, true
	}
	if n-k < models.MinSeriesLength {
		k = n - models.MinSeriesLength
	}
	return k, false
}

// TrainReport is the raw outcome of fitting and scoring every model.
type TrainReport struct {
	Errors      map[string]float64
	Failures    map[string]*ModelFailure
	HoldoutSize int
	InSample    bool
}

// Orchestrator runs models concurrently, one goroutine per model, each under
// its own timeout. A model that panics, errors or times out is recorded as a
// failure and never aborts the others.
type Orchestrator struct {
	registry *Registry
	cfg      Config
	log      *logger.Logger
	metrics  repository.Metrics
	// busy marks models whose previous task has not returned yet.
	busy map[string]*atomic.Bool
}

func newOrchestrator(reg *Registry, o options) *Orchestrator {
	busy := make(map[string]*atomic.Bool, reg.Len())
	for _, name := range reg.Names() {
		busy[name] = new(atomic.Bool)
	}
	return &Orchestrator{
		registry: reg,
		cfg:      o.cfg,
		log:      o.log,
		metrics:  o.metrics,
		busy:     busy,
	}
}

// TrainAll fits every model on the training portion and scores it by RMSE
// against the holdout. Fails with AllModelsFailedError if no model succeeds.
func (o *Orchestrator) TrainAll(ctx context.Context, data models.TimeSeriesData) (*TrainReport, error) {
	n := data.Len()
	k, inSample := o.cfg.Split(n)

	fitPart := data
	var actual []float64
	if !inSample {
		fitPart = data.Slice(0, n-k)
		actual = data.Values[n-k:]
	}

	scores, failures := fanOut(ctx, o, o.registry.All(), func(ctx context.Context, m service.ForecastModel) (float64, error) {
		return scoreModel(ctx, m, fitPart, actual, k, inSample)
	})
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	if len(scores) == 0 {
		return nil, &AllModelsFailedError{Failures: failures}
	}
	return &TrainReport{
		Errors:      scores,
		Failures:    failures,
		HoldoutSize: k,
		InSample:    inSample,
	}, nil
}

// PredictAll re-fits the named models on the full series and forecasts
// horizon steps.
func (o *Orchestrator) PredictAll(ctx context.Context, data models.TimeSeriesData, horizon int, names []string) (map[string][]float64, map[string]*ModelFailure, error) {
	ms := make([]service.ForecastModel, 0, len(names))
	for _, name := range names {
		m, err := o.registry.Get(name)
		if err != nil {
			return nil, nil, err
		}
		ms = append(ms, m)
	}

	preds, failures := fanOut(ctx, o, ms, func(ctx context.Context, m service.ForecastModel) ([]float64, error) {
		if err := m.Fit(ctx, data); err != nil {
			return nil, &ModelFailure{Model: m.Name(), Stage: StageFit, Err: err}
		}
		out, err := m.Predict(ctx, horizon)
		if err != nil {
			return nil, &ModelFailure{Model: m.Name(), Stage: StagePredict, Err: err}
		}
		if err := checkForecast(out, horizon); err != nil {
			return nil, &ModelFailure{Model: m.Name(), Stage: StageValidate, Err: err}
		}
		return out, nil
	})
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("predict: %w", err)
	}
	return preds, failures, nil
}

func scoreModel(ctx context.Context, m service.ForecastModel, fit models.TimeSeriesData, actual []float64, k int, inSample bool) (float64, error) {
	if err := m.Fit(ctx, fit); err != nil {
		return 0, &ModelFailure{Model: m.Name(), Stage: StageFit, Err: err}
	}
	if inSample {
		if ism, ok := m.(service.InSampleModel); ok {
			fitted := ism.Fitted()
			if len(fitted) == fit.Len() && features.AllFinite(fitted) {
				return features.RMSE(fit.Values, fitted), nil
			}
		}
		actual = fit.Values[fit.Len()-k:]
	}
	preds, err := m.Predict(ctx, k)
	if err != nil {
		return 0, &ModelFailure{Model: m.Name(), Stage: StagePredict, Err: err}
	}
	if err := checkForecast(preds, k); err != nil {
		return 0, &ModelFailure{Model: m.Name(), Stage: StageValidate, Err: err}
	}
	e := features.RMSE(actual, preds)
	if math.IsNaN(e) || math.IsInf(e, 0) {
		return 0, &ModelFailure{Model: m.Name(), Stage: StageValidate, Err: errors.New("non-finite validation error")}
	}
	return e, nil
}

func checkForecast(preds []float64, horizon int) error {
	if len(preds) != horizon {
		return fmt.Errorf("expected %d predictions, got %d", horizon, len(preds))
	}
	if !features.AllFinite(preds) {
		return errors.New("forecast contains non-finite values")
	}
	return nil
}

type outcome[T any] struct {
	name    string
	val     T
	failure *ModelFailure
}

// fanOut runs task for every model concurrently and collects successes and
// failures by model name.
func fanOut[T any](ctx context.Context, o *Orchestrator, ms []service.ForecastModel, task func(context.Context, service.ForecastModel) (T, error)) (map[string]T, map[string]*ModelFailure) {
	ch := make(chan outcome[T], len(ms))
	var wg sync.WaitGroup
	for _, m := range ms {
		wg.Add(1)
		go func(m service.ForecastModel) {
			defer wg.Done()
			start := time.Now()
			v, failure := runGuarded(ctx, o, m, task)
			o.metrics.RecordLatency("model."+m.Name(), time.Since(start).Seconds())
			ch <- outcome[T]{name: m.Name(), val: v, failure: failure}
		}(m)
	}
	go func() { wg.Wait(); close(ch) }()

	vals := make(map[string]T, len(ms))
	failures := make(map[string]*ModelFailure)
	for it := range ch {
		if it.failure != nil {
			failures[it.name] = it.failure
			o.metrics.RecordModelFailure(it.name, it.failure.Stage)
			o.log.Warn("model excluded",
				logger.String("model", it.name),
				logger.String("stage", it.failure.Stage),
				logger.Error(it.failure.Err),
			)
			continue
		}
		vals[it.name] = it.val
	}
	return vals, failures
}

type guardedResult[T any] struct {
	val T
	err error
}

// runGuarded executes task under the per-model timeout, turning panics,
// errors and deadline overruns into a ModelFailure. A task that ignores its
// context keeps the model marked busy until it returns.
func runGuarded[T any](ctx context.Context, o *Orchestrator, m service.ForecastModel, task func(context.Context, service.ForecastModel) (T, error)) (T, *ModelFailure) {
	var zero T
	name := m.Name()

	busy := o.busy[name]
	if !busy.CompareAndSwap(false, true) {
		return zero, &ModelFailure{Model: name, Stage: StageBusy, Err: errors.New("previous task still running")}
	}

	tctx, cancel := ctx, context.CancelFunc(func() {})
	if o.cfg.ModelTimeout > 0 {
		tctx, cancel = context.WithTimeout(ctx, o.cfg.ModelTimeout)
	}
	defer cancel()

	ch := make(chan guardedResult[T], 1)
	go func() {
		defer busy.Store(false)
		defer func() {
			if r := recover(); r != nil {
				ch <- guardedResult[T]{err: &ModelFailure{Model: name, Stage: StagePanic, Err: fmt.Errorf("%v", r)}}
			}
		}()
		v, err := task(tctx, m)
		ch <- guardedResult[T]{val: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err == nil {
			return r.val, nil
		}
		var mf *ModelFailure
		if !errors.As(r.err, &mf) {
			mf = &ModelFailure{Model: name, Stage: StageFit, Err: r.err}
		}
		if tctx.Err() != nil && (errors.Is(mf.Err, context.DeadlineExceeded) || errors.Is(mf.Err, context.Canceled)) {
			mf.Stage = ctxStage(ctx)
		}
		return zero, mf
	case <-tctx.Done():
		return zero, &ModelFailure{Model: name, Stage: ctxStage(ctx), Err: tctx.Err()}
	}
}

func ctxStage(parent context.Context) string {
	if parent.Err() != nil {
		return StageCanceled
	}
	return StageTimeout
}
