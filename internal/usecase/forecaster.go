package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	svcmetrics "FinCast/internal/service/metrics"
	"FinCast/internal/services/ensemble"
	"FinCast/pkg/cache"
	"FinCast/pkg/logger"
	"FinCast/pkg/queue"
)

const TrainJobType = "forecast.train"

var (
	ErrStoreDisabled      = errors.New("series store not configured")
	ErrQueueDisabled      = errors.New("training queue not configured")
	ErrTrainingInProgress = errors.New("training already in progress")
)

type ForecasterConfig struct {
	SeriesLength   int
	Timeframe      domrepo.Timeframe
	CacheTTL       time.Duration
	RequestTimeout time.Duration
	MaxKeys        int
	TrainLockTTL   time.Duration
}

// Forecaster owns one ensemble engine per series key. Engines are created
// lazily from the model factory and kept in an LRU; an evicted key has to be
// trained again.
type Forecaster struct {
	cfg        ForecasterConfig
	factory    domsvc.ModelFactory
	engineOpts []ensemble.Option
	metrics    domrepo.Metrics
	log        *logger.Logger

	store      domrepo.SeriesStore
	cache      cache.Service
	queue      queue.Publisher
	publishers []domrepo.ForecastPublisher

	mu      sync.Mutex
	engines *lru.Cache[string, *ensemble.Engine]
	newID   func() string
}

type ForecasterOption func(*Forecaster)

func WithSeriesStore(s domrepo.SeriesStore) ForecasterOption {
	return func(f *Forecaster) { f.store = s }
}

func WithCache(c cache.Service) ForecasterOption {
	return func(f *Forecaster) { f.cache = c }
}

func WithQueue(q queue.Publisher) ForecasterOption {
	return func(f *Forecaster) { f.queue = q }
}

// WithPublishers adds sinks receiving every produced forecast. Nil entries are skipped.
func WithPublishers(ps ...domrepo.ForecastPublisher) ForecasterOption {
	return func(f *Forecaster) {
		for _, p := range ps {
			if p != nil {
				f.publishers = append(f.publishers, p)
			}
		}
	}
}

func NewForecaster(cfg ForecasterConfig, factory domsvc.ModelFactory, engineOpts []ensemble.Option, metrics domrepo.Metrics, log *logger.Logger, opts ...ForecasterOption) (*Forecaster, error) {
	if factory == nil {
		return nil, errors.New("model factory is required")
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 1000
	}
	if cfg.SeriesLength <= 0 {
		cfg.SeriesLength = 600
	}
	if !domrepo.IsValidTimeframe(cfg.Timeframe) {
		cfg.Timeframe = domrepo.DefaultTimeframe()
	}
	if cfg.TrainLockTTL <= 0 {
		cfg.TrainLockTTL = 2 * time.Minute
	}
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	engines, err := lru.New[string, *ensemble.Engine](cfg.MaxKeys)
	if err != nil {
		return nil, err
	}
	f := &Forecaster{
		cfg:        cfg,
		factory:    factory,
		engineOpts: engineOpts,
		metrics:    metrics,
		log:        log,
		engines:    engines,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// SymbolKey is the engine key for a symbol at a timeframe.
func SymbolKey(symbol string, tf domrepo.Timeframe) string {
	return symbol + ":" + string(tf)
}

func (f *Forecaster) engine(key string, create bool) (*ensemble.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.engines.Get(key); ok {
		return e, nil
	}
	if !create {
		return nil, fmt.Errorf("%w: %s", ensemble.ErrNotTrained, key)
	}
	ms, err := f.factory()
	if err != nil {
		return nil, fmt.Errorf("build models: %w", err)
	}
	reg, err := ensemble.NewRegistry(ms...)
	if err != nil {
		return nil, err
	}
	opts := append(append([]ensemble.Option(nil), f.engineOpts...), ensemble.WithKey(key))
	e, err := ensemble.NewEngine(reg, opts...)
	if err != nil {
		return nil, err
	}
	f.engines.Add(key, e)
	return e, nil
}

// Train (re)trains the ensemble for key.
func (f *Forecaster) Train(ctx context.Context, key string, data models.TimeSeriesData) (*models.TrainingResult, error) {
	e, err := f.engine(key, true)
	if err != nil {
		return nil, err
	}
	return e.TrainEnsemble(ctx, data)
}

// Predict forecasts with the trained ensemble for key and publishes the result.
func (f *Forecaster) Predict(ctx context.Context, key string, data models.TimeSeriesData, horizon int) (*models.ForecastResult, error) {
	e, err := f.engine(key, false)
	if err != nil {
		return nil, err
	}
	res, err := e.PredictEnsemble(ctx, data, horizon)
	if err != nil {
		return nil, err
	}
	res.RunID = f.newID()
	res.Key = key
	f.publish(ctx, res)
	return res, nil
}

// Weights returns the current trained state for key.
func (f *Forecaster) Weights(key string) (*models.TrainingResult, error) {
	e, err := f.engine(key, false)
	if err != nil {
		return nil, err
	}
	st := e.State()
	if st == nil {
		return nil, fmt.Errorf("%w: %s", ensemble.ErrNotTrained, key)
	}
	return st, nil
}

// Models describes the line-up used for key, or the configured line-up when
// the key has no engine yet.
func (f *Forecaster) Models(key string) ([]models.ModelInfo, error) {
	if key != "" {
		if e, err := f.engine(key, false); err == nil {
			return e.Registry().Describe(), nil
		}
	}
	ms, err := f.factory()
	if err != nil {
		return nil, err
	}
	reg, err := ensemble.NewRegistry(ms...)
	if err != nil {
		return nil, err
	}
	return reg.Describe(), nil
}

// Keys lists engine keys, least recently used first.
func (f *Forecaster) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engines.Keys()
}

type SymbolParams struct {
	Symbol  string
	N       int
	TF      domrepo.Timeframe
	Horizon int
	Retrain bool
}

func (f *Forecaster) normalize(p SymbolParams) SymbolParams {
	if p.N <= 0 {
		p.N = f.cfg.SeriesLength
	}
	if !domrepo.IsValidTimeframe(p.TF) {
		p.TF = f.cfg.Timeframe
	}
	return p
}

func (f *Forecaster) loadSeries(ctx context.Context, p SymbolParams) (models.TimeSeriesData, error) {
	if f.store == nil {
		return models.TimeSeriesData{}, ErrStoreDisabled
	}
	start := time.Now()
	data, err := f.store.LatestSeries(ctx, p.Symbol, p.N, p.TF)
	f.metrics.RecordLatency("store.latest_series", time.Since(start).Seconds())
	if err != nil {
		f.metrics.RecordError("store.latest_series")
		return models.TimeSeriesData{}, err
	}
	return data, nil
}

// TrainSymbol trains the symbol's ensemble on its latest n closes. Only one
// training per symbol runs at a time across replicas sharing the cache.
func (f *Forecaster) TrainSymbol(ctx context.Context, p SymbolParams) (*models.TrainingResult, error) {
	p = f.normalize(p)
	key := SymbolKey(p.Symbol, p.TF)

	if f.cache != nil {
		lockKey := cache.GenerateKey("train-lock", key)
		ok, err := f.cache.TryLock(ctx, lockKey, f.cfg.TrainLockTTL)
		if err != nil {
			f.log.Warn("train lock unavailable", logger.String("key", key), logger.Error(err))
		} else if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTrainingInProgress, key)
		} else {
			defer func() {
				if err := f.cache.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
					f.log.Warn("train unlock failed", logger.String("key", key), logger.Error(err))
				}
			}()
		}
	}

	data, err := f.loadSeries(ctx, p)
	if err != nil {
		return nil, err
	}
	return f.Train(ctx, key, data)
}

// ForecastSymbol returns a cached forecast when available; otherwise it loads
// the series, trains if needed, predicts, persists and caches the result.
func (f *Forecaster) ForecastSymbol(ctx context.Context, p SymbolParams) (*models.ForecastResult, error) {
	p = f.normalize(p)
	key := SymbolKey(p.Symbol, p.TF)
	cacheKey := cache.GenerateKey("forecast", key, p.N, p.Horizon)

	if f.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.RequestTimeout)
		defer cancel()
	}

	if f.cache != nil && !p.Retrain {
		var cached models.ForecastResult
		err := f.cache.Get(ctx, cacheKey, &cached)
		switch {
		case err == nil:
			svcmetrics.CacheHits.WithLabelValues("hit").Inc()
			return &cached, nil
		case errors.Is(err, cache.ErrCacheMiss):
			svcmetrics.CacheHits.WithLabelValues("miss").Inc()
		default:
			svcmetrics.CacheHits.WithLabelValues("error").Inc()
			f.log.Warn("forecast cache read failed", logger.String("key", cacheKey), logger.Error(err))
		}
	}

	data, err := f.loadSeries(ctx, p)
	if err != nil {
		return nil, err
	}

	e, err := f.engine(key, true)
	if err != nil {
		return nil, err
	}
	if p.Retrain || !e.Trained() {
		if _, err := e.TrainEnsemble(ctx, data); err != nil {
			return nil, err
		}
	}

	res, err := f.Predict(ctx, key, data, p.Horizon)
	if err != nil {
		return nil, err
	}

	if f.store != nil {
		if err := f.store.SaveForecast(ctx, res); err != nil {
			f.metrics.RecordError("store.save_forecast")
			f.log.Warn("persist forecast failed", logger.String("key", key), logger.Error(err))
		}
	}
	if f.cache != nil {
		if err := f.cache.Set(ctx, cacheKey, res, f.cfg.CacheTTL); err != nil {
			f.log.Warn("forecast cache write failed", logger.String("key", cacheKey), logger.Error(err))
		}
	}
	return res, nil
}

// ScheduleTraining enqueues an asynchronous TrainSymbol and returns the job id.
func (f *Forecaster) ScheduleTraining(ctx context.Context, p SymbolParams) (string, error) {
	if f.queue == nil {
		return "", ErrQueueDisabled
	}
	p = f.normalize(p)
	return f.queue.Enqueue(ctx, TrainJobType, models.TrainJobPayload{
		Key:    SymbolKey(p.Symbol, p.TF),
		Symbol: p.Symbol,
		N:      p.N,
		TF:     string(p.TF),
	})
}

func (f *Forecaster) publish(ctx context.Context, res *models.ForecastResult) {
	for _, p := range f.publishers {
		if err := p.PublishForecast(ctx, res); err != nil {
			f.metrics.RecordError("publish")
			f.log.Warn("publish forecast failed", logger.String("key", res.Key), logger.Error(err))
		}
	}
}
