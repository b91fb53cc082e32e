package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/domain/service"
	"FinCast/internal/services/ensemble"
	"FinCast/internal/services/ensemble/ensembletest"
	"FinCast/pkg/cache"
	pkgkafka "FinCast/pkg/kafka"
)

type fakeStore struct {
	mu     sync.Mutex
	data   models.TimeSeriesData
	err    error
	loads  int
	saved  []*models.ForecastResult
	params []string
}

func (s *fakeStore) GetLatestNCandles(context.Context, string, int, domrepo.Timeframe) ([]models.Candle, error) {
	return nil, nil
}

func (s *fakeStore) LatestSeries(_ context.Context, symbol string, n int, tf domrepo.Timeframe) (models.TimeSeriesData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	s.params = append(s.params, symbol+"/"+string(tf))
	return s.data, s.err
}

func (s *fakeStore) SaveForecast(_ context.Context, res *models.ForecastResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, res)
	return nil
}

type fakePublisher struct {
	mu  sync.Mutex
	got []*models.ForecastResult
	err error
}

func (p *fakePublisher) PublishForecast(_ context.Context, res *models.ForecastResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, res)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

type fakeQueue struct {
	msgType string
	payload interface{}
}

func (q *fakeQueue) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	q.msgType, q.payload = msgType, payload
	return "job-1", nil
}

func stubFactory() service.ModelFactory {
	return func() ([]service.ForecastModel, error) {
		return []service.ForecastModel{
			ensembletest.Constant("low", 10),
			ensembletest.Constant("high", 20),
		}, nil
	}
}

func newForecaster(t *testing.T, cfg ForecasterConfig, opts ...ForecasterOption) *Forecaster {
	t.Helper()
	f, err := NewForecaster(cfg, stubFactory(), []ensemble.Option{ensemble.WithModelTimeout(time.Second)}, nil, nil, opts...)
	require.NoError(t, err)
	return f
}

func TestPredictRequiresTraining(t *testing.T) {
	f := newForecaster(t, ForecasterConfig{})
	_, err := f.Predict(context.Background(), "AAPL", ensembletest.Ramp(20), 3)
	assert.ErrorIs(t, err, ensemble.ErrNotTrained)

	_, err = f.Weights("AAPL")
	assert.ErrorIs(t, err, ensemble.ErrNotTrained)
}

func TestTrainPredictPublishes(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	f := newForecaster(t, ForecasterConfig{}, WithPublishers(pub, nil))
	ctx := context.Background()
	data := ensembletest.Ramp(30)

	tr, err := f.Train(ctx, "AAPL", data)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, tr.ModelWeights["low"]+tr.ModelWeights["high"], 1e-9)

	res, err := f.Predict(ctx, "AAPL", data, 3)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", res.Key)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Predictions, 3)
	assert.GreaterOrEqual(t, res.Predictions[0], 10.0)
	assert.LessOrEqual(t, res.Predictions[0], 20.0)
	// publish errors are not fatal
	assert.Equal(t, 1, pub.count())

	w, err := f.Weights("AAPL")
	require.NoError(t, err)
	assert.Equal(t, tr.ModelWeights, w.ModelWeights)
}

func TestForecastSymbolCachesAndPersists(t *testing.T) {
	store := &fakeStore{data: ensembletest.Ramp(30)}
	mem, err := cache.NewMemoryCache()
	require.NoError(t, err)
	pub := &fakePublisher{}
	f := newForecaster(t, ForecasterConfig{CacheTTL: time.Minute}, WithSeriesStore(store), WithCache(mem), WithPublishers(pub))
	ctx := context.Background()
	p := SymbolParams{Symbol: "BTCUSDT", N: 30, TF: domrepo.TF1m, Horizon: 2}

	first, err := f.ForecastSymbol(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT:1m", first.Key)
	assert.Len(t, store.saved, 1)

	second, err := f.ForecastSymbol(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, 1, store.loads)
	assert.Equal(t, 1, pub.count())

	p.Retrain = true
	third, err := f.ForecastSymbol(ctx, p)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, third.RunID)
	assert.Equal(t, 2, store.loads)
}

func TestForecastSymbolDefaultsAndErrors(t *testing.T) {
	f := newForecaster(t, ForecasterConfig{})
	_, err := f.ForecastSymbol(context.Background(), SymbolParams{Symbol: "X", Horizon: 1})
	assert.ErrorIs(t, err, ErrStoreDisabled)

	store := &fakeStore{err: errors.New("clickhouse down")}
	f = newForecaster(t, ForecasterConfig{Timeframe: domrepo.TF5m}, WithSeriesStore(store))
	_, err = f.ForecastSymbol(context.Background(), SymbolParams{Symbol: "X", Horizon: 1})
	assert.ErrorContains(t, err, "clickhouse down")
	assert.Equal(t, []string{"X/5m"}, store.params)
}

func TestTrainSymbolHonorsLock(t *testing.T) {
	store := &fakeStore{data: ensembletest.Ramp(30)}
	mem, err := cache.NewMemoryCache()
	require.NoError(t, err)
	f := newForecaster(t, ForecasterConfig{}, WithSeriesStore(store), WithCache(mem))
	ctx := context.Background()

	ok, err := mem.TryLock(ctx, cache.GenerateKey("train-lock", "ETH:1m"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.TrainSymbol(ctx, SymbolParams{Symbol: "ETH", TF: domrepo.TF1m})
	assert.ErrorIs(t, err, ErrTrainingInProgress)

	require.NoError(t, mem.Unlock(ctx, cache.GenerateKey("train-lock", "ETH:1m")))
	res, err := f.TrainSymbol(ctx, SymbolParams{Symbol: "ETH", TF: domrepo.TF1m})
	require.NoError(t, err)
	assert.Equal(t, 30, res.SeriesLength)

	// lock is released after the run
	ok, _ = mem.TryLock(ctx, cache.GenerateKey("train-lock", "ETH:1m"), time.Minute)
	assert.True(t, ok)
}

func TestScheduleTrainingAndJob(t *testing.T) {
	f := newForecaster(t, ForecasterConfig{})
	_, err := f.ScheduleTraining(context.Background(), SymbolParams{Symbol: "SOL"})
	assert.ErrorIs(t, err, ErrQueueDisabled)

	q := &fakeQueue{}
	store := &fakeStore{data: ensembletest.Ramp(30)}
	f = newForecaster(t, ForecasterConfig{SeriesLength: 300}, WithQueue(q), WithSeriesStore(store))
	id, err := f.ScheduleTraining(context.Background(), SymbolParams{Symbol: "SOL"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	assert.Equal(t, TrainJobType, q.msgType)
	assert.Equal(t, models.TrainJobPayload{Key: "SOL:1m", Symbol: "SOL", N: 300, TF: "1m"}, q.payload)

	raw, err := json.Marshal(q.payload)
	require.NoError(t, err)
	job := NewTrainJob(f, nil)
	require.NoError(t, job.Handle(context.Background(), raw))

	_, err = f.Weights("SOL:1m")
	assert.NoError(t, err)
}

func TestKafkaForecastHandler(t *testing.T) {
	pub := &fakePublisher{}
	f := newForecaster(t, ForecasterConfig{}, WithPublishers(pub))
	h := NewKafkaForecastHandler("forecast.requests", f, nil)
	assert.Equal(t, "forecast.requests", h.Topic())

	data := ensembletest.Ramp(12)
	msg, err := json.Marshal(models.ForecastRequestMessage{
		Key:        "sensor-1",
		Timestamps: data.Timestamps,
		Values:     data.Values,
		Horizon:    intPtr(4),
	})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), msg))
	require.Equal(t, 1, pub.count())
	assert.Len(t, pub.got[0].Predictions, 4)
	assert.Equal(t, "sensor-1", pub.got[0].Key)

	err = h.Handle(context.Background(), []byte("{"))
	assert.Error(t, err)
	assert.True(t, pkgkafka.IsPermanent(err))

	bad, _ := json.Marshal(models.ForecastRequestMessage{Key: "x", Values: []float64{1}})
	err = h.Handle(context.Background(), bad)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.True(t, pkgkafka.IsPermanent(err))
}

func TestKafkaForecastHandlerHorizon(t *testing.T) {
	pub := &fakePublisher{}
	f := newForecaster(t, ForecasterConfig{}, WithPublishers(pub))
	h := NewKafkaForecastHandler("forecast.requests", f, nil)
	data := ensembletest.Ramp(12)

	zero, err := json.Marshal(models.ForecastRequestMessage{
		Key: "s", Timestamps: data.Timestamps, Values: data.Values, Horizon: intPtr(0),
	})
	require.NoError(t, err)
	err = h.Handle(context.Background(), zero)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.True(t, pkgkafka.IsPermanent(err))
	assert.Equal(t, 0, pub.count())

	omitted, err := json.Marshal(models.ForecastRequestMessage{
		Key: "s", Timestamps: data.Timestamps, Values: data.Values,
	})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), omitted))
	require.Equal(t, 1, pub.count())
	assert.Len(t, pub.got[0].Predictions, 1)
}

func TestKafkaForecastHandlerAllModelsFailedIsPermanent(t *testing.T) {
	factory := func() ([]service.ForecastModel, error) {
		return []service.ForecastModel{&ensembletest.Model{ModelName: "broken", FitErr: errors.New("singular")}}, nil
	}
	f, err := NewForecaster(ForecasterConfig{}, factory, nil, nil, nil)
	require.NoError(t, err)
	h := NewKafkaForecastHandler("forecast.requests", f, nil)

	data := ensembletest.Ramp(12)
	msg, err := json.Marshal(models.ForecastRequestMessage{Key: "s", Timestamps: data.Timestamps, Values: data.Values})
	require.NoError(t, err)
	err = h.Handle(context.Background(), msg)
	assert.ErrorIs(t, err, ensemble.ErrAllModelsFailed)
	assert.True(t, pkgkafka.IsPermanent(err))
}

func intPtr(v int) *int { return &v }

func TestEnginesAreEvicted(t *testing.T) {
	f := newForecaster(t, ForecasterConfig{MaxKeys: 1})
	ctx := context.Background()
	data := ensembletest.Ramp(20)

	_, err := f.Train(ctx, "a", data)
	require.NoError(t, err)
	_, err = f.Train(ctx, "b", data)
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, f.Keys())
	_, err = f.Weights("a")
	assert.ErrorIs(t, err, ensemble.ErrNotTrained)
}

func TestModelsDescribesLineUp(t *testing.T) {
	f := newForecaster(t, ForecasterConfig{})
	infos, err := f.Models("")
	require.NoError(t, err)
	names := make([]string, 0, len(infos))
	for _, i := range infos {
		names = append(names, i.Name)
	}
	assert.ElementsMatch(t, []string{"low", "high"}, names)
}
