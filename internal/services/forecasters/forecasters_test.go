package forecasters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/service"
	"FinCast/internal/service/ratelimit"
)

func series(values ...float64) models.TimeSeriesData {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := make([]time.Time, len(values))
	for i := range ts {
		ts[i] = start.Add(time.Duration(i) * time.Minute)
	}
	return models.TimeSeriesData{Timestamps: ts, Values: values}
}

func ramp(n int) models.TimeSeriesData {
	v := make([]float64, n)
	for i := range v {
		v[i] = float64(i + 1)
	}
	return series(v...)
}

func fitPredict(t *testing.T, m service.ForecastModel, data models.TimeSeriesData, h int) []float64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.Fit(ctx, data))
	out, err := m.Predict(ctx, h)
	require.NoError(t, err)
	require.Len(t, out, h)
	return out
}

func TestLocalModelsOnRamp(t *testing.T) {
	data := ramp(10)
	ses, err := NewSES(1)
	require.NoError(t, err)
	holt, err := NewHolt(0.5, 0.5)
	require.NoError(t, err)

	cases := []struct {
		model service.ForecastModel
		want  []float64
	}{
		{NewNaive(), []float64{10, 10, 10}},
		{NewDrift(), []float64{11, 12, 13}},
		{NewLinearTrend(), []float64{11, 12, 13}},
		{ses, []float64{10, 10, 10}},
		{holt, []float64{11, 12, 13}},
	}
	for _, tc := range cases {
		t.Run(tc.model.Name(), func(t *testing.T) {
			got := fitPredict(t, tc.model, data, 3)
			assert.InDeltaSlice(t, tc.want, got, 1e-9)
			assert.True(t, tc.model.Describe().Fitted)
		})
	}
}

func TestInSampleFittedValues(t *testing.T) {
	data := series(1, 3, 2, 5)
	n := NewNaive()
	require.NoError(t, n.Fit(context.Background(), data))
	assert.Equal(t, []float64{1, 1, 3, 2}, n.Fitted())

	var _ service.InSampleModel = n
	var _ service.InSampleModel = NewLinearTrend()
}

func TestMovingAverages(t *testing.T) {
	sma, err := NewSMA(3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{9, 9}, fitPredict(t, sma, ramp(10), 2), 1e-9)

	ema, err := NewEMA(3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{5, 5}, fitPredict(t, ema, series(5, 5, 5, 5, 5), 2), 1e-9)

	got := fitPredict(t, ema, ramp(10), 1)
	assert.Greater(t, got[0], 8.0)
	assert.Less(t, got[0], 10.0)

	var _ service.InSampleModel = sma
	var _ service.InSampleModel = ema
}

func TestMovingAverageFittedValues(t *testing.T) {
	sma, err := NewSMA(3)
	require.NoError(t, err)
	require.NoError(t, sma.Fit(context.Background(), ramp(6)))

	// averages of 1..3, 2..4 and 3..5 lead the observations that follow them
	assert.InDeltaSlice(t, []float64{1, 1, 1, 2, 3, 4}, sma.Fitted(), 1e-9)

	ema, err := NewEMA(2)
	require.NoError(t, err)
	require.NoError(t, ema.Fit(context.Background(), series(4, 4, 4, 4)))
	assert.InDeltaSlice(t, []float64{4, 4, 4, 4}, ema.Fitted(), 1e-9)

	assert.Error(t, sma.Fit(context.Background(), ramp(2)))
	assert.Empty(t, sma.Fitted())
}

func TestShortSeriesAndInvalidParams(t *testing.T) {
	sma, err := NewSMA(5)
	require.NoError(t, err)
	assert.ErrorIs(t, sma.Fit(context.Background(), ramp(3)), ErrShortSeries)
	_, err = sma.Predict(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = NewSES(0)
	assert.ErrorIs(t, err, ErrInvalidParam)
	_, err = NewHolt(0.5, 2)
	assert.ErrorIs(t, err, ErrInvalidParam)
	_, err = NewEMA(0)
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestPredictRejectsBadHorizonAndCancelledContext(t *testing.T) {
	m := NewNaive()
	require.NoError(t, m.Fit(context.Background(), ramp(4)))

	_, err := m.Predict(context.Background(), 0)
	assert.ErrorIs(t, err, models.ErrValidation)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Predict(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFactory(t *testing.T) {
	factory := NewFactory(DefaultSettings(), nil)
	a, err := factory()
	require.NoError(t, err)
	b, err := factory()
	require.NoError(t, err)
	require.Len(t, a, 7)
	assert.NotSame(t, a[0], b[0])

	names := make([]string, len(a))
	for i, m := range a {
		names[i] = m.Name()
	}
	assert.Equal(t, DefaultSettings().Models, names)

	_, err = NewFactory(Settings{Models: []string{"arima"}}, nil)()
	assert.ErrorIs(t, err, ErrInvalidParam)
	_, err = NewFactory(Settings{Models: []string{"remote"}}, nil)()
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestRemoteModel(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req remoteReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		preds := make([]float64, req.Horizon)
		for i := range preds {
			preds[i] = req.Values[len(req.Values)-1]
		}
		_ = json.NewEncoder(w).Encode(remoteResp{Predictions: preds})
	}))
	defer srv.Close()

	s := Settings{Models: []string{"remote"}, RemoteURL: srv.URL, RemoteTimeout: time.Second, RemoteAttempts: 2}
	ms, err := NewFactory(s, ratelimit.New(100, 10))()
	require.NoError(t, err)
	require.Len(t, ms, 1)

	got := fitPredict(t, ms[0], ramp(5), 2)
	assert.Equal(t, []float64{5, 5}, got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemoteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	m := NewRemote("", NewHTTPServiceBase(srv.URL, time.Second, nil), 3)
	require.NoError(t, m.Fit(context.Background(), ramp(3)))
	_, err := m.Predict(context.Background(), 1)
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemoteFailedFitDropsSeries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(remoteResp{Predictions: []float64{1}})
	}))
	defer srv.Close()

	m := NewRemote("", NewHTTPServiceBase(srv.URL, time.Second, nil), 1)
	require.NoError(t, m.Fit(context.Background(), ramp(5)))
	assert.True(t, m.Describe().Fitted)

	assert.ErrorIs(t, m.Fit(context.Background(), ramp(1)), ErrShortSeries)
	assert.False(t, m.Describe().Fitted)
	_, err := m.Predict(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.Equal(t, int32(0), calls.Load())
}
