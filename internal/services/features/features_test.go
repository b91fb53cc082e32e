package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
)

func TestRMSE(t *testing.T) {
	assert.InDelta(t, 0.0, RMSE([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-12)
	assert.InDelta(t, 2.0, RMSE([]float64{1, 1}, []float64{3, -1}), 1e-12)
	assert.True(t, math.IsNaN(RMSE([]float64{1}, []float64{1, 2})))
	assert.True(t, math.IsNaN(RMSE(nil, nil)))
}

func TestCoefficientOfVariation(t *testing.T) {
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{5}))
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{3, 3, 3}))
	assert.Equal(t, 1.0, CoefficientOfVariation([]float64{-1, 1}))
	// mean 2, population stddev 1
	assert.InDelta(t, 0.5, CoefficientOfVariation([]float64{1, 3}), 1e-12)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 1.0, Clamp01(1.5))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 0.25, Clamp01(0.25))
}

func TestFillGaps(t *testing.T) {
	out, ok := FillGaps([]float64{math.NaN(), 2, math.Inf(1), 4, math.NaN()})
	require.True(t, ok)
	assert.Equal(t, []float64{2, 2, 2, 4, 4}, out)

	_, ok = FillGaps([]float64{math.NaN()})
	assert.False(t, ok)
}

func TestProjectTimestampsUsesMedianStep(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := []time.Time{base, base.Add(time.Minute), base.Add(2 * time.Minute), base.Add(10 * time.Minute)}
	assert.Equal(t, time.Minute, MedianStep(ts))

	got := ProjectTimestamps(ts, 2)
	require.Len(t, got, 2)
	assert.Equal(t, base.Add(11*time.Minute), got[0])
	assert.Equal(t, base.Add(12*time.Minute), got[1])
}

func TestCloseSeriesSkipsBadBuckets(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := CloseSeries([]models.Candle{
		{Bucket: base, Symbol: "AAPL", Close: 10},
		{Bucket: base.Add(time.Minute), Symbol: "AAPL", Close: 0},
		{Bucket: base.Add(2 * time.Minute), Symbol: "AAPL", Close: 11},
	})
	assert.Equal(t, []float64{10, 11}, s.Values)
	assert.Equal(t, "AAPL", s.Metadata["symbol"])
	require.NoError(t, s.Validate())
}
