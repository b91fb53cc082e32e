package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseWeightedAverage(t *testing.T) {
	f, err := Fuse(
		map[string][]float64{"a": {10, 11}, "b": {12, 13}},
		map[string]float64{"a": 0.5, "b": 0.5},
		map[string]float64{"a": 1, "b": 1},
	)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{11, 12}, f.Predictions, 1e-12)
	assert.Equal(t, []string{"a", "b"}, f.Used)
	assert.InDelta(t, 0.5, f.Accuracy, 1e-12)
	assert.Greater(t, f.Agreement, 0.8)
	assert.Less(t, f.Agreement, 1.0)
	assert.InDelta(t, f.Agreement*f.Accuracy, f.Confidence, 1e-12)
}

func TestFuseRenormalizesOverContributors(t *testing.T) {
	f, err := Fuse(
		map[string][]float64{"a": {10}, "c": {20}},
		map[string]float64{"a": 0.2, "b": 0.6, "c": 0.2},
		map[string]float64{"a": 1, "b": 1, "c": 1},
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f.Weights["a"], 1e-12)
	assert.InDelta(t, 0.5, f.Weights["c"], 1e-12)
	assert.NotContains(t, f.Weights, "b")
	assert.InDelta(t, 15.0, f.Predictions[0], 1e-12)
}

func TestFuseIgnoresUnweightedForecasts(t *testing.T) {
	f, err := Fuse(
		map[string][]float64{"a": {1, 2}, "ghost": {100, 100}},
		map[string]float64{"a": 1},
		map[string]float64{"a": 0},
	)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, f.Predictions)
	assert.Equal(t, 1.0, f.Confidence)
}

func TestFuseSingleModelConfidenceIsAccuracy(t *testing.T) {
	f, err := Fuse(
		map[string][]float64{"solo": {5, 6, 7}},
		map[string]float64{"solo": 1},
		map[string]float64{"solo": 3},
	)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f.Agreement)
	assert.InDelta(t, 0.25, f.Confidence, 1e-12)
}

func TestFuseDisagreementAroundZero(t *testing.T) {
	f, err := Fuse(
		map[string][]float64{"up": {1}, "down": {-1}},
		map[string]float64{"up": 0.5, "down": 0.5},
		map[string]float64{"up": 0, "down": 0},
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, f.Predictions[0], 1e-12)
	assert.Equal(t, 0.0, f.Agreement)
	assert.Equal(t, 0.0, f.Confidence)
}

func TestFuseNoContributingModels(t *testing.T) {
	_, err := Fuse(
		map[string][]float64{"a": {1}},
		map[string]float64{"b": 1},
		nil,
	)
	assert.ErrorIs(t, err, ErrNoContributingModels)

	_, err = Fuse(nil, map[string]float64{"a": 1}, nil)
	assert.ErrorIs(t, err, ErrNoContributingModels)
}

func TestFuseIsDeterministic(t *testing.T) {
	per := map[string][]float64{"a": {0.1, 0.7}, "b": {0.3, 0.2}, "c": {0.9, 0.4}, "d": {0.05, 0.11}}
	w := map[string]float64{"a": 0.13, "b": 0.29, "c": 0.41, "d": 0.17}
	first, err := Fuse(per, w, nil)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Fuse(per, w, nil)
		require.NoError(t, err)
		assert.Equal(t, first.Predictions, again.Predictions)
		assert.Equal(t, first.Confidence, again.Confidence)
	}
}
