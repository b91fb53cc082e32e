package ensemble

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sum(m map[string]float64) float64 {
	s := 0.0
	for _, v := range m {
		s += v
	}
	return s
}

func TestComputeWeights(t *testing.T) {
	tests := []struct {
		name   string
		errs   map[string]float64
		expect map[string]float64
	}{
		{
			name:   "inverse error proportional",
			errs:   map[string]float64{"a": 2.0, "b": 4.0},
			expect: map[string]float64{"a": 2.0 / 3.0, "b": 1.0 / 3.0},
		},
		{
			name:   "single model",
			errs:   map[string]float64{"only": 17.5},
			expect: map[string]float64{"only": 1},
		},
		{
			name:   "identical errors are uniform",
			errs:   map[string]float64{"a": 3, "b": 3, "c": 3},
			expect: map[string]float64{"a": 1.0 / 3, "b": 1.0 / 3, "c": 1.0 / 3},
		},
		{
			name:   "all zero errors are uniform",
			errs:   map[string]float64{"a": 0, "b": 0},
			expect: map[string]float64{"a": 0.5, "b": 0.5},
		},
		{
			name:   "non-finite errors are skipped",
			errs:   map[string]float64{"a": 1, "bad": math.NaN(), "neg": -1},
			expect: map[string]float64{"a": 1},
		},
		{
			name:   "empty",
			errs:   map[string]float64{},
			expect: map[string]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeWeights(tt.errs, 1e-6)
			assert.Len(t, got, len(tt.expect))
			for name, w := range tt.expect {
				assert.InDelta(t, w, got[name], 1e-6, name)
			}
			if len(got) > 0 {
				assert.InDelta(t, 1.0, sum(got), 1e-12)
			}
		})
	}
}

func TestComputeWeightsZeroErrorDominates(t *testing.T) {
	got := ComputeWeights(map[string]float64{"perfect": 0, "meh": 1}, 1e-6)
	assert.False(t, math.IsInf(got["perfect"], 0))
	assert.Greater(t, got["perfect"], 0.999)
	assert.InDelta(t, 1.0, sum(got), 1e-12)
}

func TestComputeWeightsLowerErrorHigherWeight(t *testing.T) {
	got := ComputeWeights(map[string]float64{"a": 0.5, "b": 1, "c": 5}, 1e-6)
	assert.Greater(t, got["a"], got["b"])
	assert.Greater(t, got["b"], got["c"])
}
