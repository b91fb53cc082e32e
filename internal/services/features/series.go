package features

import (
	"math"
	"sort"
	"time"

	"FinCast/internal/domain/models"
)

// CloseSeries converts candles (oldest first) into a close-price series.
// Buckets with non-positive or non-finite closes are dropped.
func CloseSeries(candles []models.Candle) models.TimeSeriesData {
	out := models.TimeSeriesData{
		Timestamps: make([]time.Time, 0, len(candles)),
		Values:     make([]float64, 0, len(candles)),
	}
	for _, c := range candles {
		if c.Close <= 0 || math.IsNaN(c.Close) || math.IsInf(c.Close, 0) {
			continue
		}
		out.Timestamps = append(out.Timestamps, c.Bucket)
		out.Values = append(out.Values, c.Close)
	}
	if len(candles) > 0 {
		out.Metadata = map[string]any{"symbol": candles[0].Symbol}
	}
	return out
}

// FillGaps carries the last finite value forward over NaN/Inf entries.
// Leading gaps take the first finite value. Returns false if no value is finite.
func FillGaps(values []float64) ([]float64, bool) {
	out := make([]float64, len(values))
	first := -1
	for i, v := range values {
		if isFinite(v) {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, false
	}
	last := values[first]
	for i, v := range values {
		if isFinite(v) {
			last = v
		}
		out[i] = last
	}
	return out, true
}

// MedianStep returns the median spacing between consecutive timestamps.
func MedianStep(ts []time.Time) time.Duration {
	if len(ts) < 2 {
		return 0
	}
	steps := make([]time.Duration, 0, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		steps = append(steps, ts[i].Sub(ts[i-1]))
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })
	mid := len(steps) / 2
	if len(steps)%2 == 1 {
		return steps[mid]
	}
	return (steps[mid-1] + steps[mid]) / 2
}

// ProjectTimestamps extends ts by horizon steps of the median spacing.
func ProjectTimestamps(ts []time.Time, horizon int) []time.Time {
	step := MedianStep(ts)
	if step <= 0 || horizon <= 0 {
		return nil
	}
	last := ts[len(ts)-1]
	out := make([]time.Time, horizon)
	for h := range out {
		out[h] = last.Add(time.Duration(h+1) * step)
	}
	return out
}
