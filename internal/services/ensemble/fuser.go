package ensemble

import (
	"fmt"
	"math"
	"sort"

	"FinCast/internal/services/features"
)

// Fusion is the weighted combination of per-model forecasts.
type Fusion struct {
	Predictions []float64
	// Weights actually applied, renormalized over contributing models.
	Weights    map[string]float64
	Confidence float64
	Agreement  float64
	Accuracy   float64
	Used       []string
}

// Fuse combines per-model forecasts with the given weights. Only models
// present in both maps with a positive weight and a finite forecast
// contribute; their weights are renormalized to sum to 1.
//
// Confidence = agreement * accuracy where agreement is 1 minus the mean
// per-step coefficient of variation across contributing forecasts and
// accuracy is 1/(1+mean validation error) of the contributing models.
func Fuse(perModel map[string][]float64, weights map[string]float64, modelErrors map[string]float64) (*Fusion, error) {
	names := make([]string, 0, len(perModel))
	for name := range perModel {
		names = append(names, name)
	}
	sort.Strings(names)

	horizon := -1
	used := make([]string, 0, len(names))
	total := 0.0
	for _, name := range names {
		w, ok := weights[name]
		if !ok || !(w > 0) || math.IsInf(w, 0) {
			continue
		}
		preds := perModel[name]
		if len(preds) == 0 || !features.AllFinite(preds) {
			continue
		}
		if horizon < 0 {
			horizon = len(preds)
		} else if len(preds) != horizon {
			continue
		}
		used = append(used, name)
		total += w
	}
	if len(used) == 0 || total <= 0 {
		return nil, fmt.Errorf("%w: none of %d forecasts matched a weighted model", ErrNoContributingModels, len(perModel))
	}

	applied := make(map[string]float64, len(used))
	for _, name := range used {
		applied[name] = weights[name] / total
	}

	out := make([]float64, horizon)
	step := make([]float64, len(used))
	cvSum := 0.0
	for t := 0; t < horizon; t++ {
		for i, name := range used {
			v := perModel[name][t]
			out[t] += applied[name] * v
			step[i] = v
		}
		cvSum += features.CoefficientOfVariation(step)
	}

	agreement := features.Clamp01(1 - cvSum/float64(horizon))

	errs := make([]float64, 0, len(used))
	for _, name := range used {
		if e, ok := modelErrors[name]; ok && !math.IsNaN(e) && !math.IsInf(e, 0) {
			errs = append(errs, e)
		}
	}
	accuracy := features.Clamp01(1 / (1 + features.Mean(errs)))

	return &Fusion{
		Predictions: out,
		Weights:     applied,
		Confidence:  features.Clamp01(agreement * accuracy),
		Agreement:   agreement,
		Accuracy:    accuracy,
		Used:        used,
	}, nil
}
