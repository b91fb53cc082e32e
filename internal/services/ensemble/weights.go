package ensemble

import (
	"math"
	"sort"
)

// ComputeWeights maps validation errors to normalized inverse-error weights
// w_i = (1/(e_i+eps)) / sum_j 1/(e_j+eps). A single model gets 1; identical
// errors give uniform weights. Non-finite or negative errors are skipped.
func ComputeWeights(modelErrors map[string]float64, eps float64) map[string]float64 {
	names := make([]string, 0, len(modelErrors))
	for name, e := range modelErrors {
		if math.IsNaN(e) || math.IsInf(e, 0) || e < 0 {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]float64, len(names))
	switch len(names) {
	case 0:
		return out
	case 1:
		out[names[0]] = 1
		return out
	}

	identical := true
	first := modelErrors[names[0]]
	for _, name := range names[1:] {
		if modelErrors[name] != first {
			identical = false
			break
		}
	}
	if identical {
		u := 1 / float64(len(names))
		for _, name := range names {
			out[name] = u
		}
		return out
	}

	sum := 0.0
	raw := make([]float64, len(names))
	for i, name := range names {
		raw[i] = 1 / (modelErrors[name] + eps)
		sum += raw[i]
	}
	for i, name := range names {
		out[name] = raw[i] / sum
	}
	return out
}
