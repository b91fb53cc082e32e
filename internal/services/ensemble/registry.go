package ensemble

import (
	"fmt"
	"sort"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/service"
)

// Registry is a fixed, ordered set of uniquely named models.
type Registry struct {
	models []service.ForecastModel
	byName map[string]service.ForecastModel
}

// NewRegistry builds a registry. Names must be unique and non-empty.
func NewRegistry(ms ...service.ForecastModel) (*Registry, error) {
	if len(ms) == 0 {
		return nil, models.NewValidationError("models", "at least one model is required")
	}
	r := &Registry{
		models: make([]service.ForecastModel, 0, len(ms)),
		byName: make(map[string]service.ForecastModel, len(ms)),
	}
	for _, m := range ms {
		if m == nil {
			return nil, models.NewValidationError("models", "nil model")
		}
		name := m.Name()
		if name == "" {
			return nil, models.NewValidationError("models", "model with empty name")
		}
		if _, ok := r.byName[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModel, name)
		}
		r.byName[name] = m
		r.models = append(r.models, m)
	}
	return r, nil
}

// All returns the models in registration order.
func (r *Registry) All() []service.ForecastModel {
	return append([]service.ForecastModel(nil), r.models...)
}

// Get looks a model up by name.
func (r *Registry) Get(name string) (service.ForecastModel, error) {
	m, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return m, nil
}

// Names returns the model names, sorted. All keeps registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.models))
	for i, m := range r.models {
		out[i] = m.Name()
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered models.
func (r *Registry) Len() int { return len(r.models) }

// Describe returns ModelInfo for every model.
func (r *Registry) Describe() []models.ModelInfo {
	out := make([]models.ModelInfo, len(r.models))
	for i, m := range r.models {
		out[i] = m.Describe()
	}
	return out
}
