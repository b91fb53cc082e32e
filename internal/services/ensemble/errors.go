package ensemble

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"FinCast/internal/domain/models"
)

var (
	ErrValidation           = models.ErrValidation
	ErrAllModelsFailed      = errors.New("all models failed")
	ErrNoContributingModels = errors.New("no contributing models")
	ErrNotTrained           = errors.New("ensemble not trained")
	ErrModelNotFound        = errors.New("model not found")
	ErrDuplicateModel       = errors.New("duplicate model name")
)

// Failure stages.
const (
	StageFit      = "fit"
	StagePredict  = "predict"
	StageValidate = "validate"
	StageTimeout  = "timeout"
	StageCanceled = "canceled"
	StagePanic    = "panic"
	StageBusy     = "busy"
)

// ModelFailure records why a single model was excluded from a run.
type ModelFailure struct {
	Model string
	Stage string
	Err   error
}

func (f *ModelFailure) Error() string {
	return fmt.Sprintf("model %s: %s: %v", f.Model, f.Stage, f.Err)
}

func (f *ModelFailure) Unwrap() error { return f.Err }

func (f *ModelFailure) info() models.ModelFailureInfo {
	return models.ModelFailureInfo{Model: f.Model, Stage: f.Stage, Reason: f.Err.Error()}
}

// AllModelsFailedError carries every per-model failure of a training run.
type AllModelsFailedError struct {
	Failures map[string]*ModelFailure
}

// Names returns the failed model names, sorted.
func (e *AllModelsFailedError) Names() []string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *AllModelsFailedError) Error() string {
	names := e.Names()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		f := e.Failures[name]
		parts = append(parts, fmt.Sprintf("%s(%s): %v", name, f.Stage, f.Err))
	}
	return fmt.Sprintf("%s: %s", ErrAllModelsFailed, strings.Join(parts, "; "))
}

func (e *AllModelsFailedError) Is(target error) bool { return target == ErrAllModelsFailed }

func failureInfos(failures map[string]*ModelFailure) map[string]models.ModelFailureInfo {
	if len(failures) == 0 {
		return nil
	}
	out := make(map[string]models.ModelFailureInfo, len(failures))
	for name, f := range failures {
		out[name] = f.info()
	}
	return out
}

func failedNames(failures map[string]*ModelFailure) []string {
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
