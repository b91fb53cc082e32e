package api

import (
	"context"
	"errors"

	"FinCast/internal/domain/models"
	"FinCast/internal/services/ensemble"
	"FinCast/internal/usecase"
	xhttp "FinCast/pkg/http"
)

// toAppError maps domain errors to HTTP responses.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var (
		verr *models.ValidationError
		all  *ensemble.AllModelsFailedError
	)
	switch {
	case errors.As(err, &verr):
		return xhttp.BadRequestError(verr.Error()).
			WithCode("ERR_VALIDATION").
			WithField(verr.Field).
			WithParam("reason", verr.Reason)
	case errors.Is(err, models.ErrValidation):
		return xhttp.BadRequestError(err.Error()).WithCode("ERR_VALIDATION")
	case errors.Is(err, ensemble.ErrNotTrained):
		return xhttp.ConflictError(err.Error()).WithCode("ERR_NOT_TRAINED")
	case errors.Is(err, usecase.ErrTrainingInProgress):
		return xhttp.ConflictError(err.Error())
	case errors.Is(err, ensemble.ErrModelNotFound):
		return xhttp.NotFoundError(err.Error())
	case errors.As(err, &all):
		return xhttp.UnprocessableError(err.Error()).
			WithCode("ERR_ALL_MODELS_FAILED").
			WithParam("models", all.Names())
	case errors.Is(err, ensemble.ErrAllModelsFailed):
		return xhttp.UnprocessableError(err.Error()).WithCode("ERR_ALL_MODELS_FAILED")
	case errors.Is(err, ensemble.ErrNoContributingModels):
		return xhttp.UnprocessableError(err.Error()).WithCode("ERR_NO_CONTRIBUTING_MODELS")
	case errors.Is(err, usecase.ErrStoreDisabled), errors.Is(err, usecase.ErrQueueDisabled):
		return xhttp.UnavailableError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.UnavailableError("request timed out")
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
