package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	svcmetrics "FinCast/internal/service/metrics"
	"FinCast/internal/usecase"
	xhttp "FinCast/pkg/http"
	xlogger "FinCast/pkg/logger"
	"FinCast/pkg/util"

	"github.com/labstack/echo/v4"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// ForecastEchoHandler exposes the forecaster over HTTP.
type ForecastEchoHandler struct {
	logger     *xlogger.Logger
	forecaster *usecase.Forecaster
	checks     map[string]HealthCheck
}

func NewForecastEchoHandler(logger *xlogger.Logger, f *usecase.Forecaster, checks map[string]HealthCheck) *ForecastEchoHandler {
	return &ForecastEchoHandler{logger: logger, forecaster: f, checks: checks}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/forecast")
	g.POST("/train", h.Train)
	g.POST("/predict", h.Predict)
	g.GET("/symbol", h.Symbol)
	g.POST("/train/async", h.TrainAsync)
	g.GET("/weights", h.Weights)
	g.GET("/models", h.Models)
	g.GET("/keys", h.Keys)
}

// observe records latency and, for 4xx/5xx responses, the error count.
func observe(c echo.Context, endpoint string, start time.Time) {
	svcmetrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if c.Response().Status >= http.StatusBadRequest {
		svcmetrics.EndpointErrors.WithLabelValues(endpoint).Inc()
	}
}

func (h *ForecastEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toSeries(p models.SeriesPayload) (models.TimeSeriesData, error) {
	ts, err := util.ParseTimes(p.Timestamps)
	if err != nil {
		return models.TimeSeriesData{}, models.NewValidationError("timestamps", "%v", err)
	}
	return models.NewTimeSeries(ts, p.Values, p.Metadata)
}

func (h *ForecastEchoHandler) Train(c echo.Context) error {
	defer observe(c, "train", time.Now())
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	data, err := toSeries(req.Series)
	if err != nil {
		return h.fail(c, "train", err)
	}
	res, err := h.forecaster.Train(c.Request().Context(), req.Key, data)
	if err != nil {
		return h.fail(c, "train", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Predict(c echo.Context) error {
	defer observe(c, "predict", time.Now())
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	data, err := toSeries(req.Series)
	if err != nil {
		return h.fail(c, "predict", err)
	}
	res, err := h.forecaster.Predict(c.Request().Context(), req.Key, data, *req.Horizon)
	if err != nil {
		return h.fail(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Symbol(c echo.Context) error {
	defer observe(c, "symbol", time.Now())
	req := &models.SymbolForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.forecaster.ForecastSymbol(c.Request().Context(), usecase.SymbolParams{
		Symbol:  req.Symbol,
		N:       req.N,
		TF:      domrepo.NormalizeTimeframe(req.TF),
		Horizon: *req.Horizon,
		Retrain: req.Retrain,
	})
	if err != nil {
		return h.fail(c, "symbol forecast", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) TrainAsync(c echo.Context) error {
	defer observe(c, "train_async", time.Now())
	req := &models.TrainSymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)
	id, err := h.forecaster.ScheduleTraining(c.Request().Context(), usecase.SymbolParams{
		Symbol: req.Symbol,
		N:      req.N,
		TF:     tf,
	})
	if err != nil {
		return h.fail(c, "schedule training", err)
	}
	return xhttp.AcceptedResponse(c, map[string]string{
		"job_id": id,
		"key":    usecase.SymbolKey(req.Symbol, tf),
	})
}

func (h *ForecastEchoHandler) Weights(c echo.Context) error {
	defer observe(c, "weights", time.Now())
	req := &models.WeightsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.forecaster.Weights(req.Key)
	if err != nil {
		return h.fail(c, "weights", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Models(c echo.Context) error {
	defer observe(c, "models", time.Now())
	infos, err := h.forecaster.Models(c.QueryParam("key"))
	if err != nil {
		return h.fail(c, "models", err)
	}
	return xhttp.ListResponse(c, infos, int64(len(infos)))
}

func (h *ForecastEchoHandler) Keys(c echo.Context) error {
	keys := h.forecaster.Keys()
	sort.Strings(keys)
	return xhttp.ListResponse(c, keys, int64(len(keys)))
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}
