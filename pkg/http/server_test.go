package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct{}

type sampleRequest struct {
	Key     string `json:"key" default:"default" validate:"required"`
	Horizon int    `json:"horizon" default:"1" validate:"gte=1,lte=10"`
}

func (echoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/sample", func(c echo.Context) error {
		var req sampleRequest
		if errs := ReadAndValidateRequest(c, &req); errs != nil {
			return BadRequestResponse(c, errs)
		}
		if req.Key == "missing" {
			return AppErrorResponse(c, NotFoundErrorf("key %s not found", req.Key))
		}
		return SuccessResponse(c, req)
	})
}

func newTestServer() *Server {
	return NewServer(nil, []Handler{echoHandler{}}, WithRegistry(prometheus.NewRegistry()))
}

func do(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/sample", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestReadAndValidateRequestDefaults(t *testing.T) {
	rec := do(newTestServer(), `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data sampleRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, sampleRequest{Key: "default", Horizon: 1}, resp.Data)
}

func TestReadAndValidateRequestRejects(t *testing.T) {
	rec := do(newTestServer(), `{"horizon": 50}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Data []ValidationError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "ERR_LTE", resp.Data[0].Code)
	assert.Equal(t, "horizon", resp.Data[0].Field)
}

func TestAppErrorResponseUsesStatus(t *testing.T) {
	rec := do(newTestServer(), `{"key":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()
	do(s, `{}`)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestMetricsEndpointCanMove(t *testing.T) {
	s := NewServer(nil, nil, WithRegistry(prometheus.NewRegistry()), WithMetricsPath("/internal/metrics"))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func TestRateLimitedRequestUsesErrorEnvelope(t *testing.T) {
	s := NewServer(nil, []Handler{echoHandler{}}, WithRegistry(prometheus.NewRegistry()), WithRateLimiter(denyAll{}))

	rec := do(s, `{}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp struct {
		Status int         `json:"status"`
		Data   []*AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "ERR_RATE_LIMITED", resp.Data[0].Code)
	assert.Contains(t, resp.Data[0].Params, "client")

	// metrics stay reachable
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
