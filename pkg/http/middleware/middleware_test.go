package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	applogger "FinCast/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type denyAfter struct{ left int }

func (d *denyAfter) Allow(string) bool {
	d.left--
	return d.left >= 0
}

func TestRateLimit(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(&denyAfter{left: 1}, func(c echo.Context) bool { return c.Path() == "/healthz" }, nil))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	codes := make([]int, 0, 3)
	for _, p := range []string{"/x", "/x", "/healthz"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 429, 200}, codes)
}

func TestRateLimitCustomDeny(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(&denyAfter{left: 0}, nil, func(c echo.Context) error {
		return c.String(http.StatusTooManyRequests, "slow down")
	}))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "slow down", rec.Body.String())
}

func TestRecover(t *testing.T) {
	e := echo.New()
	e.Use(Recover(applogger.Nop()))
	e.GET("/boom", func(echo.Context) error { panic("boom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsCountsByRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/forecast/:key", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, k := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forecast/"+k, nil))
	}
	got := testutil.ToFloat64(m.requests.WithLabelValues("/api/forecast/:key", http.MethodGet, "2xx"))
	assert.Equal(t, 2.0, got)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(0))
}
