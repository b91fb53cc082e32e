package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Allower is satisfied by a per-key token bucket limiter.
type Allower interface {
	Allow(key string) bool
}

// RateLimit rejects requests once the client IP runs out of tokens. skip lets
// health and metrics checks bypass the limiter. deny writes the rejection;
// when nil a bare 429 body is sent.
func RateLimit(lim Allower, skip func(echo.Context) bool, deny echo.HandlerFunc) echo.MiddlewareFunc {
	if deny == nil {
		deny = func(c echo.Context) error {
			return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
				"status":  http.StatusTooManyRequests,
				"message": http.StatusText(http.StatusTooManyRequests),
			})
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if lim == nil || (skip != nil && skip(c)) {
				return next(c)
			}
			if !lim.Allow(c.RealIP()) {
				return deny(c)
			}
			return next(c)
		}
	}
}
