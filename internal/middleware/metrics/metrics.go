package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anasbld/pos_system/internal/observability"
)

// Middleware records per-route request counts and latencies. The route
// template (c.Path) is used instead of the raw URL to keep label cardinality
// bounded.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			duration := time.Since(start).Seconds()
			labels := []string{c.Request().Method, c.Path(), strconv.Itoa(status)}
			observability.HTTPRequestDuration.WithLabelValues(labels...).Observe(duration)
			observability.HTTPRequestsTotal.WithLabelValues(labels...).Inc()

			return err
		}
	}
}
