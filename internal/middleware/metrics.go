package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"coi-proxy-go/internal/metrics"
)

// MetricsMiddleware returns an Echo middleware that records Prometheus metrics
// for each inbound request. metricsPath is the exposition route, labelled
// separately from proxied traffic.
func MetricsMiddleware(m *metrics.Metrics, metricsPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()

			// A returned error has no status yet; let the error handler
			// write it so the recorded code matches the response.
			if err := next(c); err != nil {
				c.Error(err)
			}

			status := strconv.Itoa(c.Response().Status)
			method := metrics.NormalizeMethod(c.Request().Method)
			route := metrics.NormalizeRoute(c.Request().URL.Path, metricsPath)
			duration := time.Since(start).Seconds()

			m.RequestsTotal.WithLabelValues(method, status, route).Inc()
			m.RequestDuration.WithLabelValues(method, status, route).Observe(duration)

			return nil
		}
	}
}
