package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coi-proxy-go/internal/config"
	"coi-proxy-go/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance. Reserved
// local routes win over the catch-all; every other path goes to the origin.
// Any only covers the methods Echo knows, so the not-found route catches
// the rest (PURGE, MKCOL and friends) and forwards them as well.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.Any("/*", proxy.Handle)
	e.RouteNotFound("/*", proxy.Handle)
}
