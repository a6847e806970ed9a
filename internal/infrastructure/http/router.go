package http

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/healthtracker/portal/internal/infrastructure/http/handlers"
)

// Options for NewBase. A nil Registry means the prometheus default registry.
type Options struct {
	Service  string
	Log      zerolog.Logger
	Registry *prometheus.Registry
	Checkers []handlers.Checker
}

// NewBase builds the Echo instance both services start from, with
// recovery, request ids, access logs, http metrics and health probes.
func NewBase(opts Options) *echo.Echo {
	log := opts.Log
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	}))

	promCfg := echoprometheus.MiddlewareConfig{
		Subsystem: opts.Service,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}
	metricsHandler := echoprometheus.NewHandler()
	if opts.Registry != nil {
		promCfg.Registerer = opts.Registry
		metricsHandler = echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: opts.Registry})
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(promCfg))

	e.GET("/health", handlers.NewHealthHandler(opts.Service).Liveness)
	e.GET("/health/ready", handlers.NewReadinessHandler(opts.Checkers...).Readiness)
	e.GET("/metrics", metricsHandler)

	return e
}
