// Package server assembles the HTTP surface: global middleware, health and
// metrics endpoints, and the domain routes.
package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/doctorsportal/portal/internal/config"
	"github.com/doctorsportal/portal/internal/domain/booking"
	"github.com/doctorsportal/portal/internal/domain/catalog"
	"github.com/doctorsportal/portal/internal/domain/identity"
	"github.com/doctorsportal/portal/internal/platform/auth"
	"github.com/doctorsportal/portal/internal/platform/middleware"
	"github.com/doctorsportal/portal/internal/platform/telemetry"
)

const greeting = "Hello from doctors portal"

type Options struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Tokens   *auth.Tokens
	Gate     *auth.Gate
	Identity *identity.Service
	Catalog  *catalog.Service
	Booking  *booking.Service

	// Limiter defaults to an in-memory token bucket sized from Config.
	Limiter middleware.Limiter
	// Tracing is optional; without it no spans are recorded.
	Tracing *telemetry.Provider
	// DBHealth serves /health/db when set.
	DBHealth echo.HandlerFunc
}

// New builds the Echo instance. It does not start listening.
func New(o Options) *echo.Echo {
	cfg := o.Config
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	middleware.RegisterMetrics()
	booking.RegisterMetrics()

	limiter := o.Limiter
	if limiter == nil {
		limiter = middleware.NewMemoryLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		})
	}

	// Global middleware
	e.Use(middleware.Recovery(o.Logger))
	e.Use(middleware.RequestID())
	if o.Tracing != nil {
		e.Use(o.Tracing.TracingMiddleware())
	}
	e.Use(middleware.Logger(o.Logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		ExposeHeaders: []string{"Link", "Retry-After", echo.HeaderContentDisposition},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout, isOperational))
	}
	e.Use(middleware.RateLimit(limiter, o.Logger))
	e.Use(middleware.Metrics())

	// Operational endpoints
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, greeting)
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if o.DBHealth != nil {
		e.GET("/health/db", o.DBHealth)
	}
	e.GET("/metrics", middleware.MetricsHandler())

	// Domain routes
	authn := auth.RequireIdentity(o.Tokens)
	admin := auth.RequireAdmin(o.Gate)
	api := e.Group("")

	catalog.NewHandler(o.Catalog).RegisterRoutes(api)
	identity.NewHandler(o.Identity, o.Tokens).RegisterRoutes(api, authn, admin)
	booking.NewHandler(o.Booking).RegisterRoutes(api, authn, admin)

	return e
}

func isOperational(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/health")
}
