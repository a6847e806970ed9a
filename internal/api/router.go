package api

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/healthtracker/portal/internal/api/docs"
	"github.com/healthtracker/portal/internal/api/handler"
	"github.com/healthtracker/portal/internal/api/middleware"
	"github.com/healthtracker/portal/internal/core/ports"
	infrahttp "github.com/healthtracker/portal/internal/infrastructure/http"
	"github.com/healthtracker/portal/internal/infrastructure/http/handlers"
)

// Deps is everything the identity API needs to serve requests.
type Deps struct {
	AuthService ports.AuthService
	Log         zerolog.Logger
	Registry    *prometheus.Registry
	Checkers    []handlers.Checker
}

// NewRouter builds the identity service's Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := infrahttp.NewBase(infrahttp.Options{
		Service:  "identity",
		Log:      d.Log,
		Registry: d.Registry,
		Checkers: d.Checkers,
	})
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	authHandler := handler.NewAuthHandler(d.AuthService)
	requireToken := middleware.Auth(d.AuthService, handler.ClaimsKey)

	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/session", authHandler.Session, requireToken)
	auth.POST("/logout", authHandler.Logout, requireToken)

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
