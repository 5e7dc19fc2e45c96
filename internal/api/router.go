package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/policynav/accounts/docs"
	"github.com/policynav/accounts/internal/api/handler"
	"github.com/policynav/accounts/internal/api/middleware"
	"github.com/policynav/accounts/internal/core/ports"
	"github.com/policynav/accounts/internal/core/validation"
	"github.com/policynav/accounts/internal/infrastructure/http/handlers"
)

// Deps are the built services the router exposes.
type Deps struct {
	Log         zerolog.Logger
	Sessions    ports.SessionService
	Credentials ports.CredentialService
	Recovery    ports.RecoveryService
	Policy      validation.Policy
	// Readiness checks keyed by dependency name (e.g. "sqlite", "redis").
	Readiness map[string]handlers.Checker
	// Registerer for HTTP metrics; nil means the default registry.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "accounts",
		Subsystem:  "http",
		Registerer: d.Registerer,
	}))

	// --- Handlers ---
	sessionHandler := handler.NewSessionHandler(d.Sessions)
	authHandler := handler.NewAuthHandler(d.Sessions, d.Credentials, d.Policy)
	recoveryHandler := handler.NewRecoveryHandler(d.Sessions, d.Recovery)
	accountHandler := handler.NewAccountHandler(d.Credentials)

	// --- Session bootstrap (no token yet) ---
	e.POST("/v1/session", sessionHandler.Open)

	v1 := e.Group("/v1", middleware.Session(d.Sessions))

	// --- Auth routes ---
	v1.GET("/auth/questions", authHandler.Questions)
	v1.POST("/auth/password-strength", authHandler.PasswordStrength)
	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)
	v1.POST("/auth/logout", authHandler.Logout)
	v1.GET("/me", authHandler.Me, middleware.RequireLogin())

	// --- Recovery wizard ---
	v1.GET("/recovery", recoveryHandler.Status)
	v1.DELETE("/recovery", recoveryHandler.Cancel)
	v1.POST("/recovery/email", recoveryHandler.Email)
	v1.POST("/recovery/code", recoveryHandler.Code)
	v1.POST("/recovery/code/resend", recoveryHandler.Resend)
	v1.POST("/recovery/answer", recoveryHandler.Answer)
	v1.POST("/recovery/password", recoveryHandler.Password)

	// --- Admin ---
	v1.GET("/admin/accounts", accountHandler.List, middleware.RequireAdmin())

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	readinessHandler := handlers.NewReadinessHandler(d.Readiness)

	e.GET("/health", healthHandler.Liveness)           // liveness probe
	e.GET("/health/ready", readinessHandler.Readiness) // readiness probe

	// --- Operations ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
