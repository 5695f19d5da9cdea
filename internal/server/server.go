// Package server assembles the HTTP surface: global middleware, public
// routes, and the session-guarded patient and chatbot routes.
package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/patient360/portal/internal/config"
	"github.com/patient360/portal/internal/domain/chatbot"
	"github.com/patient360/portal/internal/domain/patient"
	"github.com/patient360/portal/internal/platform/auth"
	"github.com/patient360/portal/internal/platform/backend"
	"github.com/patient360/portal/internal/platform/db"
	"github.com/patient360/portal/internal/platform/middleware"
	"github.com/patient360/portal/internal/platform/openapi"
	"github.com/patient360/portal/internal/platform/validation"
)

// Deps are the already-constructed components New wires together.
type Deps struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Backend *backend.Handle
	Auth    *auth.Service
	Chat    *chatbot.Responder
}

type healthResponse struct {
	Message     string `json:"message"`
	DBConnected bool   `json:"db_connected"`
	Backend     string `json:"backend"`
	Version     string `json:"version"`
}

// New returns a configured echo instance. It does not start listening.
func New(d Deps) *echo.Echo {
	cfg := d.Config
	logger := d.Logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders: []string{"X-Total-Count", "Link", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, healthResponse{
			Message:     "Healthy",
			DBConnected: d.Backend.DBConnected(),
			Backend:     string(d.Backend.Mode),
			Version:     cfg.Version,
		})
	})
	e.GET("/health/db", db.HealthHandler(d.Backend.Pool))

	public := e.Group("")
	openapi.NewGenerator(cfg.Version, "").RegisterRoutes(public)

	// Audit runs outside the guard so rejected requests are recorded too.
	protected := e.Group("", middleware.Audit(logger), auth.SessionGuard(d.Auth))

	limitCfg := middleware.DefaultRateLimitConfig()
	limitCfg.RequestsPerSecond = cfg.LoginRateLimitRPS
	limitCfg.BurstSize = cfg.LoginRateLimitBurst
	loginLimit := middleware.RateLimit(limitCfg)
	auth.NewHandler(d.Auth).RegisterRoutes(public, protected, loginLimit)

	patientSvc := patient.NewService(d.Backend.Patients, validation.New(), logger)
	patient.NewHandler(patientSvc).RegisterRoutes(protected)

	chatbot.NewHandler(d.Chat).RegisterRoutes(protected)

	return e
}
