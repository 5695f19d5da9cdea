package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/patient360/portal/internal/platform/validation"
)

type loginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type statusResponse struct {
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username"`
	Email         string    `json:"email,omitempty"`
	Roles         []string  `json:"roles"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the login endpoint on public and the session
// endpoints on protected, which must already carry SessionGuard. Extra
// middleware such as a rate limiter applies to login only.
func (h *Handler) RegisterRoutes(public, protected *echo.Group, loginMW ...echo.MiddlewareFunc) {
	public.POST("/auth/login", h.Login, loginMW...)
	protected.GET("/auth/status", h.Status)
	protected.POST("/auth/logout", h.Logout)
}

// Login accepts form-encoded or JSON credentials.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return validation.BindError(err)
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	tok, err := h.svc.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create session").SetInternal(err)
	}
	return c.JSON(http.StatusOK, tok)
}

func (h *Handler) Status(c echo.Context) error {
	id, ok := IdentityFromContext(c.Request().Context())
	if !ok {
		return unauthorized(c, ErrMissingToken)
	}
	profile, _ := h.svc.Profile(id.Username)
	return c.JSON(http.StatusOK, statusResponse{
		Authenticated: true,
		Username:      id.Username,
		Email:         profile.Email,
		Roles:         id.Roles,
		ExpiresAt:     id.ExpiresAt,
	})
}

func (h *Handler) Logout(c echo.Context) error {
	raw, err := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return unauthorized(c, err)
	}
	if err := h.svc.Logout(c.Request().Context(), raw); err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return unauthorized(c, authErr)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to end session").SetInternal(err)
	}
	return c.NoContent(http.StatusNoContent)
}
