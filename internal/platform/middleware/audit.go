package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/patient360/portal/internal/platform/auth"
)

// Audit logs access to patient records and the chatbot: who, what, and
// the resulting status. Other paths pass through untouched.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			resource := auditResource(path)
			if resource == "" {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			rid, _ := c.Get("request_id").(string)

			evt := logger.Info()
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				evt = logger.Warn()
			}
			evt.
				Str("type", "audit").
				Str("request_id", rid).
				Str("username", auth.UsernameFromContext(c.Request().Context())).
				Str("resource", resource).
				Str("patient_id", patientIDFromPath(path)).
				Str("action", httpMethodToAction(req.Method, path)).
				Str("method", req.Method).
				Str("path", path).
				Str("remote_ip", c.RealIP()).
				Int("status", status).
				Msg("record_access")

			return err
		}
	}
}

// auditResource returns "patients" or "chatbot" for audited paths and ""
// for everything else.
func auditResource(path string) string {
	switch {
	case path == "/patients" || strings.HasPrefix(path, "/patients/"):
		return "patients"
	case path == "/chatbot" || strings.HasPrefix(path, "/chatbot/"):
		return "chatbot"
	}
	return ""
}

func httpMethodToAction(method, path string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	if path == "/patients" || path == "/patients/" {
		return "search"
	}
	return "read"
}

// patientIDFromPath extracts <id> from /patients/<id>.
func patientIDFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/patients/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}
