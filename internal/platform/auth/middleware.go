package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	identityKey contextKey = "identity"

	// IdentityContextKey is the echo.Context key holding the *Identity.
	IdentityContextKey = "identity"
)

// TokenValidator resolves a raw bearer token. *Service satisfies it.
type TokenValidator interface {
	Validate(ctx context.Context, raw string) (*Identity, error)
}

// SessionGuard rejects requests without a valid bearer token with 401 and
// stores the resolved Identity on the request and echo contexts.
func SessionGuard(v TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return unauthorized(c, err)
			}

			id, err := v.Validate(c.Request().Context(), raw)
			if err != nil {
				var authErr *AuthError
				if errors.As(err, &authErr) {
					return unauthorized(c, authErr)
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to validate session").SetInternal(err)
			}

			c.Set(IdentityContextKey, id)
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", newAuthError(KindInvalidToken, errors.New("authorization scheme must be Bearer"))
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", newAuthError(KindInvalidToken, errors.New("empty bearer token"))
	}
	return token, nil
}

func unauthorized(c echo.Context, err error) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	msg := "authentication failed"
	var authErr *AuthError
	if errors.As(err, &authErr) {
		msg = authErr.Kind.String()
	}
	return echo.NewHTTPError(http.StatusUnauthorized, msg).SetInternal(err)
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the Identity stored by SessionGuard.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// UsernameFromContext returns the authenticated username or "".
func UsernameFromContext(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok {
		return id.Username
	}
	return ""
}
