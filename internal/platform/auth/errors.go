package auth

import "errors"

// AuthErrorKind classifies authentication failures. Every kind maps to
// HTTP 401 at the transport layer.
type AuthErrorKind int

const (
	KindInvalidCredentials AuthErrorKind = iota + 1
	KindMissingToken
	KindInvalidToken
	KindExpiredToken
)

func (k AuthErrorKind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindMissingToken:
		return "missing authorization header"
	case KindInvalidToken:
		return "invalid token"
	case KindExpiredToken:
		return "token expired"
	default:
		return "authentication failed"
	}
}

// AuthError is returned by the credential store and the session guard.
// errors.Is matches on Kind, so callers can compare against the exported
// sentinels regardless of the wrapped cause.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidCredentials = &AuthError{Kind: KindInvalidCredentials}
	ErrMissingToken       = &AuthError{Kind: KindMissingToken}
	ErrInvalidToken       = &AuthError{Kind: KindInvalidToken}
	ErrExpiredToken       = &AuthError{Kind: KindExpiredToken}

	// ErrSessionNotFound is returned by SessionStore implementations.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned by Put for a session with no lifetime
	// left.
	ErrSessionExpired = errors.New("session already expired")
)

func newAuthError(kind AuthErrorKind, cause error) *AuthError {
	return &AuthError{Kind: kind, Err: cause}
}
