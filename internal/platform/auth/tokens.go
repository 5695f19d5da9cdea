package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims is the JWT payload of a bearer token. The jti claim names
// the server-side session.
type sessionClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// tokenIssuer signs and verifies HS256 session tokens.
type tokenIssuer struct {
	key     []byte
	issuer  string
	nowFunc func() time.Time
}

func (ti *tokenIssuer) mint(sess Session) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   sess.Username,
			Issuer:    ti.issuer,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
		Roles: sess.Roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// parse verifies the signature, algorithm, issuer and expiry of raw.
// Expired tokens yield ErrExpiredToken; everything else ErrInvalidToken.
func (ti *tokenIssuer) parse(raw string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, newAuthError(KindExpiredToken, err)
		}
		return nil, newAuthError(KindInvalidToken, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, newAuthError(KindInvalidToken, errors.New("token is missing jti or sub"))
	}
	return claims, nil
}

// ResolveSigningKey returns the hex-decoded signing key, or a random 32-byte
// key when hexKey is empty. The second return value is true when a random
// key was generated.
func ResolveSigningKey(hexKey string) ([]byte, bool, error) {
	if hexKey != "" {
		decoded, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, false, fmt.Errorf("invalid AUTH_SIGNING_KEY hex value: %w", err)
		}
		if len(decoded) < 32 {
			return nil, false, fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(decoded))
		}
		return decoded, false, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random signing key: %w", err)
	}
	return key, true, nil
}
