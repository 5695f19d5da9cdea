package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const defaultTokenTTL = time.Hour

// ServiceConfig configures token minting.
type ServiceConfig struct {
	SigningKey []byte
	Issuer     string
	TokenTTL   time.Duration
}

// Profile is the public view of a credential.
type Profile struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// Token is the result of a successful login.
type Token struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	Profile   Profile   `json:"profile"`
}

// Identity is the authenticated principal resolved from a bearer token.
type Identity struct {
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	SessionID string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service authenticates credentials and validates the session tokens it
// issues. It holds no mutable state of its own; sessions live in the store.
type Service struct {
	creds    *CredentialStore
	sessions SessionStore
	tokens   *tokenIssuer
	ttl      time.Duration
	nowFunc  func() time.Time
	logger   zerolog.Logger
}

func NewService(creds *CredentialStore, sessions SessionStore, cfg ServiceConfig, logger zerolog.Logger) (*Service, error) {
	if creds == nil {
		return nil, errors.New("credential store is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if len(cfg.SigningKey) < 32 {
		return nil, fmt.Errorf("signing key must be at least 32 bytes, got %d", len(cfg.SigningKey))
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	s := &Service{
		creds:    creds,
		sessions: sessions,
		ttl:      ttl,
		nowFunc:  time.Now,
		logger:   logger.With().Str("component", "auth").Logger(),
	}
	s.tokens = &tokenIssuer{
		key:     cfg.SigningKey,
		issuer:  cfg.Issuer,
		nowFunc: func() time.Time { return s.nowFunc() },
	}
	return s, nil
}

// Authenticate verifies the username/password pair and opens a new session.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Token, error) {
	cred, err := s.creds.Verify(username, password)
	if err != nil {
		s.logger.Info().Str("username", username).Msg("login rejected")
		return nil, err
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	now := s.nowFunc().UTC().Truncate(time.Second)
	sess := Session{
		ID:        id,
		Username:  cred.Username,
		Roles:     append([]string(nil), cred.Roles...),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	signed, err := s.tokens.mint(sess)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.logger.Info().Str("username", cred.Username).Time("expires_at", sess.ExpiresAt).Msg("session issued")
	return &Token{
		Token:     signed,
		TokenType: "bearer",
		ExpiresAt: sess.ExpiresAt,
		Profile: Profile{
			Username: cred.Username,
			Email:    cred.Email,
			Roles:    append([]string(nil), cred.Roles...),
		},
	}, nil
}

// Validate resolves a bearer token to its Identity. It does not modify the
// session store.
func (s *Service) Validate(ctx context.Context, raw string) (*Identity, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}
	claims, err := s.tokens.parse(raw)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, newAuthError(KindInvalidToken, err)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !constantTimeEqual(sess.Username, claims.Subject) {
		return nil, newAuthError(KindInvalidToken, errors.New("token subject does not match session"))
	}
	if sess.Expired(s.nowFunc()) {
		return nil, ErrExpiredToken
	}

	return &Identity{
		Username:  sess.Username,
		Roles:     append([]string(nil), sess.Roles...),
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// Logout ends the session behind raw.
func (s *Service) Logout(ctx context.Context, raw string) error {
	claims, err := s.tokens.parse(raw)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, claims.ID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return newAuthError(KindInvalidToken, err)
		}
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info().Str("username", claims.Subject).Msg("session closed")
	return nil
}

// Profile returns the public profile for username.
func (s *Service) Profile(username string) (Profile, bool) {
	cred, ok := s.creds.Lookup(username)
	if !ok {
		return Profile{}, false
	}
	return Profile{Username: cred.Username, Email: cred.Email, Roles: append([]string(nil), cred.Roles...)}, true
}
