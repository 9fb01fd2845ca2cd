package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingVerifierSigningKey = errors.New("session verifier: signing key required")
	ErrMissingVerifierCookieName = errors.New("session verifier: cookie name required")
	ErrMissingSessionToken       = errors.New("session verifier: token required")
	ErrInvalidSessionToken       = errors.New("session verifier: invalid token")
	ErrExpiredSessionToken       = errors.New("session verifier: token expired")
)

// SessionVerifierConfig describes how to validate issued session tokens.
type SessionVerifierConfig struct {
	SigningSecret []byte
	CookieName    string
	Clock         func() time.Time
}

// SessionVerifier validates HS256 session tokens carried by the access cookie.
type SessionVerifier struct {
	signingSecret []byte
	cookieName    string
	clock         func() time.Time
}

// NewSessionVerifier constructs a verifier with the provided configuration.
func NewSessionVerifier(cfg SessionVerifierConfig) (*SessionVerifier, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingVerifierSigningKey
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingVerifierCookieName
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionVerifier{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		cookieName:    cookieName,
		clock:         clock,
	}, nil
}

// CookieName returns the cookie name configured for session lookups.
func (v *SessionVerifier) CookieName() string {
	return v.cookieName
}

// VerifyToken validates the supplied token string and returns the identity claims.
func (v *SessionVerifier) VerifyToken(tokenString string) (Claims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return Claims{}, ErrMissingSessionToken
	}

	claims := &sessionTokenClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidSessionToken, t.Method.Alg())
			}
			return v.signingSecret, nil
		},
		jwt.WithTimeFunc(v.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredSessionToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return Claims{}, ErrInvalidSessionToken
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.Email) == "" {
		return Claims{}, fmt.Errorf("%w: missing identity claims", ErrInvalidSessionToken)
	}
	return Claims{Subject: claims.Subject, Email: claims.Email}, nil
}

// VerifyRequest extracts the configured cookie from the request and validates it.
func (v *SessionVerifier) VerifyRequest(r *http.Request) (Claims, error) {
	if r == nil {
		return Claims{}, ErrMissingSessionToken
	}
	cookie, err := r.Cookie(v.cookieName)
	if err != nil || cookie == nil {
		return Claims{}, ErrMissingSessionToken
	}
	return v.VerifyToken(cookie.Value)
}
