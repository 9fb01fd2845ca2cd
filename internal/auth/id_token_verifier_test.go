package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwksFixture struct {
	privateKey *rsa.PrivateKey
	server     *httptest.Server
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	jwksResponse := map[string]any{
		"keys": []any{map[string]string{
			"kty": "RSA",
			"alg": "RS256",
			"kid": "test-key",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(privateKey.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(privateKey.PublicKey.E)).Bytes()),
		}},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jwksResponse)
	}))
	t.Cleanup(server.Close)

	return &jwksFixture{privateKey: privateKey, server: server}
}

func (f *jwksFixture) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(f.privateKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func (f *jwksFixture) verifier(t *testing.T) *IDTokenVerifier {
	t.Helper()
	verifier, err := NewIDTokenVerifier(IDTokenVerifierConfig{
		Audience:   "test-client",
		JWKSURL:    f.server.URL,
		HTTPClient: f.server.Client(),
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return verifier
}

func TestIDTokenVerifierExtractsProfileClaims(t *testing.T) {
	fixture := newJWKSFixture(t)
	now := time.Now().UTC()

	signed := fixture.sign(t, jwt.MapClaims{
		"aud":     "test-client",
		"iss":     "https://accounts.google.com",
		"sub":     "google-sub-1",
		"email":   "user@example.com",
		"name":    "Example User",
		"picture": "https://example.com/avatar.png",
		"exp":     now.Add(5 * time.Minute).Unix(),
		"iat":     now.Unix(),
	})

	claims, err := fixture.verifier(t).Verify(context.Background(), signed)
	if err != nil {
		t.Fatalf("expected verification to succeed: %v", err)
	}
	if claims.Subject != "google-sub-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.Name != "Example User" {
		t.Fatalf("unexpected name %q", claims.Name)
	}
	if claims.AvatarURL != "https://example.com/avatar.png" {
		t.Fatalf("unexpected avatar url %q", claims.AvatarURL)
	}
}

func TestIDTokenVerifierRejectsUntrustedIssuer(t *testing.T) {
	fixture := newJWKSFixture(t)
	now := time.Now().UTC()

	signed := fixture.sign(t, jwt.MapClaims{
		"aud": "test-client",
		"iss": "https://evil.example.com",
		"sub": "google-sub-1",
		"exp": now.Add(5 * time.Minute).Unix(),
		"iat": now.Unix(),
	})

	_, err := fixture.verifier(t).Verify(context.Background(), signed)
	if !errors.Is(err, errUntrustedIssuer) {
		t.Fatalf("expected untrusted issuer error, got %v", err)
	}
}

func TestIDTokenVerifierRejectsMissingSubject(t *testing.T) {
	fixture := newJWKSFixture(t)
	now := time.Now().UTC()

	signed := fixture.sign(t, jwt.MapClaims{
		"aud": "test-client",
		"iss": "https://accounts.google.com",
		"exp": now.Add(5 * time.Minute).Unix(),
		"iat": now.Unix(),
	})

	_, err := fixture.verifier(t).Verify(context.Background(), signed)
	if !errors.Is(err, errMissingSubject) {
		t.Fatalf("expected missing subject error, got %v", err)
	}
}

func TestIDTokenVerifierRejectsMismatchedAudience(t *testing.T) {
	fixture := newJWKSFixture(t)
	now := time.Now().UTC()

	signed := fixture.sign(t, jwt.MapClaims{
		"aud": "unexpected-client",
		"iss": "https://accounts.google.com",
		"sub": "google-sub-1",
		"exp": now.Add(5 * time.Minute).Unix(),
		"iat": now.Unix(),
	})

	if _, err := fixture.verifier(t).Verify(context.Background(), signed); err == nil {
		t.Fatalf("expected verification to fail for mismatched audience")
	}
}

func TestNewIDTokenVerifierValidatesConfig(t *testing.T) {
	_, err := NewIDTokenVerifier(IDTokenVerifierConfig{JWKSURL: "https://example.com/jwks"})
	if !errors.Is(err, ErrInvalidVerifierConfig) {
		t.Fatalf("expected invalid verifier config error, got %v", err)
	}

	_, err = NewIDTokenVerifier(IDTokenVerifierConfig{Audience: "test-client", JWKSURL: " "})
	if !errors.Is(err, ErrInvalidVerifierConfig) {
		t.Fatalf("expected invalid verifier config error, got %v", err)
	}

	_, err = NewIDTokenVerifier(IDTokenVerifierConfig{
		Audience:       "test-client",
		JWKSURL:        "https://example.com/jwks",
		AllowedIssuers: []string{"", "  "},
	})
	if !errors.Is(err, ErrInvalidVerifierConfig) {
		t.Fatalf("expected invalid verifier config error, got %v", err)
	}
}
