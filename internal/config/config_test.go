package config

import (
	"strings"
	"testing"
	"time"
)

func validViper() map[string]interface{} {
	return map[string]interface{}{
		"auth.signing_secret":  "test-secret",
		"google.client_id":     "client-id",
		"google.client_secret": "client-secret",
		"google.redirect_url":  "http://127.0.0.1:8000/auth/callback",
		"frontend.url":         "http://127.0.0.1:3000",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	v := NewViper()
	for key, value := range validViper() {
		v.Set(key, value)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.CookieName != "access_token" {
		t.Fatalf("unexpected cookie name %q", cfg.CookieName)
	}
	if cfg.TokenTTL != 168*time.Hour {
		t.Fatalf("unexpected token ttl %v", cfg.TokenTTL)
	}
	if cfg.GoogleJWKSURL == "" {
		t.Fatalf("expected default jwks url")
	}
}

func TestLoadRejectsMissingRequiredValues(t *testing.T) {
	required := []string{
		"auth.signing_secret",
		"google.client_id",
		"google.client_secret",
		"google.redirect_url",
		"frontend.url",
	}

	for _, missing := range required {
		v := NewViper()
		for key, value := range validViper() {
			if key == missing {
				continue
			}
			v.Set(key, value)
		}

		_, err := Load(v)
		if err == nil {
			t.Fatalf("expected load error when %s is missing", missing)
		}
		if !strings.Contains(err.Error(), missing) {
			t.Fatalf("expected error to name %s, got %v", missing, err)
		}
	}
}

func TestLoadRejectsNonPositiveTokenTTL(t *testing.T) {
	v := NewViper()
	for key, value := range validViper() {
		v.Set(key, value)
	}
	v.Set("auth.token_ttl_hours", 0)

	_, err := Load(v)
	if err == nil {
		t.Fatalf("expected load error for zero token ttl")
	}
}
