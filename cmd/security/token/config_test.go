package token

import (
	"strings"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

func TestLoadConfigFromEnv_MissingPasetoKey(t *testing.T) {
	t.Setenv("WEBAPP_TOKEN_FORMAT", "")
	t.Setenv("WEBAPP_PASETO_V4_SECRET_KEY_HEX", "")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig on missing key, got %v", err)
	}
}

func TestLoadConfigFromEnv_ShortJWTSecret(t *testing.T) {
	t.Setenv("WEBAPP_TOKEN_FORMAT", "jwt")
	t.Setenv("WEBAPP_JWT_SECRET", "too-short")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig on short secret, got %v", err)
	}
}

func TestLoadConfigFromEnv_UnknownFormat(t *testing.T) {
	t.Setenv("WEBAPP_TOKEN_FORMAT", "saml")
	t.Setenv("WEBAPP_PASETO_V4_SECRET_KEY_HEX", paseto.NewV4AsymmetricSecretKey().ExportHex())
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig on unknown format, got %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidDurations(t *testing.T) {
	t.Setenv("WEBAPP_TOKEN_FORMAT", "")
	t.Setenv("WEBAPP_PASETO_V4_SECRET_KEY_HEX", paseto.NewV4AsymmetricSecretKey().ExportHex())
	t.Setenv("WEBAPP_TOKEN_TTL", "-1h")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for negative ttl, got %v", err)
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	t.Setenv("WEBAPP_TOKEN_FORMAT", "JWT")
	t.Setenv("WEBAPP_JWT_SECRET", strings.Repeat("j", 40))
	t.Setenv("WEBAPP_TOKEN_ISSUER", "webapp-test")
	t.Setenv("WEBAPP_TOKEN_TTL", "48h")
	t.Setenv("WEBAPP_TOKEN_CLOCK_SKEW", "5s")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Format != FormatJWT {
		t.Fatalf("format mismatch: %q", cfg.Format)
	}
	if cfg.Issuer != "webapp-test" {
		t.Fatalf("issuer mismatch: %q", cfg.Issuer)
	}
	if cfg.TTL != 48*time.Hour {
		t.Fatalf("ttl mismatch: %v", cfg.TTL)
	}
	if cfg.ClockSkew != 5*time.Second {
		t.Fatalf("clock skew mismatch: %v", cfg.ClockSkew)
	}
}
