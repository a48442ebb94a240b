package session

import (
	"testing"

	paseto "aidanwoods.dev/go-paseto"
)

func TestLoadConfigFromEnv_MissingSecretKey(t *testing.T) {
	t.Setenv("WEBAPP_TOKEN_FORMAT", "")
	t.Setenv("WEBAPP_PASETO_V4_SECRET_KEY_HEX", "")
	_, err := LoadConfigFromEnv()
	if err != ErrConfig {
		t.Fatalf("expected ErrConfig on missing secret, got %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidBool(t *testing.T) {
	t.Setenv("WEBAPP_PASETO_V4_SECRET_KEY_HEX", paseto.NewV4AsymmetricSecretKey().ExportHex())
	t.Setenv("WEBAPP_SESSION_RENEW", "sometimes")
	_, err := LoadConfigFromEnv()
	if err != ErrConfig {
		t.Fatalf("expected ErrConfig for invalid bool, got %v", err)
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("WEBAPP_PASETO_V4_SECRET_KEY_HEX", paseto.NewV4AsymmetricSecretKey().ExportHex())
	t.Setenv("WEBAPP_SESSION_RENEW", "")
	t.Setenv("WEBAPP_SESSION_REQUIRE_KNOWN", "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.RenewOnLogin {
		t.Fatalf("expected renewal on by default")
	}
	if cfg.RequireKnownSession {
		t.Fatalf("expected stateless verification by default")
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	t.Setenv("WEBAPP_PASETO_V4_SECRET_KEY_HEX", paseto.NewV4AsymmetricSecretKey().ExportHex())
	t.Setenv("WEBAPP_TOKEN_ISSUER", "webapp-test")
	t.Setenv("WEBAPP_SESSION_RENEW", "false")
	t.Setenv("WEBAPP_SESSION_REQUIRE_KNOWN", "true")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Token.Issuer != "webapp-test" {
		t.Fatalf("issuer mismatch: %q", cfg.Token.Issuer)
	}
	if cfg.RenewOnLogin || !cfg.RequireKnownSession {
		t.Fatalf("flags mismatch: %+v", cfg)
	}
}
