package session

import (
	"os"
	"strconv"
	"strings"

	"webapp/cmd/security/token"
)

// Config defines runtime configuration for session login.
type Config struct {
	// Token configures the token format, issuer, TTL and keys.
	Token token.Config

	// RenewOnLogin issues a fresh token on every successful login and moves
	// the session row to the new token hash.
	RenewOnLogin bool

	// RequireKnownSession rejects valid tokens that have no session row.
	// When false, verification is stateless and a row is recorded on first use.
	RequireKnownSession bool
}

// DefaultConfig returns defaults suitable for development. Token keys are left empty.
func DefaultConfig() Config {
	return Config{
		Token:        token.DefaultConfig(),
		RenewOnLogin: true,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Token settings are read by token.LoadConfigFromEnv. Optional:
//   - WEBAPP_SESSION_RENEW (default true)
//   - WEBAPP_SESSION_REQUIRE_KNOWN (default false)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	tc, err := token.LoadConfigFromEnv()
	if err != nil {
		return Config{}, ErrConfig
	}
	cfg.Token = tc

	if cfg.RenewOnLogin, err = envBool("WEBAPP_SESSION_RENEW", cfg.RenewOnLogin); err != nil {
		return Config{}, ErrConfig
	}
	if cfg.RequireKnownSession, err = envBool("WEBAPP_SESSION_REQUIRE_KNOWN", cfg.RequireKnownSession); err != nil {
		return Config{}, ErrConfig
	}

	return cfg, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}
