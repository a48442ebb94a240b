package token

import (
	"os"
	"strings"
	"time"
)

// Format selects the token encoding.
type Format string

const (
	// FormatPaseto issues PASETO v4.public tokens (Ed25519).
	FormatPaseto Format = "paseto"
	// FormatJWT issues HS256 JWTs.
	FormatJWT Format = "jwt"
)

// minJWTSecretBytes is the minimum HS256 secret length accepted at startup.
const minJWTSecretBytes = 32

// Config defines token issuance and validation parameters.
type Config struct {
	Format Format

	// Issuer is set as "iss" and required on validation.
	Issuer string

	// TTL is the lifetime of an issued token.
	TTL time.Duration

	// ClockSkew is tolerated when checking iat/nbf/exp.
	ClockSkew time.Duration

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key (FormatPaseto).
	PasetoV4SecretKeyHex string

	// JWTSecret is the raw HS256 secret (FormatJWT).
	JWTSecret string
}

// DefaultConfig returns defaults suitable for development. Keys are left empty.
func DefaultConfig() Config {
	return Config{
		Format:    FormatPaseto,
		Issuer:    "webapp",
		TTL:       7 * 24 * time.Hour,
		ClockSkew: 30 * time.Second,
	}
}

// LoadConfigFromEnv loads token configuration from environment variables.
//
// Optional:
//   - WEBAPP_TOKEN_FORMAT (paseto|jwt)
//   - WEBAPP_TOKEN_ISSUER
//   - WEBAPP_TOKEN_TTL
//   - WEBAPP_TOKEN_CLOCK_SKEW
//
// Required depending on format:
//   - WEBAPP_PASETO_V4_SECRET_KEY_HEX (paseto)
//   - WEBAPP_JWT_SECRET (jwt, >= 32 bytes)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("WEBAPP_TOKEN_FORMAT")); v != "" {
		cfg.Format = Format(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("WEBAPP_TOKEN_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("WEBAPP_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}

	if v := os.Getenv("WEBAPP_TOKEN_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.PasetoV4SecretKeyHex = strings.TrimSpace(os.Getenv("WEBAPP_PASETO_V4_SECRET_KEY_HEX"))
	cfg.JWTSecret = os.Getenv("WEBAPP_JWT_SECRET")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected format has usable key material.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Issuer) == "" || c.TTL <= 0 || c.ClockSkew < 0 {
		return ErrConfig
	}

	switch c.Format {
	case FormatPaseto:
		if c.PasetoV4SecretKeyHex == "" {
			return ErrConfig
		}
	case FormatJWT:
		if len(c.JWTSecret) < minJWTSecretBytes {
			return ErrConfig
		}
	default:
		return ErrConfig
	}
	return nil
}
