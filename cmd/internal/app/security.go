package app

import (
	"errors"

	"webapp/cmd/security/token"
)

// ValidateSecurityConfig enforces the startup security policy.
//
// Fail-fast: with WEBAPP_REQUIRE_TOKEN_HMAC=true the server refuses to start
// rather than storing session token hashes as plain SHA-256.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// Key length is measured in bytes, since the key is used as raw bytes.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: WEBAPP_REQUIRE_TOKEN_HMAC=true but WEBAPP_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: WEBAPP_REQUIRE_TOKEN_HMAC=true but WEBAPP_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("security policy: WEBAPP_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}
	return nil
}
