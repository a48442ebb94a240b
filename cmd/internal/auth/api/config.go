package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls the session login endpoint.
type Config struct {
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	// MaxBodyBytes bounds the CBOR request body.
	MaxBodyBytes int64

	// LoginIPMax rejected logins per LoginIPWindow before an IP is throttled.
	// 0 (the default) disables throttling.
	LoginIPMax    int
	LoginIPWindow time.Duration
}

// LoadConfigFromEnv loads endpoint config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:    envBool("WEBAPP_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:  envInt64("WEBAPP_AUTH_MAX_BODY_BYTES", 64<<10), // 64 KiB
		LoginIPMax:    envInt("WEBAPP_AUTH_LOGIN_IP_MAX", 0),
		LoginIPWindow: envDuration("WEBAPP_AUTH_LOGIN_IP_WINDOW", 5*time.Minute),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.LoginIPWindow <= 0 {
		cfg.LoginIPWindow = 5 * time.Minute
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
