package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // json|pretty

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Session-state store selection: Postgres wins over Redis; neither means in-memory.
	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32
	DBAutoMigrate bool
	RedisURL      string

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, WEBAPP_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and token hashes at rest are HMAC-based.
	RequireTokenHMAC bool

	// CORS for the HTTP login endpoint. Empty allowlist disables CORS headers.
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	MetricsEnabled bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("WEBAPP_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("WEBAPP_LOG_LEVEL", "info"),
		LogFormat: EnvString("WEBAPP_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("WEBAPP_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("WEBAPP_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("WEBAPP_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("WEBAPP_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("WEBAPP_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:   EnvString("WEBAPP_DATABASE_URL", ""),
		DBMaxConns:    EnvInt32("WEBAPP_DB_MAX_CONNS", 10),
		DBMinConns:    EnvInt32("WEBAPP_DB_MIN_CONNS", 0),
		DBAutoMigrate: EnvBool("WEBAPP_DB_AUTO_MIGRATE", false),
		RedisURL:      EnvString("WEBAPP_REDIS_URL", ""),

		ReadinessRequireDB: EnvBool("WEBAPP_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("WEBAPP_REQUIRE_TOKEN_HMAC", false),

		CORSAllowedOrigins:   EnvCSV("WEBAPP_CORS_ALLOWED_ORIGINS", ""),
		CORSAllowCredentials: EnvBool("WEBAPP_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("WEBAPP_CORS_MAX_AGE_SECONDS", 600),

		MetricsEnabled: EnvBool("WEBAPP_METRICS_ENABLED", true),
	}
}
