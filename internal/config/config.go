// Package config loads service settings from environment variables.
// Defaults live in struct tags; Validate fails fast on bad combinations.
package config

import (
	"strconv"
	"time"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Store     StoreConfig
	Ingest    IngestConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Retention RetentionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout also bounds how long an in-flight run may finish.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"60s"`

	// RequestTimeout applies to every route except ingestion, which is
	// bounded by INGEST_TIMEOUT instead.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds PostgreSQL settings. URL is required only for the
// postgres backend.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL" envAlt:"DB_URL"`
	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies the embedded schema on start.
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	Backend string `env:"STORE_BACKEND" default:"postgres"`

	// BadgerPath is the data directory of the embedded store.
	BadgerPath     string `env:"BADGER_PATH" default:"data/badger"`
	BadgerInMemory bool   `env:"BADGER_IN_MEMORY" default:"false"`
}

// IngestConfig holds roster ingestion settings.
type IngestConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default: 20MB).
	MaxFileSize int64 `env:"INGEST_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent runs. Values above 1 reopen the match-then-create
	// race between runs; the store's unique keys still catch it.
	MaxConcurrent int           `env:"INGEST_MAX_CONCURRENT" default:"1"`
	MaxWaitTime   time.Duration `env:"INGEST_MAX_WAIT_TIME" default:"30s"`
	Timeout       time.Duration `env:"INGEST_TIMEOUT" default:"10m"`

	// CountryCode replaces the trunk '0' on mobile numbers.
	CountryCode string `env:"INGEST_COUNTRY_CODE" default:"92"`

	MaxHeaderSearchRows int `env:"INGEST_HEADER_SEARCH_ROWS" default:"20"`
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
	IngestLimit       int  `env:"RATE_LIMIT_INGEST" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// forwarding headers are believed.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey gates every /api route behind X-API-Key.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`

	// CNICSealKey is a base64 secret of at least 32 bytes. When set,
	// CNICs are sealed at rest.
	CNICSealKey string `env:"CNIC_SEAL_KEY"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// RetentionConfig holds audit log retention settings.
type RetentionConfig struct {
	AuditRetentionDays int           `env:"AUDIT_RETENTION_DAYS" default:"365"`
	BatchSize          int           `env:"AUDIT_PURGE_BATCH_SIZE" default:"5000"`
	CheckInterval      time.Duration `env:"AUDIT_PURGE_INTERVAL" default:"24h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
