// Package config provides application configuration management with environment
// variable loading, validation, and sensible defaults. It supports .env files
// for local development and validates all settings on startup so that a bad
// storage backend or gate setting is caught before the first request.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//
//	server := &http.Server{
//	    Addr: ":" + cfg.Server.Port,
//	}
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Gate      GateConfig
	Session   SessionConfig
	GeoIP     GeoIPConfig
	Collector CollectorConfig
	AI        AIConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Port        string
	Environment string
}

// StorageConfig selects where the three storefront records live.
// Namespace prefixes every record key, so several shops can share one Redis.
type StorageConfig struct {
	Backend   string
	Namespace string
}

// DatabaseConfig holds PostgreSQL connection parameters and pool settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	MaxConns int // Maximum number of connections in the pool
}

// SQLiteConfig points at the SQLite file used by the sqlite backend.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis configuration including connection parameters,
// authentication, database selection, and pool size.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int // Connection pool size
}

// GateConfig controls the passcode gate.
//
// MaxFailedAttempts of zero keeps the gate unthrottled: every wrong passcode
// only flashes the error indicator. A positive value locks the keypad for
// Lockout after that many consecutive misses.
type GateConfig struct {
	PasscodeLength    int
	ErrorFlash        time.Duration
	MaxFailedAttempts int
	Lockout           time.Duration
}

// SessionConfig holds the client session settings. The signed token only
// names an in-memory session; it never carries authentication state.
type SessionConfig struct {
	Secret        []byte
	TokenExpiry   time.Duration
	IdleTTL       time.Duration
	SweepSchedule string // cron spec for the idle session sweep
	CookieName    string
}

// GeoIPConfig describes the third-party IP lookup used by the visitor snapshot.
// A zero Timeout means the request is not bounded.
type GeoIPConfig struct {
	URL      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// CollectorConfig holds visitor snapshot settings.
type CollectorConfig struct {
	LocationTimeout time.Duration
}

// AIConfig holds the Gemini client settings. When APIKey is empty the client
// falls back to Google Application Default Credentials.
type AIConfig struct {
	APIKey            string
	BaseURL           string
	RequestTimeout    time.Duration
	VideoPollInterval time.Duration
	VideoMaxWait      time.Duration
	Enabled           bool
}

// CORSConfig holds Cross-Origin Resource Sharing (CORS) configuration.
type CORSConfig struct {
	AllowedOrigins []string // List of allowed origin URLs
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int
	GateRequests      int           // passcode endpoints; defaults to RequestsPerMinute
	WindowDuration    time.Duration // Time window for rate limiting (default: 1 minute)
}

// LogConfig holds logger settings. When File is set, logs are also written
// to a rotating file.
type LogConfig struct {
	Level      string
	Format     string // "console" or "json"
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads and validates configuration from environment variables.
// It attempts to load a .env file if present but doesn't fail if the file
// is missing.
//
// Required environment variables:
//   - SESSION_SECRET: secret for signing client session tokens (≥32 bytes)
//   - POSTGRES_PASSWORD: only when STORAGE_BACKEND=postgres
//
// Returns an error if any required variable is missing or if validation fails.
func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret, err := getEnvRequired("SESSION_SECRET")
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENV", "development"),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),
			Namespace: getEnv("STORAGE_NAMESPACE", "nexus"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			Database: getEnv("POSTGRES_DB", "mizocandle"),
			User:     getEnv("POSTGRES_USER", "mizo"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			MaxConns: getEnvAsInt("POSTGRES_MAX_CONNS", 10),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "mizo-candle.db"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 20),
		},
		Gate: GateConfig{
			PasscodeLength:    getEnvAsInt("GATE_PASSCODE_LENGTH", 6),
			ErrorFlash:        getEnvAsDuration("GATE_ERROR_FLASH", 500*time.Millisecond),
			MaxFailedAttempts: getEnvAsInt("GATE_MAX_FAILED_ATTEMPTS", 0),
			Lockout:           getEnvAsDuration("GATE_LOCKOUT", 30*time.Second),
		},
		Session: SessionConfig{
			Secret:        []byte(sessionSecret),
			TokenExpiry:   getEnvAsDuration("SESSION_TOKEN_EXPIRY", 24*time.Hour),
			IdleTTL:       getEnvAsDuration("SESSION_IDLE_TTL", 2*time.Hour),
			SweepSchedule: getEnv("SESSION_SWEEP_SCHEDULE", "@every 5m"),
			CookieName:    getEnv("SESSION_COOKIE", "app_session"),
		},
		GeoIP: GeoIPConfig{
			URL:      getEnv("GEOIP_URL", "https://ipapi.co"),
			Timeout:  getEnvAsDuration("GEOIP_TIMEOUT", 0),
			CacheTTL: getEnvAsDuration("GEOIP_CACHE_TTL", 24*time.Hour),
		},
		Collector: CollectorConfig{
			LocationTimeout: getEnvAsDuration("COLLECTOR_LOCATION_TIMEOUT", 5*time.Second),
		},
		AI: AIConfig{
			APIKey:            getEnv("GEMINI_API_KEY", ""),
			BaseURL:           getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			RequestTimeout:    getEnvAsDuration("GEMINI_REQUEST_TIMEOUT", 90*time.Second),
			VideoPollInterval: getEnvAsDuration("GEMINI_VIDEO_POLL_INTERVAL", 5*time.Second),
			VideoMaxWait:      getEnvAsDuration("GEMINI_VIDEO_MAX_WAIT", 10*time.Minute),
			Enabled:           getEnvAsBool("AI_ENABLED", true),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS", 120),
			GateRequests:      getEnvAsInt("RATE_LIMIT_GATE_REQUESTS", getEnvAsInt("RATE_LIMIT_REQUESTS", 120)),
			WindowDuration:    getEnvAsDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "console"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 14),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks if all required configuration is present and valid.
// It is called by Load() but can also be used directly in tests.
//
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port must be a valid integer: %w", err)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		if _, err := strconv.Atoi(c.Redis.Port); err != nil {
			return fmt.Errorf("redis port must be a valid integer: %w", err)
		}
	case BackendPostgres:
		if _, err := strconv.Atoi(c.Database.Port); err != nil {
			return fmt.Errorf("database port must be a valid integer: %w", err)
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database password is required for the postgres backend")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Storage.Namespace == "" {
		return fmt.Errorf("storage namespace is required")
	}

	if c.Gate.PasscodeLength < 1 {
		return fmt.Errorf("gate passcode length must be positive")
	}
	if c.Gate.MaxFailedAttempts < 0 {
		return fmt.Errorf("gate max failed attempts cannot be negative")
	}
	if c.Gate.MaxFailedAttempts > 0 && c.Gate.Lockout <= 0 {
		return fmt.Errorf("gate lockout must be positive when attempts are limited")
	}

	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session secret must be at least 32 bytes")
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("session idle TTL must be positive")
	}

	if _, err := url.ParseRequestURI(c.GeoIP.URL); err != nil {
		return fmt.Errorf("invalid geo-IP URL: %w", err)
	}
	if _, err := url.ParseRequestURI(c.AI.BaseURL); err != nil {
		return fmt.Errorf("invalid Gemini base URL: %w", err)
	}
	if c.AI.VideoPollInterval <= 0 {
		return fmt.Errorf("video poll interval must be positive")
	}

	return nil
}

// IsProduction reports whether the server runs with ENV=production.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// DSN returns the PostgreSQL connection string for the lib/pq driver.
//
// Format: "host=X port=Y user=Z password=W dbname=N sslmode=disable"
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database,
	)
}

// DSN returns the go-sqlite3 connection string. WAL mode and a busy timeout
// let concurrent handlers share the file.
func (c *SQLiteConfig) DSN() string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", c.Path)
}

// Address returns the Redis server address in "host:port" format.
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions for environment variable parsing

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvRequired retrieves a required environment variable.
// Returns an error if the variable is not set or is empty.
func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an integer with a default fallback.
// If the variable is not set or cannot be parsed as an integer, returns defaultValue.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool accepts anything strconv.ParseBool does ("1", "true", "FALSE", ...).
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration with a default fallback.
// Supports Go duration format: "300ms", "1.5h", "2h45m", etc.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice parses a comma-separated variable, dropping empty items.
//
//	// ALLOWED_ORIGINS=http://localhost:3000,https://example.com
//	origins := getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
