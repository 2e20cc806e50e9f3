package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-minimum-32-bytes-long!"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Server.IsProduction())
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "nexus", cfg.Storage.Namespace)
	assert.Equal(t, 6, cfg.Gate.PasscodeLength)
	assert.Equal(t, 500*time.Millisecond, cfg.Gate.ErrorFlash)
	assert.Zero(t, cfg.Gate.MaxFailedAttempts, "throttling is off unless configured")
	assert.Zero(t, cfg.GeoIP.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Collector.LocationTimeout)
	assert.True(t, cfg.AI.Enabled)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.GateRequests, "keypad gets the general API budget")
}

func TestGateRateLimitFollowsAPILimit(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("RATE_LIMIT_REQUESTS", "300")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.RateLimit.GateRequests)

	t.Setenv("RATE_LIMIT_GATE_REQUESTS", "20")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.RateLimit.GateRequests)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("ENV", "production")
	t.Setenv("STORAGE_BACKEND", "SQLite")
	t.Setenv("SQLITE_PATH", "/var/lib/mizo/store.db")
	t.Setenv("GATE_MAX_FAILED_ATTEMPTS", "5")
	t.Setenv("GATE_LOCKOUT", "2m")
	t.Setenv("ALLOWED_ORIGINS", "https://mizo.example, ,https://admin.mizo.example")
	t.Setenv("AI_ENABLED", "false")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Server.IsProduction())
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "file:/var/lib/mizo/store.db?_journal_mode=WAL&_busy_timeout=5000", cfg.SQLite.DSN())
	assert.Equal(t, 5, cfg.Gate.MaxFailedAttempts)
	assert.Equal(t, 2*time.Minute, cfg.Gate.Lockout)
	assert.Equal(t, []string{"https://mizo.example", "https://admin.mizo.example"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.AI.Enabled)
	assert.Equal(t, 0, cfg.Redis.DB, "unparseable values fall back to the default")
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "SESSION_SECRET")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: "8080"},
			Storage:   StorageConfig{Backend: BackendMemory, Namespace: "nexus"},
			Gate:      GateConfig{PasscodeLength: 6},
			Session:   SessionConfig{Secret: []byte(testSecret), IdleTTL: time.Hour},
			GeoIP:     GeoIPConfig{URL: "https://ipapi.co"},
			AI:        AIConfig{BaseURL: "https://generativelanguage.googleapis.com/v1beta", VideoPollInterval: time.Second},
			RateLimit: RateLimitConfig{RequestsPerMinute: 10, WindowDuration: time.Minute},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = "http" }, "server port"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "etcd" }, "unknown storage backend"},
		{"postgres without password", func(c *Config) {
			c.Storage.Backend = BackendPostgres
			c.Database.Port = "5432"
		}, "database password"},
		{"sqlite without path", func(c *Config) { c.Storage.Backend = BackendSQLite }, "sqlite path"},
		{"empty namespace", func(c *Config) { c.Storage.Namespace = "" }, "namespace"},
		{"zero passcode length", func(c *Config) { c.Gate.PasscodeLength = 0 }, "passcode length"},
		{"throttle without lockout", func(c *Config) { c.Gate.MaxFailedAttempts = 3 }, "lockout"},
		{"short secret", func(c *Config) { c.Session.Secret = []byte("short") }, "32 bytes"},
		{"bad geo url", func(c *Config) { c.GeoIP.URL = "ipapi" }, "geo-IP URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}

func TestDSNs(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: "5432", User: "mizo", Password: "pw", Database: "shop"}
	assert.Equal(t, "host=db port=5432 user=mizo password=pw dbname=shop sslmode=disable", db.DSN())

	redis := RedisConfig{Host: "cache", Port: "6379"}
	assert.Equal(t, "cache:6379", redis.Address())
}
