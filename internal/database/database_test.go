package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Moaaz208/Mizo-Candle/pkg/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns one of each backend that runs without external services.
func backends(t *testing.T) map[string]Backend {
	t.Helper()

	mr := miniredis.RunT(t)
	redisDB, err := NewRedisDB(&config.RedisConfig{Host: mr.Host(), Port: mr.Port()})
	require.NoError(t, err)
	t.Cleanup(func() { redisDB.Close() })

	sqliteDB, err := NewSQLiteDB(&config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "store.db")})
	require.NoError(t, err)
	require.NoError(t, sqliteDB.Migrate(context.Background()))
	t.Cleanup(func() { sqliteDB.Close() })

	return map[string]Backend{
		"memory":  NewMemoryDB(),
		"redis":   redisDB,
		"sqlite3": sqliteDB,
	}
}

func TestBackendContract(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := db.Get(ctx, "nexus_products")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, db.Set(ctx, "nexus_products", []byte(`[{"id":"1"}]`)))
			got, err := db.Get(ctx, "nexus_products")
			require.NoError(t, err)
			assert.JSONEq(t, `[{"id":"1"}]`, string(got))

			// whole-record overwrite
			require.NoError(t, db.Set(ctx, "nexus_products", []byte(`[]`)))
			got, err = db.Get(ctx, "nexus_products")
			require.NoError(t, err)
			assert.Equal(t, "[]", string(got))

			assert.NoError(t, db.Ping(ctx))
			assert.Equal(t, name, db.Name())
		})
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := &config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "store.db")}

	db, err := NewSQLiteDB(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Set(ctx, "nexus_site_config", []byte(`{"siteName":"Mizo Candle"}`)))
	require.NoError(t, db.Close())

	db, err = NewSQLiteDB(cfg)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(ctx), "migrations are idempotent")

	got, err := db.Get(ctx, "nexus_site_config")
	require.NoError(t, err)
	assert.JSONEq(t, `{"siteName":"Mizo Candle"}`, string(got))
	assert.Equal(t, DialectSQLite, db.Dialect())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		db, err := Open(ctx, &config.Config{Storage: config.StorageConfig{Backend: config.BackendMemory}})
		require.NoError(t, err)
		assert.Equal(t, "memory", db.Name())
	})

	t.Run("sqlite is migrated", func(t *testing.T) {
		db, err := Open(ctx, &config.Config{
			Storage: config.StorageConfig{Backend: config.BackendSQLite},
			SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "open.db")},
		})
		require.NoError(t, err)
		defer db.Close()

		assert.NoError(t, db.Set(ctx, "k", []byte("v")))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Open(ctx, &config.Config{Storage: config.StorageConfig{Backend: "etcd"}})
		assert.Error(t, err)
	})
}

func TestRebind(t *testing.T) {
	query := `SELECT payload FROM kv_records WHERE record_key = $1 AND payload <> $2`

	assert.Equal(t, query, rebind(DialectPostgres, query))
	assert.Equal(t, `SELECT payload FROM kv_records WHERE record_key = ? AND payload <> ?`, rebind(DialectSQLite, query))
}

func TestMemoryRateLimitWindow(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }

	for want := int64(1); want <= 3; want++ {
		got, err := db.IncrementRateLimit(ctx, "203.0.113.42", "gate", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, _ := db.IncrementRateLimit(ctx, "203.0.113.42", "api", time.Minute)
	assert.Equal(t, int64(1), other, "endpoints are counted separately")

	now = now.Add(time.Minute)
	got, _ := db.IncrementRateLimit(ctx, "203.0.113.42", "gate", time.Minute)
	assert.Equal(t, int64(1), got, "window reset")
}

func TestRedisRateLimitWindow(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	db, err := NewRedisDB(&config.RedisConfig{Host: mr.Host(), Port: mr.Port()})
	require.NoError(t, err)
	defer db.Close()

	for want := int64(1); want <= 2; want++ {
		got, err := db.IncrementRateLimit(ctx, "203.0.113.42", "gate", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	mr.FastForward(time.Minute)
	got, err := db.IncrementRateLimit(ctx, "203.0.113.42", "gate", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestMemoryDBConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = db.Set(ctx, "k", []byte("v"))
			_, _ = db.Get(ctx, "k")
			_, _ = db.IncrementRateLimit(ctx, "ip", "api", time.Minute)
		}()
	}
	wg.Wait()

	count, err := db.IncrementRateLimit(ctx, "ip", "api", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(51), count)
}

func TestMemoryDBCopiesValues(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()

	value := []byte("abc")
	require.NoError(t, db.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := db.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
