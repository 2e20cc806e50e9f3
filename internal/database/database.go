// Package database provides the key/value backends behind the storefront
// store. Every backend holds opaque JSON blobs under string keys:
//
//   - RedisDB: go-redis, also serves rate-limit counters and the geo-IP cache
//   - SQLDB: a kv_records table on PostgreSQL (lib/pq) or SQLite (go-sqlite3)
//   - MemoryDB: a process-local map for development and tests
//
// Remote backends connect with exponential backoff so the service survives a
// database container that is still starting.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Moaaz208/Mizo-Candle/pkg/config"
)

// ErrNotFound is returned by Get when no record is stored under the key.
var ErrNotFound = errors.New("record not found")

// Backend is a key/value store holding the persisted storefront records.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
	Name() string
}

// RateCounter counts requests per client and endpoint inside a fixed window.
type RateCounter interface {
	IncrementRateLimit(ctx context.Context, ip, endpoint string, window time.Duration) (int64, error)
}

// Open connects the backend selected by cfg.Storage.Backend. SQL backends
// are migrated before they are returned.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return NewMemoryDB(), nil
	case config.BackendRedis:
		return NewRedisDB(&cfg.Redis)
	case config.BackendPostgres:
		db, err := NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		return migrated(ctx, db)
	case config.BackendSQLite:
		db, err := NewSQLiteDB(&cfg.SQLite)
		if err != nil {
			return nil, err
		}
		return migrated(ctx, db)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func migrated(ctx context.Context, db *SQLDB) (*SQLDB, error) {
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
