package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Moaaz208/Mizo-Candle/pkg/config"
	"github.com/Moaaz208/Mizo-Candle/pkg/utils"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// SQLDB stores records in the kv_records table of a relational database.
// The same code serves PostgreSQL and SQLite; dialect differences are
// confined to dialect.go.
//
// Features:
//   - Automatic connection retry with exponential backoff
//   - Connection pooling (configurable max connections)
//   - Upsert on write, so Set always overwrites the whole record
//   - Health check support
type SQLDB struct {
	db      *sql.DB // Underlying connection pool
	dialect string  // DialectPostgres or DialectSQLite
}

// NewPostgresDB creates a new PostgreSQL connection with automatic retry.
//
// Connection pool settings:
//   - MaxOpenConns: From configuration (default: 10)
//   - MaxIdleConns: Half of MaxOpenConns
//   - ConnMaxLifetime: 1 hour
//
// Retry configuration:
//   - Max attempts: 5
//   - Initial delay: 100ms
//   - Max delay: 3 seconds
//   - Total timeout: 30 seconds
//
// Example:
//
//	db, err := database.NewPostgresDB(&cfg.Database)
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Database connection failed")
//	}
//	defer db.Close()
func NewPostgresDB(cfg *config.DatabaseConfig) (*SQLDB, error) {
	return openSQL(DialectPostgres, cfg.DSN(), cfg.MaxConns)
}

// openSQL opens and pings a database/sql pool, retrying transient failures
// during startup (e.g., database container not ready yet).
func openSQL(dialect, dsn string, maxConns int) (*SQLDB, error) {
	var db *sql.DB
	var connErr error

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	retryConfig := utils.DatabaseRetryConfig()
	retryConfig.MaxAttempts = 5
	retryConfig.InitialDelay = 100 * time.Millisecond
	retryConfig.MaxDelay = 3 * time.Second

	err := utils.Retry(ctx, retryConfig, func() error {
		var err error
		db, err = sql.Open(dialect, dsn)
		if err != nil {
			connErr = err
			log.Warn().Err(err).Str("dialect", dialect).Msg("Failed to open database connection, retrying...")
			return err
		}

		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(max(maxConns/2, 1))
		db.SetConnMaxLifetime(time.Hour)

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pingCancel()

		if err := db.PingContext(pingCtx); err != nil {
			connErr = err
			log.Warn().Err(err).Str("dialect", dialect).Msg("Failed to ping database, retrying...")
			db.Close()
			return err
		}

		return nil
	})

	if err != nil {
		if connErr != nil {
			return nil, fmt.Errorf("failed to connect to %s after retries: %w", dialect, connErr)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}

	log.Info().Str("dialect", dialect).Msg("Successfully connected to database")

	return &SQLDB{db: db, dialect: dialect}, nil
}

// Close closes the database connection and releases all resources.
func (s *SQLDB) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable. Used by the readiness probe.
func (s *SQLDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Name identifies the backend in health responses and metrics.
func (s *SQLDB) Name() string {
	return s.dialect
}

// Dialect returns DialectPostgres or DialectSQLite.
func (s *SQLDB) Dialect() string {
	return s.dialect
}

// Get returns the payload stored under key, or ErrNotFound.
func (s *SQLDB) Get(ctx context.Context, key string) ([]byte, error) {
	query := rebind(s.dialect, `SELECT payload FROM kv_records WHERE record_key = $1`)

	var payload string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", key, err)
	}
	return []byte(payload), nil
}

// Set writes value under key, replacing any existing payload.
func (s *SQLDB) Set(ctx context.Context, key string, value []byte) error {
	now := nowExpr(s.dialect)
	query := rebind(s.dialect, fmt.Sprintf(`
		INSERT INTO kv_records (record_key, payload, updated_at)
		VALUES ($1, $2, %s)
		ON CONFLICT (record_key)
		DO UPDATE SET
			payload = excluded.payload,
			updated_at = %s
	`, now, now))

	if _, err := s.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("failed to set record %s: %w", key, err)
	}
	return nil
}

// Migrate creates the kv_records table if it does not exist yet.
func (s *SQLDB) Migrate(ctx context.Context) error {
	return s.RunMigrations(ctx, schema(s.dialect))
}

// RunMigrations executes SQL migration scripts. Statements should be
// idempotent (IF NOT EXISTS) because they run on every start.
func (s *SQLDB) RunMigrations(ctx context.Context, migrationSQL string) error {
	_, err := s.db.ExecContext(ctx, migrationSQL)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Str("dialect", s.dialect).Msg("Database migrations completed successfully")
	return nil
}
