package database

import (
	"regexp"
)

// Dialect identifiers supported by SQLDB.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// rebind rewrites $N placeholders into the form the dialect expects.
// Queries are written once in PostgreSQL style.
func rebind(dialect, query string) string {
	if dialect != DialectSQLite {
		return query
	}
	return placeholderPattern.ReplaceAllString(query, "?")
}

// nowExpr returns the SQL expression for the current timestamp.
func nowExpr(dialect string) string {
	if dialect == DialectSQLite {
		return "CURRENT_TIMESTAMP"
	}
	return "NOW()"
}

// schema returns the kv_records DDL for the dialect.
func schema(dialect string) string {
	if dialect == DialectSQLite {
		return `
		CREATE TABLE IF NOT EXISTS kv_records (
			record_key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`
	}
	return `
		CREATE TABLE IF NOT EXISTS kv_records (
			record_key VARCHAR(255) PRIMARY KEY,
			payload TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`
}
