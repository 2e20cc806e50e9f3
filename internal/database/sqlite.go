package database

import (
	"github.com/Moaaz208/Mizo-Candle/pkg/config"
	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB opens the SQLite file named in cfg. SQLite allows a single
// writer, so the pool is capped at one connection.
func NewSQLiteDB(cfg *config.SQLiteConfig) (*SQLDB, error) {
	return openSQL(DialectSQLite, cfg.DSN(), 1)
}
