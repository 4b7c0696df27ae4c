// Package storage handles data persistence: SQLite database and filesystem.
package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the SQLite driver
)

// Schema is embedded directly in the binary; no migration files need to
// exist at runtime.
const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS searches (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    vin         TEXT NOT NULL,
    source      TEXT NOT NULL DEFAULT '',
    lot_number  TEXT NOT NULL DEFAULT '',
    listing_url TEXT NOT NULL DEFAULT '',
    success     BOOLEAN NOT NULL DEFAULT 0,
    error_kind  TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_searches_vin ON searches(vin);
CREATE INDEX IF NOT EXISTS idx_searches_created ON searches(created_at);
`

// NewDatabase opens a SQLite connection and runs migrations. The DSN
// enables WAL mode for concurrent reads, foreign key enforcement, and a
// 5s busy timeout instead of failing on lock contention.
func NewDatabase(dbPath string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}
