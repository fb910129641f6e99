// Package db persists registration history in a local sqlite database.
package db

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the registration database at
// path and ensures the base schema exists. Later schema changes are
// applied through the migrate helpers.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS registrations (
			registration_id   TEXT PRIMARY KEY,
			phantom_name      TEXT,
			landmark_count    BIGINT NOT NULL,
			transform         TEXT NOT NULL,
			mean_error        DOUBLE NOT NULL,
			quality           TEXT NOT NULL,
			residuals         TEXT,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_registrations_created_at
			ON registrations(created_at);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}
