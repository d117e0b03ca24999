package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS run_locks (
	lock_id      TEXT PRIMARY KEY,
	pid          INTEGER NOT NULL,
	hostname     TEXT NOT NULL,
	acquired_at  TEXT NOT NULL,
	expires_at   TEXT NOT NULL,
	heartbeat_at TEXT NOT NULL
);
`

// Open opens (or creates) the harness database and applies the schema.
// Use ":memory:" for tests.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer at a time; the lock table is tiny
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
