// Package store provides SQLite-backed persistence for completed analyses.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schemaV1 = `
CREATE TABLE IF NOT EXISTS analyses (
	id             TEXT PRIMARY KEY,
	user_id        INTEGER NOT NULL,
	kind           TEXT NOT NULL,
	input_json     TEXT NOT NULL DEFAULT '{}',
	result_json    TEXT NOT NULL DEFAULT '{}',
	source         TEXT NOT NULL DEFAULT '',
	provider       TEXT NOT NULL DEFAULT '',
	degraded       INTEGER NOT NULL DEFAULT 0,
	alerts_json    TEXT NOT NULL DEFAULT '[]',
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_user_created ON analyses(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_analyses_user_kind ON analyses(user_id, kind);
`

// NewDB opens the SQLite database at path, creating parent directories, and
// applies the schema.
func NewDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
