// Package index keeps a SQLite catalogue of exported notebooks, sections,
// pages and export runs, with optional FTS5 full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS sections (
	id            TEXT NOT NULL,
	notebook_slug TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	slug          TEXT NOT NULL DEFAULT '',
	position      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (notebook_slug, id)
);

CREATE TABLE IF NOT EXISTS pages (
	id            TEXT PRIMARY KEY,
	notebook_slug TEXT NOT NULL,
	section_id    TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL DEFAULT '',
	slug          TEXT NOT NULL DEFAULT '',
	path          TEXT NOT NULL DEFAULT '',
	checksum      TEXT NOT NULL DEFAULT '',
	body          TEXT NOT NULL DEFAULT '',
	position      INTEGER NOT NULL DEFAULT 0,
	exported_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_pages_notebook ON pages(notebook_slug, position);
CREATE INDEX IF NOT EXISTS idx_pages_section ON pages(section_id);

CREATE TABLE IF NOT EXISTS exports (
	run_id        TEXT PRIMARY KEY,
	notebook      TEXT NOT NULL DEFAULT '',
	notebook_slug TEXT NOT NULL DEFAULT '',
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME NOT NULL,
	sections      INTEGER NOT NULL DEFAULT 0,
	pages         INTEGER NOT NULL DEFAULT 0,
	written       INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	outcome       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_exports_started ON exports(started_at);
`

// DB wraps a sql.DB with catalogue-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
