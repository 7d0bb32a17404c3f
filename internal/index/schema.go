// Package index persists validation runs in SQLite: run history, the
// documents and links of each run, and full-text search over the latest run
// (FTS5 when built with the sqlite_fts5 tag).
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL UNIQUE,
	root         TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	duration_ms  INTEGER NOT NULL DEFAULT 0,
	files        INTEGER NOT NULL DEFAULT 0,
	documents    INTEGER NOT NULL DEFAULT 0,
	duplicates   INTEGER NOT NULL DEFAULT 0,
	broken_links INTEGER NOT NULL DEFAULT 0,
	ambiguous    INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	report       TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS documents (
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	source    TEXT NOT NULL,
	permalink TEXT NOT NULL,
	title     TEXT NOT NULL DEFAULT '',
	layout    TEXT NOT NULL DEFAULT '',
	status    TEXT NOT NULL DEFAULT '',
	checksum  TEXT NOT NULL DEFAULT '',
	body      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, source)
);

CREATE TABLE IF NOT EXISTS links (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	raw    TEXT NOT NULL DEFAULT '',
	UNIQUE(run_id, source, target)
);

CREATE TABLE IF NOT EXISTS issues (
	run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	kind    TEXT NOT NULL,
	subject TEXT NOT NULL,
	detail  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_documents_permalink ON documents(run_id, permalink);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(run_id, target);
CREATE INDEX IF NOT EXISTS idx_issues_run ON issues(run_id, kind);
`

// DefaultRetention is the number of runs kept when none is configured.
const DefaultRetention = 50

// DB wraps a sql.DB with run-history operations.
type DB struct {
	conn      *sql.DB
	retention int
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
	return &DB{conn: conn, retention: DefaultRetention}, nil
}

// SetRetention sets how many runs SaveRun keeps. Values below one keep all.
func (db *DB) SetRetention(n int) {
	db.retention = n
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
