package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/quire/internal/apperr"
)

// RunRow is one row of the runs table.
type RunRow struct {
	ID          string    `json:"id" yaml:"id"`
	Root        string    `json:"root" yaml:"root"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	DurationMS  int64     `json:"duration_ms" yaml:"duration_ms"`
	Files       int       `json:"files" yaml:"files"`
	Documents   int       `json:"documents" yaml:"documents"`
	Duplicates  int       `json:"duplicates" yaml:"duplicates"`
	BrokenLinks int       `json:"broken_links" yaml:"broken_links"`
	Ambiguous   int       `json:"ambiguous" yaml:"ambiguous"`
	Failed      bool      `json:"failed" yaml:"failed"`
	// Report is the JSON-encoded report; only GetRun fills it.
	Report string `json:"-" yaml:"-"`
}

// IssueRow is one finding of a run.
type IssueRow struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Detail  string `json:"detail,omitempty"`
}

// SearchResult represents one search hit in the latest run.
type SearchResult struct {
	Permalink string `json:"permalink"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
}

const runColumns = `id, root, started_at, duration_ms, files, documents, duplicates, broken_links, ambiguous, failed`

func scanRun(sc interface{ Scan(...any) error }, extra ...any) (RunRow, error) {
	var r RunRow
	dest := append([]any{&r.ID, &r.Root, &r.StartedAt, &r.DurationMS, &r.Files, &r.Documents,
		&r.Duplicates, &r.BrokenLinks, &r.Ambiguous, &r.Failed}, extra...)
	err := sc.Scan(dest...)
	return r, err
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`SELECT `+runColumns+` FROM runs ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run including its stored report.
func (db *DB) GetRun(id string) (*RunRow, error) {
	var report string
	r, err := scanRun(db.conn.QueryRow(`SELECT `+runColumns+`, report FROM runs WHERE id = ?`, id), &report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: run %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get run: %w", err)
	}
	r.Report = report
	return &r, nil
}

// latestRunID returns the id of the newest run, or "" when there is none.
func (db *DB) latestRunID() (string, error) {
	var id string
	err := db.conn.QueryRow(`SELECT id FROM runs ORDER BY seq DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: latest run: %w", err)
	}
	return id, nil
}

// Issues returns the findings of a run, optionally filtered by kind.
func (db *DB) Issues(runID, kind string) ([]IssueRow, error) {
	rows, err := db.conn.Query(`
		SELECT kind, subject, detail FROM issues
		WHERE run_id = ? AND (? = '' OR kind = ?)
		ORDER BY rowid
	`, runID, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("index: issues: %w", err)
	}
	defer rows.Close()

	var out []IssueRow
	for rows.Next() {
		var r IssueRow
		if err := rows.Scan(&r.Kind, &r.Subject, &r.Detail); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Backlinks returns the permalinks linking to target in the latest run.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT source FROM links
		WHERE target = ? AND run_id = (SELECT id FROM runs ORDER BY seq DESC LIMIT 1)
		ORDER BY source
	`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
