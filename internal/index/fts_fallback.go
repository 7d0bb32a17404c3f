//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/quire/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the documents table.
	return nil
}

func ftsReplace(_ *sql.Tx, _ []*models.Document) error {
	// Bodies are already stored in the documents table.
	return nil
}

// Search performs a LIKE-based search over the latest run (fallback when
// FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	runID, err := db.latestRunID()
	if err != nil || runID == "" {
		return nil, err
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT permalink, title, substr(body, 1, 200)
		FROM documents
		WHERE run_id = ? AND (title LIKE ? OR body LIKE ?)
		ORDER BY permalink
		LIMIT ?
	`, runID, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Permalink, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
