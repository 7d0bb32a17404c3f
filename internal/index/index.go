package index

import "github.com/starford/quire/internal/engine"

// History is the run-history surface used by the API, the MCP server and
// the CLI. Consumers depend on it rather than on *DB.
type History interface {
	SaveRun(res *engine.Result, failed bool) error
	ListRuns(limit int) ([]RunRow, error)
	GetRun(id string) (*RunRow, error)
	Issues(runID, kind string) ([]IssueRow, error)
	Backlinks(target string) ([]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies History at compile time.
var _ History = (*DB)(nil)
