// Package storage defines the content-tree file-system abstraction.
package storage

import "time"

// Entry describes one file under the content root.
type Entry struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filter decides which directories are walked and which files are listed.
// Paths are relative to the content root and use forward slashes.
type Filter interface {
	SkipDir(rel string) bool
	Include(rel string) bool
}

// Provider is the interface for content file operations.
type Provider interface {
	// Root returns the absolute content root.
	Root() string
	// List returns every file under dir (relative to root) accepted by f.
	// A nil filter lists every file.
	List(dir string, f Filter) ([]Entry, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
}
