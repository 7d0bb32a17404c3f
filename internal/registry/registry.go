// Package registry holds the documents of one content-scan pass, indexed by
// permalink, and surfaces permalink conflicts instead of overwriting.
package registry

import (
	"fmt"
	"iter"
	"sort"
	"sync"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
)

// DuplicateError is returned by Register when a published permalink is
// already taken. It unwraps to apperr.ErrDuplicatePermalink.
type DuplicateError struct {
	Permalink string
	Existing  string // source of the first published document
	Source    string // source of the rejected-but-retained document
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate permalink %q: %s conflicts with %s", e.Permalink, e.Source, e.Existing)
}

func (e *DuplicateError) Unwrap() error { return apperr.ErrDuplicatePermalink }

// Conflict lists every published document claiming one permalink.
type Conflict struct {
	Permalink string   `json:"permalink" yaml:"permalink"`
	Sources   []string `json:"sources" yaml:"sources"`
}

// Registry is an arena of documents with a permalink index. Writes are
// serialized; once sealed the registry only serves reads.
type Registry struct {
	mu     sync.RWMutex
	docs   []*models.Document
	byLink map[string][]int
	dupes  map[string]struct{}
	sealed bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byLink: make(map[string][]int),
		dupes:  make(map[string]struct{}),
	}
}

// Register inserts doc. Every document is retained; a second published
// document under the same permalink is flagged and reported through a
// *DuplicateError.
func (r *Registry) Register(doc *models.Document) error {
	if doc == nil || doc.Permalink == "" {
		return fmt.Errorf("registry: register: %w: empty permalink", apperr.ErrInvalidDocument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("registry: register %s: %w", doc.Permalink, apperr.ErrSealed)
	}

	var existing *models.Document
	if doc.Status == models.StatusPublished {
		for _, i := range r.byLink[doc.Permalink] {
			if d := r.docs[i]; d.Status == models.StatusPublished {
				existing = d
				break
			}
		}
	}

	r.docs = append(r.docs, doc)
	r.byLink[doc.Permalink] = append(r.byLink[doc.Permalink], len(r.docs)-1)

	if existing != nil {
		r.dupes[doc.Permalink] = struct{}{}
		return &DuplicateError{Permalink: doc.Permalink, Existing: existing.Source, Source: doc.Source}
	}
	return nil
}

// Seal makes the registry read-only for the rest of the run.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Len returns the number of registered documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Lookup returns the most recently registered document with permalink.
func (r *Registry) Lookup(permalink string) (*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.byLink[permalink]
	if len(idx) == 0 {
		return nil, apperr.ErrNotFound
	}
	return r.docs[idx[len(idx)-1]], nil
}

// LookupPublished is Lookup restricted to published documents.
func (r *Registry) LookupPublished(permalink string) (*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.byLink[permalink]
	for i := len(idx) - 1; i >= 0; i-- {
		if d := r.docs[idx[i]]; d.Status == models.StatusPublished {
			return d, nil
		}
	}
	return nil, apperr.ErrNotFound
}

// LookupAll returns every document registered under permalink, in
// registration order.
func (r *Registry) LookupAll(permalink string) []*models.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.byLink[permalink]
	out := make([]*models.Document, 0, len(idx))
	for _, i := range idx {
		out = append(out, r.docs[i])
	}
	return out
}

// All yields documents with the given status in registration order. An
// empty status yields every document. Each call walks the arena afresh.
func (r *Registry) All(status models.Status) iter.Seq[*models.Document] {
	return func(yield func(*models.Document) bool) {
		r.mu.RLock()
		docs := r.docs[:len(r.docs):len(r.docs)]
		r.mu.RUnlock()

		for _, d := range docs {
			if status != "" && d.Status != status {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// Conflicts returns one entry per permalink claimed by more than one
// published document, sorted by permalink.
func (r *Registry) Conflicts() []Conflict {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conflict, 0, len(r.dupes))
	for link := range r.dupes {
		c := Conflict{Permalink: link}
		for _, i := range r.byLink[link] {
			if d := r.docs[i]; d.Status == models.StatusPublished {
				c.Sources = append(c.Sources, d.Source)
			}
		}
		sort.Strings(c.Sources)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Permalink < out[j].Permalink })
	return out
}
