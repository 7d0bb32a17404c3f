// Package revision groups drafts and published documents that share a
// title-derived identity and picks the canonical member of each group.
package revision

import (
	"fmt"
	"sort"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/registry"
)

// State is the terminal state of a revision group.
type State string

// Group states. Every group starts collected and ends in one of the other
// three within a run.
const (
	StateCollected       State = "collected"
	StateCanonical       State = "canonical"
	StateAmbiguous       State = "ambiguous"
	StateUnresolvedDraft State = "unresolved-draft"
)

// Member is one document in a group.
type Member struct {
	Permalink string        `json:"permalink" yaml:"permalink"`
	Source    string        `json:"source" yaml:"source"`
	Title     string        `json:"title" yaml:"title"`
	Status    models.Status `json:"status" yaml:"status"`
	// Identical is set on superseded members whose body matches the
	// canonical body apart from line endings and trailing whitespace.
	Identical bool `json:"identical,omitempty" yaml:"identical,omitempty"`

	checksum string
}

// Group is the set of documents sharing one normalized title key.
type Group struct {
	Key        string   `json:"key" yaml:"key"`
	State      State    `json:"state" yaml:"state"`
	Canonical  *Member  `json:"canonical,omitempty" yaml:"canonical,omitempty"`
	Superseded []Member `json:"superseded,omitempty" yaml:"superseded,omitempty"`
	Members    []Member `json:"members" yaml:"members"`
}

// Err returns an error wrapping apperr.ErrAmbiguousRevision for ambiguous
// groups and nil otherwise.
func (g *Group) Err() error {
	if g.State != StateAmbiguous {
		return nil
	}
	return fmt.Errorf("revision group %q: %w: %d published members", g.Key, apperr.ErrAmbiguousRevision, g.published())
}

func (g *Group) published() int {
	n := 0
	for _, m := range g.Members {
		if m.Status == models.StatusPublished {
			n++
		}
	}
	return n
}

// settle moves a collected group to its terminal state.
func (g *Group) settle() {
	if g.State != StateCollected {
		return
	}
	switch g.published() {
	case 0:
		g.State = StateUnresolvedDraft
	case 1:
		g.State = StateCanonical
		for i := range g.Members {
			if g.Members[i].Status == models.StatusPublished {
				c := g.Members[i]
				g.Canonical = &c
				break
			}
		}
		for _, m := range g.Members {
			if m.Status == models.StatusPublished {
				continue
			}
			m.Identical = m.checksum != "" && m.checksum == g.Canonical.checksum
			g.Superseded = append(g.Superseded, m)
		}
	default:
		g.State = StateAmbiguous
	}
}

// Result partitions the settled groups.
type Result struct {
	// Revisions are canonical groups with at least one superseded draft.
	Revisions        []Group `json:"revisions" yaml:"revisions"`
	Ambiguous        []Group `json:"ambiguous" yaml:"ambiguous"`
	UnresolvedDrafts []Group `json:"unresolved_drafts" yaml:"unresolved_drafts"`
}

// Reconcile groups every registered document by title key and settles each
// group. Single published documents are canonical and not reported.
func Reconcile(reg *registry.Registry) Result {
	groups := make(map[string]*Group)
	var order []string

	for doc := range reg.All("") {
		key := keyFor(doc.Title, doc.Permalink)
		g, ok := groups[key]
		if !ok {
			g = &Group{Key: key, State: StateCollected}
			groups[key] = g
			order = append(order, key)
		}
		g.Members = append(g.Members, Member{
			Permalink: doc.Permalink,
			Source:    doc.Source,
			Title:     doc.Title,
			Status:    doc.Status,
			checksum:  doc.Checksum,
		})
	}

	sort.Strings(order)
	var res Result
	for _, key := range order {
		g := groups[key]
		g.settle()
		switch g.State {
		case StateAmbiguous:
			res.Ambiguous = append(res.Ambiguous, *g)
		case StateUnresolvedDraft:
			res.UnresolvedDrafts = append(res.UnresolvedDrafts, *g)
		case StateCanonical:
			if len(g.Superseded) > 0 {
				res.Revisions = append(res.Revisions, *g)
			}
		}
	}
	return res
}

// Errors returns one error per ambiguous group.
func (r Result) Errors() []error {
	var out []error
	for i := range r.Ambiguous {
		if err := r.Ambiguous[i].Err(); err != nil {
			out = append(out, err)
		}
	}
	return out
}
