package contentservice

import (
	"context"

	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/permalink"
	"github.com/starford/quire/internal/revision"
)

// Validation is the outcome of checking one document against the latest
// registry without writing it.
type Validation struct {
	Valid bool `json:"valid"`
	// Malformed holds the parse error when the front-matter is unusable.
	Malformed string           `json:"malformed,omitempty"`
	Document  *models.Document `json:"document,omitempty"`
	// DuplicateOf lists sources of other published documents that already
	// claim the permalink.
	DuplicateOf []string `json:"duplicate_of"`
	Links       []string `json:"links"`
	BrokenLinks []string `json:"broken_links"`
	// Revisions lists permalinks of registered documents with the same
	// title key.
	Revisions []string `json:"revisions"`
	// CustomLayout is set when the layout is neither post nor page.
	CustomLayout bool `json:"custom_layout,omitempty"`
}

// Validate parses content as if it lived at path (root-relative, may be
// empty) and checks it against the latest run.
func (s *Service) Validate(ctx context.Context, path string, content []byte) (*Validation, error) {
	v := &Validation{DuplicateOf: []string{}, Links: []string{}, BrokenLinks: []string{}, Revisions: []string{}}

	doc, err := parser.Parse(content)
	if err != nil {
		v.Malformed = err.Error()
		return v, nil
	}
	if path != "" {
		s.eng.Scanner().Classify(path, doc)
	} else {
		doc.Status = models.StatusPublished
		doc.Permalink = permalink.Normalize(doc.Permalink)
	}
	v.Document = doc
	v.CustomLayout = doc.Layout != "" && !doc.Layout.Known()

	res, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}

	if doc.Permalink != "" && !doc.IsDraft() {
		for _, other := range res.Registry.LookupAll(doc.Permalink) {
			if other.Status == models.StatusPublished && other.Source != doc.Source {
				v.DuplicateOf = append(v.DuplicateOf, other.Source)
			}
		}
	}

	for _, ref := range s.eng.Resolver().References(doc) {
		v.Links = append(v.Links, ref.Target)
		if ref.Target == doc.Permalink && !doc.IsDraft() {
			continue
		}
		if _, err := res.Registry.LookupPublished(ref.Target); err != nil {
			v.BrokenLinks = append(v.BrokenLinks, ref.Target)
		}
	}

	key := revision.Key(doc.Title)
	if key != "" {
		for other := range res.Registry.All("") {
			if other.Source != doc.Source && revision.Key(other.Title) == key {
				v.Revisions = append(v.Revisions, other.Permalink)
			}
		}
	}

	v.Valid = len(v.DuplicateOf) == 0 && len(v.BrokenLinks) == 0
	return v, nil
}
