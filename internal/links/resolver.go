// Package links checks that internal cross-references between documents
// resolve to registered, published permalinks.
package links

import (
	"path"
	"sort"
	"strings"

	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/permalink"
	"github.com/starford/quire/internal/registry"
)

// defaultAssetExts are extensions that address static files rather than
// documents; links to them are not checked.
var defaultAssetExts = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico",
	".pdf", ".zip", ".css", ".js", ".xml", ".json", ".txt",
}

// Options tune which targets are considered.
type Options struct {
	// Ignore holds path.Match globs matched against normalized targets.
	Ignore []string
	// AssetExts overrides the default list of non-document extensions.
	AssetExts []string
}

// Resolver extracts cross-references from document bodies and checks them
// against a registry.
type Resolver struct {
	ignore    []string
	assetExts []string
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	exts := opts.AssetExts
	if len(exts) == 0 {
		exts = defaultAssetExts
	}
	return &Resolver{ignore: opts.Ignore, assetExts: exts}
}

// Report maps a source permalink to its broken targets.
type Report map[string][]string

// Count returns the number of (source, target) pairs.
func (r Report) Count() int {
	n := 0
	for _, targets := range r {
		n += len(targets)
	}
	return n
}

// Pairs flattens the report, sorted by source then target.
func (r Report) Pairs() []models.CrossReference {
	sources := make([]string, 0, len(r))
	for s := range r {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	out := make([]models.CrossReference, 0, r.Count())
	for _, s := range sources {
		for _, t := range r[s] {
			out = append(out, models.CrossReference{Source: s, Target: t})
		}
	}
	return out
}

// References returns the internal cross-references of doc, one per distinct
// normalized target, in first-seen order.
func (rv *Resolver) References(doc *models.Document) []models.CrossReference {
	seen := make(map[string]struct{})
	var out []models.CrossReference
	for _, raw := range parser.ExtractLinks(doc.Body) {
		target, ok := rv.target(raw)
		if !ok {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, models.CrossReference{Source: doc.Permalink, Target: target, Raw: raw})
	}
	return out
}

// Resolve scans every registered document and reports targets with no
// published document behind them. It only reads the registry.
func (rv *Resolver) Resolve(reg *registry.Registry) Report {
	broken := make(map[string]map[string]struct{})
	for doc := range reg.All("") {
		for _, ref := range rv.References(doc) {
			if _, err := reg.LookupPublished(ref.Target); err == nil {
				continue
			}
			set, ok := broken[ref.Source]
			if !ok {
				set = make(map[string]struct{})
				broken[ref.Source] = set
			}
			set[ref.Target] = struct{}{}
		}
	}

	out := make(Report, len(broken))
	for src, set := range broken {
		targets := make([]string, 0, len(set))
		for t := range set {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		out[src] = targets
	}
	return out
}

// target filters and normalizes a raw link destination.
func (rv *Resolver) target(raw string) (string, bool) {
	if !permalink.IsSiteRelative(raw) {
		return "", false
	}
	t := permalink.Normalize(raw)
	if t == "" {
		return "", false
	}
	ext := strings.ToLower(path.Ext(t))
	for _, a := range rv.assetExts {
		if ext == a {
			return "", false
		}
	}
	for _, pattern := range rv.ignore {
		if ok, _ := path.Match(pattern, t); ok {
			return "", false
		}
	}
	return t, true
}
