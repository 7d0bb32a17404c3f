// Package report assembles the outcome of one validation run and renders it.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/starford/quire/internal/links"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/registry"
	"github.com/starford/quire/internal/revision"
	"github.com/starford/quire/internal/scan"
)

// Options decide which findings fail a run.
type Options struct {
	FailOnBrokenLinks bool
}

// Report is the machine-readable result of a run. Slices are never nil so
// that encoders emit empty lists.
type Report struct {
	RunID            string                  `json:"run_id" yaml:"run_id"`
	Root             string                  `json:"root" yaml:"root"`
	StartedAt        time.Time               `json:"started_at" yaml:"started_at"`
	DurationMS       int64                   `json:"duration_ms" yaml:"duration_ms"`
	Files            int                     `json:"files" yaml:"files"`
	Documents        int                     `json:"documents" yaml:"documents"`
	Malformed        []scan.Malformed        `json:"malformed" yaml:"malformed"`
	Duplicates       []registry.Conflict     `json:"duplicates" yaml:"duplicates"`
	BrokenLinks      []models.CrossReference `json:"broken_links" yaml:"broken_links"`
	Ambiguous        []revision.Group        `json:"ambiguous" yaml:"ambiguous"`
	UnresolvedDrafts []revision.Group        `json:"unresolved_drafts" yaml:"unresolved_drafts"`
	Revisions        []revision.Group        `json:"revisions" yaml:"revisions"`
}

// Build assembles a report from the stages of one run.
func Build(root string, startedAt time.Time, sr *scan.Result, broken links.Report, rev revision.Result) *Report {
	r := &Report{
		RunID:            uuid.NewString(),
		Root:             root,
		StartedAt:        startedAt.UTC(),
		DurationMS:       time.Since(startedAt).Milliseconds(),
		Files:            sr.Files,
		Documents:        sr.Registry.Len(),
		Malformed:        nonNil(sr.Malformed),
		Duplicates:       nonNil(sr.Registry.Conflicts()),
		BrokenLinks:      nonNil(broken.Pairs()),
		Ambiguous:        nonNil(rev.Ambiguous),
		UnresolvedDrafts: nonNil(rev.UnresolvedDrafts),
		Revisions:        nonNil(rev.Revisions),
	}
	return r
}

// Failed reports whether the run should exit non-zero. Duplicates and
// ambiguous revisions always fail; broken links only when opts say so.
func (r *Report) Failed(opts Options) bool {
	if len(r.Duplicates) > 0 || len(r.Ambiguous) > 0 {
		return true
	}
	return opts.FailOnBrokenLinks && len(r.BrokenLinks) > 0
}

// Clean reports whether the run found nothing at all worth mentioning.
func (r *Report) Clean() bool {
	return len(r.Malformed) == 0 && len(r.Duplicates) == 0 && len(r.BrokenLinks) == 0 &&
		len(r.Ambiguous) == 0 && len(r.UnresolvedDrafts) == 0
}

// Summary holds the per-category counts of a report.
type Summary struct {
	Files            int `json:"files"`
	Documents        int `json:"documents"`
	Malformed        int `json:"malformed"`
	Duplicates       int `json:"duplicates"`
	BrokenLinks      int `json:"broken_links"`
	Ambiguous        int `json:"ambiguous"`
	UnresolvedDrafts int `json:"unresolved_drafts"`
	Revisions        int `json:"revisions"`
}

// Summary returns the counts of r.
func (r *Report) Summary() Summary {
	return Summary{
		Files:            r.Files,
		Documents:        r.Documents,
		Malformed:        len(r.Malformed),
		Duplicates:       len(r.Duplicates),
		BrokenLinks:      len(r.BrokenLinks),
		Ambiguous:        len(r.Ambiguous),
		UnresolvedDrafts: len(r.UnresolvedDrafts),
		Revisions:        len(r.Revisions),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
