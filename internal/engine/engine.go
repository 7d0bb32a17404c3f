// Package engine runs the full validation pipeline over a content tree:
// scan, resolve links, reconcile revisions and build the report.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/quire/internal/links"
	"github.com/starford/quire/internal/metrics"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/registry"
	"github.com/starford/quire/internal/report"
	"github.com/starford/quire/internal/revision"
	"github.com/starford/quire/internal/scan"
	"github.com/starford/quire/internal/storage"
)

// Options configure one engine.
type Options struct {
	Scan   scan.Options
	Links  links.Options
	Report report.Options
}

// Result is everything one run produced. The registry is sealed and safe to
// share between readers.
type Result struct {
	Report   *report.Report
	Registry *registry.Registry
	// References holds every internal cross-reference, broken or not.
	References []models.CrossReference
}

// Engine wires the pipeline stages together.
type Engine struct {
	store    storage.Provider
	opts     Options
	logger   *slog.Logger
	metrics  *metrics.Metrics
	scanner  *scan.Scanner
	resolver *links.Resolver
}

// New creates an Engine. m may be nil.
func New(store storage.Provider, opts Options, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		opts:     opts,
		logger:   logger,
		metrics:  m,
		scanner:  scan.New(store, opts.Scan, logger),
		resolver: links.NewResolver(opts.Links),
	}
}

// Run validates the content tree under store with default wiring.
func Run(ctx context.Context, store storage.Provider, opts Options) (*Result, error) {
	return New(store, opts, nil, nil).Run(ctx)
}

// Scanner exposes the scanner, for callers that only format files.
func (e *Engine) Scanner() *scan.Scanner {
	return e.scanner
}

// Resolver exposes the link resolver used by runs.
func (e *Engine) Resolver() *links.Resolver {
	return e.resolver
}

// ReportOptions returns the failure policy the engine records metrics with.
func (e *Engine) ReportOptions() report.Options {
	return e.opts.Report
}

// Run executes one full pass.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	sr, err := e.scanner.Scan(ctx)
	if err != nil {
		if e.metrics != nil {
			e.metrics.ObserveError()
		}
		return nil, fmt.Errorf("engine: %w", err)
	}

	broken := e.resolver.Resolve(sr.Registry)
	rev := revision.Reconcile(sr.Registry)
	for _, err := range rev.Errors() {
		e.logger.Debug("engine: revision conflict", slog.String("error", err.Error()))
	}

	var refs []models.CrossReference
	for doc := range sr.Registry.All("") {
		refs = append(refs, e.resolver.References(doc)...)
	}

	rep := report.Build(e.store.Root(), started, sr, broken, rev)
	res := &Result{Report: rep, Registry: sr.Registry, References: refs}

	failed := rep.Failed(e.opts.Report)
	e.logger.Info("engine: run complete",
		slog.String("run_id", rep.RunID),
		slog.Int("files", rep.Files),
		slog.Int("documents", rep.Documents),
		slog.Int("duplicates", len(rep.Duplicates)),
		slog.Int("broken_links", len(rep.BrokenLinks)),
		slog.Int("ambiguous", len(rep.Ambiguous)),
		slog.Bool("failed", failed),
		slog.Int64("duration_ms", rep.DurationMS))

	if e.metrics != nil {
		e.metrics.ObserveRun(metrics.RunStats{
			Files:     rep.Files,
			Documents: rep.Documents,
			Findings: map[string]int{
				metrics.KindMalformed:       len(rep.Malformed),
				metrics.KindDuplicate:       len(rep.Duplicates),
				metrics.KindBrokenLink:      len(rep.BrokenLinks),
				metrics.KindAmbiguous:       len(rep.Ambiguous),
				metrics.KindUnresolvedDraft: len(rep.UnresolvedDrafts),
			},
			Failed:   failed,
			Duration: time.Since(started),
		})
	}
	return res, nil
}

// Backlinks returns the sources linking to target, sorted by source.
func (r *Result) Backlinks(target string) []models.CrossReference {
	var out []models.CrossReference
	for _, ref := range r.References {
		if ref.Target == target {
			out = append(out, ref)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}
