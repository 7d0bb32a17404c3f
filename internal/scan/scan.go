// Package scan runs one content-scan pass: list files, parse them in
// parallel, and register the documents serially.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/permalink"
	"github.com/starford/quire/internal/registry"
	"github.com/starford/quire/internal/storage"
)

// Malformed records a file excluded from the registry.
type Malformed struct {
	Source string `json:"source" yaml:"source"`
	Reason string `json:"reason" yaml:"reason"`
}

// Result is the outcome of one scan pass. The registry is sealed.
type Result struct {
	Registry  *registry.Registry
	Files     int
	Malformed []Malformed
}

// Scanner builds registries from a content tree.
type Scanner struct {
	store  storage.Provider
	opts   Options
	logger *slog.Logger
}

// New creates a Scanner.
func New(store storage.Provider, opts Options, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{store: store, opts: opts, logger: logger}
}

// Filter returns the storage filter used for listing content files.
func (s *Scanner) Filter() storage.Filter {
	return filter{opts: s.opts}
}

type parsed struct {
	doc *models.Document
	err error
}

// Scan lists, parses and registers every content file. Malformed files are
// recorded and skipped; read failures abort the pass.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	entries, err := s.store.List("", s.Filter())
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	results := make([]parsed, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.workers())
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := s.store.Read(e.Path)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			doc, err := parser.Parse(data)
			results[i] = parsed{doc: doc, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Registry: registry.New(), Files: len(entries)}
	for i, e := range entries {
		p := results[i]
		if p.err != nil {
			s.logger.Warn("scan: malformed document",
				slog.String("path", e.Path),
				slog.String("error", p.err.Error()))
			res.Malformed = append(res.Malformed, Malformed{Source: e.Path, Reason: p.err.Error()})
			continue
		}
		s.Classify(e.Path, p.doc)

		if err := res.Registry.Register(p.doc); err != nil {
			var dup *registry.DuplicateError
			if errors.As(err, &dup) {
				s.logger.Debug("scan: duplicate permalink",
					slog.String("permalink", dup.Permalink),
					slog.String("path", e.Path),
					slog.String("existing", dup.Existing))
				continue
			}
			return nil, fmt.Errorf("scan: register %s: %w", e.Path, err)
		}
	}
	res.Registry.Seal()

	s.logger.Debug("scan: complete",
		slog.Int("files", res.Files),
		slog.Int("documents", res.Registry.Len()),
		slog.Int("malformed", len(res.Malformed)))
	return res, nil
}

// Classify fills the fields that depend on where the file lives: source,
// status, default layout and fallback permalink.
func (s *Scanner) Classify(rel string, doc *models.Document) {
	doc.Source = rel

	doc.Status = models.StatusPublished
	if inDirs(rel, s.opts.DraftDirs) || strings.EqualFold(doc.Extra["published"], "false") {
		doc.Status = models.StatusDraft
	}

	if doc.Layout == "" {
		doc.Layout = models.LayoutPage
		if inDirs(rel, s.opts.PostDirs) || inDirs(rel, s.opts.DraftDirs) {
			doc.Layout = models.LayoutPost
		}
	}

	if p := permalink.Normalize(doc.Permalink); p != "" {
		doc.Permalink = p
	} else {
		strip := append(append([]string{}, s.opts.DraftDirs...), s.opts.PostDirs...)
		doc.Permalink = permalink.FromPath(rel, strip...)
	}
}
