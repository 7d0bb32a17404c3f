package scan

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/quire/internal/parser"
)

// Format rewrites the front-matter of every content file into canonical
// form (recognized keys first, remaining keys sorted). Values keep their
// YAML types and the file keeps its newline style. Files without
// front-matter and malformed files are left alone. It returns the paths
// whose bytes differ; they are only written when write is true.
func (s *Scanner) Format(ctx context.Context, write bool) ([]string, error) {
	entries, err := s.store.List("", s.Filter())
	if err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}

	var changed []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		data, err := s.store.Read(e.Path)
		if err != nil {
			return changed, fmt.Errorf("format: %w", err)
		}
		if !parser.HasFrontmatter(data) {
			continue
		}
		out, err := parser.Canonicalize(data)
		if parser.IsMalformed(err) {
			s.logger.Warn("format: skipping malformed document",
				slog.String("path", e.Path),
				slog.String("error", err.Error()))
			continue
		}
		if err != nil {
			return changed, fmt.Errorf("format %s: %w", e.Path, err)
		}
		if bytes.Equal(out, data) {
			continue
		}
		changed = append(changed, e.Path)
		if !write {
			continue
		}
		if err := s.store.Write(e.Path, out); err != nil {
			return changed, fmt.Errorf("format: %w", err)
		}
		s.logger.Info("format: rewrote front-matter", slog.String("path", e.Path))
	}
	return changed, nil
}
