package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/revision"
)

// Format names an output encoding.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the accepted format names.
var Formats = []string{string(FormatText), string(FormatJSON), string(FormatYAML)}

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("report: unknown format %q (want one of %s)", s, strings.Join(Formats, ", "))
	}
}

// Write renders r to w in the given format.
func Write(w io.Writer, f Format, r *Report, opts Options) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return writeText(w, r, opts)
	default:
		return fmt.Errorf("report: unknown format %q", f)
	}
}

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// textWriter remembers the first write error so the formatter can stay flat.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func writeText(w io.Writer, r *Report, opts Options) error {
	t := &textWriter{w: w}
	t.printf("Checking content in: %s\n", r.Root)
	t.printf("%s\n\n", rule)

	for _, m := range r.Malformed {
		t.printf("✗ %s\n  malformed: %s\n\n", m.Source, m.Reason)
	}
	for _, d := range r.Duplicates {
		t.printf("✗ %s\n  duplicate permalink claimed by:\n", d.Permalink)
		for _, src := range d.Sources {
			t.printf("    - %s\n", src)
		}
		t.printf("\n")
	}
	for _, g := range r.Ambiguous {
		t.printf("✗ %q\n  ambiguous revision: %d published documents\n", g.Key, countPublished(g))
		writeMembers(t, g.Members)
		t.printf("\n")
	}
	brokenIcon := "⚠"
	if opts.FailOnBrokenLinks {
		brokenIcon = "✗"
	}
	for _, l := range r.BrokenLinks {
		t.printf("%s %s\n  broken link: %s\n\n", brokenIcon, l.Source, l.Target)
	}
	for _, g := range r.UnresolvedDrafts {
		t.printf("ℹ %q\n  unpublished draft\n", g.Key)
		writeMembers(t, g.Members)
		t.printf("\n")
	}

	t.printf("%s\n", rule)
	t.printf("Results:\n")
	t.printf("  %d files scanned, %d documents registered\n", r.Files, r.Documents)
	counts := []struct {
		n    int
		noun string
	}{
		{len(r.Malformed), "malformed file"},
		{len(r.Duplicates), "duplicate permalink"},
		{len(r.Ambiguous), "ambiguous revision"},
		{len(r.BrokenLinks), "broken link"},
		{len(r.UnresolvedDrafts), "unpublished draft"},
		{len(r.Revisions), "superseded revision group"},
	}
	for _, c := range counts {
		if c.n > 0 {
			t.printf("  %d %s%s\n", c.n, c.noun, pluralize(c.n))
		}
	}
	t.printf("\n")

	switch {
	case r.Failed(opts):
		t.printf("❌ Content has errors.\n")
	case !r.Clean():
		t.printf("⚠️  Content has warnings.\n")
	default:
		t.printf("✨ All content checks passed!\n")
	}
	return t.err
}

func writeMembers(t *textWriter, members []revision.Member) {
	for _, m := range members {
		t.printf("    - %s (%s, %s)\n", m.Permalink, m.Status, m.Source)
	}
}

func countPublished(g revision.Group) int {
	n := 0
	for _, m := range g.Members {
		if m.Status == models.StatusPublished {
			n++
		}
	}
	return n
}

func pluralize(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
