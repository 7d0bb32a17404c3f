// Package contentservice is the shared domain layer behind the HTTP API and
// the MCP server. It keeps the latest engine result and answers queries
// against it, falling back to run history for search and listings.
package contentservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/engine"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/report"
	"github.com/starford/quire/internal/revision"
)

// DocumentItem is a lightweight item in a list response.
type DocumentItem struct {
	Permalink string        `json:"permalink"`
	Title     string        `json:"title"`
	Layout    models.Layout `json:"layout"`
	Status    models.Status `json:"status"`
	Source    string        `json:"source"`
}

// DocumentDetail is the full representation of one permalink. Documents
// holds every registration under it, in registration order.
type DocumentDetail struct {
	Permalink   string             `json:"permalink"`
	Documents   []*models.Document `json:"documents"`
	Duplicate   bool               `json:"duplicate"`
	Links       []string           `json:"links"`
	BrokenLinks []string           `json:"broken_links"`
	Backlinks   []string           `json:"backlinks"`
}

// Revisions is the revision section of the latest report.
type Revisions struct {
	Revisions        []revision.Group `json:"revisions"`
	Ambiguous        []revision.Group `json:"ambiguous"`
	UnresolvedDrafts []revision.Group `json:"unresolved_drafts"`
}

// RunDetail is one recorded run with its stored report and findings.
type RunDetail struct {
	Run    index.RunRow     `json:"run"`
	Report json.RawMessage  `json:"report"`
	Issues []index.IssueRow `json:"issues"`
}

// Service coordinates the engine and run history.
type Service struct {
	eng     *engine.Engine
	history index.History
	logger  *slog.Logger

	latest atomic.Pointer[engine.Result]
	runMu  sync.Mutex
}

// NewService creates a new content service. history may be nil.
func NewService(eng *engine.Engine, history index.History, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{eng: eng, history: history, logger: logger}
}

// Refresh runs the engine and publishes the result.
func (s *Service) Refresh(ctx context.Context) (*engine.Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	res, err := s.eng.Run(ctx)
	if err != nil {
		return nil, err
	}
	s.Publish(res)
	return res, nil
}

// Publish makes res the latest result and records it in run history.
func (s *Service) Publish(res *engine.Result) {
	s.latest.Store(res)
	if s.history == nil {
		return
	}
	if err := s.history.SaveRun(res, s.Failed(res.Report)); err != nil {
		s.logger.Error("contentservice: save run failed",
			slog.String("run_id", res.Report.RunID),
			slog.String("error", err.Error()))
	}
}

// Latest returns the latest result, running the engine if there is none.
func (s *Service) Latest(ctx context.Context) (*engine.Result, error) {
	if res := s.latest.Load(); res != nil {
		return res, nil
	}
	return s.Refresh(ctx)
}

// Ready reports whether a result has been published.
func (s *Service) Ready() bool {
	return s.latest.Load() != nil
}

// Failed applies the configured failure policy to rep.
func (s *Service) Failed(rep *report.Report) bool {
	return rep.Failed(s.eng.ReportOptions())
}

// Report returns the latest report.
func (s *Service) Report(ctx context.Context) (*report.Report, error) {
	res, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return res.Report, nil
}

// ListDocuments lists registered documents, optionally filtered by status.
func (s *Service) ListDocuments(ctx context.Context, status models.Status) ([]DocumentItem, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("contentservice: %w: unknown status %q", apperr.ErrInvalidDocument, status)
	}
	res, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	items := []DocumentItem{}
	for doc := range res.Registry.All(status) {
		items = append(items, DocumentItem{
			Permalink: doc.Permalink,
			Title:     doc.Title,
			Layout:    doc.Layout,
			Status:    doc.Status,
			Source:    doc.Source,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Permalink < items[j].Permalink })
	return items, nil
}

// GetDocument returns everything known about one permalink.
func (s *Service) GetDocument(ctx context.Context, permalink string) (*DocumentDetail, error) {
	res, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	docs := res.Registry.LookupAll(permalink)
	if len(docs) == 0 {
		return nil, fmt.Errorf("contentservice: document %s: %w", permalink, apperr.ErrNotFound)
	}

	d := &DocumentDetail{
		Permalink:   permalink,
		Documents:   docs,
		Links:       []string{},
		BrokenLinks: []string{},
		Backlinks:   []string{},
	}
	published := 0
	for _, doc := range docs {
		if doc.Status == models.StatusPublished {
			published++
		}
	}
	d.Duplicate = published > 1

	for _, ref := range res.References {
		if ref.Source == permalink && !contains(d.Links, ref.Target) {
			d.Links = append(d.Links, ref.Target)
		}
	}
	for _, l := range res.Report.BrokenLinks {
		if l.Source == permalink {
			d.BrokenLinks = append(d.BrokenLinks, l.Target)
		}
	}
	for _, ref := range res.Backlinks(permalink) {
		if !contains(d.Backlinks, ref.Source) {
			d.Backlinks = append(d.Backlinks, ref.Source)
		}
	}
	return d, nil
}

// BrokenLinks returns the broken cross-references of the latest run.
func (s *Service) BrokenLinks(ctx context.Context) ([]models.CrossReference, error) {
	rep, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	return rep.BrokenLinks, nil
}

// Revisions returns the revision groups of the latest run.
func (s *Service) Revisions(ctx context.Context) (*Revisions, error) {
	rep, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	return &Revisions{
		Revisions:        rep.Revisions,
		Ambiguous:        rep.Ambiguous,
		UnresolvedDrafts: rep.UnresolvedDrafts,
	}, nil
}

// Backlinks returns the permalinks that link to target in the latest run,
// read from the history index when one is configured.
func (s *Service) Backlinks(ctx context.Context, target string) ([]string, error) {
	res, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if s.history != nil {
		sources, err := s.history.Backlinks(target)
		if err != nil {
			return nil, err
		}
		if sources == nil {
			sources = []string{}
		}
		return sources, nil
	}
	out := []string{}
	for _, ref := range res.Backlinks(target) {
		if !contains(out, ref.Source) {
			out = append(out, ref.Source)
		}
	}
	return out, nil
}

// Search finds documents by title or body text. It uses the history index
// when one is configured and scans the latest registry otherwise.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.history != nil {
		if _, err := s.Latest(ctx); err != nil {
			return nil, err
		}
		res, err := s.history.Search(query, limit)
		if err != nil {
			return nil, err
		}
		if res == nil {
			res = []index.SearchResult{}
		}
		return res, nil
	}

	res, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
	out := []index.SearchResult{}
	for doc := range res.Registry.All("") {
		if len(out) == limit {
			break
		}
		if !re.MatchString(doc.Title) && !re.MatchString(doc.Body) {
			continue
		}
		out = append(out, index.SearchResult{Permalink: doc.Permalink, Title: doc.Title, Snippet: snippet(doc.Body, re)})
	}
	return out, nil
}

// Runs lists recorded runs, newest first. Without history it returns only
// the in-memory latest run.
func (s *Service) Runs(ctx context.Context, limit int) ([]index.RunRow, error) {
	if s.history != nil {
		runs, err := s.history.ListRuns(limit)
		if err != nil {
			return nil, err
		}
		if runs == nil {
			runs = []index.RunRow{}
		}
		return runs, nil
	}
	res := s.latest.Load()
	if res == nil {
		return []index.RunRow{}, nil
	}
	return []index.RunRow{s.runRow(res.Report)}, nil
}

func (s *Service) runRow(rep *report.Report) index.RunRow {
	return index.RunRow{
		ID:          rep.RunID,
		Root:        rep.Root,
		StartedAt:   rep.StartedAt,
		DurationMS:  rep.DurationMS,
		Files:       rep.Files,
		Documents:   rep.Documents,
		Duplicates:  len(rep.Duplicates),
		BrokenLinks: len(rep.BrokenLinks),
		Ambiguous:   len(rep.Ambiguous),
		Failed:      s.Failed(rep),
	}
}

// Run returns one run with its findings, optionally filtered by issue kind.
// Without history only the in-memory latest run can be found.
func (s *Service) Run(_ context.Context, id, kind string) (*RunDetail, error) {
	if s.history != nil {
		run, err := s.history.GetRun(id)
		if err != nil {
			return nil, err
		}
		issues, err := s.history.Issues(id, kind)
		if err != nil {
			return nil, err
		}
		if issues == nil {
			issues = []index.IssueRow{}
		}
		return &RunDetail{Run: *run, Report: json.RawMessage(run.Report), Issues: issues}, nil
	}

	res := s.latest.Load()
	if res == nil || res.Report.RunID != id {
		return nil, fmt.Errorf("contentservice: run %s: %w", id, apperr.ErrNotFound)
	}
	rep := res.Report
	raw, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("contentservice: encode report: %w", err)
	}
	issues := []index.IssueRow{}
	for _, is := range index.IssuesOf(rep) {
		if kind == "" || is.Kind == kind {
			issues = append(issues, is)
		}
	}
	return &RunDetail{Run: s.runRow(rep), Report: raw, Issues: issues}, nil
}

// snippet returns the text around the first match of re in body, cut on
// rune boundaries. Without a match it returns the start of body.
func snippet(body string, re *regexp.Regexp) string {
	i, j := 0, 0
	if loc := re.FindStringIndex(body); loc != nil {
		i, j = loc[0], loc[1]
	}
	start := max(0, i-60)
	end := min(len(body), j+60)
	for start > 0 && !utf8.RuneStart(body[start]) {
		start--
	}
	for end < len(body) && !utf8.RuneStart(body[end]) {
		end++
	}
	return body[start:end]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
