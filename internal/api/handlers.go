package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quire/internal/contentservice"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/permalink"
)

// Handler holds API route handlers.
type Handler struct {
	svc *contentservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *contentservice.Service) *Handler {
	return &Handler{svc: svc}
}

// permalinkParam extracts the permalink from the wildcard URL segment.
// Supports encoded slashes from OpenAPI clients (e.g. java%2Fuseful-classes).
func permalinkParam(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return permalink.Normalize("/" + raw)
}

// GetReport handles GET /report.
//
//	@Summary		Latest validation report
//	@Tags			report
//	@Produce		json
//	@Success		200	{object}	report.Report
//	@Security		BearerAuth
//	@Router			/report [get]
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Report(r.Context())
	if err != nil {
		writeError(w, r, "get report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Refresh handles POST /report/refresh.
//
//	@Summary		Re-run validation now
//	@Tags			report
//	@Produce		json
//	@Success		200	{object}	report.Report
//	@Security		BearerAuth
//	@Router			/report/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Refresh(r.Context())
	if err != nil {
		writeError(w, r, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, res.Report)
}

// ListDocuments handles GET /documents.
//
//	@Summary		List registered documents
//	@Tags			documents
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"	Enums(draft, published)
//	@Success		200		{object}	DocumentListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.URL.Query().Get("status"))
	items, err := h.svc.ListDocuments(r.Context(), status)
	if err != nil {
		writeError(w, r, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: len(items)})
}

// GetDocument handles GET /documents/*.
//
//	@Summary		Get every document registered under a permalink
//	@Tags			documents
//	@Produce		json
//	@Param			permalink	path		string	true	"Permalink"
//	@Success		200			{object}	DocumentDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{permalink} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	link := permalinkParam(r)
	doc, err := h.svc.GetDocument(r.Context(), link)
	if err != nil {
		writeError(w, r, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Backlinks handles GET /backlinks/*.
//
//	@Summary		Permalinks linking to a target
//	@Tags			documents
//	@Produce		json
//	@Param			permalink	path		string	true	"Target permalink"
//	@Success		200			{object}	BacklinksResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{permalink} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	link := permalinkParam(r)
	bl, err := h.svc.Backlinks(r.Context(), link)
	if err != nil {
		writeError(w, r, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Target: link, Backlinks: bl})
}

// BrokenLinks handles GET /links/broken.
//
//	@Summary		Broken internal links of the latest run
//	@Tags			findings
//	@Produce		json
//	@Success		200	{object}	BrokenLinksResponse
//	@Security		BearerAuth
//	@Router			/links/broken [get]
func (h *Handler) BrokenLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.BrokenLinks(r.Context())
	if err != nil {
		writeError(w, r, "broken links", err)
		return
	}
	writeJSON(w, http.StatusOK, BrokenLinksResponse{Links: links})
}

// Revisions handles GET /revisions.
//
//	@Summary		Revision groups of the latest run
//	@Tags			findings
//	@Produce		json
//	@Success		200	{object}	contentservice.Revisions
//	@Security		BearerAuth
//	@Router			/revisions [get]
func (h *Handler) Revisions(w http.ResponseWriter, r *http.Request) {
	rev, err := h.svc.Revisions(r.Context())
	if err != nil {
		writeError(w, r, "revisions", err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// Search handles GET /search.
//
//	@Summary		Full-text search across documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// ListRuns handles GET /runs.
//
//	@Summary		Recorded validation runs, newest first
//	@Tags			history
//	@Produce		json
//	@Param			limit	query		int	false	"Max runs"
//	@Success		200		{object}	RunsResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, r, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

// GetRun handles GET /runs/{id}.
//
//	@Summary		One recorded run with its stored report and findings
//	@Tags			history
//	@Produce		json
//	@Param			id		path		string	true	"Run ID"
//	@Param			kind	query		string	false	"Filter findings by kind"	Enums(malformed, duplicate_permalink, broken_link, ambiguous_revision, unresolved_draft)
//	@Success		200		{object}	contentservice.RunDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Run(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, r, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
