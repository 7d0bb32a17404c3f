package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/quire/internal/contentservice"
	"github.com/starford/quire/internal/engine"
	"github.com/starford/quire/internal/report"
	"github.com/starford/quire/internal/scan"
	"github.com/starford/quire/internal/testutil"
)

var site = map[string]string{
	"index.md":                  "---\ntitle: Home\n---\n[about](/about/) [gone](/gone) [java](/java/useful-classes)\n",
	"about.md":                  "---\ntitle: About\n---\nAbout this searchable site.\n",
	"java/useful-classes.md":    "---\ntitle: Useful Java Classes\n---\n",
	"_drafts/useful-classes.md": "---\ntitle: Useful Java Classes\npermalink: /java/useful-classes-wip\n---\n",
}

// testEnv sets up a temp content tree, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*contentservice.Service, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*contentservice.Service, http.Handler) {
	t.Helper()
	_, store := testutil.ContentTree(t, site)
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	eng := engine.New(store, engine.Options{Scan: scan.DefaultOptions()}, logger, nil)
	svc := contentservice.NewService(eng, db, logger)
	return svc, NewRouter(svc, authEnabled, authToken, sseHandler)
}

func get(t *testing.T, router http.Handler, target string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", target, err)
		}
	}
	return w
}

func TestGetReport(t *testing.T) {
	_, router := testEnv(t, "")

	var rep report.Report
	w := get(t, router, "/report", &rep)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if rep.RunID == "" || rep.Documents != 4 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.BrokenLinks) != 1 || rep.BrokenLinks[0].Target != "/gone" {
		t.Errorf("broken = %+v", rep.BrokenLinks)
	}
}

func TestRefresh(t *testing.T) {
	_, router := testEnv(t, "")

	var first, second report.Report
	get(t, router, "/report", &first)

	req := httptest.NewRequest(http.MethodPost, "/report/refresh", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &second)
	if second.RunID == first.RunID {
		t.Error("refresh reused the previous run")
	}

	var runs RunsResponse
	get(t, router, "/runs", &runs)
	if len(runs.Runs) != 2 || runs.Runs[0].ID != second.RunID {
		t.Errorf("runs = %+v", runs.Runs)
	}
}

func TestListDocuments(t *testing.T) {
	_, router := testEnv(t, "")

	var all DocumentListResponse
	get(t, router, "/documents", &all)
	if all.Total != 4 {
		t.Errorf("total = %d, want 4", all.Total)
	}

	var drafts DocumentListResponse
	get(t, router, "/documents?status=draft", &drafts)
	if drafts.Total != 1 || drafts.Documents[0].Permalink != "/java/useful-classes-wip" {
		t.Errorf("drafts = %+v", drafts)
	}

	if w := get(t, router, "/documents?status=archived", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad status = %d, want 400", w.Code)
	}
}

func TestGetDocument(t *testing.T) {
	_, router := testEnv(t, "")

	var doc DocumentDetail
	w := get(t, router, "/documents/java/useful-classes", &doc)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if doc.Permalink != "/java/useful-classes" || len(doc.Documents) != 1 {
		t.Errorf("doc = %+v", doc)
	}
	if len(doc.Backlinks) != 1 || doc.Backlinks[0] != "/" {
		t.Errorf("backlinks = %v", doc.Backlinks)
	}

	// Encoded slashes and trailing slashes resolve to the same permalink.
	if w := get(t, router, "/documents/java%2Fuseful-classes/", nil); w.Code != http.StatusOK {
		t.Errorf("encoded = %d", w.Code)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := get(t, router, "/documents/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing document = %d, want 404", w.Code)
	}
}

func TestBacklinks(t *testing.T) {
	_, router := testEnv(t, "")

	var bl BacklinksResponse
	get(t, router, "/backlinks/about", &bl)
	if bl.Target != "/about" || len(bl.Backlinks) != 1 || bl.Backlinks[0] != "/" {
		t.Errorf("backlinks = %+v", bl)
	}
}

func TestBrokenLinks(t *testing.T) {
	_, router := testEnv(t, "")

	var resp BrokenLinksResponse
	get(t, router, "/links/broken", &resp)
	if len(resp.Links) != 1 || resp.Links[0].Source != "/" {
		t.Errorf("links = %+v", resp.Links)
	}
}

func TestRevisions(t *testing.T) {
	_, router := testEnv(t, "")

	var rev contentservice.Revisions
	get(t, router, "/revisions", &rev)
	if len(rev.Revisions) != 1 {
		t.Fatalf("revisions = %+v", rev)
	}
	if rev.Revisions[0].Canonical.Permalink != "/java/useful-classes" {
		t.Errorf("canonical = %+v", rev.Revisions[0].Canonical)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	var resp SearchResponse
	w := get(t, router, "/search?q=searchable", &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(resp.Results) != 1 || resp.Results[0].Permalink != "/about" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := get(t, router, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed report = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := get(t, router, "/documents", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := get(t, router, "/documents", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvFull(t, true, "secret", sseStub)
	if w := get(t, router, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	_, router := testEnvFull(t, false, "", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with query token should not 401")
	}

	// The query token is only honoured on the event stream.
	if w := get(t, router, "/report?access_token=tok", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("report with query token = %d, want 401", w.Code)
	}
}

func TestGetRun(t *testing.T) {
	_, router := testEnv(t, "")

	var rep report.Report
	get(t, router, "/report", &rep)

	var detail contentservice.RunDetail
	w := get(t, router, "/runs/"+rep.RunID+"?kind=broken_link", &detail)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if detail.Run.ID != rep.RunID || detail.Run.BrokenLinks != 1 {
		t.Errorf("run = %+v", detail.Run)
	}
	if len(detail.Issues) != 1 || detail.Issues[0].Detail != "/gone" {
		t.Errorf("issues = %+v", detail.Issues)
	}
	var stored report.Report
	if err := json.Unmarshal(detail.Report, &stored); err != nil || stored.RunID != rep.RunID {
		t.Errorf("stored report = %+v, err = %v", stored, err)
	}

	if w := get(t, router, "/runs/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing run = %d, want 404", w.Code)
	}
}
