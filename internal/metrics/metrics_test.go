package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRun(t *testing.T) {
	m := New()
	m.ObserveRun(RunStats{
		Files:     3,
		Documents: 2,
		Findings:  map[string]int{KindBrokenLink: 4},
		Failed:    true,
		Duration:  10 * time.Millisecond,
	})

	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("runs_total{failed} = %v", got)
	}
	if got := testutil.ToFloat64(m.Documents); got != 2 {
		t.Errorf("documents = %v", got)
	}
	if got := testutil.ToFloat64(m.Findings.WithLabelValues(KindBrokenLink)); got != 4 {
		t.Errorf("findings{broken_link} = %v", got)
	}
	if got := testutil.ToFloat64(m.Findings.WithLabelValues(KindDuplicate)); got != 0 {
		t.Errorf("findings{duplicate} = %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveError()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `quire_runs_total{outcome="error"} 1`) {
		t.Errorf("metrics output missing run counter:\n%s", body)
	}
}

func TestMiddleware(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/documents/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/report", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})

	for _, path := range []string{"/documents/a/", "/documents/b/", "/report"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/documents/*", "404")); got != 2 {
		t.Errorf("http_requests_total{/documents/*,404} = %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/report", "200")); got != 1 {
		t.Errorf("http_requests_total{/report,200} = %v", got)
	}
}
