// Package metrics exposes Prometheus collectors for validation runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the quire collectors on an isolated registry so tests can
// create as many instances as they like.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	FilesScanned    prometheus.Gauge
	Documents       prometheus.Gauge
	Findings        *prometheus.GaugeVec
	LastRunUnixTime prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec
}

// Finding kinds used as the "kind" label of quire_findings.
const (
	KindMalformed       = "malformed"
	KindDuplicate       = "duplicate_permalink"
	KindBrokenLink      = "broken_link"
	KindAmbiguous       = "ambiguous_revision"
	KindUnresolvedDraft = "unresolved_draft"
)

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quire",
				Name:      "runs_total",
				Help:      "Validation runs by outcome.",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quire",
			Name:      "run_duration_seconds",
			Help:      "Duration of validation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}),
		FilesScanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quire",
			Name:      "files_scanned",
			Help:      "Content files seen by the last run.",
		}),
		Documents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quire",
			Name:      "documents",
			Help:      "Documents registered by the last run.",
		}),
		Findings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "quire",
				Name:      "findings",
				Help:      "Findings of the last run by kind.",
			},
			[]string{"kind"},
		),
		LastRunUnixTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quire",
			Name:      "last_run_timestamp_seconds",
			Help:      "Completion time of the last run.",
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quire",
				Name:      "http_requests_total",
				Help:      "HTTP API requests by route and status code.",
			},
			[]string{"route", "code"},
		),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.FilesScanned,
		m.Documents,
		m.Findings,
		m.LastRunUnixTime,
		m.HTTPRequests,
	)
	return m
}

// RunStats is what a recorder needs to know about a finished run.
type RunStats struct {
	Files     int
	Documents int
	Findings  map[string]int
	Failed    bool
	Duration  time.Duration
}

// ObserveRun records one completed run.
func (m *Metrics) ObserveRun(s RunStats) {
	outcome := "clean"
	if s.Failed {
		outcome = "failed"
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(s.Duration.Seconds())
	m.FilesScanned.Set(float64(s.Files))
	m.Documents.Set(float64(s.Documents))
	for _, kind := range []string{KindMalformed, KindDuplicate, KindBrokenLink, KindAmbiguous, KindUnresolvedDraft} {
		m.Findings.WithLabelValues(kind).Set(float64(s.Findings[kind]))
	}
	m.LastRunUnixTime.SetToCurrentTime()
}

// ObserveError records a run that failed operationally.
func (m *Metrics) ObserveError() {
	m.RunsTotal.WithLabelValues("error").Inc()
}

// Handler returns the /metrics handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Middleware counts HTTP requests by chi route pattern and status code.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
