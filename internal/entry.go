// Package internal wires configuration, storage, the engine and run history
// into the commands the CLI exposes.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/quire/internal/contentservice"
	"github.com/starford/quire/internal/engine"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/metrics"
	"github.com/starford/quire/internal/report"
	"github.com/starford/quire/internal/storage"
)

// ErrHistoryDisabled is returned by History when no SQLite path is configured.
var ErrHistoryDisabled = errors.New("run history is disabled: sqlite.path is empty")

// components holds what every command shares.
type components struct {
	cfg     *Config
	out     io.Writer
	version string
	logger  *slog.Logger
	store   *storage.FS
	metrics *metrics.Metrics
	engine  *engine.Engine
	db      *index.DB
}

func newApplication(opts []Option) (*application, error) {
	app := &application{
		version: "dev",
		out:     os.Stdout,
		logOut:  os.Stderr,
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// bootstrap builds the shared components. History is opened only when withHistory is
// set and a SQLite path is configured.
func bootstrap(opts []Option, withHistory bool) (*components, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	cfg := app.config

	// Initialize structured JSON logger. Stdout carries reports and MCP frames.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Debug("Configuration loaded",
		slog.String("content_root", cfg.Content.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("workers", cfg.Scan.Workers),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Content.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	m := metrics.New()
	rt := &components{
		cfg:     cfg,
		out:     app.out,
		version: app.version,
		logger:  logger,
		store:   store,
		metrics: m,
		engine:  engine.New(store, cfg.EngineOptions(), logger, m),
	}

	if withHistory && cfg.SQLite.Enabled() {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		db, err := index.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init history: %w", err)
		}
		db.SetRetention(cfg.SQLite.Retention)
		rt.db = db
	}
	return rt, nil
}

// history returns the run history, or nil when it is disabled. The nil
// check keeps a nil *index.DB out of the interface.
func (rt *components) history() index.History {
	if rt.db == nil {
		return nil
	}
	return rt.db
}

func (rt *components) service() *contentservice.Service {
	return contentservice.NewService(rt.engine, rt.history(), rt.logger)
}

func (rt *components) format() (report.Format, error) {
	return report.ParseFormat(rt.cfg.Check.Format)
}

func (rt *components) writeReport(rep *report.Report) error {
	f, err := rt.format()
	if err != nil {
		return err
	}
	return report.Write(rt.out, f, rep, rt.cfg.Check.ReportOptions())
}

func (rt *components) close() {
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Warn("close history failed", slog.String("error", err.Error()))
		}
	}
}

// Check validates the content tree once, writes the report and records the
// run in history. It returns true when the report fails the configured
// policy.
func Check(ctx context.Context, opts ...Option) (bool, error) {
	rt, err := bootstrap(opts, true)
	if err != nil {
		return false, err
	}
	defer rt.close()

	svc := rt.service()
	res, err := svc.Refresh(ctx)
	if err != nil {
		return false, fmt.Errorf("check: %w", err)
	}
	if err := rt.writeReport(res.Report); err != nil {
		return false, fmt.Errorf("check: write report: %w", err)
	}
	return svc.Failed(res.Report), nil
}

// Format canonicalizes front-matter across the content tree. Without write it
// only lists the files that would change. It returns the changed paths.
func Format(ctx context.Context, write bool, opts ...Option) ([]string, error) {
	rt, err := bootstrap(opts, false)
	if err != nil {
		return nil, err
	}
	defer rt.close()

	changed, err := rt.engine.Scanner().Format(ctx, write)
	if err != nil {
		return changed, err
	}
	for _, p := range changed {
		if _, err := fmt.Fprintln(rt.out, p); err != nil {
			return changed, err
		}
	}
	return changed, nil
}
