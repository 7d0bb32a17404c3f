package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/starford/quire/internal/engine"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/mcpserver"
	"github.com/starford/quire/internal/report"
	"github.com/starford/quire/internal/watch"
)

// Watch re-validates the content tree on every change and writes a fresh
// report each time, until interrupted.
func Watch(ctx context.Context, opts ...Option) error {
	rt, err := bootstrap(opts, true)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := rt.service()
	return watch.Watch(ctx, rt.engine, rt.store.Root(), rt.logger, watch.Options{
		Debounce: rt.cfg.Watch.Debounce,
		OnEvent: func(kind, path string) {
			rt.logger.Info("content changed", slog.String("kind", kind), slog.String("path", path))
		},
		OnRun: func(res *engine.Result) {
			svc.Publish(res)
			if err := rt.writeReport(res.Report); err != nil {
				rt.logger.Error("write report failed", slog.String("error", err.Error()))
			}
		},
	})
}

// MCP serves the MCP tools over stdio while a watcher keeps the latest
// result current.
func MCP(ctx context.Context, opts ...Option) error {
	rt, err := bootstrap(opts, true)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc := rt.service()
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := watch.Watch(ctx, rt.engine, rt.store.Root(), rt.logger, watch.Options{
			Debounce: rt.cfg.Watch.Debounce,
			OnRun:    svc.Publish,
		})
		if err != nil {
			rt.logger.Error("watcher failed", slog.String("error", err.Error()))
		}
	}()

	rt.logger.Info("MCP server starting", slog.String("content_root", rt.store.Root()))
	err = mcpserver.New(svc, rt.version).ServeStdio()
	cancel()
	<-done
	return err
}

// History lists the most recent recorded runs, newest first.
func History(ctx context.Context, limit int, opts ...Option) error {
	rt, err := bootstrap(opts, true)
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.db == nil {
		return ErrHistoryDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	runs, err := rt.db.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	f, err := rt.format()
	if err != nil {
		return err
	}
	switch f {
	case report.FormatJSON:
		enc := json.NewEncoder(rt.out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	case report.FormatYAML:
		enc := yaml.NewEncoder(rt.out)
		enc.SetIndent(2)
		if err := enc.Encode(runs); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeRunTable(rt, runs)
	}
}

func writeRunTable(rt *components, runs []index.RunRow) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(rt.out, "No runs recorded.")
		return err
	}
	tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tFILES\tDOCS\tDUPLICATES\tBROKEN\tAMBIGUOUS\tRESULT")
	for _, r := range runs {
		result := "ok"
		if r.Failed {
			result = "failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%dms\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.DurationMS,
			r.Files, r.Documents, r.Duplicates, r.BrokenLinks, r.Ambiguous, result)
	}
	return tw.Flush()
}
