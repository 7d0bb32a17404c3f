package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/starford/quire/internal"
	pkgconfig "github.com/starford/quire/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Exit codes.
const (
	exitClean  = 0
	exitFailed = 1
	exitError  = 2
)

// errFailed marks a run whose findings fail the configured policy.
var errFailed = errors.New("content check failed")

// loadConfig reads the config file (missing is fine) and applies flag
// overrides on top of it.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if root := cmd.Args().First(); root != "" {
		cfg.Content.Root = root
	} else if cmd.IsSet("root") {
		cfg.Content.Root = cmd.String("root")
	}
	if cmd.IsSet("format") {
		cfg.Check.Format = cmd.String("format")
	}
	if cmd.IsSet("workers") {
		cfg.Scan.Workers = int(cmd.Int("workers"))
	}
	if cmd.IsSet("fail-on-broken-links") {
		cfg.Check.FailOnBrokenLinks = cmd.Bool("fail-on-broken-links")
	}
	if cmd.Bool("no-history") {
		cfg.SQLite.Path = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func check(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	failed, err := internal.Check(ctx, opts...)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	if failed {
		return errFailed
	}
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Serve(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func watchContent(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Watch(ctx, opts...)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.MCP(ctx, opts...)
}

func history(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.History(ctx, int(cmd.Int("limit")), opts...)
}

func format(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	write := cmd.Bool("write")
	changed, err := internal.Format(ctx, write, opts...)
	if err != nil {
		return fmt.Errorf("fmt: %w", err)
	}
	if !write && len(changed) > 0 {
		return errFailed
	}
	return nil
}

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(string, ...any) {})); err != nil {
		slog.Warn("set GOMAXPROCS failed", slog.String("error", err.Error()))
	}

	cmd := &cli.Command{
		Name:      "quire",
		Usage:     "Validate a static site's content: permalinks, links and draft revisions",
		Version:   version,
		ArgsUsage: "[root]",
		Action:    check,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "quire.yaml",
				Value:       "quire.yaml",
				Sources:     cli.EnvVars("QUIRE_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "Content root directory",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json or yaml",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parallel parse workers (0 uses GOMAXPROCS)",
			},
			&cli.BoolFlag{
				Name:  "fail-on-broken-links",
				Usage: "Treat broken internal links as failures",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the run in the history database",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "Validate the content tree once and print a report",
				ArgsUsage: "[root]",
				Action:    check,
			},
			{
				Name:      "serve",
				Usage:     "Serve the HTTP API and live events while watching for changes",
				ArgsUsage: "[root]",
				Action:    serve,
			},
			{
				Name:      "watch",
				Usage:     "Re-validate on every change and print each report",
				ArgsUsage: "[root]",
				Action:    watchContent,
			},
			{
				Name:      "mcp",
				Usage:     "Serve MCP tools over stdio",
				ArgsUsage: "[root]",
				Action:    mcp,
			},
			{
				Name:      "history",
				Usage:     "List recorded runs, newest first",
				ArgsUsage: "[root]",
				Action:    history,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to list",
						Value: 20,
					},
				},
			},
			{
				Name:      "fmt",
				Usage:     "Canonicalize front-matter; lists files that differ unless --write",
				ArgsUsage: "[root]",
				Action:    format,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "write",
						Aliases: []string{"w"},
						Usage:   "Rewrite files in place",
					},
				},
			},
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	switch {
	case err == nil:
		os.Exit(exitClean)
	case errors.Is(err, errFailed):
		os.Exit(exitFailed)
	default:
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(exitError)
	}
}
