package internal

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quire/internal/engine"
	"github.com/starford/quire/internal/links"
	"github.com/starford/quire/internal/report"
	"github.com/starford/quire/internal/scan"
	"github.com/starford/quire/internal/sse"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Content ContentConfig     `yaml:"content"`
	Scan    ScanConfig        `yaml:"scan"`
	Check   CheckConfig       `yaml:"check"`
	Watch   WatchConfig       `yaml:"watch"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Content.Validate(); err != nil {
		return err
	}
	if err := c.Scan.Validate(); err != nil {
		return err
	}
	if err := c.Check.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// EngineOptions maps the configuration onto engine options.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Scan: scan.Options{
			DraftDirs:  c.Content.DraftDirs,
			PostDirs:   c.Content.PostDirs,
			Extensions: c.Content.Extensions,
			Exclude:    c.Content.Exclude,
			Workers:    c.Scan.Workers,
		},
		Links:  links.Options{Ignore: c.Content.IgnoreLinks},
		Report: c.Check.ReportOptions(),
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ContentConfig describes the content tree and its conventions.
type ContentConfig struct {
	Root        string   `yaml:"root"`
	DraftDirs   []string `yaml:"draft_dirs"`
	PostDirs    []string `yaml:"post_dirs"`
	Extensions  []string `yaml:"extensions"`
	Exclude     []string `yaml:"exclude"`
	IgnoreLinks []string `yaml:"ignore_links"`
}

var extensionRe = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Extensions, validation.Required,
			validation.Each(validation.Match(extensionRe).Error("must look like .md"))),
		validation.Field(&c.DraftDirs, validation.Each(validation.Required)),
		validation.Field(&c.PostDirs, validation.Each(validation.Required)),
		validation.Field(&c.Exclude, validation.Each(validation.By(validGlob))),
		validation.Field(&c.IgnoreLinks, validation.Each(validation.By(validGlob))),
	)
}

func validGlob(value any) error {
	s, _ := value.(string)
	if _, err := path.Match(s, ""); err != nil {
		return fmt.Errorf("invalid glob %q", s)
	}
	return nil
}

// ScanConfig tunes the scan pass.
type ScanConfig struct {
	// Workers bounds parallel parsing; zero uses GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// Validate validates the scan configuration.
func (c *ScanConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(0)),
	)
}

// CheckConfig controls report output and failure policy.
type CheckConfig struct {
	Format            string `yaml:"format"`
	FailOnBrokenLinks bool   `yaml:"fail_on_broken_links"`
}

// Validate validates the check configuration.
func (c *CheckConfig) Validate() error {
	if c.Format == "" {
		c.Format = string(report.FormatText)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Format, validation.In(
			string(report.FormatText), string(report.FormatJSON), string(report.FormatYAML))),
	)
}

// ReportOptions returns the failure policy.
func (c *CheckConfig) ReportOptions() report.Options {
	return report.Options{FailOnBrokenLinks: c.FailOnBrokenLinks}
}

// WatchConfig tunes watch and serve modes. KeepAlive and Backlog apply to
// the SSE stream; zero disables each.
type WatchConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	ReportThrottle time.Duration `yaml:"report_throttle"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	Backlog        int           `yaml:"backlog"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.ReportThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.KeepAlive, validation.Min(time.Duration(0))),
		validation.Field(&c.Backlog, validation.Min(0)),
	)
}

// SQLiteConfig holds the run-history database configuration. An empty
// path disables history.
type SQLiteConfig struct {
	Path      string `yaml:"path"`
	Retention int    `yaml:"retention"`
}

// Enabled reports whether run history is configured.
func (c *SQLiteConfig) Enabled() bool {
	return c.Path != ""
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Retention, validation.Min(0)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with Jekyll defaults.
func NewDefaultConfig() *Config {
	defaults := scan.DefaultOptions()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Root:       ".",
			DraftDirs:  defaults.DraftDirs,
			PostDirs:   defaults.PostDirs,
			Extensions: defaults.Extensions,
		},
		Check: CheckConfig{
			Format: string(report.FormatText),
		},
		Watch: WatchConfig{
			Debounce:       200 * time.Millisecond,
			ReportThrottle: 2 * time.Second,
			KeepAlive:      sse.DefaultKeepAlive,
			Backlog:        sse.DefaultBacklog,
		},
		SQLite: SQLiteConfig{
			Path:      ".quire/history.db",
			Retention: 50,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
