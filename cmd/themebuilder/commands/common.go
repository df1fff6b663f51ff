package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/themebuilder/internal/config"
	"git.home.luguber.info/inful/themebuilder/internal/eventstore"
	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/metrics"
	"git.home.luguber.info/inful/themebuilder/internal/process"
)

// Global carries process-wide dependencies into subcommands.
type Global struct {
	Logger *slog.Logger
	// Runner overrides the build subprocess runner; nil runs real processes.
	Runner process.Runner
	Stdout io.Writer
	Stderr io.Writer
}

func (g *Global) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Global) stderr() io.Writer {
	if g.Stderr == nil {
		return os.Stderr
	}
	return g.Stderr
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"themebuilder.yaml"`
	Workdir string           `short:"C" help:"Change to this directory before doing anything" type:"existingdir"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build every theme of a project and compose the tenant outputs"`
	Themes  ThemesCmd  `cmd:"" help:"List the discovered themes"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild whenever theme sources change"`
	History HistoryCmd `cmd:"" help:"Show recorded runs"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; it switches the working directory and
// sets up a logger until the configuration is loaded.
func (c *CLI) AfterApply(g *Global) error {
	if c.Workdir != "" {
		if err := os.Chdir(c.Workdir); err != nil {
			return errors.PreconditionError("cannot change to working directory").
				WithCause(err).
				WithContext("workdir", c.Workdir).
				Build()
		}
	}
	g.Logger = config.NewLogger(config.LoggingConfig{}, c.Verbose, g.stderr())
	slog.SetDefault(g.Logger)
	return nil
}

// loadConfig loads the configuration and reconfigures logging from it. The
// file may be absent only when --config was left at its default.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	explicit := c.Config != config.DefaultConfigFile
	cfg, err := config.Load(c.Config, explicit)
	if err != nil {
		return nil, errors.ConfigError("configuration cannot be loaded").
			WithCause(err).
			WithContext("path", c.Config).
			Build()
	}
	g.Logger = config.NewLogger(cfg.Logging, c.Verbose, g.stderr())
	slog.SetDefault(g.Logger)
	return cfg, nil
}

// openHistory opens the run history store, or returns nil when history is
// disabled.
func openHistory(cfg *config.Config) (eventstore.Store, error) {
	if cfg.History.Path == "" {
		return nil, nil
	}
	store, err := eventstore.NewSQLiteStore(cfg.HistoryPath())
	if err != nil {
		return nil, errors.EventStoreError("run history cannot be opened").
			WithCause(err).
			WithContext("path", cfg.HistoryPath()).
			Build()
	}
	return store, nil
}

// newRecorder returns the metrics recorder for cfg and a function that
// flushes it to the textfile, if one is configured.
func newRecorder(cfg *config.Config) (metrics.Recorder, func()) {
	if cfg.Metrics.Textfile == "" {
		return metrics.NoopRecorder{}, func() {}
	}
	rec := metrics.NewPrometheusRecorder(nil)
	path := cfg.MetricsTextfilePath()
	return rec, func() {
		if err := rec.WriteTextfile(path); err != nil {
			slog.Warn("Failed to write metrics textfile", logfields.Path(path), logfields.Error(err))
		}
	}
}
