package commands

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"git.home.luguber.info/inful/themebuilder/internal/pipeline"
	"git.home.luguber.info/inful/themebuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Project   string        `short:"p" required:"" help:"Project to build"`
	Theme     []string      `short:"t" help:"Restrict rebuilds to these tenant themes (repeatable)"`
	Debounce  time.Duration `help:"Quiet period before a rebuild; overrides watch.debounce"`
	NoInitial bool          `name:"no-initial" help:"Wait for the first change instead of building immediately"`
}

func (c *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if c.Debounce > 0 {
		cfg.Watch.Debounce = c.Debounce
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rebuild := func(ctx context.Context) error {
		report, err := runPipeline(ctx, g, cfg, pipeline.RunOptions{Project: c.Project, Themes: c.Theme})
		if report != nil {
			printReport(g.stdout(), report)
		}
		return err
	}

	var opts []watch.Option
	if !c.NoInitial {
		opts = append(opts, watch.WithRunOnStart())
	}
	roots := []string{
		cfg.ThemesPath(),
		filepath.Join(cfg.Workspace.Root, "projects", c.Project),
	}
	w, err := watch.New(roots, cfg.Watch.Debounce, rebuild, opts...)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
