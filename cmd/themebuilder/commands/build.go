package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"

	"git.home.luguber.info/inful/themebuilder/internal/config"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/pipeline"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Project string   `short:"p" required:"" help:"Project to build"`
	Theme   []string `short:"t" help:"Restrict the run to these tenant themes (repeatable); the principal is always built"`
	Report  string   `help:"Write the run report as JSON to this path"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	report, err := runPipeline(context.Background(), g, cfg, pipeline.RunOptions{Project: b.Project, Themes: b.Theme})
	if report != nil {
		printReport(g.stdout(), report)
		if b.Report != "" {
			writeReport(b.Report, report)
		}
	}
	return err
}

// runPipeline runs one pipeline with the history store and metrics
// recorder configured in cfg.
func runPipeline(ctx context.Context, g *Global, cfg *config.Config, opts pipeline.RunOptions) (*pipeline.RunReport, error) {
	store, err := openHistory(cfg)
	if err != nil {
		return nil, err
	}
	recorder, flush := newRecorder(cfg)
	defer flush()

	popts := []pipeline.Option{pipeline.WithRecorder(recorder)}
	if store != nil {
		defer func() {
			if cerr := store.Close(); cerr != nil {
				slog.Warn("Failed to close run history", logfields.Error(cerr))
			}
		}()
		popts = append(popts, pipeline.WithEventStore(store))
	}
	if g.Runner != nil {
		popts = append(popts, pipeline.WithRunner(g.Runner))
	}
	return pipeline.New(cfg, popts...).Run(ctx, opts)
}

func printReport(w io.Writer, r *pipeline.RunReport) {
	_, _ = fmt.Fprintf(w, "Run %s: %s in %s\n", r.RunID, r.Outcome, r.Duration().Round(time.Millisecond))
	themes := make([]string, 0, len(r.BuildDurations))
	for t := range r.BuildDurations {
		themes = append(themes, t)
	}
	sort.Strings(themes)
	for _, t := range themes {
		_, _ = fmt.Fprintf(w, "  built     %-20s %s\n", t, r.BuildDurations[t].Round(time.Millisecond))
	}
	for _, t := range r.Composed {
		_, _ = fmt.Fprintf(w, "  composed  %s\n", t)
	}
	for _, t := range r.FailedTenants {
		_, _ = fmt.Fprintf(w, "  failed    %s\n", t)
	}
	if r.FailedStage != "" {
		_, _ = fmt.Fprintf(w, "  stopped in stage %s, started %s\n", r.FailedStage, humanize.Time(r.Start))
	}
}

func writeReport(path string, r *pipeline.RunReport) {
	data, err := r.MarshalJSON()
	if err != nil {
		slog.Warn("Failed to encode run report", logfields.Error(err))
		return
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		slog.Warn("Failed to write run report", logfields.Path(path), logfields.Error(err))
		return
	}
	slog.Debug("Run report written", logfields.Path(path), slog.String("size", humanize.Bytes(uint64(len(data)))))
}
