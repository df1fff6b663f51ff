package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"git.home.luguber.info/inful/themebuilder/internal/eventstore"
	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	RunID string `name:"run" help:"Show a single run in detail"`
	Limit int    `short:"n" default:"20" help:"Number of runs to list"`
	JSON  bool   `name:"json" help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.PreconditionError("run history is disabled; set history.path in the configuration").Build()
	}
	defer func() { _ = store.Close() }()

	projection := eventstore.NewRunHistoryProjection(store)
	if err := projection.Rebuild(context.Background()); err != nil {
		return err
	}

	w := g.stdout()
	if h.RunID != "" {
		run, ok := projection.Run(h.RunID)
		if !ok {
			return errors.PreconditionError("run not found").WithContext("run_id", h.RunID).Build()
		}
		if h.JSON {
			return printJSON(w, run)
		}
		printRun(w, run)
		return nil
	}

	runs := projection.Runs(h.Limit)
	if h.JSON {
		return printJSON(w, runs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tPROJECT\tSTATUS\tSTARTED\tDURATION\tCOMPOSED\tFAILED")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			r.RunID, r.Project, r.Status, humanize.Time(r.StartedAt),
			r.Duration.Round(time.Millisecond), len(r.Composed), len(r.Failed))
	}
	return tw.Flush()
}

func printRun(w io.Writer, r eventstore.RunSummary) {
	_, _ = fmt.Fprintf(w, "Run:       %s\n", r.RunID)
	_, _ = fmt.Fprintf(w, "Project:   %s\n", r.Project)
	if r.Commit != "" {
		_, _ = fmt.Fprintf(w, "Commit:    %s\n", r.Commit)
	}
	_, _ = fmt.Fprintf(w, "Status:    %s\n", r.Status)
	_, _ = fmt.Fprintf(w, "Started:   %s (%s)\n", r.StartedAt.Format(time.RFC3339), humanize.Time(r.StartedAt))
	_, _ = fmt.Fprintf(w, "Duration:  %s\n", r.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "Themes:    %s\n", strings.Join(r.Themes, ", "))
	if len(r.Added) > 0 {
		_, _ = fmt.Fprintf(w, "Added:     %s\n", strings.Join(r.Added, ", "))
	}
	_, _ = fmt.Fprintf(w, "Composed:  %s\n", strings.Join(r.Composed, ", "))
	if len(r.Failed) > 0 {
		_, _ = fmt.Fprintf(w, "Failed:    %s\n", strings.Join(r.Failed, ", "))
	}
	_, _ = fmt.Fprintf(w, "Restored:  %t\n", r.Restored)
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:     %s (stage %s)\n", r.Error, r.ErrorStage)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
