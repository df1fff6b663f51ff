// Package pipeline builds every theme of a project and composes the tenant
// outputs on top of the principal build.
//
// A run discovers the themes, then, while the global build configuration is
// guarded, synthesizes missing configuration entries, builds each theme
// sequentially, composes the outputs and removes the transient stats files.
// Stage timings go to the metrics recorder and run events to the optional
// history store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/themebuilder/internal/compose"
	"git.home.luguber.info/inful/themebuilder/internal/config"
	"git.home.luguber.info/inful/themebuilder/internal/eventstore"
	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/git"
	"git.home.luguber.info/inful/themebuilder/internal/guard"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/manifest"
	"git.home.luguber.info/inful/themebuilder/internal/markup"
	"git.home.luguber.info/inful/themebuilder/internal/metrics"
	"git.home.luguber.info/inful/themebuilder/internal/ngconfig"
	"git.home.luguber.info/inful/themebuilder/internal/observability"
	"git.home.luguber.info/inful/themebuilder/internal/process"
	"git.home.luguber.info/inful/themebuilder/internal/settings"
	"git.home.luguber.info/inful/themebuilder/internal/theme"
)

// Pipeline runs theme builds for one workspace.
type Pipeline struct {
	cfg        *config.Config
	runner     process.Runner
	recorder   metrics.Recorder
	events     *eventstore.Recorder
	fs         billy.Filesystem
	guardOpts  []guard.Option
	provenance func(string) (git.Provenance, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRunner replaces the subprocess runner.
func WithRunner(r process.Runner) Option {
	return func(p *Pipeline) { p.runner = r }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithEventStore journals run events to store.
func WithEventStore(store eventstore.Store) Option {
	return func(p *Pipeline) { p.events = eventstore.NewRecorder(store) }
}

// WithFilesystem sets the filesystem, rooted at the workspace root, used to compose outputs.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(p *Pipeline) { p.fs = fs }
}

// WithGuardOptions passes options to the configuration guard.
func WithGuardOptions(opts ...guard.Option) Option {
	return func(p *Pipeline) { p.guardOpts = append(p.guardOpts, opts...) }
}

// WithProvenance replaces the workspace revision lookup.
func WithProvenance(fn func(string) (git.Provenance, error)) Option {
	return func(p *Pipeline) { p.provenance = fn }
}

// New creates a pipeline for cfg.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		runner:     process.NewExecRunner(),
		recorder:   metrics.NoopRecorder{},
		events:     eventstore.NewRecorder(nil),
		provenance: git.ReadProvenance,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fs == nil {
		p.fs = osfs.New(cfg.Workspace.Root)
	}
	return p
}

// RunOptions selects what a run builds.
type RunOptions struct {
	Project string
	// Themes restricts the tenants built; the principal is always built.
	Themes []string
}

// Run executes one full pipeline run. The report is returned even when the
// run fails.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	if opts.Project == "" {
		return nil, errors.PreconditionError("a project name is required").Build()
	}
	if err := p.cfg.Validate(); err != nil {
		return nil, errors.ConfigError("invalid configuration").WithCause(err).Build()
	}

	report := newReport(uuid.NewString(), opts.Project)
	ctx = observability.WithRunID(ctx, report.RunID)
	ctx = observability.WithProject(ctx, opts.Project)

	err := p.run(ctx, opts, report)

	report.End = time.Now()
	report.Err = err
	switch {
	case err != nil && (errors.HasCategory(err, errors.CategoryCanceled) || ctx.Err() != nil):
		report.Outcome = OutcomeCanceled
	case err != nil || len(report.FailedTenants) > 0:
		report.Outcome = OutcomeFailed
	default:
		report.Outcome = OutcomeSuccess
	}

	p.recorder.ObserveRunDuration(report.Duration())
	p.recorder.IncRunOutcome(metrics.RunOutcomeLabel(report.Outcome))
	p.journal(ctx).add(eventstore.NewRunFinished(report.RunID, string(report.Outcome), report.Duration(), string(report.FailedStage), err))

	if err != nil {
		observability.ErrorContext(ctx, "Run failed", slog.String("outcome", string(report.Outcome)), logfields.Error(err))
	} else {
		observability.InfoContext(ctx, "Run finished",
			slog.String("outcome", string(report.Outcome)),
			slog.Int("composed", len(report.Composed)),
			logfields.Duration(report.Duration()))
	}
	return report, err
}

func (p *Pipeline) run(ctx context.Context, opts RunOptions, report *RunReport) error {
	var catalog *theme.Catalog
	if err := p.stage(ctx, report, StageDiscover, func(context.Context) error {
		c, err := theme.Discover(p.cfg.ThemesPath(), p.cfg.Themes.Principal)
		if err != nil {
			return err
		}
		catalog, err = c.Select(opts.Themes)
		return err
	}); err != nil {
		return err
	}
	report.Themes = catalog.IDs()

	if prov, err := p.provenance(p.cfg.Workspace.Root); err == nil {
		report.Commit = prov.Commit
		p.journal(ctx).add(eventstore.NewRunStarted(report.RunID, eventstore.RunStartedPayload{
			Project: opts.Project, Themes: report.Themes, Commit: prov.Commit, Branch: prov.Branch,
		}))
	} else {
		slog.Debug("Workspace revision unavailable", logfields.Error(err))
		p.journal(ctx).add(eventstore.NewRunStarted(report.RunID, eventstore.RunStartedPayload{
			Project: opts.Project, Themes: report.Themes,
		}))
	}
	observability.InfoContext(ctx, "Starting run", slog.String("themes", strings.Join(report.Themes, ",")))

	env, err := p.cfg.BuildEnv()
	if err != nil {
		return errors.ConfigError("build environment cannot be loaded").WithCause(err).Build()
	}

	seq := &Sequencer{
		Runner:      p.runner,
		Root:        p.cfg.Workspace.Root,
		DistDir:     p.cfg.Output.DistDir,
		StatsFile:   p.cfg.Output.StatsFile,
		Command:     p.cfg.Build.Command,
		Args:        p.cfg.Build.Args,
		ExtraArgs:   p.cfg.Build.ExtraArgs,
		StatsFlag:   p.cfg.Build.StatsFlag,
		Silent:      p.cfg.Build.Silent,
		Env:         env,
		GracePeriod: p.cfg.Build.GracePeriod,
	}

	g := guard.New(p.cfg.AngularJSONPath(), p.guardOpts...)
	entered := false
	err = g.Run(ctx, func(ctx context.Context) error {
		entered = true
		return p.guarded(ctx, opts.Project, catalog, seq, report)
	})
	if entered && !errors.IsRestoreFailure(err) {
		observability.InfoContext(ctx, "Build configuration restored", logfields.Path(g.Path()))
		p.journal(ctx).add(eventstore.NewConfigRestored(report.RunID, g.Path()))
	}
	return err
}

// guarded runs the stages that mutate the global build configuration.
func (p *Pipeline) guarded(ctx context.Context, project string, catalog *theme.Catalog, seq *Sequencer, report *RunReport) error {
	if err := p.stage(ctx, report, StageSynthesize, func(context.Context) error {
		added, err := ngconfig.Synthesize(p.cfg.AngularJSONPath(), project, catalog.TenantIDs())
		report.Added = added
		if err == nil {
			p.journal(ctx).add(eventstore.NewConfigSynthesized(report.RunID, added))
		}
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, report, StageBuild, func(ctx context.Context) error {
		results, err := seq.Run(ctx, project, catalog.IDs())
		for _, r := range results {
			success := r.ExitCode == 0
			if success {
				report.BuildDurations[r.Theme] = r.Duration
			}
			p.recorder.ObserveThemeBuildDuration(r.Theme, r.Duration, success)
			p.journal(ctx).add(eventstore.NewThemeBuilt(report.RunID, r.Theme, r.Duration, r.ExitCode))
		}
		return err
	}); err != nil {
		return err
	}

	composeErr := p.stage(ctx, report, StageCompose, func(ctx context.Context) error {
		return p.composeAll(ctx, project, catalog, report)
	})

	cleanupErr := p.stage(ctx, report, StageCleanup, func(context.Context) error {
		return seq.Cleanup(catalog.IDs())
	})
	if composeErr != nil {
		return composeErr
	}
	return cleanupErr
}

// composeAll writes the principal's entry files, then composes every tenant.
// A failing tenant does not stop the others.
func (p *Pipeline) composeAll(ctx context.Context, project string, catalog *theme.Catalog, report *RunReport) error {
	composer := &compose.Composer{
		FS:               p.fs,
		DistDir:          p.cfg.Output.DistDir,
		ThemesDir:        p.cfg.Themes.Dir,
		Principal:        catalog.Principal.ID,
		StatsFile:        p.cfg.Output.StatsFile,
		TenantStylesheet: p.cfg.Output.TenantStylesheet,
	}
	merger := &settings.Merger{
		Root:         p.cfg.Workspace.Root,
		ThemesDir:    p.cfg.ThemesPath(),
		Principal:    catalog.Principal.ID,
		RequireInfra: p.cfg.Settings.RequireInfra,
	}

	m, err := composer.LoadManifest()
	if err != nil {
		return err
	}
	chunks := m.Chunks()

	if err := p.writeEntryFiles(composer, merger, project, catalog.Principal.ID, chunks); err != nil {
		return err
	}

	var failures []error
	for _, tenant := range catalog.TenantIDs() {
		if err := ctx.Err(); err != nil {
			return errors.CanceledError("composition canceled").WithCause(err).Build()
		}
		tctx := observability.WithTheme(ctx, tenant)

		res, err := composer.Compose(tctx, tenant, project, m)
		if err == nil {
			err = p.writeEntryFiles(composer, merger, project, tenant, chunks)
		}
		p.recorder.IncComposeResult(tenant, err == nil)
		p.journal(ctx).add(eventstore.NewTenantComposed(report.RunID, tenant, res.Files, res.Bytes, err))
		if err != nil {
			observability.ErrorContext(tctx, "Tenant composition failed", logfields.Error(err))
			report.FailedTenants = append(report.FailedTenants, tenant)
			failures = append(failures, err)
			continue
		}
		report.Composed = append(report.Composed, tenant)
	}

	if len(failures) > 0 {
		return errors.WrapError(failures[0], errors.GetCategory(failures[0]),
			fmt.Sprintf("%d of %d tenants failed to compose", len(failures), len(catalog.Tenants))).
			WithContext("tenants", strings.Join(report.FailedTenants, ",")).
			Build()
	}
	return nil
}

// writeEntryFiles writes deployment-settings.json and index.html for theme.
func (p *Pipeline) writeEntryFiles(composer *compose.Composer, merger *settings.Merger, project, themeID string, chunks manifest.ChunkMap) error {
	doc, err := merger.Merge(themeID, project)
	if err != nil {
		return err
	}
	data, err := settings.Encode(doc)
	if err != nil {
		return err
	}
	if err := composer.WriteFile(themeID, settings.FileName+".json", data); err != nil {
		return err
	}

	bs, err := markup.LoadBuildSettings(p.cfg.Workspace.Root, p.cfg.ThemesPath(), project, themeID)
	if err != nil {
		return err
	}
	page, err := markup.Generate(project, themeID, bs, chunks)
	if err != nil {
		return err
	}
	return composer.WriteFile(themeID, "index.html", []byte(page))
}

// stage runs fn as the named stage, recording its duration and result.
func (p *Pipeline) stage(ctx context.Context, report *RunReport, name StageName, fn func(context.Context) error) error {
	ctx = observability.WithStage(ctx, string(name))
	if err := ctx.Err(); err != nil {
		p.recorder.IncStageResult(string(name), metrics.ResultCanceled)
		report.FailedStage = name
		return errors.CanceledError("run canceled").WithCause(err).WithContext("stage", string(name)).Build()
	}

	observability.DebugContext(ctx, "Stage started")
	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)
	report.StageDurations[name] = d
	p.recorder.ObserveStageDuration(string(name), d)

	switch {
	case err == nil:
		p.recorder.IncStageResult(string(name), metrics.ResultSuccess)
		observability.DebugContext(ctx, "Stage finished", logfields.Duration(d))
	case errors.HasCategory(err, errors.CategoryCanceled) || ctx.Err() != nil:
		p.recorder.IncStageResult(string(name), metrics.ResultCanceled)
		if report.FailedStage == "" {
			report.FailedStage = name
		}
	default:
		p.recorder.IncStageResult(string(name), metrics.ResultFatal)
		if report.FailedStage == "" {
			report.FailedStage = name
		}
	}
	return err
}

// journal appends run events. History is best effort and never fails a run;
// events are still written after the run's context is canceled.
type journal struct {
	ctx    context.Context
	events *eventstore.Recorder
}

func (p *Pipeline) journal(ctx context.Context) journal {
	return journal{ctx: context.WithoutCancel(ctx), events: p.events}
}

func (j journal) add(e *eventstore.BaseEvent, err error) {
	if err == nil {
		err = j.events.Record(j.ctx, e)
	}
	if err != nil {
		slog.Warn("Failed to record run event", logfields.Error(err))
	}
}
