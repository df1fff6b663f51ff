package pipeline

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/observability"
	"git.home.luguber.info/inful/themebuilder/internal/process"
)

// BuildResult records one build tool invocation.
type BuildResult struct {
	Theme    string
	Duration time.Duration
	ExitCode int
}

// Sequencer runs the build tool once per theme, one theme at a time.
type Sequencer struct {
	Runner process.Runner

	// Root is the workspace root the build tool runs in.
	Root string
	// DistDir is the output directory relative to Root.
	DistDir   string
	StatsFile string

	Command     string
	Args        []string
	ExtraArgs   []string
	StatsFlag   string
	Silent      bool
	Env         map[string]string
	GracePeriod time.Duration
}

// Argv returns the argument vector for building theme. Only the principal
// build writes the stats manifest.
func (s *Sequencer) Argv(project, theme string, principal bool) []string {
	args := make([]string, 0, len(s.Args)+len(s.ExtraArgs)+7)
	args = append(args, s.Args...)
	args = append(args,
		"--project", project,
		"--configuration", theme,
		"--output-path", path.Join(filepath.ToSlash(s.DistDir), theme),
	)
	args = append(args, s.ExtraArgs...)
	if principal && s.StatsFlag != "" {
		args = append(args, s.StatsFlag)
	}
	return args
}

// Run builds themes in order; themes[0] is the principal. The first failure
// stops the sequence. Results include the failed build.
func (s *Sequencer) Run(ctx context.Context, project string, themes []string) ([]BuildResult, error) {
	results := make([]BuildResult, 0, len(themes))
	for i, theme := range themes {
		if err := ctx.Err(); err != nil {
			return results, errors.CanceledError("build canceled").WithCause(err).WithContext("theme", theme).Build()
		}

		tctx := observability.WithTheme(ctx, theme)
		observability.InfoContext(tctx, "Building theme", slog.Int("index", i+1), logfields.Count(len(themes)))

		opts := []process.Option{
			process.WithWorkingDir(s.Root),
			process.WithSilent(s.Silent),
			process.WithEnv(s.Env),
		}
		if s.GracePeriod > 0 {
			opts = append(opts, process.WithGracePeriod(s.GracePeriod))
		}

		start := time.Now()
		res, err := s.Runner.Run(tctx, s.Command, s.Argv(project, theme, i == 0), opts...)
		br := BuildResult{Theme: theme, Duration: time.Since(start)}
		if res != nil {
			br.ExitCode = res.ExitCode
			if res.Duration > 0 {
				br.Duration = res.Duration
			}
		}
		if err != nil && br.ExitCode == 0 {
			br.ExitCode = -1
		}
		results = append(results, br)

		if err != nil {
			if ctx.Err() != nil {
				return results, errors.CanceledError("build interrupted").WithCause(err).WithContext("theme", theme).Build()
			}
			var exitErr *process.ExitError
			if stderrors.As(err, &exitErr) {
				return results, errors.BuildFailure("build tool failed").
					WithCause(err).
					WithContext("theme", theme).
					WithContext("exit_code", exitErr.ExitCode).
					Build()
			}
			return results, errors.BuildFailure("build tool could not be run").
				WithCause(err).
				WithContext("theme", theme).
				WithContext("command", s.Command).
				Build()
		}
		observability.InfoContext(tctx, "Theme built", logfields.Duration(br.Duration))
	}
	return results, nil
}

// Cleanup deletes the stats manifest from the output of every theme.
func (s *Sequencer) Cleanup(themes []string) error {
	for _, theme := range themes {
		p := filepath.Join(s.Root, s.DistDir, theme, s.StatsFile)
		if err := os.Remove(p); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			return errors.FileSystemError("failed to remove build manifest").
				WithCause(err).
				WithContext("path", p).
				Build()
		}
	}
	return nil
}
