package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/process"
)

func newSequencer(runner process.Runner, root string) *Sequencer {
	return &Sequencer{
		Runner:    runner,
		Root:      root,
		DistDir:   "dist",
		StatsFile: "stats.json",
		Command:   "ng",
		Args:      []string{"build"},
		ExtraArgs: []string{"--extra-webpack-config", "webpack.extra.js"},
		StatsFlag: "--statsJson",
		Silent:    true,
	}
}

func TestSequencer_Argv(t *testing.T) {
	s := newSequencer(nil, "/w")

	require.Equal(t, []string{
		"build", "--project", "app", "--configuration", "forgerock", "--output-path", "dist/forgerock",
		"--extra-webpack-config", "webpack.extra.js", "--statsJson",
	}, s.Argv("app", "forgerock", true))

	require.Equal(t, []string{
		"build", "--project", "app", "--configuration", "acme", "--output-path", "dist/acme",
		"--extra-webpack-config", "webpack.extra.js",
	}, s.Argv("app", "acme", false))
}

func TestSequencer_RunsInOrder(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{root: root}
	s := newSequencer(runner, root)

	results, err := s.Run(context.Background(), "app", []string{"forgerock", "acme", "globex"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, []string{"forgerock", "acme", "globex"}, runner.built())
	for _, call := range runner.calls {
		require.Equal(t, "ng", call.name)
		require.Equal(t, root, call.dir)
	}
}

func TestSequencer_StopsOnFirstFailure(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{root: root, fail: map[string]int{"acme": 2}}
	s := newSequencer(runner, root)

	results, err := s.Run(context.Background(), "app", []string{"forgerock", "acme", "globex"})
	require.Error(t, err)
	require.True(t, errors.IsBuildFailure(err))
	require.Equal(t, []string{"forgerock", "acme"}, runner.built())
	require.Len(t, results, 2)
	require.Equal(t, 2, results[1].ExitCode)

	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	theme, _ := classified.Context().GetString("theme")
	require.Equal(t, "acme", theme)
	require.Contains(t, err.Error(), "compilation failed for acme")
}

func TestSequencer_CanceledBeforeStart(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{root: root}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSequencer(runner, root).Run(ctx, "app", []string{"forgerock"})
	require.True(t, errors.HasCategory(err, errors.CategoryCanceled))
	require.Empty(t, runner.calls)
}

func TestSequencer_Cleanup(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{root: root}
	s := newSequencer(runner, root)
	_, err := s.Run(context.Background(), "app", []string{"forgerock", "acme"})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(root, "dist", "forgerock", "stats.json"))

	require.NoError(t, s.Cleanup([]string{"forgerock", "acme", "never-built"}))
	_, statErr := os.Stat(filepath.Join(root, "dist", "forgerock", "stats.json"))
	require.True(t, os.IsNotExist(statErr))
	require.FileExists(t, filepath.Join(root, "dist", "forgerock", "main.js"))
}
