package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingDefaultFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultConfigFile), false)
	require.NoError(t, err)
	require.Equal(t, "forgerock", cfg.Themes.Principal)
	require.Equal(t, "ng", cfg.Build.Command)
	require.Equal(t, []string{"build"}, cfg.Build.Args)
	require.Equal(t, []string{"--extra-webpack-config", "webpack.extra.js"}, cfg.Build.ExtraArgs)
	require.Equal(t, "--statsJson", cfg.Build.StatsFlag)
	require.True(t, cfg.Build.Silent)
	require.Equal(t, "stats.json", cfg.Output.StatsFile)
	require.Equal(t, 10*time.Second, cfg.Build.GracePeriod)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true)
	require.Error(t, err)
}

func TestLoad_ParsesAndResolvesRoot(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TB_PRINCIPAL", "corporate")
	raw := `workspace:
  root: web
themes:
  principal: ${TB_PRINCIPAL}
build:
  command: npx
  args: [ng, build]
  grace_period: 3s
logging:
  level: DEBUG
  format: json
`
	path := filepath.Join(dir, "themebuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "web"), cfg.Workspace.Root)
	require.Equal(t, "corporate", cfg.Themes.Principal)
	require.Equal(t, []string{"ng", "build"}, cfg.Build.Args)
	require.Empty(t, cfg.Build.ExtraArgs)
	require.False(t, cfg.Build.Silent)
	require.Equal(t, 3*time.Second, cfg.Build.GracePeriod)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, filepath.Join(dir, "web", "angular.json"), cfg.AngularJSONPath())
	require.Equal(t, filepath.Join(dir, "web", "themes"), cfg.ThemesPath())
	require.Equal(t, filepath.Join(dir, "web", "dist"), cfg.DistPath())
}

func TestValidate_RejectsNestedPrincipal(t *testing.T) {
	cfg := Default()
	cfg.Themes.Principal = "a/b"
	require.Error(t, cfg.Validate())
}

func TestInit_RefusesOverwriteWithoutForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, "forgerock", cfg.Themes.Principal)
}

func TestHistoryPath(t *testing.T) {
	cfg := Default()
	cfg.Workspace.Root = "/work"
	require.Empty(t, cfg.HistoryPath())

	cfg.History.Path = ".themebuilder/history.db"
	require.Equal(t, filepath.Join("/work", ".themebuilder", "history.db"), cfg.HistoryPath())

	cfg.History.Path = ":memory:"
	require.Equal(t, ":memory:", cfg.HistoryPath())
}

func TestMetricsTextfilePath(t *testing.T) {
	cfg := Default()
	cfg.Workspace.Root = "/work"
	require.Empty(t, cfg.MetricsTextfilePath())

	cfg.Metrics.Textfile = "metrics.prom"
	require.Equal(t, filepath.Join("/work", "metrics.prom"), cfg.MetricsTextfilePath())

	cfg.Metrics.Textfile = "/var/lib/node_exporter/themebuilder.prom"
	require.Equal(t, "/var/lib/node_exporter/themebuilder.prom", cfg.MetricsTextfilePath())
}

func TestValidate_RejectsAbsoluteDistDir(t *testing.T) {
	cfg := Default()
	cfg.Output.DistDir = "/srv/dist"
	require.Error(t, cfg.Validate())
}
