package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/process"
)

// stubBuilder writes a minimal build output for the requested configuration.
type stubBuilder struct {
	built []string
}

func (s *stubBuilder) Run(_ context.Context, _ string, args []string, opts ...process.Option) (*process.Result, error) {
	o := &process.Options{}
	for _, opt := range opts {
		opt(o)
	}
	value := func(flag string) string {
		i := slices.Index(args, flag)
		return args[i+1]
	}
	theme := value("--configuration")
	s.built = append(s.built, theme)

	out := filepath.Join(o.WorkingDir, filepath.FromSlash(value("--output-path")))
	files := map[string]string{"main.js": "main-" + theme, "styles.css": "css-" + theme}
	if slices.Contains(args, "--statsJson") {
		files["stats.json"] = `{"assetsByChunkName": {"main": "main.js", "styles": "styles.css"}}`
	}
	if err := os.MkdirAll(out, 0o750); err != nil {
		return nil, err
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(out, name), []byte(content), 0o600); err != nil {
			return nil, err
		}
	}
	return &process.Result{}, nil
}

type cliEnv struct {
	root   string
	config string
	stdout *bytes.Buffer
	global *Global
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	root := t.TempDir()
	env := &cliEnv{
		root:   root,
		config: filepath.Join(root, "themebuilder.yaml"),
		stdout: &bytes.Buffer{},
	}
	env.global = &Global{Runner: &stubBuilder{}, Stdout: env.stdout, Stderr: &bytes.Buffer{}}
	return env
}

func (e *cliEnv) writeWorkspace(t *testing.T) {
	t.Helper()
	write := func(rel, content string) {
		p := filepath.Join(e.root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	write("angular.json", `{"projects": {"app": {"projectType": "application"}}}`)
	write("themes/forgerock/deployment-settings.json", `{}`)
	write("themes/acme/build-settings.yaml", "html:\n  head:\n    - id: title\n      tag: <title>Acme</title>\n")
	write("themebuilder.yaml", "workspace:\n  root: .\nhistory:\n  path: .themebuilder/history.db\nmetrics:\n  textfile: metrics.prom\n")
}

func (e *cliEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("themebuilder"),
		kong.Vars{"version": "test"},
		kong.Bind(e.global),
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
	)
	require.NoError(t, err)
	ctx, err := parser.Parse(append([]string{"--config", e.config}, args...))
	if err != nil {
		return err
	}
	return ctx.Run(e.global, &cli)
}

func TestInit(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, env.run(t, "init"))
	require.FileExists(t, env.config)
	require.Contains(t, env.stdout.String(), "initialized successfully")

	err := env.run(t, "init")
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
	require.NoError(t, env.run(t, "init", "--force"))
}

func TestBuild_RequiresProject(t *testing.T) {
	env := newCLIEnv(t)
	require.Error(t, env.run(t, "build"))
}

func TestThemes(t *testing.T) {
	env := newCLIEnv(t)
	env.writeWorkspace(t)

	require.NoError(t, env.run(t, "themes"))
	lines := strings.Split(strings.TrimSpace(env.stdout.String()), "\n")
	require.Len(t, lines, 2)
	require.Regexp(t, `^forgerock\s+principal\s+deployment-settings\.json$`, lines[0])
	require.Regexp(t, `^acme\s+tenant\s+build-settings\.yaml$`, lines[1])
}

func TestBuildThenHistory(t *testing.T) {
	env := newCLIEnv(t)
	env.writeWorkspace(t)
	reportPath := filepath.Join(env.root, "report.json")

	require.NoError(t, env.run(t, "build", "--project", "app", "--report", reportPath))
	require.Equal(t, []string{"forgerock", "acme"}, env.global.Runner.(*stubBuilder).built)
	require.Contains(t, env.stdout.String(), "composed  acme")
	require.Contains(t, readString(t, filepath.Join(env.root, "dist", "acme", "index.html")), "<title>Acme</title>")
	require.Contains(t, readString(t, filepath.Join(env.root, "metrics.prom")), "themebuilder_")

	var report struct {
		RunID   string `json:"run_id"`
		Outcome string `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal([]byte(readString(t, reportPath)), &report))
	require.Equal(t, "success", report.Outcome)

	env.stdout.Reset()
	require.NoError(t, env.run(t, "history"))
	require.Contains(t, env.stdout.String(), report.RunID)
	require.Contains(t, env.stdout.String(), "success")

	env.stdout.Reset()
	require.NoError(t, env.run(t, "history", "--run", report.RunID, "--json"))
	var summary map[string]any
	require.NoError(t, json.Unmarshal(env.stdout.Bytes(), &summary))
	require.Equal(t, "app", summary["project"])
	require.Equal(t, []any{"acme"}, summary["composed"])

	err := env.run(t, "history", "--run", "missing")
	require.True(t, errors.IsPrecondition(err))
}

func TestHistory_Disabled(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.WriteFile(env.config, []byte("workspace:\n  root: .\n"), 0o600))
	err := env.run(t, "history")
	require.True(t, errors.IsPrecondition(err))
}

func TestLoadConfig_ExplicitMissingFile(t *testing.T) {
	env := newCLIEnv(t)
	err := env.run(t, "themes")
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func readString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
