package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"git.home.luguber.info/inful/themebuilder/internal/process"
)

type runnerCall struct {
	name  string
	args  []string
	dir   string
	theme string
}

// fakeRunner stands in for the build tool: it writes a plausible output
// directory for the requested configuration.
type fakeRunner struct {
	mu    sync.Mutex
	root  string
	calls []runnerCall

	// fail maps a theme to the exit code its build returns.
	fail map[string]int
	// noStyles lists themes whose build emits no stylesheet.
	noStyles map[string]bool
	// onRun is called before each build.
	onRun func(theme string)
}

func flagValue(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, opts ...process.Option) (*process.Result, error) {
	o := &process.Options{}
	for _, opt := range opts {
		opt(o)
	}
	theme := flagValue(args, "--configuration")

	f.mu.Lock()
	f.calls = append(f.calls, runnerCall{name: name, args: args, dir: o.WorkingDir, theme: theme})
	f.mu.Unlock()

	if f.onRun != nil {
		f.onRun(theme)
	}
	if err := ctx.Err(); err != nil {
		return &process.Result{ExitCode: -1}, fmt.Errorf("%s interrupted: %w", name, err)
	}
	if code, ok := f.fail[theme]; ok {
		return &process.Result{ExitCode: code, Stderr: "compilation failed for " + theme}, &process.ExitError{
			Command:  name,
			ExitCode: code,
			Stderr:   "compilation failed for " + theme,
		}
	}

	out := filepath.Join(o.WorkingDir, filepath.FromSlash(flagValue(args, "--output-path")))
	files := map[string]string{
		"main.js":      "main-" + theme,
		"polyfills.js": "polyfills-" + theme,
		"runtime.js":   "runtime-" + theme,
	}
	if !f.noStyles[theme] {
		files["styles.css"] = "css-" + theme
	}
	if slices.Contains(args, "--statsJson") {
		files["stats.json"] = `{"assets": [{"name": "main.js", "size": 10}], "assetsByChunkName": {"main": ["main.js", "main.js.map"], "polyfills": "polyfills.js", "runtime": "runtime.js", "styles": "styles.css"}}`
	}
	for rel, content := range files {
		p := filepath.Join(out, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			return nil, err
		}
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			return nil, err
		}
	}
	return &process.Result{Stdout: "built " + theme}, nil
}

func (f *fakeRunner) built() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	themes := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		themes = append(themes, c.theme)
	}
	return themes
}
