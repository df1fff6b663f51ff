package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/themebuilder/internal/logfields"
)

const defaultGracePeriod = 10 * time.Second

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, name string, args []string, opts ...Option) (*Result, error)
}

// Result holds the captured output of a command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration

	// Matched is true when Run returned because WaitForMatch matched.
	Matched bool

	done chan struct{}
	err  error
}

// Wait blocks until the child exits. It returns immediately for results of
// commands that already exited.
func (r *Result) Wait() error {
	if r.done == nil {
		return nil
	}
	<-r.done
	return r.err
}

// ExitError reports a command that exited unsuccessfully.
type ExitError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("running %q returned error code %d\n\nSTDOUT:\n%s\n\nSTDERR:\n%s\n", e.Command, e.ExitCode, e.Stdout, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	defaults []Option
}

// NewExecRunner returns a Runner that applies defaults before per-call options.
func NewExecRunner(defaults ...Option) *ExecRunner {
	return &ExecRunner{defaults: defaults}
}

// Run starts name with args and waits for it to exit or for WaitForMatch to match.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string, opts ...Option) (*Result, error) {
	o := &Options{GracePeriod: defaultGracePeriod, Stdout: os.Stdout, Stderr: os.Stderr}
	for _, opt := range r.defaults {
		opt(o)
	}
	for _, opt := range opts {
		opt(o)
	}

	cmdline := formatCommand(name, args)
	slog.Info("Running command",
		logfields.Command(cmdline),
		logfields.Path(o.WorkingDir),
		slog.String("flags", formatFlags(o)))
	if len(o.Env) > 0 {
		slog.Debug("Command environment overrides", slog.Any("keys", sortedKeys(o.Env)))
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = o.WorkingDir
	if len(o.Env) > 0 {
		cmd.Env = os.Environ()
		for _, k := range sortedKeys(o.Env) {
			cmd.Env = append(cmd.Env, k+"="+o.Env[k])
		}
	}
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = o.GracePeriod

	var stdout, stderr syncBuffer
	matched := make(chan struct{})
	var matchOnce sync.Once
	onWrite := func() {}
	if o.WaitForMatch != nil {
		onWrite = func() {
			if o.WaitForMatch.MatchString(stdout.String()) || o.WaitForMatch.MatchString(stderr.String()) {
				matchOnce.Do(func() { close(matched) })
			}
		}
	}

	outStream, errStream := newLineWriter(o.Stdout), newLineWriter(o.Stderr)
	if o.Silent {
		outStream, errStream = nil, nil
	}
	cmd.Stdout = &teeWriter{buf: &stdout, stream: outStream, notify: onWrite}
	cmd.Stderr = &teeWriter{buf: &stderr, stream: errStream, notify: onWrite}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return &Result{ExitCode: -1}, fmt.Errorf("start %s: %w", name, err)
	}

	res := &Result{done: make(chan struct{})}
	go func() {
		res.err = cmd.Wait()
		if outStream != nil {
			outStream.Flush()
			errStream.Flush()
		}
		close(res.done)
	}()

	select {
	case <-matched:
		res.Matched = true
		res.Stdout, res.Stderr = stdout.String(), stderr.String()
		res.Duration = time.Since(start)
		return res, nil
	case <-res.done:
	}

	res.Stdout, res.Stderr = stdout.String(), stderr.String()
	res.Duration = time.Since(start)
	if res.err == nil {
		return res, nil
	}

	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(res.err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("%s interrupted: %w", cmdline, ctx.Err())
	}
	return res, &ExitError{
		Command:  cmdline,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Err:      res.err,
	}
}

func formatCommand(name string, args []string) string {
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, name)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		quoted = append(quoted, a)
	}
	return strings.Join(quoted, " ")
}

func formatFlags(o *Options) string {
	var flags []string
	if o.Silent {
		flags = append(flags, "silent")
	}
	if o.WaitForMatch != nil {
		flags = append(flags, fmt.Sprintf("matching(%s)", o.WaitForMatch))
	}
	return strings.Join(flags, ", ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// teeWriter captures everything and optionally streams it.
type teeWriter struct {
	buf    *syncBuffer
	stream *lineWriter
	notify func()
}

func (w *teeWriter) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	if w.stream != nil {
		_, _ = w.stream.Write(p)
	}
	w.notify()
	return n, err
}
