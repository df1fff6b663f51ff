package process

import (
	"io"
	"regexp"
	"time"
)

// Options configures a single subprocess invocation.
type Options struct {
	// Silent suppresses streaming; output is still captured.
	Silent bool

	// WorkingDir defaults to the current directory.
	WorkingDir string

	// Env is layered over the current process environment.
	Env map[string]string

	// WaitForMatch resolves Run as soon as stdout or stderr matches.
	// The child keeps running; use Result.Wait to reap it.
	WaitForMatch *regexp.Regexp

	// GracePeriod is how long a cancelled child gets between interrupt and kill.
	GracePeriod time.Duration

	// Stdout and Stderr receive the streamed (indented) output when not silent.
	Stdout io.Writer
	Stderr io.Writer
}

// Option is a function that modifies Options.
type Option func(*Options)

// WithSilent suppresses output streaming.
func WithSilent(silent bool) Option {
	return func(o *Options) {
		o.Silent = silent
	}
}

// WithWorkingDir sets the working directory.
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnv adds environment variables.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithWaitForMatch resolves the invocation early when output matches re.
func WithWaitForMatch(re *regexp.Regexp) Option {
	return func(o *Options) {
		o.WaitForMatch = re
	}
}

// WithGracePeriod sets the interrupt-to-kill delay on cancellation.
func WithGracePeriod(d time.Duration) Option {
	return func(o *Options) {
		o.GracePeriod = d
	}
}

// WithOutput sets the writers used for streamed output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *Options) {
		o.Stdout = stdout
		o.Stderr = stderr
	}
}
