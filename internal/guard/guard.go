// Package guard protects the shared build configuration file while the
// pipeline mutates it.
package guard

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/natefinch/atomic"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/retry"
)

// NotifyFunc registers c for delivery of sig. signal.Notify satisfies it.
type NotifyFunc func(c chan<- os.Signal, sig ...os.Signal)

// StopFunc undoes a NotifyFunc registration. signal.Stop satisfies it.
type StopFunc func(c chan<- os.Signal)

// Guard snapshots a file before a critical section and puts it back afterwards,
// whatever way the critical section ends.
type Guard struct {
	path   string
	backup string
	notify NotifyFunc
	stop   StopFunc
	retry  retry.Policy
}

// Option configures a Guard.
type Option func(*Guard)

// WithSignals replaces the signal registration used while the guard is active.
func WithSignals(notify NotifyFunc, stop StopFunc) Option {
	return func(g *Guard) {
		g.notify = notify
		g.stop = stop
	}
}

// WithRetryPolicy sets how often a failed restore is retried.
func WithRetryPolicy(p retry.Policy) Option {
	return func(g *Guard) { g.retry = p }
}

// New returns a guard for the file at path.
func New(path string, opts ...Option) *Guard {
	g := &Guard{
		path:   path,
		backup: BackupPath(path),
		notify: signal.Notify,
		stop:   signal.Stop,
		retry:  retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BackupPath returns the snapshot location for path: angular.json becomes angular.save.json.
func BackupPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".save" + ext
}

// Path returns the guarded file.
func (g *Guard) Path() string { return g.path }

// Backup returns the snapshot file.
func (g *Guard) Backup() string { return g.backup }

// Run snapshots the guarded file, runs fn, and restores the snapshot on every
// exit path. While fn runs, SIGINT and SIGTERM cancel fn's context; later
// signals are absorbed until the file has been restored. A panic in fn is
// re-raised after restoration.
func (g *Guard) Run(ctx context.Context, fn func(context.Context) error) (err error) {
	if _, statErr := os.Stat(g.backup); statErr == nil {
		return errors.PreconditionError("a configuration backup from a previous run already exists; restore or remove it first").
			WithContext("backup", g.backup).
			Build()
	}

	data, readErr := os.ReadFile(g.path)
	if readErr != nil {
		return errors.PreconditionError("configuration file cannot be read").
			WithCause(readErr).
			WithContext("path", g.path).
			Build()
	}
	if writeErr := atomic.WriteFile(g.backup, bytes.NewReader(data)); writeErr != nil {
		return errors.FileSystemError("failed to back up configuration file").
			WithCause(writeErr).
			WithContext("backup", g.backup).
			Build()
	}
	slog.Debug("Configuration backed up", logfields.Path(g.path), slog.String("backup", g.backup))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 4)
	g.notify(sigCh, os.Interrupt, syscall.SIGTERM)
	var (
		mu       sync.Mutex
		received os.Signal
	)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigCh:
				mu.Lock()
				first := received == nil
				if first {
					received = sig
				}
				mu.Unlock()
				if first {
					slog.Warn("Interrupt received, stopping build and restoring configuration", slog.String("signal", sig.String()))
					cancel()
				} else {
					slog.Warn("Still restoring configuration, signal ignored", slog.String("signal", sig.String()))
				}
			case <-done:
				return
			}
		}
	}()

	defer func() {
		panicValue := recover()

		restoreErr := g.restore()
		g.stop(sigCh)
		close(done)

		if panicValue != nil {
			if restoreErr != nil {
				slog.Error("Configuration restore failed", logfields.Path(g.path), slog.String("backup", g.backup), logfields.Error(restoreErr))
			}
			panic(panicValue)
		}

		mu.Lock()
		sig := received
		mu.Unlock()

		if sig != nil && err != nil && !errors.HasCategory(err, errors.CategoryCanceled) {
			err = errors.CanceledError("interrupted").
				WithCause(err).
				WithContext("signal", sig.String()).
				Build()
		}

		if restoreErr != nil {
			slog.Error("Configuration restore failed", logfields.Path(g.path), slog.String("backup", g.backup), logfields.Error(restoreErr))
			if err != nil {
				slog.Error("Run failed before restore", logfields.Error(err))
			}
			err = errors.RestoreFailure("failed to restore configuration file from backup").
				WithCause(restoreErr).
				WithContext("path", g.path).
				WithContext("backup", g.backup).
				Build()
		}
	}()

	return fn(ctx)
}

// restore puts the backup back in place, retrying transient failures. It
// ignores the run's context: a canceled run still has to be restored.
func (g *Guard) restore() error {
	return g.retry.Do(context.Background(), g.restoreOnce, func(attempt int, err error) {
		slog.Warn("Configuration restore failed, retrying", logfields.Path(g.path), slog.Int("attempt", attempt), logfields.Error(err))
	})
}

func (g *Guard) restoreOnce() error {
	data, err := os.ReadFile(g.backup)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if err := atomic.WriteFile(g.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", g.path, err)
	}
	if err := os.Remove(g.backup); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove backup: %w", err)
	}
	slog.Debug("Configuration restored", logfields.Path(g.path))
	return nil
}

// RecoverStale puts a leftover backup back in place. It reports whether a
// backup was found.
func (g *Guard) RecoverStale() (bool, error) {
	if _, err := os.Stat(g.backup); err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := g.restore(); err != nil {
		return true, errors.RestoreFailure("failed to restore configuration file from stale backup").
			WithCause(err).
			WithContext("backup", g.backup).
			Build()
	}
	return true, nil
}
