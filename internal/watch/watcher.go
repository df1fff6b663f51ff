// Package watch reruns a build when files under the watched trees change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/themebuilder/internal/logfields"
)

// RunFunc performs one rebuild.
type RunFunc func(ctx context.Context) error

// Watcher monitors directory trees and triggers debounced rebuilds. Rebuilds
// never overlap; changes seen during a rebuild schedule exactly one more.
type Watcher struct {
	roots      []string
	debounce   time.Duration
	run        RunFunc
	runOnStart bool

	watcher *fsnotify.Watcher
	trigger chan struct{}

	mu      sync.Mutex
	watched map[string]bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithRunOnStart runs once before waiting for changes.
func WithRunOnStart() Option {
	return func(w *Watcher) { w.runOnStart = true }
}

// New creates a watcher over roots. Missing roots are skipped with a warning.
func New(roots []string, debounce time.Duration, run RunFunc, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		debounce: debounce,
		run:      run,
		watcher:  fw,
		trigger:  make(chan struct{}, 1),
		watched:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to resolve watch root %s: %w", root, err)
		}
		w.roots = append(w.roots, abs)
	}
	return w, nil
}

// Run watches until ctx is done. Rebuild errors are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
	}()

	for _, root := range w.roots {
		if _, err := os.Stat(root); err != nil {
			slog.Warn("Watch root unavailable", logfields.Path(root), logfields.Error(err))
			continue
		}
		if err := w.addTree(root); err != nil {
			return err
		}
	}
	slog.Info("Watching for changes", slog.String("roots", strings.Join(w.roots, ",")), logfields.Count(w.watchedCount()))

	if w.runOnStart {
		w.notify()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.rebuildLoop(ctx)
	}()

	w.eventLoop(ctx)
	wg.Wait()
	return nil
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if ignored(event.Name) {
		return
	}
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				slog.Warn("Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
			}
		}
	case event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0:
	default:
		return
	}
	slog.Debug("Change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
	w.notify()
}

// notify schedules a rebuild; a pending one absorbs the request.
func (w *Watcher) notify() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) rebuildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.trigger:
		}

		// Wait for the tree to settle.
		timer := time.NewTimer(w.debounce)
	settle:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-w.trigger:
				timer.Reset(w.debounce)
			case <-timer.C:
				break settle
			}
		}

		start := time.Now()
		slog.Info("Rebuilding")
		if err := w.run(ctx); err != nil {
			slog.Error("Rebuild failed", logfields.Error(err), logfields.Duration(time.Since(start)))
			continue
		}
		slog.Info("Rebuild finished", logfields.Duration(time.Since(start)))
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignored(path) {
			return filepath.SkipDir
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.watched[path] {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.watched[path] = true
		return nil
	})
}

func (w *Watcher) watchedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// ignored reports hidden entries and editor backup files.
func ignored(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}
