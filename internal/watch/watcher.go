// SPDX-License-Identifier: MPL-2.0

// Package watch monitors the training output directory for produced
// artifacts. Checkpoint writes arrive as bursts of filesystem events (temp
// file, rename, metadata update); events are debounced so the callback
// fires once per burst with the deduplicated set of artifact paths.
package watch

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the quiet period after the last filesystem event
// before the callback fires. Checkpoint writers touch a file several times
// in quick succession; the window coalesces those into one notification.
const defaultDebounce = 2 * time.Second

// defaultPatterns selects the artifact files trainers produce.
var defaultPatterns = []string{
	"**/*.safetensors",
	"**/*.ckpt",
	"**/*.pt",
}

// defaultIgnores excludes paths that generate event noise but never hold
// finished artifacts.
var defaultIgnores = []string{
	"**/.git/**",
	"**/__pycache__/**",
	"**/*.tmp",
	"**/*.partial",
	"**/.DS_Store",
}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// OutputDir is the directory to monitor. Required.
		OutputDir string

		// Patterns override the default artifact globs when non-empty.
		Patterns []string

		// Ignore are additional globs merged with the built-in ignores.
		Ignore []string

		// Debounce overrides the default quiet period when positive.
		Debounce time.Duration

		// OnArtifact is called once per event burst with the deduplicated
		// artifact paths, relative to OutputDir. A nil callback is a no-op.
		OnArtifact func(ctx context.Context, paths []string) error

		// Logger receives skip and error messages; nil means the default.
		Logger *log.Logger
	}

	// Watcher monitors one output directory. Run must be called exactly
	// once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		patterns []string
		ignores  []string
		logger   *log.Logger
		debounce time.Duration
		baseDir  string
		started  atomic.Bool
	}
)

// New creates a Watcher over cfg.OutputDir and registers every non-ignored
// subdirectory for monitoring.
func New(cfg Config) (*Watcher, error) {
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("watch: output directory is required")
	}

	absBase, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve output directory: %w", err)
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}
	if err := validatePatterns(patterns, "artifact"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	ignores := make([]string, 0, len(defaultIgnores)+len(cfg.Ignore))
	ignores = append(ignores, defaultIgnores...)
	ignores = append(ignores, cfg.Ignore...)

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		patterns: patterns,
		ignores:  ignores,
		logger:   logger,
		debounce: debounce,
		baseDir:  absBase,
	}

	if err := w.addDirectories(); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

// Run blocks until ctx is canceled, dispatching debounced artifact
// callbacks. It returns nil on clean cancellation and propagates fatal
// watcher errors. A second call returns an error immediately.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		busy    atomic.Bool
	)

	// fire drains the pending set and invokes the callback. The busy guard
	// keeps a slow callback from overlapping with the next burst; pending
	// events are rescheduled, not lost.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		artifacts := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnArtifact != nil {
			if err := w.cfg.OnArtifact(ctx, artifacts); err != nil {
				w.logger.Warn("artifact callback failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		localTimer := timer
		mu.Unlock()
		if localTimer != nil && !localTimer.Stop() {
			select {
			case <-localTimer.C:
			default:
			}
		}
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("closing fsnotify watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}

			rel, err := filepath.Rel(w.baseDir, evt.Name)
			if err != nil {
				rel = evt.Name
			}

			if w.isIgnored(rel) {
				continue
			}

			// Directories created mid-run (per-epoch subdirs) must be
			// watched too.
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}

			if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Rename) {
				continue
			}
			if !w.matchesPatterns(rel) {
				continue
			}

			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// addDirectories walks the output dir and registers every non-ignored
// directory. Pattern filtering happens per event, not here.
func (w *Watcher) addDirectories() error {
	walkErr := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, walkDirErr error) error {
		if walkDirErr != nil {
			// Inaccessible subdirectories are skipped, not fatal.
			w.logger.Warn("skipping inaccessible path", "path", path, "err", walkDirErr)
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(w.baseDir, path)
		if relErr != nil {
			return nil
		}
		if w.isIgnored(rel) || w.isIgnored(rel+"/") {
			return filepath.SkipDir
		}

		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, addErr)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk output directory: %w", walkErr)
	}
	return nil
}

func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil {
		return
	}
	if w.isIgnored(rel) || w.isIgnored(rel+"/") {
		return
	}

	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("adding new directory to watch", "path", path, "err", err)
	}
}

func (w *Watcher) isIgnored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.ignores {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Watcher) matchesPatterns(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.patterns {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

// DefaultPatterns returns a copy of the built-in artifact globs.
func DefaultPatterns() []string {
	return slices.Clone(defaultPatterns)
}

// validatePatterns rejects invalid globs at construction time; an invalid
// pattern would otherwise silently never match.
func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if _, err := doublestar.Match(pat, ""); err != nil {
			return fmt.Errorf("watch: invalid %s pattern %q: %w", label, pat, err)
		}
	}
	return nil
}
