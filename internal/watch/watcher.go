// SPDX-License-Identifier: MPL-2.0

// Package watch monitors the mods directory and fires a debounced callback
// when mods are added, removed, or have their manifest or config rewritten.
//
// Only the mods directory and its immediate children are watched: a mod's
// identity and state live in <mod>/manifest.json and <mod>/config.json, so
// deeper changes never affect the local database. Dot-prefixed entries are
// the install pipeline's staging, backup and removal directories and are
// always ignored.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce coalesces the burst of events a single install produces
// (rename into place, config.json write) into one callback.
const defaultDebounce = 300 * time.Millisecond

var (
	// defaultPatterns select the paths that can change the local database.
	defaultPatterns = []string{
		"*",
		"*/manifest.json",
		"*/config.json",
	}

	// defaultIgnores are always excluded, regardless of user-supplied patterns.
	defaultIgnores = []string{
		".*",
		".*/**",
		"**/*.swp",
		"**/*~",
		"**/.DS_Store",
	}

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watch: Run called more than once")
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// ModsDir is the directory to watch. It must exist.
		ModsDir string

		// Patterns are doublestar globs, relative to ModsDir, that trigger the
		// callback. Empty means defaultPatterns.
		Patterns []string

		// Ignore are additional doublestar globs merged with the built-in ignores.
		Ignore []string

		// Debounce is the quiet period after the last event before the callback
		// fires. Zero or negative values fall back to defaultDebounce.
		Debounce time.Duration

		// OnChange receives the deduplicated, sorted list of changed paths
		// relative to ModsDir. A nil callback is a no-op.
		OnChange func(ctx context.Context, changed []string) error

		// Logger receives watcher diagnostics. nil discards them.
		Logger *log.Logger
	}

	// Watcher monitors the mods directory. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		patterns []string
		ignores  []string
		debounce time.Duration
		modsDir  string
		logger   *log.Logger
		started  atomic.Bool
	}
)

// New creates a Watcher for cfg.ModsDir and registers the directory and each
// non-ignored mod directory with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if cfg.ModsDir == "" {
		return nil, errors.New("watch: mods directory is required")
	}
	absDir, err := filepath.Abs(cfg.ModsDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve mods directory: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("watch: stat mods directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", absDir)
	}

	if err := validatePatterns(cfg.Patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}
	ignores := make([]string, 0, len(defaultIgnores)+len(cfg.Ignore))
	ignores = append(ignores, defaultIgnores...)
	ignores = append(ignores, cfg.Ignore...)

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		patterns: patterns,
		ignores:  ignores,
		debounce: debounce,
		modsDir:  absDir,
		logger:   logger,
	}

	if err := w.addDirectories(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("close after init failure", "err", closeErr)
		}
		return nil, err
	}

	return w, nil
}

// Run blocks until ctx is cancelled, dispatching debounced callbacks. It
// returns nil on cancellation and an error when the watcher breaks.
// A callback still running when the next debounce window closes is not
// re-entered; the pending paths are retried after another window.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("callback still running, deferring")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		w.logger.Debug("mods directory changed", "paths", len(changed))
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("change callback failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if closeErr := w.fsw.Close(); closeErr != nil {
			w.logger.Warn("close fsnotify", "err", closeErr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			rel, err := filepath.Rel(w.modsDir, evt.Name)
			if err != nil || rel == "." {
				continue
			}
			if w.isIgnored(rel) || !w.matches(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name, rel)
			}

			mu.Lock()
			pending[filepath.ToSlash(rel)] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// addDirectories registers the mods directory and its immediate subdirectories.
func (w *Watcher) addDirectories() error {
	if err := w.fsw.Add(w.modsDir); err != nil {
		return fmt.Errorf("watch: add directory %q: %w", w.modsDir, err)
	}
	entries, err := os.ReadDir(w.modsDir)
	if err != nil {
		return fmt.Errorf("watch: read mods directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || w.isIgnored(e.Name()) {
			continue
		}
		path := filepath.Join(w.modsDir, e.Name())
		if err := w.fsw.Add(path); err != nil {
			// A mod directory we cannot watch still shows up through the parent's events.
			w.logger.Warn("skipping mod directory", "path", path, "err", err)
		}
	}
	return nil
}

// maybeAddDir starts watching a mod directory created after startup.
func (w *Watcher) maybeAddDir(path, rel string) {
	if strings.ContainsRune(filepath.ToSlash(rel), '/') {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("add new mod directory", "path", path, "err", err)
	}
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) matches(rel string) bool {
	return matchAny(w.patterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

// DefaultPatterns returns a copy of the built-in watch patterns.
func DefaultPatterns() []string {
	return slices.Clone(defaultPatterns)
}

// validatePatterns checks that every pattern is a valid doublestar glob.
func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if pat == "" || !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q: %w", label, pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}

// isFatal reports whether err means the watcher can no longer deliver events.
func isFatal(err error) bool {
	for _, target := range fatalErrnos {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
