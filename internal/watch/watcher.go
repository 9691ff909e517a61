// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a callback when package declarations change.
//
// A Watcher monitors the directories holding package files and invokes
// OnChange after a debounce period. Events within the debounce window are
// coalesced so the callback fires once with the full set of changed files.
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
	"syscall"
	"time"

	"svcgraph/pkg/manifest"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce lets an editor's write-then-rename settle into one callback.
const defaultDebounce = 300 * time.Millisecond

// defaultIgnores are never watched.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Paths are package files or directories, as passed to manifest.Load.
		// Directories are watched recursively.
		Paths []string

		// Patterns select which files trigger callbacks, as doublestar globs
		// matched against slash-separated absolute paths without the leading
		// slash. Empty means DefaultPatterns.
		Patterns []string

		// Debounce is the quiet period after the last event before the callback
		// fires. Zero or negative values fall back to defaultDebounce.
		Debounce time.Duration

		// OnChange is called with the sorted absolute paths that changed. A
		// nil callback is a no-op.
		OnChange func(ctx context.Context, changed []string) error

		// Stderr receives non-fatal watcher errors. nil defaults to os.Stderr.
		Stderr io.Writer
	}

	// Watcher monitors package declarations. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		patterns []string
		files    map[string]bool
		stderr   io.Writer
		debounce time.Duration
		started  atomic.Bool
	}
)

// DefaultPatterns matches package files of every supported format.
func DefaultPatterns() []string {
	exts := make([]string, len(manifest.Extensions()))
	for i, ext := range manifest.Extensions() {
		exts[i] = strings.TrimPrefix(ext, ".")
	}
	return []string{"**/" + manifest.FileBaseName + ".{" + strings.Join(exts, ",") + "}"}
}

// New creates a Watcher and registers every non-ignored directory under
// cfg.Paths. Explicit file paths are matched exactly, whatever their name.
func New(cfg Config) (*Watcher, error) {
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid pattern %q", pat)
		}
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		patterns: patterns,
		files:    make(map[string]bool),
		stderr:   stderr,
		debounce: debounce,
	}
	if err := w.addPaths(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			fmt.Fprintf(stderr, "watch: close after init failure: %v\n", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled, dispatching debounced callbacks. It
// returns nil on cancellation and an error when the watcher breaks. A
// callback that is still running when the next batch is due delays that
// batch instead of running concurrently.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
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

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				fmt.Fprintf(w.stderr, "watch: callback error: %v\n", err)
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
			fmt.Fprintf(w.stderr, "watch: close fsnotify: %v\n", closeErr)
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
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			if !w.matches(evt.Name) {
				continue
			}

			mu.Lock()
			pending[evt.Name] = struct{}{}
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
			if isFatal(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			fmt.Fprintf(w.stderr, "watch: fsnotify error: %v\n", err)
		}
	}
}

// addPaths registers the parent directory of each file path and every
// non-ignored directory below each directory path.
func (w *Watcher) addPaths() error {
	for _, p := range w.cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("watch: resolve %q: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		if !info.IsDir() {
			w.files[abs] = true
			if err := w.fsw.Add(filepath.Dir(abs)); err != nil {
				return fmt.Errorf("watch: add directory %q: %w", filepath.Dir(abs), err)
			}
			continue
		}

		walkErr := filepath.WalkDir(abs, func(path string, d os.DirEntry, walkDirErr error) error {
			if walkDirErr != nil {
				fmt.Fprintf(w.stderr, "watch: skipping inaccessible path %q: %v\n", path, walkDirErr)
				return nil //nolint:nilerr // intentional skip of inaccessible paths
			}
			if !d.IsDir() {
				return nil
			}
			if isIgnored(path) {
				return filepath.SkipDir
			}
			if addErr := w.fsw.Add(path); addErr != nil {
				return fmt.Errorf("watch: add directory %q: %w", path, addErr)
			}
			return nil
		})
		if walkErr != nil {
			return fmt.Errorf("watch: walk directory tree: %w", walkErr)
		}
	}
	return nil
}

// maybeAddDir watches a directory created after startup.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || isIgnored(path) {
		return
	}
	if addErr := w.fsw.Add(path); addErr != nil {
		fmt.Fprintf(w.stderr, "watch: add new directory %q: %v\n", path, addErr)
	}
}

func (w *Watcher) matches(path string) bool {
	if w.files[path] {
		return true
	}
	if isIgnored(path) {
		return false
	}
	normalized := slashPath(path)
	for _, pat := range w.patterns {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

func isIgnored(path string) bool {
	normalized := slashPath(path)
	for _, pat := range defaultIgnores {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
		// A directory itself, not only its contents.
		if matched, err := doublestar.Match(pat, normalized+"/"); err == nil && matched {
			return true
		}
	}
	return false
}

// isFatal reports whether a watcher error means no further events will arrive.
func isFatal(err error) bool {
	return slices.ContainsFunc(fatalErrnos, func(errno syscall.Errno) bool {
		return errors.Is(err, errno)
	})
}

// slashPath makes an absolute path relative to the filesystem root, so that
// patterns starting with "**/" match it.
func slashPath(path string) string {
	return strings.TrimPrefix(filepath.ToSlash(path), "/")
}
