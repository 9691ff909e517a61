// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

func TestDefaultPatterns(t *testing.T) {
	t.Parallel()

	w := &Watcher{patterns: DefaultPatterns(), files: map[string]bool{}}
	tests := []struct {
		path string
		want bool
	}{
		{"/srv/pkgs/map/package.cue", true},
		{"/srv/pkgs/map/package.json", true},
		{"/srv/pkgs/map/package.toml", true},
		{"/srv/pkgs/map/package.yaml", false},
		{"/srv/pkgs/map/notes.cue", false},
		{"/srv/pkgs/.git/package.cue", false},
		{"/srv/pkgs/map/package.cue.swp", false},
	}
	for _, tt := range tests {
		if got := w.matches(filepath.FromSlash(tt.path)); got != tt.want {
			t.Errorf("matches(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Paths: []string{t.TempDir()}, Patterns: []string{"[unclosed"}}); err == nil {
		t.Fatal("expected an invalid pattern error")
	}
}

func TestNew_MissingPath(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Paths: []string{filepath.Join(t.TempDir(), "nope")}}); err == nil {
		t.Fatal("expected an error for a missing path")
	}
}

// TestWatcher_DebouncesPackageChanges writes several package files in quick
// succession and expects one callback naming all of them, and nothing for
// files that are not package declarations.
func TestWatcher_DebouncesPackageChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, sub := range []string{"a", "b"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	var (
		mu    sync.Mutex
		calls [][]string
	)
	done := make(chan struct{}, 1)

	w, err := New(Config{
		Paths:    []string{dir},
		Debounce: 100 * time.Millisecond,
		Stderr:   &bytes.Buffer{},
		OnChange: func(_ context.Context, changed []string) error {
			mu.Lock()
			calls = append(calls, changed)
			mu.Unlock()
			select {
			case done <- struct{}{}:
			default:
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	files := []string{
		filepath.Join(dir, "a", "package.cue"),
		filepath.Join(dir, "b", "package.json"),
		filepath.Join(dir, "a", "README.md"),
	}
	for _, f := range files {
		if err := os.WriteFile(f, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	// Let a stray second batch surface before asserting.
	time.Sleep(300 * time.Millisecond)
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("expected 1 callback, got %d: %v", len(calls), calls)
	}
	want := files[:2]
	slices.Sort(want)
	if !slices.Equal(calls[0], want) {
		t.Errorf("changed = %v, want %v", calls[0], want)
	}
}

func TestWatcher_ExplicitFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "services.cue")
	if err := os.WriteFile(file, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan []string, 1)
	w, err := New(Config{
		Paths:    []string{file},
		Debounce: 50 * time.Millisecond,
		Stderr:   &bytes.Buffer{},
		OnChange: func(_ context.Context, c []string) error {
			select {
			case changed <- c:
			default:
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	if err := os.WriteFile(file, []byte(`{name: "x"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-changed:
		if !slices.Contains(got, file) {
			t.Errorf("changed = %v, want %s", got, file)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func TestRun_Twice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Paths: []string{t.TempDir()}, Stderr: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	if err := w.Run(ctx); err == nil {
		t.Fatal("second Run() should fail")
	}
}
