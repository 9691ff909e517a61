// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"svcgraph/internal/issue"
	"svcgraph/internal/testutil"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Log.Level != LogLevelWarn {
		t.Errorf("expected default log level to be warn, got %s", cfg.Log.Level)
	}
	if cfg.Lifecycle.MaxConcurrency != 1 {
		t.Errorf("expected default max concurrency to be 1, got %d", cfg.Lifecycle.MaxConcurrency)
	}
	if len(cfg.Packages.Paths) != 0 {
		t.Errorf("expected default package paths to be empty, got %v", cfg.Packages.Paths)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG lookup applies to Linux only")
	}

	t.Setenv("XDG_CONFIG_HOME", "/tmp/test-xdg-config")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	if want := filepath.Join("/tmp/test-xdg-config", AppName); dir != want {
		t.Errorf("ConfigDir() = %s, want %s", dir, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	dir, err = ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".config", AppName); dir != want {
		t.Errorf("ConfigDir() = %s, want %s", dir, want)
	}
}

func TestConfigDir_Override(t *testing.T) {
	SetConfigDirOverride("/custom/dir")
	t.Cleanup(Reset)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	if dir != "/custom/dir" {
		t.Errorf("ConfigDir() = %s, want /custom/dir", dir)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty", cfg.Source)
	}
	if cfg.Log.Level != LogLevelWarn || cfg.Lifecycle.MaxConcurrency != 1 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.Properties != nil {
		t.Errorf("Properties = %v, want nil", cfg.Properties)
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.cue")
	testutil.MustWriteFile(t, path, `
log: level: "debug"
lifecycle: max_concurrency: 4
packages: paths: ["./services", "/opt/pkgs"]
properties: {
	Map: {TileURL: "https://tiles.example", Zoom: 3}
}
`)

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Source != path {
		t.Errorf("Source = %q, want %q", cfg.Source, path)
	}
	if cfg.Log.Level != LogLevelDebug {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
	if cfg.Lifecycle.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.Lifecycle.MaxConcurrency)
	}
	if !slices.Equal(cfg.Packages.Paths, []string{"./services", "/opt/pkgs"}) {
		t.Errorf("Packages.Paths = %v", cfg.Packages.Paths)
	}

	// Property names keep their case.
	m, ok := cfg.Properties["Map"]
	if !ok {
		t.Fatalf("Properties = %v, missing Map", cfg.Properties)
	}
	if m["TileURL"] != "https://tiles.example" {
		t.Errorf("TileURL = %v", m["TileURL"])
	}
	if fmt.Sprint(m["Zoom"]) != "3" {
		t.Errorf("Zoom = %v", m["Zoom"])
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.cue")
	testutil.MustWriteFile(t, path, `lifecycle: max_concurrency: 8`)

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Lifecycle.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8", cfg.Lifecycle.MaxConcurrency)
	}
	if cfg.Log.Level != LogLevelWarn {
		t.Errorf("Log.Level = %s, want the default", cfg.Log.Level)
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.cue")
	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: missing})
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *issue.ActionableError, got %T", err)
	}
	if ae.Resource != missing {
		t.Errorf("Resource = %q, want %q", ae.Resource, missing)
	}
	if len(ae.Suggestions) == 0 {
		t.Error("expected suggestions")
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"unknown log level", `log: level: "trace"`, "level"},
		{"zero concurrency", `lifecycle: max_concurrency: 0`, "max_concurrency"},
		{"concurrency too high", `lifecycle: max_concurrency: 1000`, "max_concurrency"},
		{"unknown field", `colour: "blue"`, "colour"},
		{"empty path", `packages: paths: [""]`, "paths"},
		{"syntax error", `log: {`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "config.cue")
			testutil.MustWriteFile(t, path, tt.content)

			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("expected a validation error")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) || ae.Operation != "load configuration" {
				t.Errorf("expected a load configuration ActionableError, got %v", err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "config.cue"), `
log: level: "info"
lifecycle: max_concurrency: 2
`)
	t.Setenv("SVCGRAPH_LOG_LEVEL", "error")
	t.Setenv("SVCGRAPH_PACKAGES_PATHS", "a,b")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Log.Level != LogLevelError {
		t.Errorf("Log.Level = %s, want error from the environment", cfg.Log.Level)
	}
	if cfg.Lifecycle.MaxConcurrency != 2 {
		t.Errorf("MaxConcurrency = %d, want 2 from the file", cfg.Lifecycle.MaxConcurrency)
	}
	if !slices.Equal(cfg.Packages.Paths, []string{"a", "b"}) {
		t.Errorf("Packages.Paths = %v", cfg.Packages.Paths)
	}
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	t.Setenv("SVCGRAPH_LIFECYCLE_MAX_CONCURRENCY", "0")

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidMaxConcurrency) {
		t.Fatalf("expected ErrInvalidMaxConcurrency, got %v", err)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGenerateCUE_LoadsBack(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Log:       LogConfig{Level: LogLevelInfo},
		Lifecycle: LifecycleConfig{MaxConcurrency: 3},
		Packages:  PackagesConfig{Paths: []string{"./pkgs"}},
		Properties: map[string]map[string]any{
			"http": {"Addr": ":8080"},
		},
	}
	content, err := GenerateCUE(cfg)
	if err != nil {
		t.Fatalf("GenerateCUE() returned error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.cue")
	testutil.MustWriteFile(t, path, content)
	loaded, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() of generated config returned error: %v\n%s", err, content)
	}
	if loaded.Log.Level != LogLevelInfo || loaded.Lifecycle.MaxConcurrency != 3 {
		t.Errorf("loaded %+v", loaded)
	}
	if !slices.Equal(loaded.Packages.Paths, []string{"./pkgs"}) {
		t.Errorf("Packages.Paths = %v", loaded.Packages.Paths)
	}
	if loaded.Properties["http"]["Addr"] != ":8080" {
		t.Errorf("Properties = %v", loaded.Properties)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	path, err := CreateDefaultConfig(dir)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() returned error: %v", err)
	}
	if path != filepath.Join(dir, "config.cue") {
		t.Errorf("path = %s", path)
	}

	// An existing file is left alone.
	testutil.MustWriteFile(t, path, `log: level: "debug"`)
	if _, err := CreateDefaultConfig(dir); err != nil {
		t.Fatalf("second CreateDefaultConfig() returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `log: level: "debug"` {
		t.Errorf("existing config was overwritten: %s", data)
	}
}
