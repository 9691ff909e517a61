// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"svcgraph/internal/cueutil"
	"svcgraph/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "svcgraph"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides: SVCGRAPH_LOG_LEVEL sets log.level.
	EnvPrefix = "SVCGRAPH"

	schemaDefinition = "#Config"
	propertiesKey    = "properties"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the svcgraph configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. Precedence, lowest first: defaults, config file,
// SVCGRAPH_* environment variables.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so that AutomaticEnv sees it on Unmarshal.
	defaults := DefaultConfig()
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("lifecycle.max_concurrency", defaults.Lifecycle.MaxConcurrency)
	v.SetDefault("packages.paths", defaults.Packages.Paths)

	path, err := resolveConfigPath(opts)
	if err != nil {
		return nil, err
	}

	var props map[string]map[string]any
	if path != "" {
		props, err = loadCUEIntoViper(v, path)
		if err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Use 'svcgraph config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Properties = props
	cfg.Source = path

	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check the " + EnvPrefix + "_* environment variables").
			WithSuggestion("log.level must be one of debug, info, warn, error").
			Wrap(err).
			BuildError()
	}

	return &cfg, nil
}

// resolveConfigPath returns the config file to load, or "" when none exists.
// An explicit file must exist; the config directory and the working directory
// are searched in that order otherwise.
func resolveConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	for _, candidate := range []string{
		filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
		ConfigFileName + "." + ConfigFileExt,
	} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// Viper. The properties subtree is returned separately: Viper lowercases map
// keys and property names are case sensitive.
func loadCUEIntoViper(v *viper.Viper, path string) (map[string]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	unified, err := cueutil.ValidateBytes(configSchema, data, schemaDefinition,
		cueutil.WithConcrete(false),
		cueutil.WithFilename(path),
	)
	if err != nil {
		return nil, err
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return nil, cueutil.FormatError(err, path)
	}

	var props map[string]map[string]any
	if raw := unified.LookupPath(cue.ParsePath(propertiesKey)); raw.Exists() {
		if err := raw.Decode(&props); err != nil {
			return nil, cueutil.FormatError(err, path)
		}
	}
	delete(configMap, propertiesKey)

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	return props, nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to dir unless a config
// file already exists there. It returns the config file path.
func CreateDefaultConfig(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil // File exists
	}

	content, err := GenerateCUE(DefaultConfig())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

// GenerateCUE generates a CUE representation of the configuration.
func GenerateCUE(cfg *Config) (string, error) {
	var sb strings.Builder

	sb.WriteString("// svcgraph configuration file\n\n")

	sb.WriteString("log: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	sb.WriteString("\nlifecycle: {\n")
	fmt.Fprintf(&sb, "\tmax_concurrency: %d\n", cfg.Lifecycle.MaxConcurrency)
	sb.WriteString("}\n")

	sb.WriteString("\npackages: {\n")
	if len(cfg.Packages.Paths) == 0 {
		sb.WriteString("\tpaths: []\n")
	} else {
		sb.WriteString("\tpaths: [\n")
		for _, p := range cfg.Packages.Paths {
			fmt.Fprintf(&sb, "\t\t%q,\n", p)
		}
		sb.WriteString("\t]\n")
	}
	sb.WriteString("}\n")

	if len(cfg.Properties) > 0 {
		v := cuecontext.New().Encode(cfg.Properties)
		if v.Err() != nil {
			return "", fmt.Errorf("failed to encode properties: %w", v.Err())
		}
		out, err := format.Node(v.Syntax(cue.Concrete(true)))
		if err != nil {
			return "", fmt.Errorf("failed to format properties: %w", err)
		}
		sb.WriteString("\nproperties: ")
		sb.Write(out)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
