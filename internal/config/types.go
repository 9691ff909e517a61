// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	// LogLevelDebug logs every construction and destruction step.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs application start and stop.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs aborted startups only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs failed services only.
	LogLevelError LogLevel = "error"

	// DefaultMaxConcurrency constructs one service at a time.
	DefaultMaxConcurrency = 1
	// MaxConcurrencyLimit is the highest accepted lifecycle.max_concurrency.
	MaxConcurrencyLimit = 256
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidMaxConcurrency is returned when lifecycle.max_concurrency is out of range.
	ErrInvalidMaxConcurrency = errors.New("invalid max concurrency")
	// ErrInvalidPackagePath is returned when a packages.paths entry is blank.
	ErrInvalidPackagePath = errors.New("invalid package path")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level the CLI and lifecycle loggers emit.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Log configures logging.
		Log LogConfig `json:"log" mapstructure:"log"`
		// Lifecycle configures service construction.
		Lifecycle LifecycleConfig `json:"lifecycle" mapstructure:"lifecycle"`
		// Packages configures where package declarations are loaded from.
		Packages PackagesConfig `json:"packages" mapstructure:"packages"`
		// Properties overrides package property values, keyed by package then
		// property name. Decoded from CUE directly since viper folds key case.
		Properties map[string]map[string]any `json:"properties,omitempty" mapstructure:"-"`
		// Source is the config file that was loaded, empty when only defaults
		// and environment applied.
		Source string `json:"-" mapstructure:"-"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		// Level is one of debug, info, warn or error (default: warn).
		Level LogLevel `json:"level" mapstructure:"level"`
	}

	// LifecycleConfig configures service construction.
	LifecycleConfig struct {
		// MaxConcurrency bounds how many independent services are constructed
		// at once (default: 1, serial).
		MaxConcurrency int `json:"max_concurrency" mapstructure:"max_concurrency"`
	}

	// PackagesConfig lists package declaration sources.
	PackagesConfig struct {
		// Paths are package files or directories holding them.
		Paths []string `json:"paths" mapstructure:"paths"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log:       LogConfig{Level: LogLevelWarn},
		Lifecycle: LifecycleConfig{MaxConcurrency: DefaultMaxConcurrency},
		Packages:  PackagesConfig{Paths: []string{}},
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Validate returns nil if the LogLevel is one of the defined levels,
// or an error wrapping ErrInvalidLogLevel if it is not.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Level converts l to a logger level. Unknown values map to warn.
func (l LogLevel) Level() log.Level {
	lvl, err := log.ParseLevel(string(l))
	if err != nil {
		return log.WarnLevel
	}
	return lvl
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap exposes ErrInvalidConfig and every field error, so errors.Is matches
// both the general and the field-specific sentinels.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Validate checks the fields that environment overrides can set outside the
// CUE schema. It returns nil or an *InvalidConfigError.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, err)
	}
	if n := c.Lifecycle.MaxConcurrency; n < 1 || n > MaxConcurrencyLimit {
		errs = append(errs, fmt.Errorf("%w: %d (valid: 1-%d)", ErrInvalidMaxConcurrency, n, MaxConcurrencyLimit))
	}
	for i, p := range c.Packages.Paths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("%w: packages.paths[%d] is blank", ErrInvalidPackagePath, i))
		}
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}
