// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/svcgraph/config.cue (or the XDG equivalent on
// Linux, ~/Library/Application Support/svcgraph/config.cue on macOS,
// %APPDATA%\svcgraph\config.cue on Windows), falling back to ./config.cue. Files are
// validated against an embedded CUE schema (config_schema.cue). SVCGRAPH_* environment
// variables override file values, for example SVCGRAPH_LIFECYCLE_MAX_CONCURRENCY=4.
package config
