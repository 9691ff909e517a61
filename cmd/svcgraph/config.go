// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"svcgraph/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `svcgraph config` command tree.
func newConfigCommand(app *App, flags *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage svcgraph configuration",
		Long: `Manage svcgraph configuration.

Configuration is stored in:
  - Linux: ~/.config/svcgraph/config.cue
  - macOS: ~/Library/Application Support/svcgraph/config.cue
  - Windows: %APPDATA%\svcgraph\config.cue

Environment variables override file values, for example
SVCGRAPH_LOG_LEVEL=debug or SVCGRAPH_LIFECYCLE_MAX_CONCURRENCY=4.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app, flags)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			content, err := config.GenerateCUE(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, content)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			path, err := config.CreateDefaultConfig(dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓ configuration file:"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App, flags *rootFlags) error {
	cfg, err := app.loadConfig(ctx, flags)
	if err != nil {
		fmt.Fprintln(app.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, flags.verbose))
		return &ExitError{Code: 1, Err: err}
	}

	keyStyle := ServiceStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(app.stdout)

	if cfg.Source != "" {
		fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("Config file"), cfg.Source)
	} else {
		fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(app.stdout)

	fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("log.level"), valueStyle.Render(cfg.Log.Level.String()))
	fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("lifecycle.max_concurrency"), valueStyle.Render(fmt.Sprint(cfg.Lifecycle.MaxConcurrency)))

	paths := SubtitleStyle.Render("(none)")
	if len(cfg.Packages.Paths) > 0 {
		paths = valueStyle.Render(strings.Join(cfg.Packages.Paths, ", "))
	}
	fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("packages.paths"), paths)

	if len(cfg.Properties) > 0 {
		fmt.Fprintf(app.stdout, "%s:\n", keyStyle.Render("properties"))
		for _, pkg := range sortedKeys(cfg.Properties) {
			for _, prop := range sortedKeys(cfg.Properties[pkg]) {
				fmt.Fprintf(app.stdout, "  %s.%s = %s\n", pkg, prop, valueStyle.Render(fmt.Sprint(cfg.Properties[pkg][prop])))
			}
		}
	}
	return nil
}
