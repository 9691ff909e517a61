// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"svcgraph/internal/graph"
	"svcgraph/internal/issue"
	"svcgraph/internal/watch"

	"github.com/spf13/cobra"
)

type checkOptions struct {
	explain bool
	style   string
	watch   bool
}

func newCheckCommand(app *App, flags *rootFlags) *cobra.Command {
	var opts checkOptions

	checkCmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Validate package declarations and the dependency graph",
		Long: `Load, normalize and resolve package declarations and report every problem:
malformed metadata, duplicate providers, missing or ambiguous dependencies,
and dependency cycles. Exits with status 1 when any problem is found.

With --watch, the check runs again whenever a package file changes, until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.watch {
				return app.watchCheck(cmd.Context(), flags, args, opts)
			}
			return app.runCheck(cmd.Context(), flags, args, opts)
		},
	}

	checkCmd.Flags().BoolVar(&opts.explain, "explain", false, "render a help page for each kind of problem found")
	checkCmd.Flags().StringVar(&opts.style, "style", "auto", "glamour style for --explain (auto, dark, light, notty)")
	checkCmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "re-run the check when package files change")

	return checkCmd
}

func (a *App) runCheck(ctx context.Context, flags *rootFlags, args []string, opts checkOptions) error {
	ws, err := a.loadWorkspace(ctx, flags, args)
	if err == nil {
		err = graph.Validate(ws.graph)
	}
	if err == nil {
		fmt.Fprintf(a.stdout, "%s %d package(s), %d service(s)\n",
			SuccessStyle.Render("✓ graph is valid:"), len(ws.pkgs), len(ws.graph.Nodes))
		return nil
	}

	exit, ok := reportIssues(a.stdout, err, flags.verbose)
	if !ok {
		return err
	}
	if opts.explain {
		page, rerr := issue.Render(err, opts.style)
		if rerr != nil {
			return rerr
		}
		fmt.Fprint(a.stdout, page)
	}
	return exit
}

// watchCheck runs the check once, then again after every batch of package
// file changes. Problems are reported but do not end the loop.
func (a *App) watchCheck(ctx context.Context, flags *rootFlags, args []string, opts checkOptions) error {
	paths := args
	if len(paths) == 0 {
		cfg, err := a.loadConfig(ctx, flags)
		if err != nil {
			return err
		}
		paths = cfg.Packages.Paths
	}

	once := func(ctx context.Context) error {
		err := a.runCheck(ctx, flags, paths, opts)
		var exit *ExitError
		if errors.As(err, &exit) {
			return nil
		}
		return err
	}
	if err := once(ctx); err != nil {
		return err
	}

	w, err := watch.New(watch.Config{
		Paths:  paths,
		Stderr: a.stderr,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintln(a.stdout, SubtitleStyle.Render(fmt.Sprintf("%d file(s) changed, checking again", len(changed))))
			return once(ctx)
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, SubtitleStyle.Render("watching for changes, press Ctrl+C to stop"))
	return w.Run(ctx)
}
