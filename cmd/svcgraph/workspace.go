// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"svcgraph/internal/config"
	"svcgraph/internal/graph"
	"svcgraph/internal/issue"
	"svcgraph/internal/metadata"
	"svcgraph/pkg/manifest"
)

// workspace is the resolved state every graph command starts from.
type workspace struct {
	cfg   *config.Config
	pkgs  []*metadata.PackageConfig
	graph *graph.Graph
}

// loadWorkspace loads config, reads the package declarations named by args
// (or packages.paths when args is empty), normalizes them and builds the
// unvalidated graph. Normalization problems come back as an issue.List.
func (a *App) loadWorkspace(ctx context.Context, flags *rootFlags, args []string) (*workspace, error) {
	cfg, err := a.loadConfig(ctx, flags)
	if err != nil {
		return nil, err
	}

	paths := args
	if len(paths) == 0 {
		paths = cfg.Packages.Paths
	}
	if len(paths) == 0 {
		return nil, issue.NewErrorContext().
			WithOperation("load packages").
			WithSuggestion("Pass package files or directories as arguments").
			WithSuggestion("Or set packages.paths in the configuration file").
			Wrap(errors.New("no package paths given")).
			BuildError()
	}

	raws, err := manifest.Load(ctx, paths...)
	if err != nil {
		return nil, err
	}

	pkgs, err := metadata.NormalizeAll(raws, metadata.WithPropertyOverrides(cfg.Properties))
	if err != nil {
		return nil, err
	}

	return &workspace{cfg: cfg, pkgs: pkgs, graph: graph.Build(pkgs)}, nil
}

// reportIssues prints every classified error in err, one per line, and
// returns an ExitError. ok is false when err holds no classified error; the
// caller then returns err unchanged.
func reportIssues(w io.Writer, err error, verbose bool) (exit *ExitError, ok bool) {
	list := issue.Collect(err)
	if len(list) == 0 {
		return nil, false
	}

	fmt.Fprintln(w, ErrorStyle.Render(fmt.Sprintf("%d problem(s) found", len(list))))
	for _, e := range list {
		fmt.Fprintln(w, kindStyle.Render(string(e.Kind))+describeIssue(e))
		if !verbose {
			continue
		}
		for _, s := range issue.Suggestions(e.Kind) {
			fmt.Fprintln(w, SubtitleStyle.Render("    • "+s))
		}
	}
	return &ExitError{Code: 1, Err: err}, true
}

func describeIssue(e *issue.Error) string {
	var sb strings.Builder
	sb.WriteString(e.Detail)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
