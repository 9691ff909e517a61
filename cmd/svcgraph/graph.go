// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"svcgraph/internal/graph"
	"svcgraph/internal/metadata"

	"github.com/spf13/cobra"
)

const (
	formatText = "text"
	formatDot  = "dot"
)

func newGraphCommand(app *App, flags *rootFlags) *cobra.Command {
	var format string

	graphCmd := &cobra.Command{
		Use:   "graph [paths...]",
		Short: "Print the resolved dependency graph",
		Long: `Print every service with the interfaces it provides and what each of its
references resolved to. Unresolved references are shown rather than rejected,
so the output helps diagnose an invalid graph.

Use --format dot to produce Graphviz input:
  svcgraph graph --format dot ./packages | dot -Tsvg > graph.svg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatText && format != formatDot {
				return fmt.Errorf("unknown format %q (valid: %s, %s)", format, formatText, formatDot)
			}
			ws, err := app.loadWorkspace(cmd.Context(), flags, args)
			if err != nil {
				if exit, ok := reportIssues(app.stdout, err, flags.verbose); ok {
					return exit
				}
				return err
			}
			if format == formatDot {
				writeDot(app.stdout, ws.graph)
				return nil
			}
			writeText(app.stdout, ws.graph)
			return nil
		},
	}

	graphCmd.Flags().StringVarP(&format, "format", "f", formatText, "output format (text, dot)")

	return graphCmd
}

func writeText(w io.Writer, g *graph.Graph) {
	for _, n := range g.Nodes {
		fmt.Fprintln(w, ServiceStyle.Render(n.ID.String()))
		for _, p := range n.Service.Provides {
			fmt.Fprintf(w, "  provides %s\n", p)
		}
		for _, dep := range n.Dependencies {
			ref := dep.Reference
			target := ref.Target().String()
			if ref.All {
				target = "all " + ref.Interface
			}
			fmt.Fprintf(w, "  %s: %s -> %s\n", ref.Name, target, providerList(dep.Providers, ref.All))
		}
	}
}

func providerList(providers []*graph.Node, all bool) string {
	if len(providers) == 0 {
		if all {
			return SubtitleStyle.Render("(none)")
		}
		return WarningStyle.Render("(unresolved)")
	}
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.ID.String()
	}
	return strings.Join(names, ", ")
}

// writeDot renders g as a Graphviz digraph. Edges point from a consumer to
// the providers it depends on; unresolved single references point to a
// dashed placeholder node.
func writeDot(w io.Writer, g *graph.Graph) {
	fmt.Fprintln(w, "digraph svcgraph {")
	fmt.Fprintln(w, "\trankdir=LR;")
	fmt.Fprintln(w, "\tnode [shape=box];")

	for _, n := range g.Nodes {
		label := n.ID.String()
		for _, p := range n.Service.Provides {
			label += "\\n" + p.String()
		}
		fmt.Fprintf(w, "\t%s [label=%s];\n", dotID(n.ID), dotQuote(label))
	}

	missing := map[string]bool{}
	for _, n := range g.Nodes {
		for _, dep := range n.Dependencies {
			ref := dep.Reference
			if len(dep.Providers) == 0 && !ref.All {
				placeholder := "missing:" + ref.Target().String()
				if !missing[placeholder] {
					missing[placeholder] = true
					fmt.Fprintf(w, "\t%s [label=%s, style=dashed];\n", dotQuote(placeholder), dotQuote(ref.Target().String()))
				}
				fmt.Fprintf(w, "\t%s -> %s [label=%s, style=dashed];\n", dotID(n.ID), dotQuote(placeholder), dotQuote(ref.Name))
				continue
			}
			for _, p := range dep.Providers {
				fmt.Fprintf(w, "\t%s -> %s [label=%s];\n", dotID(n.ID), dotID(p.ID), dotQuote(ref.Name))
			}
		}
	}
	fmt.Fprintln(w, "}")
}

func dotID(id metadata.ServiceID) string {
	return dotQuote(id.String())
}

func dotQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
