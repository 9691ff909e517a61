// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"svcgraph/internal/graph"

	"github.com/spf13/cobra"
)

func newOrderCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "order [paths...]",
		Short: "Print construction and teardown order",
		Long: `Print the order in which services would be constructed and destroyed.
The graph must be valid; problems are reported as by 'svcgraph check'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.loadWorkspace(cmd.Context(), flags, args)
			if err == nil {
				err = graph.Validate(ws.graph)
			}
			if err != nil {
				if exit, ok := reportIssues(app.stdout, err, flags.verbose); ok {
					return exit
				}
				return err
			}

			construction, err := ws.graph.ConstructionOrder()
			if err != nil {
				return err
			}
			teardown, err := ws.graph.TeardownOrder()
			if err != nil {
				return err
			}

			printOrder(app.stdout, "Construction order", construction)
			fmt.Fprintln(app.stdout)
			printOrder(app.stdout, "Teardown order", teardown)
			return nil
		},
	}
}

func printOrder(w io.Writer, title string, nodes []*graph.Node) {
	fmt.Fprintln(w, TitleStyle.Render(title))
	for i, n := range nodes {
		fmt.Fprintf(w, "%3d. %s\n", i+1, ServiceStyle.Render(n.ID.String()))
	}
}
