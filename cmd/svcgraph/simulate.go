// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"svcgraph/internal/graph"
	"svcgraph/internal/lifecycle"
	"svcgraph/internal/metadata"
	"svcgraph/internal/metrics"

	"github.com/charmbracelet/log"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

type (
	simulateOptions struct {
		concurrency int
		fail        []string
		metrics     bool
	}

	// placeholder stands in for a real service during simulation.
	placeholder struct {
		id     metadata.ServiceID
		logger *log.Logger
	}
)

func newSimulateCommand(app *App, flags *rootFlags) *cobra.Command {
	opts := &simulateOptions{}

	simCmd := &cobra.Command{
		Use:   "simulate [paths...]",
		Short: "Start and stop the application with placeholder services",
		Long: `Run the lifecycle orchestrator over the graph with a placeholder factory for
every service, then stop the application. Prints the order services actually
completed in and the order they were destroyed.

--fail makes the named services' factories fail, to see which services are
constructed and torn down when startup aborts:
  svcgraph simulate --fail db::Pool ./packages`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), app, flags, opts, args)
		},
	}

	simCmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 0, "services constructed at once (default from lifecycle.max_concurrency)")
	simCmd.Flags().StringSliceVar(&opts.fail, "fail", nil, "package::service ids whose construction fails")
	simCmd.Flags().BoolVar(&opts.metrics, "metrics", false, "print lifecycle metrics in Prometheus text format")

	return simCmd
}

func runSimulation(ctx context.Context, app *App, flags *rootFlags, opts *simulateOptions, args []string) error {
	ws, err := app.loadWorkspace(ctx, flags, args)
	if err != nil {
		if exit, ok := reportIssues(app.stdout, err, flags.verbose); ok {
			return exit
		}
		return err
	}

	failing := make(map[metadata.ServiceID]bool, len(opts.fail))
	for _, s := range opts.fail {
		id, err := metadata.ParseServiceID(s)
		if err != nil {
			return err
		}
		if _, ok := ws.graph.Node(id); !ok {
			return fmt.Errorf("--fail: unknown service %s", id)
		}
		failing[id] = true
	}

	concurrency := ws.cfg.Lifecycle.MaxConcurrency
	if opts.concurrency > 0 {
		concurrency = opts.concurrency
	}

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		return err
	}
	logger := app.newLogger(ws.cfg, flags)
	orch := lifecycle.New(ws.graph, placeholderRegistry(ws.graph, failing, logger),
		lifecycle.WithLogger(logger.WithPrefix("lifecycle")),
		lifecycle.WithMetrics(collector),
		lifecycle.WithMaxConcurrency(concurrency),
	)

	application, err := orch.Start(ctx)
	if err != nil {
		exit, ok := reportIssues(app.stdout, err, flags.verbose)
		if opts.metrics {
			if merr := writeMetrics(app.stdout, collector); merr != nil {
				return merr
			}
		}
		if ok {
			return exit
		}
		return err
	}

	fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓ application started:"), application.ID())
	printIDs(app.stdout, "Completion order", application.Order())

	stopErr := application.Stop(ctx)
	fmt.Fprintln(app.stdout)
	printIDs(app.stdout, "Teardown order", application.TeardownOrder())

	if opts.metrics {
		fmt.Fprintln(app.stdout)
		if err := writeMetrics(app.stdout, collector); err != nil {
			return err
		}
	}
	if stopErr != nil {
		if exit, ok := reportIssues(app.stdout, stopErr, flags.verbose); ok {
			return exit
		}
	}
	return stopErr
}

func placeholderRegistry(g *graph.Graph, failing map[metadata.ServiceID]bool, logger *log.Logger) lifecycle.Registry {
	reg := make(lifecycle.Registry, len(g.Nodes))
	for _, n := range g.Nodes {
		id := n.ID
		reg[id] = func(_ context.Context, so lifecycle.ServiceOptions) (any, error) {
			if failing[id] {
				return nil, fmt.Errorf("simulated failure of %s", id)
			}
			logger.Debug("placeholder constructed", "service", id, "references", so.ReferenceNames())
			return &placeholder{id: id, logger: logger}, nil
		}
	}
	return reg
}

// Destroy implements lifecycle.Destroyer.
func (p *placeholder) Destroy(context.Context) error {
	p.logger.Debug("placeholder destroyed", "service", p.id)
	return nil
}

func printIDs(w io.Writer, title string, ids []metadata.ServiceID) {
	fmt.Fprintln(w, TitleStyle.Render(title))
	for i, id := range ids {
		fmt.Fprintf(w, "%3d. %s\n", i+1, ServiceStyle.Render(id.String()))
	}
}

func writeMetrics(w io.Writer, c *metrics.Collector) error {
	families, err := c.Gatherer().Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
