// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync/atomic"
	"time"

	"svcgraph/internal/graph"
	"svcgraph/internal/issue"
	"svcgraph/internal/metrics"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Orchestrator starts one application from a dependency graph.
//
// An orchestrator is single-use: Start may be called once. The graph must not
// be shared with another orchestrator while the application runs.
type Orchestrator struct {
	graph    *graph.Graph
	registry Registry

	logger         *log.Logger
	metrics        *metrics.Collector
	maxConcurrency int

	started atomic.Bool
}

// New creates an orchestrator for g, constructing services with the
// factories of registry.
func New(g *graph.Graph, registry Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		graph:          g,
		registry:       registry,
		maxConcurrency: 1,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "lifecycle",
			Level:  log.WarnLevel,
		}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start validates the graph, then constructs every service in dependency
// order and returns the running application.
//
// Validation and missing factories are reported before anything is
// constructed. When a factory fails, or ctx is cancelled, no further service
// is started, constructions already running are awaited, and every active
// service is destroyed in reverse completion order before Start returns.
func (o *Orchestrator) Start(ctx context.Context) (*Application, error) {
	if !o.started.CompareAndSwap(false, true) {
		return nil, &issue.Error{
			Kind:   issue.KindInternalError,
			Detail: "orchestrator already started; create one orchestrator per application",
		}
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("start application canceled: %w", ctx.Err())
	default:
	}

	if err := graph.Validate(o.graph); err != nil {
		o.recordErrors(err)
		return nil, err
	}
	if err := o.checkFactories(); err != nil {
		o.recordErrors(err)
		return nil, err
	}
	order, err := o.graph.ConstructionOrder()
	if err != nil {
		o.recordErrors(err)
		return nil, err
	}

	app := newApplication(o, order)
	o.logger.Info("starting application", "app", app.id, "services", len(order), "concurrency", o.maxConcurrency)

	if o.maxConcurrency > 1 {
		err = app.constructConcurrent(ctx, o.maxConcurrency)
	} else {
		err = app.constructSerial(ctx)
	}
	if err == nil {
		o.logger.Info("application started", "app", app.id)
		return app, nil
	}

	o.logger.Warn("startup aborted, tearing down", "app", app.id, "active", len(app.completedNodes()), "error", err)
	app.stopOnce.Do(func() {
		app.stopped.Store(true)
		app.stopErr = app.teardown(context.WithoutCancel(ctx))
	})
	if app.stopErr != nil {
		err = errors.Join(err, app.stopErr)
	}
	o.recordErrors(err)
	return nil, err
}

func (o *Orchestrator) checkFactories() error {
	var errs []*issue.Error
	for _, n := range o.graph.Nodes {
		if o.registry[n.ID] != nil {
			continue
		}
		errs = append(errs, &issue.Error{
			Kind:    issue.KindMissingFactory,
			Package: n.ID.Package,
			Service: n.ID.Service,
			Detail:  fmt.Sprintf("no factory registered for %s", n.ID),
		})
	}
	return issue.Join(errs...)
}

func (o *Orchestrator) recordErrors(err error) {
	for _, e := range issue.Collect(err) {
		o.metrics.RecordError(string(e.Kind))
	}
}

func (a *Application) constructSerial(ctx context.Context) error {
	for _, n := range a.plan {
		if err := ctx.Err(); err != nil {
			return a.canceled(err)
		}
		if err := a.construct(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// constructConcurrent starts every service whose providers are all active,
// up to limit at a time. One goroutine (this one) owns the scheduling state;
// workers only report completions. Ready services start in plan order.
func (a *Application) constructConcurrent(ctx context.Context, limit int) error {
	type completion struct {
		n   *node
		err *issue.Error
	}

	pending := make(map[*node]int, len(a.plan))
	dependents := make(map[*node][]*node, len(a.plan))
	var ready []*node
	for _, n := range a.plan {
		providers := a.providersOf(n)
		pending[n] = len(providers)
		for _, p := range providers {
			dependents[p] = append(dependents[p], n)
		}
		if len(providers) == 0 {
			ready = append(ready, n)
		}
	}

	done := make(chan completion, len(a.plan))
	var eg errgroup.Group
	eg.SetLimit(limit)

	var failures []*issue.Error
	inFlight, finished := 0, 0
	for {
		for len(failures) == 0 && ctx.Err() == nil && len(ready) > 0 && inFlight < limit {
			n := ready[0]
			ready = ready[1:]
			inFlight++
			eg.Go(func() error {
				done <- completion{n: n, err: a.construct(ctx, n)}
				return nil
			})
		}
		if inFlight == 0 {
			break
		}

		c := <-done
		inFlight--
		if c.err != nil {
			failures = append(failures, c.err)
			continue
		}
		finished++
		for _, d := range dependents[c.n] {
			if pending[d]--; pending[d] == 0 {
				i, _ := slices.BinarySearchFunc(ready, d, func(x, y *node) int { return a.position[x] - a.position[y] })
				ready = slices.Insert(ready, i, d)
			}
		}
	}
	_ = eg.Wait()

	if len(failures) > 0 {
		return issue.Join(failures...)
	}
	if finished < len(a.plan) {
		if err := ctx.Err(); err != nil {
			return a.canceled(err)
		}
		return &issue.Error{
			Kind:   issue.KindInternalError,
			Detail: fmt.Sprintf("scheduler stalled with %d of %d services constructed", finished, len(a.plan)),
		}
	}
	return nil
}

// providersOf returns the distinct nodes n depends on.
func (a *Application) providersOf(n *node) []*node {
	var out []*node
	for _, dep := range n.Dependencies {
		for _, p := range dep.Providers {
			if rp := a.nodes[p]; !slices.Contains(out, rp) {
				out = append(out, rp)
			}
		}
	}
	return out
}

func (a *Application) canceled(cause error) error {
	return fmt.Errorf("start application %s canceled after %d of %d services: %w",
		a.id, len(a.completedNodes()), len(a.plan), cause)
}

// construct runs the factory of n. The factory sees a context that is never
// cancelled so that a construction in flight always completes.
func (a *Application) construct(ctx context.Context, n *node) *issue.Error {
	if err := n.transition(StateUnconstructed, StateConstructing); err != nil {
		return err
	}

	opts, ierr := a.options(n)
	if ierr != nil {
		_ = n.transition(StateConstructing, StateFailed)
		return ierr
	}

	a.logger.Debug("constructing service", "app", a.id, "service", n.ID)
	start := time.Now()
	instance, err := callFactory(context.WithoutCancel(ctx), a.registry[n.ID], opts)
	elapsed := time.Since(start)
	a.metrics.RecordConstruction(n.ID.String(), elapsed, err)

	if err != nil {
		if terr := n.transition(StateConstructing, StateFailed); terr != nil {
			return terr
		}
		a.logger.Error("service construction failed", "app", a.id, "service", n.ID, "error", err)
		return n.identify(&issue.Error{
			Kind:   issue.KindServiceConstructionFailed,
			Detail: fmt.Sprintf("constructing %s failed", n.ID),
			Cause:  err,
		})
	}

	n.instance = instance
	if err := n.transition(StateConstructing, StateActive); err != nil {
		return err
	}
	a.mu.Lock()
	a.completed = append(a.completed, n)
	a.mu.Unlock()
	a.logger.Debug("service active", "app", a.id, "service", n.ID, "took", elapsed)
	return nil
}

// options gathers the instances n's references resolved to. Every provider
// must already be active.
func (a *Application) options(n *node) (ServiceOptions, *issue.Error) {
	opts := ServiceOptions{
		ID:         n.ID,
		Properties: n.Service.Properties,
		single:     make(map[string]any),
		all:        make(map[string][]any),
	}
	for _, dep := range n.Dependencies {
		providers := make([]*node, 0, len(dep.Providers))
		for _, p := range dep.Providers {
			rp := a.nodes[p]
			if rp.State() != StateActive {
				return ServiceOptions{}, n.internalError(fmt.Sprintf(
					"provider %s of reference %q is %s, not active", rp.ID, dep.Reference.Name, rp.State()))
			}
			providers = append(providers, rp)
		}

		if dep.Reference.All {
			slices.SortFunc(providers, func(x, y *node) int { return a.position[x] - a.position[y] })
			instances := make([]any, len(providers))
			for i, p := range providers {
				instances[i] = p.instance
			}
			opts.all[dep.Reference.Name] = instances
			continue
		}
		if len(providers) != 1 {
			return ServiceOptions{}, n.internalError(fmt.Sprintf(
				"reference %q resolved to %d providers", dep.Reference.Name, len(providers)))
		}
		opts.single[dep.Reference.Name] = providers[0].instance
	}
	return opts, nil
}

func callFactory(ctx context.Context, f Factory, opts ServiceOptions) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factory panicked: %v", r)
		}
	}()
	return f(ctx, opts)
}

// teardown destroys every active service in reverse completion order and
// keeps going past failures.
func (a *Application) teardown(ctx context.Context) error {
	completed := a.completedNodes()
	var errs []*issue.Error
	for i := len(completed) - 1; i >= 0; i-- {
		if err := a.destroy(ctx, completed[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return issue.Join(errs...)
}

func (a *Application) destroy(ctx context.Context, n *node) *issue.Error {
	if err := n.transition(StateActive, StateDestroying); err != nil {
		return err
	}

	a.logger.Debug("destroying service", "app", a.id, "service", n.ID)
	start := time.Now()
	var err error
	if d, ok := n.instance.(Destroyer); ok {
		err = callDestroy(ctx, d)
	}
	a.metrics.RecordDestruction(n.ID.String(), time.Since(start), err)

	// Destroyed even on failure, so nothing retries the destructor.
	if terr := n.transition(StateDestroying, StateDestroyed); terr != nil {
		return terr
	}
	a.mu.Lock()
	a.destroyed = append(a.destroyed, n)
	a.mu.Unlock()

	if err != nil {
		a.logger.Error("service destruction failed", "app", a.id, "service", n.ID, "error", err)
		return n.identify(&issue.Error{
			Kind:   issue.KindServiceDestructionFailed,
			Detail: fmt.Sprintf("destroying %s failed", n.ID),
			Cause:  err,
		})
	}
	return nil
}

func callDestroy(ctx context.Context, d Destroyer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("destructor panicked: %v", r)
		}
	}()
	return d.Destroy(ctx)
}

func newAppID() string {
	return uuid.NewString()
}
