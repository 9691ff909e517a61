// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"svcgraph/internal/graph"
	"svcgraph/internal/issue"
	"svcgraph/internal/metadata"
	"svcgraph/internal/metrics"

	"github.com/charmbracelet/log"
)

// ErrStopped is returned by lookups on an application that has been stopped.
var ErrStopped = errors.New("application stopped")

// Application is a running set of constructed services. It is the only way
// consumers reach service instances.
type Application struct {
	id       string
	graph    *graph.Graph
	registry Registry
	logger   *log.Logger
	metrics  *metrics.Collector

	// plan is the construction order; position indexes it.
	plan     []*node
	position map[*node]int
	nodes    map[*graph.Node]*node

	mu        sync.Mutex
	completed []*node
	destroyed []*node

	stopOnce sync.Once
	stopped  atomic.Bool
	stopErr  error
}

func newApplication(o *Orchestrator, order []*graph.Node) *Application {
	a := &Application{
		id:       newAppID(),
		graph:    o.graph,
		registry: o.registry,
		logger:   o.logger,
		metrics:  o.metrics,
		plan:     make([]*node, len(order)),
		position: make(map[*node]int, len(order)),
		nodes:    make(map[*graph.Node]*node, len(order)),
	}
	for i, gn := range order {
		n := newNode(gn)
		a.plan[i] = n
		a.position[n] = i
		a.nodes[gn] = n
	}
	return a
}

// ID returns the unique id of this application instance.
func (a *Application) ID() string {
	return a.id
}

// Order returns the services in the order they became active.
func (a *Application) Order() []metadata.ServiceID {
	return serviceIDs(a.completedNodes())
}

// TeardownOrder returns the services in the order they were destroyed. It is
// empty until Stop runs.
func (a *Application) TeardownOrder() []metadata.ServiceID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return serviceIDs(a.destroyed)
}

// State returns the lifecycle state of a service.
func (a *Application) State(id metadata.ServiceID) (State, bool) {
	gn, ok := a.graph.Node(id)
	if !ok {
		return 0, false
	}
	return a.nodes[gn].State(), true
}

// Service returns the instance providing iface with the given qualifier. An
// empty qualifier falls back to the sole provider of iface, as references do.
func (a *Application) Service(iface, qualifier string) (any, error) {
	if a.stopped.Load() {
		return nil, ErrStopped
	}
	target := metadata.InterfaceConfig{Name: iface, Qualifier: qualifier}
	providers, candidates := a.graph.Lookup(target)
	switch {
	case len(providers) == 1:
		return a.nodes[providers[0]].instance, nil
	case len(providers) > 1:
		// Only collect-all references consume a shared bucket; use Services.
		return nil, &issue.Error{
			Kind:      issue.KindDuplicateInterface,
			Interface: iface,
			Qualifier: qualifier,
			Providers: nodeNames(providers),
			Detail:    fmt.Sprintf("%s is provided by %s", target, strings.Join(nodeNames(providers), ", ")),
		}
	case len(candidates) > 0:
		return nil, &issue.Error{
			Kind:      issue.KindAmbiguousDependency,
			Interface: iface,
			Providers: nodeNames(candidates),
			Detail:    fmt.Sprintf("%s has %d qualified providers: %s", iface, len(candidates), strings.Join(nodeNames(candidates), ", ")),
		}
	default:
		return nil, &issue.Error{
			Kind:      issue.KindInterfaceNotFound,
			Interface: iface,
			Qualifier: qualifier,
			Detail:    fmt.Sprintf("no service provides %s", target),
		}
	}
}

// Services returns every instance providing iface, whatever its qualifier,
// in construction order. The slice is empty when nothing provides it.
func (a *Application) Services(iface string) ([]any, error) {
	if a.stopped.Load() {
		return nil, ErrStopped
	}
	providers := a.graph.ProvidersOf(iface)
	nodes := make([]*node, len(providers))
	for i, p := range providers {
		nodes[i] = a.nodes[p]
	}
	slices.SortFunc(nodes, func(x, y *node) int { return a.position[x] - a.position[y] })

	out := make([]any, len(nodes))
	for i, n := range nodes {
		out[i] = n.instance
	}
	return out, nil
}

// Stop destroys every active service in reverse completion order. A failing
// destructor does not stop the sweep; all failures are returned together as
// an issue.List. Stop runs once; later calls return the first result.
func (a *Application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.stopped.Store(true)
		a.logger.Info("stopping application", "app", a.id)
		a.stopErr = a.teardown(ctx)
		for _, e := range issue.Collect(a.stopErr) {
			a.metrics.RecordError(string(e.Kind))
		}
		a.logger.Info("application stopped", "app", a.id, "failures", len(issue.Collect(a.stopErr)))
	})
	return a.stopErr
}

func (a *Application) completedNodes() []*node {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.completed)
}

// Get returns the instance providing iface asserted to T.
func Get[T any](a *Application, iface, qualifier string) (T, error) {
	var zero T
	v, err := a.Service(iface, qualifier)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("service providing %s is %T, not %v", iface, v, reflect.TypeFor[T]())
	}
	return t, nil
}

// GetAll returns every instance providing iface asserted to T.
func GetAll[T any](a *Application, iface string) ([]T, error) {
	vs, err := a.Services(iface)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(vs))
	for _, v := range vs {
		t, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("service providing %s is %T, not %v", iface, v, reflect.TypeFor[T]())
		}
		out = append(out, t)
	}
	return out, nil
}

func serviceIDs(nodes []*node) []metadata.ServiceID {
	ids := make([]metadata.ServiceID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func nodeNames(nodes []*graph.Node) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.ID.String()
	}
	return names
}
