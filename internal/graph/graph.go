// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"slices"
	"strings"

	"svcgraph/internal/dag"
	"svcgraph/internal/issue"
	"svcgraph/internal/metadata"
)

type (
	// Node is one service of the application with its resolved dependencies.
	Node struct {
		ID      metadata.ServiceID
		Service *metadata.ServiceConfig
		// Index is the declaration position: package order, then service order.
		Index int
		// Dependencies follow the service's references, sorted by local name.
		Dependencies []Dependency
	}

	// Dependency is one reference of a node and the providers it resolved to.
	Dependency struct {
		Reference metadata.ReferenceConfig
		// Providers holds exactly one node for a valid single reference and
		// every provider, possibly none, for a collect-all reference.
		Providers []*Node
	}

	// Unresolved is a single reference that did not resolve to exactly one provider.
	Unresolved struct {
		Consumer  *Node
		Reference metadata.ReferenceConfig
		// Candidates is empty when nothing provides the interface, and lists
		// the qualified providers when an unqualified reference is ambiguous.
		Candidates []*Node
	}

	// Graph is the unvalidated dependency graph of one application.
	Graph struct {
		// Nodes are in declaration order.
		Nodes []*Node
		// Unresolved are recorded in declaration order of their consumers.
		Unresolved []Unresolved

		byID        map[metadata.ServiceID]*Node
		byKey       map[string]*Node
		buckets     map[metadata.InterfaceConfig][]*Node
		bucketOrder []metadata.InterfaceConfig
		byInterface map[string][]*Node

		// deps has an edge provider -> consumer for every resolved dependency.
		deps *dag.Graph
	}
)

// Build indexes every provider of pkgs and resolves every reference.
func Build(pkgs []*metadata.PackageConfig) *Graph {
	g := &Graph{
		byID:        make(map[metadata.ServiceID]*Node),
		byKey:       make(map[string]*Node),
		buckets:     make(map[metadata.InterfaceConfig][]*Node),
		byInterface: make(map[string][]*Node),
		deps:        dag.New(),
	}

	for _, pkg := range pkgs {
		for _, svc := range pkg.Services {
			n := &Node{ID: svc.ID(), Service: svc, Index: len(g.Nodes)}
			g.Nodes = append(g.Nodes, n)
			g.byID[n.ID] = n
			g.byKey[n.ID.String()] = n
			g.deps.AddNode(n.ID.String())

			for _, p := range svc.Provides {
				if _, seen := g.buckets[p]; !seen {
					g.bucketOrder = append(g.bucketOrder, p)
				}
				g.buckets[p] = append(g.buckets[p], n)
				if !slices.Contains(g.byInterface[p.Name], n) {
					g.byInterface[p.Name] = append(g.byInterface[p.Name], n)
				}
			}
		}
	}

	for _, n := range g.Nodes {
		for _, ref := range n.Service.References {
			providers := g.resolve(n, ref)
			n.Dependencies = append(n.Dependencies, Dependency{Reference: ref, Providers: providers})
			for _, p := range providers {
				g.deps.AddEdge(p.ID.String(), n.ID.String())
			}
		}
	}
	return g
}

func (g *Graph) resolve(consumer *Node, ref metadata.ReferenceConfig) []*Node {
	if ref.All {
		return slices.Clone(g.byInterface[ref.Interface])
	}

	providers, candidates := g.Lookup(ref.Target())
	if len(providers) == 0 {
		g.Unresolved = append(g.Unresolved, Unresolved{Consumer: consumer, Reference: ref, Candidates: candidates})
	}
	return providers
}

// Lookup resolves a single (interface, qualifier) request the way references
// are resolved. The exact bucket wins; an unqualified request with an empty
// bucket falls back to the sole provider of the interface. When that fallback
// finds several qualified providers, providers is empty and candidates lists
// them. More than one provider in the exact bucket is returned as is.
func (g *Graph) Lookup(iface metadata.InterfaceConfig) (providers, candidates []*Node) {
	if bucket := g.buckets[iface]; len(bucket) > 0 {
		return slices.Clone(bucket), nil
	}
	all := g.byInterface[iface.Name]
	if iface.Qualifier != "" {
		return nil, nil
	}
	switch len(all) {
	case 0:
		return nil, nil
	case 1:
		return []*Node{all[0]}, nil
	default:
		return nil, slices.Clone(all)
	}
}

// Node returns the node with the given id.
func (g *Graph) Node(id metadata.ServiceID) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Providers returns the providers of the exact (interface, qualifier) pair.
func (g *Graph) Providers(iface metadata.InterfaceConfig) []*Node {
	return slices.Clone(g.buckets[iface])
}

// ProvidersOf returns every provider of the interface regardless of qualifier.
func (g *Graph) ProvidersOf(iface string) []*Node {
	return slices.Clone(g.byInterface[iface])
}

// Interfaces returns every provided (interface, qualifier) pair in first-seen order.
func (g *Graph) Interfaces() []metadata.InterfaceConfig {
	return slices.Clone(g.bucketOrder)
}

// Dependents returns the nodes that depend on n, in declaration order.
func (g *Graph) Dependents(n *Node) []*Node {
	var out []*Node
	for _, id := range g.deps.Successors(n.ID.String()) {
		if c := g.byKey[id]; !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b *Node) int { return a.Index - b.Index })
	return out
}

// ConstructionOrder returns every node with dependencies before dependents.
// Nodes that become ready together keep declaration order, so the result is
// reproducible. A cyclic graph yields a dependency-cycle error.
func (g *Graph) ConstructionOrder() ([]*Node, error) {
	ids, err := g.deps.TopologicalSort()
	if err != nil {
		return nil, cycleError(g.Cycle())
	}
	order := make([]*Node, 0, len(ids))
	for _, id := range ids {
		order = append(order, g.byKey[id])
	}
	return order, nil
}

// TeardownOrder is the exact reverse of ConstructionOrder.
func (g *Graph) TeardownOrder() ([]*Node, error) {
	order, err := g.ConstructionOrder()
	if err != nil {
		return nil, err
	}
	slices.Reverse(order)
	return order, nil
}

// Cycle returns the first dependency cycle found by a depth-first search
// over consumer -> provider edges in declaration order, or nil.
func (g *Graph) Cycle() []metadata.ServiceID {
	path := g.deps.Transpose().FindCycle()
	if path == nil {
		return nil
	}
	ids := make([]metadata.ServiceID, len(path))
	for i, s := range path {
		ids[i] = g.byKey[s].ID
	}
	return ids
}

func cycleError(cycle []metadata.ServiceID) *issue.Error {
	names := make([]string, len(cycle))
	for i, id := range cycle {
		names[i] = id.String()
	}
	e := &issue.Error{
		Kind:   issue.KindDependencyCycle,
		Cycle:  names,
		Detail: "services depend on each other: " + joinCycle(names),
	}
	if len(cycle) > 0 {
		e.Package, e.Service = cycle[0].Package, cycle[0].Service
	}
	return e
}

func joinCycle(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.Join(append(slices.Clone(names), names[0]), " -> ")
}
