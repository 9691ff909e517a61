// SPDX-License-Identifier: MPL-2.0

// Package dag provides the directed graph operations behind service ordering:
// a deterministic topological sort and a depth-first cycle search.
package dag

import (
	"container/heap"
	"fmt"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle lists the nodes involved. From TopologicalSort it holds every node
		// left unsorted; from FindCycle it holds one cycle in edge order.
		Cycle []string
	}

	// Graph is a directed graph keyed by string.
	// An edge from A to B means A must complete before B starts.
	Graph struct {
		// adjacency maps each node to its outgoing neighbors, in edge insertion order.
		adjacency map[string][]string
		// nodes tracks all nodes in insertion order; it is the tie-break for sorting.
		nodes []string
		// index maps a node to its insertion position.
		index map[string]int
	}

	// readyQueue is a min-heap of insertion positions.
	readyQueue []int
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		index:     make(map[string]int),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// AddEdge adds a directed edge from -> to, meaning "from" must run before "to".
// Both nodes are implicitly added if they don't exist.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Successors returns the outgoing neighbors of name in edge insertion order.
func (g *Graph) Successors(name string) []string {
	return append([]string(nil), g.adjacency[name]...)
}

// Transpose returns a graph with every edge reversed. Node insertion order is kept.
func (g *Graph) Transpose() *Graph {
	t := New()
	for _, node := range g.nodes {
		t.AddNode(node)
	}
	for _, from := range g.nodes {
		for _, to := range g.adjacency[from] {
			t.adjacency[to] = append(t.adjacency[to], from)
		}
	}
	return t
}

// TopologicalSort returns a valid execution order using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
//
// Among the nodes that are ready at any point, the one inserted first is
// emitted first, so identical input always yields the identical order and
// independent nodes keep their insertion order.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make([]int, len(g.nodes))
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[g.index[neighbor]]++
		}
	}

	ready := &readyQueue{}
	for i := range g.nodes {
		if inDegree[i] == 0 {
			heap.Push(ready, i)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		node := g.nodes[i]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			j := g.index[neighbor]
			inDegree[j]--
			if inDegree[j] == 0 {
				heap.Push(ready, j)
			}
		}
	}

	if len(result) != len(g.nodes) {
		// Remaining nodes with non-zero in-degree are on or behind a cycle.
		var cycleNodes []string
		for i, node := range g.nodes {
			if inDegree[i] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		return nil, &CycleError{Cycle: cycleNodes}
	}

	return result, nil
}

// FindCycle runs a depth-first search from every node in insertion order,
// following edges in insertion order, and returns the first cycle it closes.
// The returned path starts at the node the search re-entered and lists each
// cycle member once. Returns nil for an acyclic graph.
func (g *Graph) FindCycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)

	state := make([]int, len(g.nodes))
	var stack []string

	var visit func(node string) []string
	visit = func(node string) []string {
		i := g.index[node]
		state[i] = onStack
		stack = append(stack, node)

		for _, next := range g.adjacency[node] {
			switch state[g.index[next]] {
			case onStack:
				for k := len(stack) - 1; k >= 0; k-- {
					if stack[k] == next {
						return append([]string(nil), stack[k:]...)
					}
				}
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[i] = done
		return nil
	}

	for i, node := range g.nodes {
		if state[i] != unvisited {
			continue
		}
		if cycle := visit(node); cycle != nil {
			return cycle
		}
	}
	return nil
}

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *readyQueue) Push(x any) {
	*q = append(*q, x.(int))
}

func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
