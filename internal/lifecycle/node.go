// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"fmt"
	"sync/atomic"

	"svcgraph/internal/graph"
	"svcgraph/internal/issue"
)

// node pairs a graph node with its runtime state. State changes are
// compare-and-swap so a node never enters Constructing or Destroying twice.
type node struct {
	*graph.Node

	state atomic.Int32

	// instance is written once before the Active transition and read only
	// after observing Active.
	instance any
}

func newNode(n *graph.Node) *node {
	rn := &node{Node: n}
	rn.state.Store(int32(StateUnconstructed))
	return rn
}

// State returns the current state (atomic, lock-free read).
func (n *node) State() State {
	return State(n.state.Load())
}

// transition moves the node from one state to the next. Any move other than
// the lifecycle edges is an internal error.
func (n *node) transition(from, to State) *issue.Error {
	if !validTransition(from, to) {
		return n.internalError(fmt.Sprintf("transition %s -> %s is not a lifecycle edge", from, to))
	}
	if !n.state.CompareAndSwap(int32(from), int32(to)) {
		return n.internalError(fmt.Sprintf("cannot move to %s from state %s (expected %s)", to, n.State(), from))
	}
	return nil
}

func validTransition(from, to State) bool {
	switch from {
	case StateUnconstructed:
		return to == StateConstructing
	case StateConstructing:
		return to == StateActive || to == StateFailed
	case StateActive:
		return to == StateDestroying
	case StateDestroying:
		return to == StateDestroyed
	default:
		return false
	}
}

func (n *node) internalError(detail string) *issue.Error {
	return &issue.Error{
		Kind:    issue.KindInternalError,
		Package: n.ID.Package,
		Service: n.ID.Service,
		Detail:  fmt.Sprintf("%s: %s", n.ID, detail),
	}
}

// identify fills the service identity of e, including its first provided
// interface when it has one.
func (n *node) identify(e *issue.Error) *issue.Error {
	e.Package, e.Service = n.ID.Package, n.ID.Service
	if len(n.Service.Provides) > 0 {
		e.Interface = n.Service.Provides[0].Name
		e.Qualifier = n.Service.Provides[0].Qualifier
	}
	return e
}
