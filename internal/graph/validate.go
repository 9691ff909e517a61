// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"fmt"
	"strings"

	"svcgraph/internal/issue"
	"svcgraph/internal/metadata"
)

// Validate runs every structural check and returns nil when the graph can be
// constructed, or an issue.List holding every problem found. Problems are
// ordered by check: duplicate providers, missing interfaces, ambiguous
// references, then the first dependency cycle.
func Validate(g *Graph) error {
	var errs []*issue.Error
	errs = append(errs, duplicateProviders(g)...)
	errs = append(errs, unresolvedReferences(g)...)
	if cycle := g.Cycle(); cycle != nil {
		errs = append(errs, cycleError(cycle))
	}
	return issue.Join(errs...)
}

// duplicateProviders reports buckets with several providers that a single
// reference resolves to. Buckets consumed only through collect-all references,
// or not consumed at all, are plugin fan-in and stay legal.
func duplicateProviders(g *Graph) []*issue.Error {
	singular := make(map[metadata.InterfaceConfig]bool)
	for _, n := range g.Nodes {
		for _, dep := range n.Dependencies {
			if !dep.Reference.All && len(dep.Providers) > 1 {
				singular[dep.Reference.Target()] = true
			}
		}
	}

	var errs []*issue.Error
	for _, iface := range g.bucketOrder {
		providers := g.buckets[iface]
		if len(providers) < 2 || !singular[iface] {
			continue
		}
		ids := nodeIDs(providers)
		errs = append(errs, &issue.Error{
			Kind:      issue.KindDuplicateInterface,
			Interface: iface.Name,
			Qualifier: iface.Qualifier,
			Providers: ids,
			Detail:    fmt.Sprintf("interface %s is provided by %s", iface, strings.Join(ids, ", ")),
		})
	}
	return errs
}

func unresolvedReferences(g *Graph) []*issue.Error {
	var missing, ambiguous []*issue.Error
	for _, u := range g.Unresolved {
		e := &issue.Error{
			Package:   u.Consumer.ID.Package,
			Service:   u.Consumer.ID.Service,
			Reference: u.Reference.Name,
			Interface: u.Reference.Interface,
			Qualifier: u.Reference.Qualifier,
		}
		if len(u.Candidates) > 0 {
			e.Kind = issue.KindAmbiguousDependency
			e.Providers = nodeIDs(u.Candidates)
			e.Detail = fmt.Sprintf("reference %q of %s matches %d qualified providers of %s: %s",
				u.Reference.Name, u.Consumer.ID, len(u.Candidates), u.Reference.Interface,
				strings.Join(e.Providers, ", "))
			ambiguous = append(ambiguous, e)
			continue
		}
		e.Kind = issue.KindInterfaceNotFound
		e.Detail = fmt.Sprintf("reference %q of %s requires %s, which no service provides",
			u.Reference.Name, u.Consumer.ID, u.Reference.Target())
		missing = append(missing, e)
	}
	return append(missing, ambiguous...)
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID.String()
	}
	return ids
}
