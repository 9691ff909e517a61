// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type (
	// MarkdownMsg is Markdown text rendered by Render.
	MarkdownMsg string

	// Help describes one kind of error for people reading a report.
	Help struct {
		kind        Kind
		mdMsg       MarkdownMsg
		suggestions []string
	}
)

// Kind returns the kind the help page describes.
func (h *Help) Kind() Kind {
	return h.kind
}

// MarkdownMsg returns the page body.
func (h *Help) MarkdownMsg() MarkdownMsg {
	return h.mdMsg
}

// Suggestions returns short remediation hints.
func (h *Help) Suggestions() []string {
	return slices.Clone(h.suggestions)
}

// Render renders the page with the given glamour style ("dark", "light", "notty", ...).
func (h *Help) Render(stylePath string) (string, error) {
	return render(string(h.mdMsg), stylePath)
}

var (
	render = glamour.Render

	helpPages = map[Kind]*Help{
		KindInvalidMetadata: {
			kind: KindInvalidMetadata,
			mdMsg: `
# Invalid package metadata

A package declaration could not be normalized. The package is skipped and the
application does not start.

## Common causes
- A reference sets both ` + "`all: true`" + ` and a ` + "`qualifier`" + `. Collect-all
  references receive every provider, so a qualifier has no meaning.
- A ` + "`provides`" + ` entry is neither a string nor ` + "`{name, qualifier?}`" + `.
- The same interface and qualifier are listed twice on one service.
- The package version is not a semantic version.`,
			suggestions: []string{
				"Remove the qualifier from collect-all references",
				"Check the package declaration against the documented schema",
			},
		},
		KindDuplicateInterface: {
			kind: KindDuplicateInterface,
			mdMsg: `
# Duplicate interface provider

More than one service provides the same interface with the same qualifier, so
single references to it cannot be resolved.

## Things you can try
- Give each provider a distinct ` + "`qualifier`" + ` and reference the one you need.
- Remove one of the packages from the application.
- Consume every provider through a collect-all (` + "`all: true`" + `) reference.`,
			suggestions: []string{
				"Give each provider a distinct qualifier",
				"Remove one of the conflicting packages from the application",
			},
		},
		KindInterfaceNotFound: {
			kind: KindInterfaceNotFound,
			mdMsg: `
# Interface not found

A service references an interface that no service in the application provides.

## Things you can try
- Add the package that provides the interface to the application.
- Check the interface name and qualifier for typos.
- Use a collect-all reference if the dependency is optional; it resolves to an
  empty collection when nothing provides the interface.`,
			suggestions: []string{
				"Add the package providing the interface to the application",
				"Check the interface name and qualifier for typos",
			},
		},
		KindAmbiguousDependency: {
			kind: KindAmbiguousDependency,
			mdMsg: `
# Ambiguous dependency

An unqualified reference matches several qualified providers and none of them
is unqualified.

## Things you can try
- Add the ` + "`qualifier`" + ` of the provider you want to the reference.`,
			suggestions: []string{
				"Add a qualifier to the reference",
			},
		},
		KindDependencyCycle: {
			kind: KindDependencyCycle,
			mdMsg: `
# Dependency cycle

Services depend on each other in a loop, so no construction order exists. The
report lists every service on the cycle in order.

## Things you can try
- Break the loop by moving shared state into a separate service.
- Look up the dependency lazily at runtime instead of declaring a reference.`,
			suggestions: []string{
				"Move the shared dependency into a separate service",
			},
		},
		KindMissingFactory: {
			kind: KindMissingFactory,
			mdMsg: `
# Missing service implementation

A declared service has no factory registered with the orchestrator.

## Things you can try
- Register a factory for the service id ` + "`package::Service`" + `.
- Remove the service from the package declaration.`,
			suggestions: []string{
				"Register a factory for the service",
			},
		},
		KindServiceConstructionFailed: {
			kind: KindServiceConstructionFailed,
			mdMsg: `
# Service construction failed

A service factory returned an error. Every service that was already constructed
has been destroyed in reverse order and the application did not start.`,
			suggestions: []string{
				"Inspect the cause reported for the failing service",
			},
		},
		KindServiceDestructionFailed: {
			kind: KindServiceDestructionFailed,
			mdMsg: `
# Service destruction failed

A service returned an error while being destroyed. Teardown continued for all
remaining services; the service is considered destroyed.`,
			suggestions: []string{
				"Inspect the cause reported for the failing service",
			},
		},
		KindInternalError: {
			kind: KindInternalError,
			mdMsg: `
# Internal error

A lifecycle invariant was violated. This indicates a bug; please report it
together with the package declarations that triggered it.`,
		},
	}
)

// Describe returns the help page for kind, or nil for an unknown kind.
func Describe(kind Kind) *Help {
	return helpPages[kind]
}

// Suggestions returns the remediation hints for kind.
func Suggestions(kind Kind) []string {
	if h := helpPages[kind]; h != nil {
		return h.Suggestions()
	}
	return nil
}

// Render renders the help page of every distinct kind found in err.
func Render(err error, stylePath string) (string, error) {
	var out string
	for _, kind := range Collect(err).Kinds() {
		h := Describe(kind)
		if h == nil {
			continue
		}
		page, rerr := h.Render(stylePath)
		if rerr != nil {
			return "", rerr
		}
		out += page
	}
	return out, nil
}
