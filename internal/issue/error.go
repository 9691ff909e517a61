// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

type (
	// Error is a classified failure with the identity of the declaration that
	// caused it. Fields that do not apply to a kind are left empty.
	Error struct {
		Kind Kind

		// Package and Service identify the service the error is about. For
		// reference errors this is the consuming service.
		Package string
		Service string

		// Reference is the consumer's local reference name.
		Reference string

		// Interface and Qualifier identify the requested or provided contract.
		Interface string
		Qualifier string

		// Providers lists conflicting or candidate providers as "package::service".
		Providers []string

		// Cycle lists the services forming a dependency cycle, in traversal order.
		Cycle []string

		// Detail is a human readable description.
		Detail string

		// Cause is the underlying error (factory or destructor failure).
		Cause error
	}

	// List is a non-empty batch of errors reported together.
	List []*Error
)

// Error implements the error interface.
func (e *Error) Error() string {
	var msg strings.Builder
	msg.WriteString(string(e.Kind))
	if e.Detail != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Detail)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}
	return msg.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches a Kind target, so errors.Is(err, KindDependencyCycle) works on
// wrapped and batched errors alike.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// ServiceID returns "package::service", or "" when the error is not about a service.
func (e *Error) ServiceID() string {
	if e.Package == "" && e.Service == "" {
		return ""
	}
	return e.Package + "::" + e.Service
}

// Format returns the message followed by remediation hints for the kind.
// In verbose mode the full cause chain is appended.
func (e *Error) Format(verbose bool) string {
	var msg strings.Builder
	msg.WriteString(e.Error())

	if sugs := Suggestions(e.Kind); len(sugs) > 0 {
		msg.WriteString("\n")
		for _, s := range sugs {
			msg.WriteString("\n  • ")
			msg.WriteString(s)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		err := e.Cause
		for depth := 1; err != nil; depth++ {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			err = errors.Unwrap(err)
		}
	}
	return msg.String()
}

// Clone returns a deep copy of e.
func (e *Error) Clone() *Error {
	c := *e
	c.Providers = slices.Clone(e.Providers)
	c.Cycle = slices.Clone(e.Cycle)
	return &c
}

// Error implements the error interface. A single entry formats as that entry;
// several entries are listed one per line.
func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "%d errors:", len(l))
	for _, e := range l {
		msg.WriteString("\n  - ")
		msg.WriteString(e.Error())
	}
	return msg.String()
}

// Unwrap exposes every entry to errors.Is and errors.As.
func (l List) Unwrap() []error {
	errs := make([]error, len(l))
	for i, e := range l {
		errs[i] = e
	}
	return errs
}

// Kinds returns the kinds present in the list in first-seen order.
func (l List) Kinds() []Kind {
	var kinds []Kind
	for _, e := range l {
		if !slices.Contains(kinds, e.Kind) {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

// Filter returns the entries of the given kind.
func (l List) Filter(kind Kind) List {
	var out List
	for _, e := range l {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Join returns errs as a List, or nil when errs is empty.
func Join(errs ...*Error) error {
	if len(errs) == 0 {
		return nil
	}
	return List(errs)
}

// Collect flattens err into its classified entries, walking wrapped errors,
// joined errors and lists. Unclassified leaves are skipped.
func Collect(err error) List {
	var out List
	collect(err, &out)
	return out
}

func collect(err error, out *List) {
	if err == nil {
		return
	}
	if e, ok := err.(*Error); ok {
		*out = append(*out, e)
		return
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			collect(inner, out)
		}
	case interface{ Unwrap() error }:
		collect(u.Unwrap(), out)
	}
}

// KindOf returns the kind of the first classified error in err's tree.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
