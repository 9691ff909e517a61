// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"svcgraph/internal/metadata"
)

type (
	// Factory constructs one service. It runs once per application and may
	// block; the context carries values but is never cancelled.
	Factory func(ctx context.Context, opts ServiceOptions) (any, error)

	// Registry maps declared services to their factories.
	Registry map[metadata.ServiceID]Factory

	// Destroyer is implemented by instances that need teardown.
	Destroyer interface {
		Destroy(ctx context.Context) error
	}

	// DestroyerFunc adapts a function to Destroyer.
	DestroyerFunc func(ctx context.Context) error

	// ServiceOptions is what a factory receives: its identity, its merged
	// properties and the instances its references resolved to.
	ServiceOptions struct {
		ID         metadata.ServiceID
		Properties map[string]any

		single map[string]any
		all    map[string][]any
	}
)

// Register adds the factory of "pkg::service", replacing any previous one.
func (r Registry) Register(pkg, service string, f Factory) {
	r[metadata.ServiceID{Package: pkg, Service: service}] = f
}

// Destroy calls f.
func (f DestroyerFunc) Destroy(ctx context.Context) error {
	return f(ctx)
}

// Property returns the named property.
func (o ServiceOptions) Property(name string) (any, bool) {
	v, ok := o.Properties[name]
	return v, ok
}

// Reference returns the instance a single reference resolved to.
func (o ServiceOptions) Reference(name string) (any, error) {
	if v, ok := o.single[name]; ok {
		return v, nil
	}
	if _, ok := o.all[name]; ok {
		return nil, fmt.Errorf("%s: reference %q collects all providers; use References", o.ID, name)
	}
	return nil, fmt.Errorf("%s: no reference named %q", o.ID, name)
}

// References returns the instances of a collect-all reference, ordered by
// construction order. The slice is empty when nothing provides the interface.
func (o ServiceOptions) References(name string) ([]any, error) {
	if v, ok := o.all[name]; ok {
		return append([]any{}, v...), nil
	}
	if _, ok := o.single[name]; ok {
		return nil, fmt.Errorf("%s: reference %q is a single reference; use Reference", o.ID, name)
	}
	return nil, fmt.Errorf("%s: no reference named %q", o.ID, name)
}

// ReferenceNames returns the local names of every reference, sorted.
func (o ServiceOptions) ReferenceNames() []string {
	names := append(slices.Collect(maps.Keys(o.single)), slices.Collect(maps.Keys(o.all))...)
	slices.Sort(names)
	return names
}

// Ref returns a single reference asserted to T.
func Ref[T any](o ServiceOptions, name string) (T, error) {
	var zero T
	v, err := o.Reference(name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s: reference %q is %T, not %v", o.ID, name, v, reflect.TypeFor[T]())
	}
	return t, nil
}

// Refs returns a collect-all reference with every instance asserted to T.
func Refs[T any](o ServiceOptions, name string) ([]T, error) {
	vs, err := o.References(name)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(vs))
	for i, v := range vs {
		t, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("%s: reference %q[%d] is %T, not %v", o.ID, name, i, v, reflect.TypeFor[T]())
		}
		out = append(out, t)
	}
	return out, nil
}
