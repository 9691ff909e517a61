// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"errors"
	"slices"
	"testing"

	"svcgraph/internal/issue"
	"svcgraph/internal/metadata"
)

// svc declares a service "pkg::name". provides entries use "iface" or
// "iface#qualifier"; refs map local names to the same notation, with a
// trailing "*" marking a collect-all reference.
func svc(pkg, name string, provides []string, refs map[string]string) *metadata.ServiceConfig {
	s := &metadata.ServiceConfig{Package: pkg, Name: name, Properties: map[string]any{}}
	for _, p := range provides {
		iface, q := splitQualifier(p)
		s.Provides = append(s.Provides, metadata.InterfaceConfig{Name: iface, Qualifier: q})
	}
	locals := make([]string, 0, len(refs))
	for local := range refs {
		locals = append(locals, local)
	}
	slices.Sort(locals)
	for _, local := range locals {
		target := refs[local]
		all := false
		if n := len(target); n > 0 && target[n-1] == '*' {
			target, all = target[:n-1], true
		}
		iface, q := splitQualifier(target)
		s.References = append(s.References, metadata.ReferenceConfig{Name: local, Interface: iface, Qualifier: q, All: all})
	}
	return s
}

func splitQualifier(s string) (string, string) {
	for i := range len(s) {
		if s[i] == '#' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

func pkgs(services ...*metadata.ServiceConfig) []*metadata.PackageConfig {
	var out []*metadata.PackageConfig
	for _, s := range services {
		if n := len(out); n > 0 && out[n-1].Name == s.Package {
			out[n-1].Services = append(out[n-1].Services, s)
			continue
		}
		out = append(out, &metadata.PackageConfig{Name: s.Package, Services: []*metadata.ServiceConfig{s}})
	}
	return out
}

func ids(nodes []*Node) []string {
	return nodeIDs(nodes)
}

func scenario() []*metadata.ServiceConfig {
	return []*metadata.ServiceConfig{
		svc("a", "A", []string{"X"}, nil),
		svc("b", "B", []string{"Y"}, map[string]string{"x": "X"}),
		svc("c", "C", nil, map[string]string{"y": "Y"}),
	}
}

func TestScenario_Order(t *testing.T) {
	t.Parallel()

	g := Build(pkgs(scenario()...))
	if err := Validate(g); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	order, err := g.ConstructionOrder()
	if err != nil {
		t.Fatalf("ConstructionOrder() error: %v", err)
	}
	if got := ids(order); !slices.Equal(got, []string{"a::A", "b::B", "c::C"}) {
		t.Errorf("construction order = %v", got)
	}

	teardown, err := g.TeardownOrder()
	if err != nil {
		t.Fatalf("TeardownOrder() error: %v", err)
	}
	if got := ids(teardown); !slices.Equal(got, []string{"c::C", "b::B", "a::A"}) {
		t.Errorf("teardown order = %v", got)
	}
}

func TestScenario_DuplicateProvider(t *testing.T) {
	t.Parallel()

	services := append(scenario(), svc("d", "D", []string{"Y"}, nil))
	err := Validate(Build(pkgs(services...)))

	var list issue.List
	if !errors.As(err, &list) {
		t.Fatalf("expected issue.List, got %v", err)
	}
	if len(list) != 1 || list[0].Kind != issue.KindDuplicateInterface || list[0].Interface != "Y" {
		t.Fatalf("expected one duplicate-interface(Y), got %v", list)
	}
	if !slices.Equal(list[0].Providers, []string{"b::B", "d::D"}) {
		t.Errorf("Providers = %v", list[0].Providers)
	}
}

func TestOrder_ReverseDeclarationStillRespectsEdges(t *testing.T) {
	t.Parallel()

	s := scenario()
	slices.Reverse(s)
	g := Build(pkgs(s...))
	order, err := g.ConstructionOrder()
	if err != nil {
		t.Fatalf("ConstructionOrder() error: %v", err)
	}
	if got := ids(order); !slices.Equal(got, []string{"a::A", "b::B", "c::C"}) {
		t.Errorf("construction order = %v", got)
	}
}

func TestOrder_IndependentNodesKeepDeclarationOrder(t *testing.T) {
	t.Parallel()

	g := Build(pkgs(
		svc("p", "Zed", nil, nil),
		svc("p", "Consumer", nil, map[string]string{"base": "Base"}),
		svc("p", "Alpha", nil, nil),
		svc("q", "Base", []string{"Base"}, nil),
	))
	order, err := g.ConstructionOrder()
	if err != nil {
		t.Fatalf("ConstructionOrder() error: %v", err)
	}
	want := []string{"p::Zed", "p::Alpha", "q::Base", "p::Consumer"}
	if got := ids(order); !slices.Equal(got, want) {
		t.Errorf("construction order = %v, want %v", got, want)
	}

	for range 5 {
		again, _ := Build(pkgs(
			svc("p", "Zed", nil, nil),
			svc("p", "Consumer", nil, map[string]string{"base": "Base"}),
			svc("p", "Alpha", nil, nil),
			svc("q", "Base", []string{"Base"}, nil),
		)).ConstructionOrder()
		if !slices.Equal(ids(again), want) {
			t.Fatalf("order not reproducible: %v", ids(again))
		}
	}
}

func TestCycle_ReportedOnceWithAllMembers(t *testing.T) {
	t.Parallel()

	g := Build(pkgs(
		svc("root", "Leaf", []string{"Leaf"}, nil),
		svc("a", "A", []string{"A"}, map[string]string{"b": "B", "leaf": "Leaf"}),
		svc("b", "B", []string{"B"}, map[string]string{"c": "C"}),
		svc("c", "C", []string{"C"}, map[string]string{"a": "A"}),
	))

	err := Validate(g)
	var list issue.List
	if !errors.As(err, &list) {
		t.Fatalf("expected issue.List, got %v", err)
	}
	cycles := list.Filter(issue.KindDependencyCycle)
	if len(cycles) != 1 || len(list) != 1 {
		t.Fatalf("expected exactly one dependency-cycle error, got %v", list)
	}
	if want := []string{"a::A", "b::B", "c::C"}; !slices.Equal(cycles[0].Cycle, want) {
		t.Errorf("Cycle = %v, want %v", cycles[0].Cycle, want)
	}

	if _, err := g.ConstructionOrder(); !errors.Is(err, issue.KindDependencyCycle) {
		t.Errorf("ConstructionOrder() expected dependency-cycle, got %v", err)
	}
}

func TestCycle_SelfReference(t *testing.T) {
	t.Parallel()

	g := Build(pkgs(svc("p", "S", []string{"I"}, map[string]string{"self": "I"})))
	cycle := g.Cycle()
	if len(cycle) != 1 || cycle[0].String() != "p::S" {
		t.Fatalf("Cycle() = %v", cycle)
	}
}

func TestCycle_AcyclicGraphHasNone(t *testing.T) {
	t.Parallel()

	if c := Build(pkgs(scenario()...)).Cycle(); c != nil {
		t.Errorf("Cycle() = %v, want nil", c)
	}
}

func TestResolve_UniqueProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		services  []*metadata.ServiceConfig
		wantKinds []issue.Kind
		wantDep   string
	}{
		{
			name: "resolved",
			services: []*metadata.ServiceConfig{
				svc("p", "Provider", []string{"I"}, nil),
				svc("c", "Consumer", nil, map[string]string{"i": "I"}),
			},
			wantDep: "p::Provider",
		},
		{
			name: "provider removed",
			services: []*metadata.ServiceConfig{
				svc("c", "Consumer", nil, map[string]string{"i": "I"}),
			},
			wantKinds: []issue.Kind{issue.KindInterfaceNotFound},
		},
		{
			name: "second unqualified provider",
			services: []*metadata.ServiceConfig{
				svc("p", "Provider", []string{"I"}, nil),
				svc("q", "Other", []string{"I"}, nil),
				svc("c", "Consumer", nil, map[string]string{"i": "I"}),
			},
			wantKinds: []issue.Kind{issue.KindDuplicateInterface},
		},
		{
			name: "qualifier selects provider",
			services: []*metadata.ServiceConfig{
				svc("osm", "Osm", []string{"Layer#osm"}, nil),
				svc("wms", "Wms", []string{"Layer#wms"}, nil),
				svc("c", "Consumer", nil, map[string]string{"l": "Layer#wms"}),
			},
			wantDep: "wms::Wms",
		},
		{
			name: "unqualified prefers the unqualified provider",
			services: []*metadata.ServiceConfig{
				svc("osm", "Osm", []string{"Layer#osm"}, nil),
				svc("def", "Default", []string{"Layer"}, nil),
				svc("c", "Consumer", nil, map[string]string{"l": "Layer"}),
			},
			wantDep: "def::Default",
		},
		{
			name: "unqualified falls back to the sole qualified provider",
			services: []*metadata.ServiceConfig{
				svc("osm", "Osm", []string{"Layer#osm"}, nil),
				svc("c", "Consumer", nil, map[string]string{"l": "Layer"}),
			},
			wantDep: "osm::Osm",
		},
		{
			name: "unqualified with several qualified providers",
			services: []*metadata.ServiceConfig{
				svc("osm", "Osm", []string{"Layer#osm"}, nil),
				svc("wms", "Wms", []string{"Layer#wms"}, nil),
				svc("c", "Consumer", nil, map[string]string{"l": "Layer"}),
			},
			wantKinds: []issue.Kind{issue.KindAmbiguousDependency},
		},
		{
			name: "unknown qualifier",
			services: []*metadata.ServiceConfig{
				svc("osm", "Osm", []string{"Layer#osm"}, nil),
				svc("c", "Consumer", nil, map[string]string{"l": "Layer#tiles"}),
			},
			wantKinds: []issue.Kind{issue.KindInterfaceNotFound},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := Build(pkgs(tt.services...))
			err := Validate(g)
			if got := issue.Collect(err).Kinds(); !slices.Equal(got, tt.wantKinds) {
				t.Fatalf("kinds = %v, want %v (err: %v)", got, tt.wantKinds, err)
			}
			if tt.wantDep == "" {
				return
			}
			consumer, ok := g.Node(metadata.ServiceID{Package: "c", Service: "Consumer"})
			if !ok {
				t.Fatal("consumer node missing")
			}
			if got := ids(consumer.Dependencies[0].Providers); !slices.Equal(got, []string{tt.wantDep}) {
				t.Errorf("providers = %v, want [%s]", got, tt.wantDep)
			}
		})
	}
}

func TestResolve_CollectAll(t *testing.T) {
	t.Parallel()

	t.Run("empty is legal", func(t *testing.T) {
		t.Parallel()

		g := Build(pkgs(svc("c", "Consumer", nil, map[string]string{"plugins": "Plugin*"})))
		if err := Validate(g); err != nil {
			t.Fatalf("Validate() error: %v", err)
		}
		if deps := g.Nodes[0].Dependencies; len(deps) != 1 || len(deps[0].Providers) != 0 {
			t.Errorf("expected an empty collect-all dependency, got %+v", deps)
		}
	})

	t.Run("single reference to the same interface is fatal", func(t *testing.T) {
		t.Parallel()

		g := Build(pkgs(svc("c", "Consumer", nil, map[string]string{"plugin": "Plugin"})))
		if err := Validate(g); !errors.Is(err, issue.KindInterfaceNotFound) {
			t.Fatalf("expected interface-not-found, got %v", err)
		}
	})

	t.Run("unqualified providers feed a collect-all host", func(t *testing.T) {
		t.Parallel()

		g := Build(pkgs(
			svc("host", "Host", nil, map[string]string{"plugins": "Plugin*"}),
			svc("p1", "P1", []string{"Plugin"}, nil),
			svc("p2", "P2", []string{"Plugin"}, nil),
		))
		if err := Validate(g); err != nil {
			t.Fatalf("Validate() error: %v", err)
		}
		host, _ := g.Node(metadata.ServiceID{Package: "host", Service: "Host"})
		if got := ids(host.Dependencies[0].Providers); !slices.Equal(got, []string{"p1::P1", "p2::P2"}) {
			t.Errorf("providers = %v", got)
		}
	})

	t.Run("a single reference to the shared bucket is a duplicate", func(t *testing.T) {
		t.Parallel()

		g := Build(pkgs(
			svc("host", "Host", nil, map[string]string{"plugins": "Plugin*"}),
			svc("p1", "P1", []string{"Plugin"}, nil),
			svc("p2", "P2", []string{"Plugin"}, nil),
			svc("user", "User", nil, map[string]string{"plugin": "Plugin"}),
		))
		list := issue.Collect(Validate(g))
		if len(list) != 1 || list[0].Kind != issue.KindDuplicateInterface {
			t.Fatalf("expected one duplicate-interface, got %v", list)
		}
		if !slices.Equal(list[0].Providers, []string{"p1::P1", "p2::P2"}) {
			t.Errorf("Providers = %v", list[0].Providers)
		}
	})

	t.Run("every qualifier is collected", func(t *testing.T) {
		t.Parallel()

		g := Build(pkgs(
			svc("a", "A", []string{"Plugin#a"}, nil),
			svc("b", "B", []string{"Plugin"}, nil),
			svc("c", "C", []string{"Plugin#c"}, nil),
			svc("x", "Consumer", nil, map[string]string{"plugins": "Plugin*"}),
		))
		if err := Validate(g); err != nil {
			t.Fatalf("Validate() error: %v", err)
		}
		consumer, _ := g.Node(metadata.ServiceID{Package: "x", Service: "Consumer"})
		if got := ids(consumer.Dependencies[0].Providers); !slices.Equal(got, []string{"a::A", "b::B", "c::C"}) {
			t.Errorf("providers = %v", got)
		}
		if got := ids(g.Dependents(g.Nodes[0])); !slices.Equal(got, []string{"x::Consumer"}) {
			t.Errorf("Dependents() = %v", got)
		}
	})
}

func TestValidate_BatchesEveryProblem(t *testing.T) {
	t.Parallel()

	g := Build(pkgs(
		svc("a", "A", []string{"Dup"}, map[string]string{"b": "B"}),
		svc("b", "B", []string{"B", "Dup"}, map[string]string{"a": "Dup", "missing": "Nope"}),
		svc("c", "C", []string{"Q#one"}, nil),
		svc("d", "D", []string{"Q#two"}, map[string]string{"q": "Q"}),
	))

	list := issue.Collect(Validate(g))
	want := []issue.Kind{
		issue.KindDuplicateInterface,
		issue.KindInterfaceNotFound,
		issue.KindAmbiguousDependency,
		issue.KindDependencyCycle,
	}
	var got []issue.Kind
	for _, e := range list {
		got = append(got, e.Kind)
	}
	if !slices.Equal(got, want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}

	missing := list[1]
	if missing.ServiceID() != "b::B" || missing.Reference != "missing" || missing.Interface != "Nope" {
		t.Errorf("interface-not-found lacks identity: %+v", missing)
	}
}

func TestValidate_OkIsNil(t *testing.T) {
	t.Parallel()

	if err := Validate(Build(nil)); err != nil {
		t.Errorf("Validate(empty) = %v", err)
	}
	order, err := Build(nil).ConstructionOrder()
	if err != nil || len(order) != 0 {
		t.Errorf("ConstructionOrder(empty) = %v, %v", order, err)
	}
}

func TestInterfaces_FirstSeenOrder(t *testing.T) {
	t.Parallel()

	g := Build(pkgs(
		svc("a", "A", []string{"Y", "X#east"}, nil),
		svc("b", "B", []string{"X", "Y"}, nil),
	))
	want := []metadata.InterfaceConfig{{Name: "Y"}, {Name: "X", Qualifier: "east"}, {Name: "X"}}
	if got := g.Interfaces(); !slices.Equal(got, want) {
		t.Errorf("Interfaces() = %v, want %v", got, want)
	}
}
