// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"svcgraph/internal/issue"
	"svcgraph/pkg/manifest"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/exp/maps"
)

type (
	// Option configures NormalizeAll.
	Option func(*normalizeOptions)

	// PropertyOverrides maps package name -> property name -> value.
	PropertyOverrides map[string]map[string]any

	normalizeOptions struct {
		overrides PropertyOverrides
	}
)

// WithPropertyOverrides replaces package property values at application level.
// Every override must name a declared package and property.
func WithPropertyOverrides(overrides PropertyOverrides) Option {
	return func(o *normalizeOptions) {
		o.overrides = overrides
	}
}

// Normalize expands one raw declaration. The first problem found aborts the
// package and is returned as an *issue.Error of kind invalid-metadata.
func Normalize(raw *manifest.Package) (*PackageConfig, error) {
	return normalize(raw, nil)
}

// NormalizeAll normalizes every package concurrently and returns them in
// input order. Problems of all packages are batched into an issue.List.
func NormalizeAll(raws []*manifest.Package, opts ...Option) ([]*PackageConfig, error) {
	o := normalizeOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var problems []*issue.Error

	// Nil entries and blank names are reported by normalize.
	names := make([]string, len(raws))
	seen := make(map[string]int, len(raws))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		name := strings.TrimSpace(raw.Name)
		names[i] = name
		if name == "" {
			continue
		}
		if first, dup := seen[name]; dup {
			problems = append(problems, invalid(name,
				"package %q is declared twice (declarations %d and %d%s)", name, first+1, i+1, sourceHint(raw)))
			continue
		}
		seen[name] = i
	}
	for _, name := range sortedKeys(o.overrides) {
		if _, ok := seen[name]; !ok {
			problems = append(problems, invalid(name, "property overrides name unknown package %q", name))
		}
	}

	results := make([]*PackageConfig, len(raws))
	errs := make([]error, len(raws))
	var wg sync.WaitGroup
	for i, raw := range raws {
		wg.Go(func() {
			results[i], errs[i] = normalize(raw, o.overrides[names[i]])
		})
	}
	wg.Wait()

	for _, err := range errs {
		problems = append(problems, issue.Collect(err)...)
	}
	if len(problems) > 0 {
		return nil, issue.Join(problems...)
	}
	return results, nil
}

func normalize(raw *manifest.Package, overrides map[string]any) (*PackageConfig, error) {
	if raw == nil {
		return nil, invalid("", "nil package declaration")
	}
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return nil, invalid("", "package name is empty%s", sourceHint(raw))
	}

	pkg := &PackageConfig{
		Name:       name,
		Properties: make(map[string]PropertyConfig, len(raw.Properties)),
		Source:     raw.Source,
	}

	if v := strings.TrimSpace(raw.Version); v != "" {
		version, err := semver.NewVersion(v)
		if err != nil {
			e := invalid(name, "package %q has invalid version %q", name, v)
			e.Cause = err
			return nil, e
		}
		pkg.Version = version
	}

	shared, err := normalizeProperties(pkg, raw.Properties, overrides)
	if err != nil {
		return nil, err
	}

	for _, svcName := range raw.ServiceNames() {
		svc, err := normalizeService(name, svcName, raw.Services[svcName], shared)
		if err != nil {
			return nil, err
		}
		pkg.Services = append(pkg.Services, svc)
	}
	return pkg, nil
}

// normalizeProperties resolves package properties and returns the values
// every service inherits.
func normalizeProperties(pkg *PackageConfig, raw map[string]manifest.Property, overrides map[string]any) (map[string]any, error) {
	for _, key := range sortedKeys(overrides) {
		if _, ok := raw[key]; !ok {
			return nil, invalid(pkg.Name, "property override %q is not declared by package %q", key, pkg.Name)
		}
	}

	shared := make(map[string]any, len(raw))
	for _, key := range sortedKeys(raw) {
		prop := raw[key]
		cfg := PropertyConfig{Value: prop.Value, HasValue: prop.Value != nil, Required: prop.Required}
		if v, ok := overrides[key]; ok {
			cfg.Value, cfg.HasValue = v, true
		}
		if cfg.Required && !cfg.HasValue {
			return nil, invalid(pkg.Name, "required property %q of package %q has no value", key, pkg.Name)
		}
		pkg.Properties[key] = cfg
		if cfg.HasValue {
			shared[key] = cfg.Value
		}
	}
	return shared, nil
}

func normalizeService(pkgName, name string, raw manifest.Service, shared map[string]any) (*ServiceConfig, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalid(pkgName, "package %q declares a service with an empty name", pkgName)
	}

	svc := &ServiceConfig{
		Package:    pkgName,
		Name:       name,
		Properties: maps.Clone(shared),
	}
	if svc.Properties == nil {
		svc.Properties = make(map[string]any, len(raw.Properties))
	}

	provides, err := normalizeProvides(raw.Provides)
	if err != nil {
		return nil, serviceInvalid(pkgName, name, "", err)
	}
	for i, p := range provides {
		if slices.Contains(provides[:i], p) {
			return nil, serviceInvalid(pkgName, name, "",
				fmt.Errorf("interface %s is provided twice", p))
		}
	}
	svc.Provides = provides

	for _, refName := range sortedKeys(raw.References) {
		ref, err := normalizeReference(refName, raw.References[refName])
		if err != nil {
			return nil, serviceInvalid(pkgName, name, refName, err)
		}
		svc.References = append(svc.References, ref)
	}

	for _, key := range sortedKeys(raw.Properties) {
		if _, clash := shared[key]; clash {
			return nil, serviceInvalid(pkgName, name, "",
				fmt.Errorf("property %q is already declared by the package", key))
		}
		svc.Properties[key] = raw.Properties[key]
	}
	return svc, nil
}

// normalizeProvides expands a string, an object, or a list mixing both.
func normalizeProvides(v any) ([]InterfaceConfig, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]InterfaceConfig, 0, len(p))
		for i, entry := range p {
			if _, nested := entry.([]any); nested {
				return nil, fmt.Errorf("provides[%d]: nested lists are not allowed", i)
			}
			iface, err := normalizeInterface(entry)
			if err != nil {
				return nil, fmt.Errorf("provides[%d]: %w", i, err)
			}
			out = append(out, iface)
		}
		return out, nil
	case []string:
		out := make([]InterfaceConfig, 0, len(p))
		for i, entry := range p {
			iface, err := normalizeInterface(entry)
			if err != nil {
				return nil, fmt.Errorf("provides[%d]: %w", i, err)
			}
			out = append(out, iface)
		}
		return out, nil
	default:
		iface, err := normalizeInterface(p)
		if err != nil {
			return nil, fmt.Errorf("provides: %w", err)
		}
		return []InterfaceConfig{iface}, nil
	}
}

func normalizeInterface(v any) (InterfaceConfig, error) {
	switch p := v.(type) {
	case string:
		if strings.TrimSpace(p) == "" {
			return InterfaceConfig{}, fmt.Errorf("interface name is empty")
		}
		return InterfaceConfig{Name: p}, nil
	case map[string]any:
		if err := onlyKeys(p, "name", "qualifier"); err != nil {
			return InterfaceConfig{}, err
		}
		name, err := stringField(p, "name", true)
		if err != nil {
			return InterfaceConfig{}, err
		}
		qualifier, err := stringField(p, "qualifier", false)
		if err != nil {
			return InterfaceConfig{}, err
		}
		return InterfaceConfig{Name: name, Qualifier: qualifier}, nil
	case InterfaceConfig:
		if p.Name == "" {
			return InterfaceConfig{}, fmt.Errorf("interface name is empty")
		}
		return p, nil
	default:
		return InterfaceConfig{}, fmt.Errorf("unsupported provides entry of type %T", v)
	}
}

func normalizeReference(local string, v any) (ReferenceConfig, error) {
	if strings.TrimSpace(local) == "" {
		return ReferenceConfig{}, fmt.Errorf("reference name is empty")
	}

	switch r := v.(type) {
	case string:
		if strings.TrimSpace(r) == "" {
			return ReferenceConfig{}, fmt.Errorf("interface name is empty")
		}
		return ReferenceConfig{Name: local, Interface: r}, nil
	case map[string]any:
		if err := onlyKeys(r, "name", "qualifier", "all"); err != nil {
			return ReferenceConfig{}, err
		}
		iface, err := stringField(r, "name", true)
		if err != nil {
			return ReferenceConfig{}, err
		}
		qualifier, err := stringField(r, "qualifier", false)
		if err != nil {
			return ReferenceConfig{}, err
		}
		all := false
		if raw, ok := r["all"]; ok && raw != nil {
			b, ok := raw.(bool)
			if !ok {
				return ReferenceConfig{}, fmt.Errorf(`"all" must be a boolean, got %T`, raw)
			}
			all = b
		}
		if all && qualifier != "" {
			return ReferenceConfig{}, fmt.Errorf("qualifier %q is not allowed on a reference with all: true", qualifier)
		}
		return ReferenceConfig{Name: local, Interface: iface, Qualifier: qualifier, All: all}, nil
	case ReferenceConfig:
		r.Name = local
		if r.Interface == "" {
			return ReferenceConfig{}, fmt.Errorf("interface name is empty")
		}
		if r.All && r.Qualifier != "" {
			return ReferenceConfig{}, fmt.Errorf("qualifier %q is not allowed on a reference with all: true", r.Qualifier)
		}
		return r, nil
	default:
		return ReferenceConfig{}, fmt.Errorf("unsupported reference of type %T", v)
	}
}

func stringField(m map[string]any, key string, required bool) (string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		if required {
			return "", fmt.Errorf("%q is required", key)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%q must be a string, got %T", key, raw)
	}
	if required && strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%q is empty", key)
	}
	return s, nil
}

func onlyKeys(m map[string]any, allowed ...string) error {
	for _, key := range sortedKeys(m) {
		if !slices.Contains(allowed, key) {
			return fmt.Errorf("unknown field %q", key)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func invalid(pkg, format string, args ...any) *issue.Error {
	return &issue.Error{
		Kind:    issue.KindInvalidMetadata,
		Package: pkg,
		Detail:  fmt.Sprintf(format, args...),
	}
}

func serviceInvalid(pkg, svc, ref string, cause error) *issue.Error {
	var detail string
	if ref != "" {
		detail = fmt.Sprintf("reference %q of service %q in package %q is invalid", ref, svc, pkg)
	} else {
		detail = fmt.Sprintf("service %q in package %q is invalid", svc, pkg)
	}
	return &issue.Error{
		Kind:      issue.KindInvalidMetadata,
		Package:   pkg,
		Service:   svc,
		Reference: ref,
		Detail:    detail,
		Cause:     cause,
	}
}

func sourceHint(raw *manifest.Package) string {
	if raw.Source == "" {
		return ""
	}
	return " in " + raw.Source
}
