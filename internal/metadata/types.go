// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ServiceIDSeparator joins package and service names in a ServiceID string.
const ServiceIDSeparator = "::"

type (
	// ServiceID identifies a service within an application.
	ServiceID struct {
		Package string
		Service string
	}

	// InterfaceConfig is one normalized provides entry.
	InterfaceConfig struct {
		Name string
		// Qualifier is empty for unqualified providers.
		Qualifier string
	}

	// ReferenceConfig is one normalized reference.
	ReferenceConfig struct {
		// Name is the local name the service uses for the dependency.
		Name string
		// Interface is the requested interface name.
		Interface string
		// Qualifier narrows a single reference to one provider; always empty when All is set.
		Qualifier string
		// All requests every provider of Interface instead of exactly one.
		All bool
	}

	// PropertyConfig is a normalized package-level property.
	PropertyConfig struct {
		Value    any
		HasValue bool
		Required bool
	}

	// ServiceConfig is the normalized descriptor of one service. It is
	// read-only once returned by Normalize.
	ServiceConfig struct {
		Package    string
		Name       string
		Provides   []InterfaceConfig
		References []ReferenceConfig
		// Properties holds package property values merged with the service's own.
		Properties map[string]any
	}

	// PackageConfig is the normalized declaration of one package.
	PackageConfig struct {
		Name string
		// Version is nil when the package declares none.
		Version    *semver.Version
		Properties map[string]PropertyConfig
		// Services are ordered by name.
		Services []*ServiceConfig
		// Source is the declaration file, if any.
		Source string
	}
)

// String renders the id as "package::service".
func (id ServiceID) String() string {
	return id.Package + ServiceIDSeparator + id.Service
}

// ParseServiceID parses "package::service".
func ParseServiceID(s string) (ServiceID, error) {
	pkg, svc, ok := strings.Cut(s, ServiceIDSeparator)
	if !ok || pkg == "" || svc == "" {
		return ServiceID{}, fmt.Errorf("invalid service id %q (want package%sservice)", s, ServiceIDSeparator)
	}
	return ServiceID{Package: pkg, Service: svc}, nil
}

// String renders the interface as "name" or "name (qualifier q)".
func (i InterfaceConfig) String() string {
	return describeInterface(i.Name, i.Qualifier)
}

// Target returns the interface the reference asks for.
func (r ReferenceConfig) Target() InterfaceConfig {
	return InterfaceConfig{Name: r.Interface, Qualifier: r.Qualifier}
}

// ID returns the service's identity.
func (s *ServiceConfig) ID() ServiceID {
	return ServiceID{Package: s.Package, Service: s.Name}
}

// Reference returns the reference with the given local name.
func (s *ServiceConfig) Reference(name string) (ReferenceConfig, bool) {
	for _, r := range s.References {
		if r.Name == name {
			return r, true
		}
	}
	return ReferenceConfig{}, false
}

// Service returns the named service of the package.
func (p *PackageConfig) Service(name string) (*ServiceConfig, bool) {
	for _, s := range p.Services {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

func describeInterface(name, qualifier string) string {
	if qualifier == "" {
		return name
	}
	return fmt.Sprintf("%s (qualifier %q)", name, qualifier)
}
