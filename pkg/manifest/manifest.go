// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"svcgraph/internal/cueutil"

	"github.com/pelletier/go-toml/v2"
)

const (
	// FileBaseName is the base name LoadDir looks for in package directories.
	FileBaseName = "package"

	schemaDefinition = "#Package"
)

// Supported file extensions, in LoadDir lookup precedence.
const (
	ExtCUE  = ".cue"
	ExtJSON = ".json"
	ExtTOML = ".toml"
)

//go:embed package_schema.cue
var packageSchema []byte

type (
	// Package is the raw declaration of one package.
	Package struct {
		Name    string `json:"name"`
		Version string `json:"version,omitempty"`

		// Properties are package-level defaults inherited by every service.
		Properties map[string]Property `json:"properties,omitempty"`

		Services map[string]Service `json:"services,omitempty"`

		// Source is the file the declaration was read from; empty for
		// declarations built in code.
		Source string `json:"-"`
	}

	// Property is a package-level property declaration.
	Property struct {
		Value    any  `json:"value,omitempty"`
		Required bool `json:"required,omitempty"`
	}

	// Service is the raw declaration of one service.
	Service struct {
		// Provides is a string, a map with "name" and optional "qualifier",
		// or a []any mixing both.
		Provides any `json:"provides,omitempty"`

		// References maps a local reference name to either an interface name
		// or a map with "name", optional "qualifier" and optional "all".
		References map[string]any `json:"references,omitempty"`

		Properties map[string]any `json:"properties,omitempty"`
	}
)

// Extensions returns the supported file extensions in lookup precedence.
func Extensions() []string {
	return []string{ExtCUE, ExtJSON, ExtTOML}
}

// Parse decodes a declaration, choosing the format from filename's extension,
// and validates it against the package schema.
func Parse(data []byte, filename string) (*Package, error) {
	var (
		pkg *Package
		err error
	)

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ExtCUE, ExtJSON:
		pkg, err = cueutil.DecodeBytes[Package](packageSchema, data, schemaDefinition,
			cueutil.WithFilename(filename))
	case ExtTOML:
		pkg, err = parseTOML(data, filename)
	default:
		return nil, fmt.Errorf("%s: unsupported package file extension %q (want one of %s)",
			filename, ext, strings.Join(Extensions(), ", "))
	}
	if err != nil {
		return nil, err
	}

	pkg.Source = filename
	return pkg, nil
}

// parseTOML decodes TOML into plain Go values first; CUE has no TOML reader
// here, so the schema is applied to the encoded result.
func parseTOML(data []byte, filename string) (*Package, error) {
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, filename); err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%s:%d:%d: %s", filename, row, col, derr.Error())
		}
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	return cueutil.DecodeGo[Package](packageSchema, raw, schemaDefinition,
		cueutil.WithFilename(filename))
}

// ServiceNames returns the declared service names sorted ascending.
func (p *Package) ServiceNames() []string {
	names := make([]string, 0, len(p.Services))
	for name := range p.Services {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
