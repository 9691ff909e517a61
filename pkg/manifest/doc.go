// SPDX-License-Identifier: MPL-2.0

// Package manifest reads raw service package declarations.
//
// A declaration lists the services of one package, the interfaces each
// service provides and the references it requires. Declarations stay loosely
// typed here: a provides entry may be a bare interface name, an object with a
// qualifier, or a list mixing both, and a reference may be a bare interface
// name or an object. The metadata package turns them into typed values.
//
// Declarations are written in CUE, JSON or TOML:
//
//	name: "map"
//	version: "1.2.0"
//	services: MapRegistryImpl: {
//		provides: ["map.MapRegistry", {name: "runtime.AutoStart", qualifier: "map"}]
//		references: {
//			config: "map.MapConfigProvider"
//			layers: {name: "map.LayerFactory", all: true}
//		}
//	}
package manifest
