// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates user data against embedded CUE schemas.
//
// Every loader in svcgraph follows the same flow: compile the embedded
// schema, build a CUE value from the user's bytes (or from an already decoded
// Go value, for formats CUE cannot read itself), unify it with a schema
// definition, validate, and decode into a Go struct.
//
//	//go:embed package_schema.cue
//	var schema []byte
//
//	pkg, err := cueutil.DecodeBytes[Package](schema, data, "#Package",
//		cueutil.WithFilename("package.cue"))
package cueutil
