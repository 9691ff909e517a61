// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ValidateBytes compiles data as CUE (JSON is accepted, being valid CUE),
// unifies it with the schema definition def and validates the result.
func ValidateBytes(schema, data []byte, def string, opts ...Option) (cue.Value, error) {
	o := applyOptions(opts)
	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return cue.Value{}, err
	}
	return unify(schema, def, o, func(ctx *cue.Context) cue.Value {
		return ctx.CompileBytes(data, cue.Filename(o.filename))
	})
}

// ValidateGo encodes an already decoded Go value (for example the result of a
// TOML decoder) into CUE and validates it like ValidateBytes.
func ValidateGo(schema []byte, v any, def string, opts ...Option) (cue.Value, error) {
	o := applyOptions(opts)
	return unify(schema, def, o, func(ctx *cue.Context) cue.Value {
		return ctx.Encode(v)
	})
}

// DecodeBytes validates data like ValidateBytes and decodes it into T.
func DecodeBytes[T any](schema, data []byte, def string, opts ...Option) (*T, error) {
	unified, err := ValidateBytes(schema, data, def, opts...)
	if err != nil {
		return nil, err
	}
	return decode[T](unified, applyOptions(opts).filename)
}

// DecodeGo validates v like ValidateGo and decodes it into T.
func DecodeGo[T any](schema []byte, v any, def string, opts ...Option) (*T, error) {
	unified, err := ValidateGo(schema, v, def, opts...)
	if err != nil {
		return nil, err
	}
	return decode[T](unified, applyOptions(opts).filename)
}

func applyOptions(opts []Option) parseOptions {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func unify(schema []byte, def string, o parseOptions, build func(*cue.Context) cue.Value) (cue.Value, error) {
	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}
	root := schemaValue.LookupPath(cue.ParsePath(def))
	if root.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: schema definition %s not found: %w", def, root.Err())
	}

	user := build(ctx)
	if user.Err() != nil {
		return cue.Value{}, FormatError(user.Err(), o.filename)
	}

	unified := root.Unify(user)
	if err := unified.Validate(cue.Concrete(o.concrete)); err != nil {
		return cue.Value{}, FormatError(err, o.filename)
	}
	return unified, nil
}

func decode[T any](v cue.Value, filename string) (*T, error) {
	var out T
	if err := v.Decode(&out); err != nil {
		return nil, FormatError(err, filename)
	}
	return &out, nil
}
