// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"svcgraph/internal/issue"
)

// LoadFile reads and parses one declaration file.
func LoadFile(ctx context.Context, path string) (*Package, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load package declaration canceled: %w", ctx.Err())
	default:
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load package declaration").
			WithResource(path).
			WithSuggestion("Check that the file exists and is readable").
			Wrap(err).
			BuildError()
	}

	pkg, err := Parse(data, path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse package declaration").
			WithResource(path).
			WithSuggestion("Check the file syntax").
			WithSuggestion("Verify the declaration matches the package schema").
			Wrap(err).
			BuildError()
	}
	return pkg, nil
}

// LoadFiles loads every file in argument order. All files are attempted; the
// failures are joined so every broken file is reported at once.
func LoadFiles(ctx context.Context, paths ...string) ([]*Package, error) {
	pkgs := make([]*Package, 0, len(paths))
	var errs []error
	for _, path := range paths {
		pkg, err := LoadFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return pkgs, nil
}

// LoadDir loads the declaration of every immediate subdirectory of dir that
// contains a package file, ordered by subdirectory name.
func LoadDir(ctx context.Context, dir string) ([]*Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("read package directory").
			WithResource(dir).
			WithSuggestion("Check that the directory exists and is readable").
			Wrap(err).
			BuildError()
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path, err := FindFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if path != "" {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return LoadFiles(ctx, paths...)
}

// Load accepts a mix of declaration files, package directories (containing a
// package file) and parent directories (scanned with LoadDir), keeping
// argument order.
func Load(ctx context.Context, paths ...string) ([]*Package, error) {
	var files []string
	var pkgs []*Package
	flush := func() error {
		if len(files) == 0 {
			return nil
		}
		loaded, err := LoadFiles(ctx, files...)
		files = files[:0]
		if err != nil {
			return err
		}
		pkgs = append(pkgs, loaded...)
		return nil
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, issue.WrapWithContext(err, "load packages", path)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		own, err := FindFile(path)
		if err != nil {
			return nil, err
		}
		if own != "" {
			files = append(files, own)
			continue
		}

		if err := flush(); err != nil {
			return nil, err
		}
		loaded, err := LoadDir(ctx, path)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, loaded...)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return pkgs, nil
}

// FindFile returns the package file inside dir, or "" when there is none.
// Two package files with different extensions in one directory are an error.
func FindFile(dir string) (string, error) {
	var found []string
	for _, ext := range Extensions() {
		candidate := filepath.Join(dir, FileBaseName+ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			found = append(found, candidate)
		}
	}
	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return found[0], nil
	default:
		return "", issue.NewErrorContext().
			WithOperation("locate package declaration").
			WithResource(dir).
			WithSuggestion("Keep exactly one package file per package directory").
			Wrap(fmt.Errorf("found %d package files: %v", len(found), found)).
			BuildError()
	}
}
