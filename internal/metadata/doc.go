// SPDX-License-Identifier: MPL-2.0

// Package metadata normalizes raw package declarations into fully typed
// service descriptors.
//
// Normalization is total and side-effect free: every accepted declaration
// yields exactly one PackageConfig, every rejected one an issue.Error of kind
// invalid-metadata naming the package and the offending entry. No graph logic
// lives here.
package metadata
