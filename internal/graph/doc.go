// SPDX-License-Identifier: MPL-2.0

// Package graph resolves service references across the packages of one
// application and checks the resulting dependency graph before anything is
// constructed.
//
// Build never fails: references it cannot resolve are recorded on the graph
// so that Validate can report every problem of an application in one pass.
package graph
