// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the svcgraph command line interface.
//
// Commands load package declarations from files or directories, normalize
// them, resolve the dependency graph and report on it. The simulate command
// runs the lifecycle orchestrator with placeholder services so that
// construction and teardown order can be inspected without real
// implementations.
package cmd
