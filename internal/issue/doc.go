// SPDX-License-Identifier: MPL-2.0

// Package issue classifies and reports the errors produced while loading,
// wiring and running a service graph.
//
// Every failure carries a stable Kind that UI code and automation can switch
// on, plus enough identity (package, service, reference, interface, qualifier)
// to trace it back to the declaration that caused it. Validation problems are
// batched into a List so a single pass reports every configuration mistake.
//
// ActionableError covers the remaining user-facing failures (file loading,
// configuration) with operation, resource and remediation hints.
package issue
