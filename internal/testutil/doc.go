// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by package tests.
//
// Recorder hands out service factories whose instances log every construction
// and destruction in one global sequence, so tests can assert ordering
// properties across services. The Must* helpers fail the test on filesystem
// and environment errors instead of returning them.
package testutil
