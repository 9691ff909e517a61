// SPDX-License-Identifier: MPL-2.0

// Package lifecycle constructs the services of a validated dependency graph
// and tears them down again.
//
// Each service moves through a fixed state machine:
//
//	Unconstructed -> Constructing -> Active -> Destroying -> Destroyed
//	                              \-> Failed
//
// Transitions are compare-and-swap guarded; any other move is reported as an
// internal error. A service only starts constructing once every service it
// references is Active, and services are destroyed in the reverse of the
// order in which they became Active.
package lifecycle
