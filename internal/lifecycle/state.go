// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"errors"
	"fmt"
)

const (
	// StateUnconstructed indicates the factory has not been called.
	StateUnconstructed State = iota
	// StateConstructing indicates the factory is running.
	StateConstructing
	// StateActive indicates the instance exists and may be handed to dependents.
	StateActive
	// StateDestroying indicates teardown of the instance is in progress.
	StateDestroying
	// StateDestroyed is terminal: teardown ran, whether or not the destructor failed.
	StateDestroyed
	// StateFailed is terminal: the factory returned an error; no teardown is attempted.
	StateFailed
)

// ErrInvalidState is returned when a State value is not one of the defined lifecycle states.
var ErrInvalidState = errors.New("invalid state")

type (
	// State is the lifecycle state of one service.
	State int32

	// InvalidStateError is returned when a State value is not recognized.
	// It wraps ErrInvalidState for errors.Is() compatibility.
	InvalidStateError struct {
		Value State
	}
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUnconstructed:
		return "unconstructed"
	case StateConstructing:
		return "constructing"
	case StateActive:
		return "active"
	case StateDestroying:
		return "destroying"
	case StateDestroyed:
		return "destroyed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Error implements the error interface for InvalidStateError.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %d (valid: 0=unconstructed, 1=constructing, 2=active, 3=destroying, 4=destroyed, 5=failed)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// Validate returns nil if the State is one of the defined lifecycle states,
// or an error wrapping ErrInvalidState if it is not.
func (s State) Validate() error {
	switch s {
	case StateUnconstructed, StateConstructing, StateActive, StateDestroying, StateDestroyed, StateFailed:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}

// IsTerminal returns true if the state is a terminal state (Destroyed or Failed).
func (s State) IsTerminal() bool {
	return s == StateDestroyed || s == StateFailed
}
