// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
)

const (
	// KindInvalidMetadata reports a malformed package declaration.
	KindInvalidMetadata Kind = "invalid-metadata"
	// KindDuplicateInterface reports two or more providers of one (interface, qualifier) pair.
	KindDuplicateInterface Kind = "duplicate-interface"
	// KindInterfaceNotFound reports a single reference that no service provides.
	KindInterfaceNotFound Kind = "interface-not-found"
	// KindAmbiguousDependency reports an unqualified reference matching several qualified providers.
	KindAmbiguousDependency Kind = "ambiguous-dependency"
	// KindDependencyCycle reports a cycle in the service dependency graph.
	KindDependencyCycle Kind = "dependency-cycle"
	// KindMissingFactory reports a declared service without a registered implementation.
	KindMissingFactory Kind = "missing-factory"
	// KindServiceConstructionFailed reports a service factory that returned an error.
	KindServiceConstructionFailed Kind = "service-construction-failed"
	// KindServiceDestructionFailed reports a service whose Destroy returned an error.
	KindServiceDestructionFailed Kind = "service-destruction-failed"
	// KindInternalError reports a violated lifecycle invariant.
	KindInternalError Kind = "internal-error"
)

// ErrInvalidKind is returned when a Kind value is not one of the defined kinds.
var ErrInvalidKind = errors.New("invalid issue kind")

type (
	// Kind is the stable identifier of an error class.
	//
	// Kind implements error so it can be used as an errors.Is target:
	//
	//	if errors.Is(err, issue.KindDependencyCycle) { ... }
	Kind string

	// InvalidKindError is returned when a Kind value is not recognized.
	// It wraps ErrInvalidKind for errors.Is() compatibility.
	InvalidKindError struct {
		Value Kind
	}
)

// Kinds returns every defined kind in taxonomy order.
func Kinds() []Kind {
	return []Kind{
		KindInvalidMetadata,
		KindDuplicateInterface,
		KindInterfaceNotFound,
		KindAmbiguousDependency,
		KindDependencyCycle,
		KindMissingFactory,
		KindServiceConstructionFailed,
		KindServiceDestructionFailed,
		KindInternalError,
	}
}

// String returns the kind identifier.
func (k Kind) String() string {
	return string(k)
}

// Error implements the error interface.
func (k Kind) Error() string {
	return string(k)
}

// Validate returns nil if k is a defined kind, or an error wrapping ErrInvalidKind.
func (k Kind) Validate() error {
	for _, known := range Kinds() {
		if k == known {
			return nil
		}
	}
	return &InvalidKindError{Value: k}
}

// IsValidation reports whether errors of this kind are produced before any
// service is constructed.
func (k Kind) IsValidation() bool {
	switch k {
	case KindInvalidMetadata, KindDuplicateInterface, KindInterfaceNotFound,
		KindAmbiguousDependency, KindDependencyCycle, KindMissingFactory:
		return true
	default:
		return false
	}
}

// Error implements the error interface for InvalidKindError.
func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("invalid issue kind %q", string(e.Value))
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidKindError) Unwrap() error {
	return ErrInvalidKind
}
