package types

import (
	"errors"
	"fmt"
)

// Search error kinds. Typed errors below match these with errors.Is.
var (
	// ErrInvalidPredicate indicates a malformed or unknown property name.
	ErrInvalidPredicate = errors.New("invalid search predicate")

	// ErrIndexUnavailable indicates the index service failed to answer a query.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrMissingProperty indicates a matched node lacks a property the result needs.
	ErrMissingProperty = errors.New("missing property")

	// ErrRootResolution indicates a tree node could not be traced to its tree root.
	ErrRootResolution = errors.New("tree root resolution failed")
)

// InvalidPredicateError describes why a predicate was rejected.
type InvalidPredicateError struct {
	Property string
	Class    EntityClass
	Reason   string
}

func (e *InvalidPredicateError) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("invalid search predicate: property %q for %s search: %s", e.Property, e.Class, e.Reason)
	}
	return fmt.Sprintf("invalid search predicate: property %q: %s", e.Property, e.Reason)
}

// Is implements errors.Is support for InvalidPredicateError.
func (e *InvalidPredicateError) Is(target error) bool {
	if target == ErrInvalidPredicate {
		return true
	}
	_, ok := target.(*InvalidPredicateError)
	return ok
}

// IndexUnavailableError wraps a failure reported by the index service.
type IndexUnavailableError struct {
	Index IndexRef
	Err   error
}

func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("index %s unavailable: %v", e.Index.Name(), e.Err)
}

func (e *IndexUnavailableError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for IndexUnavailableError.
func (e *IndexUnavailableError) Is(target error) bool {
	if target == ErrIndexUnavailable {
		return true
	}
	_, ok := target.(*IndexUnavailableError)
	return ok
}

// MissingPropertyError reports a node that lacks a required property.
type MissingPropertyError struct {
	NodeID   NodeID
	Property string
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("node %s has no %q property", e.NodeID, e.Property)
}

// Is implements errors.Is support for MissingPropertyError.
func (e *MissingPropertyError) Is(target error) bool {
	if target == ErrMissingProperty {
		return true
	}
	_, ok := target.(*MissingPropertyError)
	return ok
}

// NewMissingPropertyError creates a new MissingPropertyError.
func NewMissingPropertyError(id NodeID, property string) *MissingPropertyError {
	return &MissingPropertyError{NodeID: id, Property: property}
}

// RootResolutionError reports a tree node whose containing tree root could not be found.
type RootResolutionError struct {
	NodeID NodeID
	Err    error
}

func (e *RootResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot resolve tree root of node %s", e.NodeID)
	}
	return fmt.Sprintf("cannot resolve tree root of node %s: %v", e.NodeID, e.Err)
}

func (e *RootResolutionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for RootResolutionError.
func (e *RootResolutionError) Is(target error) bool {
	if target == ErrRootResolution {
		return true
	}
	_, ok := target.(*RootResolutionError)
	return ok
}
