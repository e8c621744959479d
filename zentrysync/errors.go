package zentrysync

import (
	"errors"
	"fmt"
)

// DependencyUnresolvableError is returned when a referenced local entity has no
// remote mapping and one could not be established (no smart match and creation
// disallowed, or the dependency's own sync failed).
type DependencyUnresolvableError struct {
	EntityType string
	LocalId    string
	Err        error
}

func (e *DependencyUnresolvableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dependency %s:%s unresolvable: %v", e.EntityType, e.LocalId, e.Err)
	}
	return fmt.Sprintf("dependency %s:%s unresolvable", e.EntityType, e.LocalId)
}

func (e *DependencyUnresolvableError) Unwrap() error { return e.Err }

func IsDependencyUnresolvable(err error) bool {
	var target *DependencyUnresolvableError
	return errors.As(err, &target)
}

// UnsupportedDirectionError marks a pull operation against a push-only entity
// type (or vice versa). Always a configuration error, never retried.
type UnsupportedDirectionError struct {
	EntityType string
	Operation  string
}

func (e *UnsupportedDirectionError) Error() string {
	return fmt.Sprintf("%s is not supported for entity type %q", e.Operation, e.EntityType)
}

func IsUnsupportedDirection(err error) bool {
	var target *UnsupportedDirectionError
	return errors.As(err, &target)
}

// StructuralError marks a provider response that returned a success status code
// but is missing an expected id or array. Treated as a hard error so a
// null remote id never reaches the mapping store.
type StructuralError struct {
	Path   string
	Detail string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("unexpected response shape from %s: %s", e.Path, e.Detail)
}

func IsStructural(err error) bool {
	var target *StructuralError
	return errors.As(err, &target)
}

// TransientError wraps a network, timeout or server-side failure that the next
// scheduled run may retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }

func (e *TransientError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var target *TransientError
	return errors.As(err, &target)
}

var errCyclicDependency = errors.New("cyclic entity dependency detected")
