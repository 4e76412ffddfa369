package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in
	// the store. This is the generic version of the entity-specific
	// not found errors below.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a compare-and-set transition finds
	// the stored status outside the expected precondition set. The
	// caller surfaces this to the operator; it is never auto-retried.
	ErrConflict = errors.New("status conflict")

	// ErrInvalidEntity is returned when an entity fails validation
	// before being stored. Check the wrapped error for details.
	ErrInvalidEntity = errors.New("invalid entity")

	// Entity-specific "not found" errors

	// ErrTaskNotFound indicates that the requested task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrRunNotFound indicates that the requested run does not exist.
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)

	// ErrPostNotFound indicates that the referenced post does not exist.
	ErrPostNotFound = fmt.Errorf("%w: post", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
