package hannou

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the contract an operation violated.
type ErrorKind int

const (
	// PreconditionViolation covers operations attempted in the wrong state:
	// adding to an occupied slot, removing from an empty one, retain/release
	// mismatches and mutations of disabled entities.
	PreconditionViolation ErrorKind = iota + 1
	// DuplicateRegistration covers entity index name and primary key collisions.
	DuplicateRegistration
	// NotFound covers lookup misses.
	NotFound
	// ResourceNotEmpty covers destroy-all with retained entities and resetting
	// a context that still has live entities.
	ResourceNotEmpty
)

func (k ErrorKind) String() string {
	switch k {
	case PreconditionViolation:
		return "precondition violation"
	case DuplicateRegistration:
		return "duplicate registration"
	case NotFound:
		return "not found"
	case ResourceNotEmpty:
		return "resource not empty"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the concrete type behind every sentinel in this package.
type Error struct {
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// KindOf returns the ErrorKind of err, or 0 if err did not originate here.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

var (
	ErrAlreadyHasComponent    = newError(PreconditionViolation, "entity already has component")
	ErrDoesNotHaveComponent   = newError(PreconditionViolation, "entity does not have component")
	ErrEntityIsNotEnabled     = newError(PreconditionViolation, "entity is not enabled")
	ErrAlreadyRetained        = newError(PreconditionViolation, "entity is already retained by owner")
	ErrNotRetainedByOwner     = newError(PreconditionViolation, "entity is not retained by owner")
	ErrEntityIsNotDestroyed   = newError(PreconditionViolation, "entity is not destroyed")
	ErrEntityIsBeingDestroyed = newError(PreconditionViolation, "entity is already being destroyed")
	ErrEntityIsNotReleased    = newError(PreconditionViolation, "entity is still retained or has components")
	ErrSingleEntity           = newError(PreconditionViolation, "group contains more than one entity")
	ErrInvalidOwner           = newError(PreconditionViolation, "owner is nil or not comparable")

	ErrEntityIndexAlreadyExists  = newError(DuplicateRegistration, "entity index already exists")
	ErrEntityAlreadyExistsForKey = newError(DuplicateRegistration, "entity already exists for key")

	ErrEntityNotInContext      = newError(NotFound, "entity is not in context")
	ErrEntityIndexDoesNotExist = newError(NotFound, "entity index does not exist")
	ErrKeyNotFound             = newError(NotFound, "key not found")
	ErrComponentNotFound       = newError(NotFound, "component not found")
	ErrComponentTypeNotBound   = newError(NotFound, "component kind has no bound type")
	ErrEntityIndexTypeMismatch = newError(NotFound, "entity index has a different key type")
	ErrUnknownComponentName    = newError(NotFound, "unknown component name")

	ErrEntitiesAreStillRetained = newError(ResourceNotEmpty, "entities are still retained")
	ErrContextNotEmpty          = newError(ResourceNotEmpty, "context still has live entities")
)
