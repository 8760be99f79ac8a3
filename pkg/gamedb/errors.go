package gamedb

import (
	"errors"
	"fmt"
	"log"
)

var (
	ErrNotFound    = errors.New("entity not found")
	ErrDuplicateID = errors.New("entity with that ID already exists")
	ErrCapacity    = errors.New("does not fit")
	ErrInvariant   = errors.New("graph invariant violated")
	ErrNoPath      = errors.New("no such path")
	ErrWrongKey    = errors.New("wrong key")
)

// DuplicateIDError is returned when an id is already taken.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("gamedb: duplicate id %q", e.ID)
}

func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// CapacityError is returned by Move when the container has no room left.
type CapacityError struct {
	Entity    string
	Container string
	Size      int
	Free      int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("gamedb: %s (size %d) does not fit in %s (%d free)", e.Entity, e.Size, e.Container, e.Free)
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }

// InvariantError reports a caller contract violation: moving an unknown id,
// moving an entity into itself, or breaking the containment tree.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("gamedb: %s: %s", e.Op, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// invariant logs and returns an InvariantError.
func invariant(op, format string, args ...any) error {
	err := &InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)}
	log.Printf("INVARIANT: %v", err)
	return err
}
