package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidReference = errors.New("invalid item reference")
	ErrCycle            = errors.New("hierarchy cycle")
	ErrConflict         = errors.New("version conflict")
	ErrPersistence      = errors.New("persistence failure")
)

// InvalidReferenceError is returned when an operation names an item that is
// not (or not usable) in the current tree.
type InvalidReferenceError struct {
	ID     string
	Reason string
}

func (e *InvalidReferenceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("item %q: %s", e.ID, e.Reason)
	}
	return fmt.Sprintf("item %q not in outline", e.ID)
}

func (e *InvalidReferenceError) Is(target error) bool {
	return target == ErrInvalidReference
}

// CycleError is returned when a reparent would make an item its own ancestor.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return "hierarchy cycle detected: " + strings.Join(e.Cycle, " -> ")
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// ConflictError is returned when the stored outline moved past the version
// the local copy was based on.
type ConflictError struct {
	OwnerID        string
	BaseVersion    int64
	CurrentVersion int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("outline of %q was changed elsewhere (based on version %d, stored version %d); reload before saving",
		e.OwnerID, e.BaseVersion, e.CurrentVersion)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// PersistenceError wraps a transport or backend failure on load or save.
type PersistenceError struct {
	Op  string // "load" or "save"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s outline: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
