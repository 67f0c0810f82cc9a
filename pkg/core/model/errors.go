package model

import (
	"errors"
	"fmt"
)

var (
	// ErrGenerationAborted is returned when a run cannot start or its input is unusable.
	// Nothing is persisted when it is returned.
	ErrGenerationAborted = errors.New("generation aborted")

	// ErrIneligibleSubstitute is matched by every *IneligibleError
	ErrIneligibleSubstitute = errors.New("ineligible substitute")

	// ErrConcurrentModification is returned when an assignment's chain moved on since the caller read it
	ErrConcurrentModification = errors.New("concurrent modification conflict")

	// ErrOverlappingRun is returned when a generation run overlaps one already in flight
	ErrOverlappingRun = errors.New("overlapping generation run in progress")

	// ErrNotFound is returned by repositories for unknown ids
	ErrNotFound = errors.New("not found")
)

// DataIntegrityError reports malformed input found while building the constraint index
type DataIntegrityError struct {
	Entity string
	ID     string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation: %s %s: %s", e.Entity, e.ID, e.Reason)
}

// IneligibleError explains why an employee was rejected for a modification
type IneligibleError struct {
	EmployeeID string
	Reason     string
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("employee %s is not eligible: %s", e.EmployeeID, e.Reason)
}

// Is lets errors.Is(err, ErrIneligibleSubstitute) match
func (e *IneligibleError) Is(target error) bool {
	return target == ErrIneligibleSubstitute
}
