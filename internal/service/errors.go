package service

import (
	"errors"
	"fmt"
)

// Error kinds exposed to the API layer. Kinds map to transport statuses
// there; the engine itself never retries and never downgrades a store
// failure into a fabricated success.

// ConflictError signals a violated uniqueness precondition, e.g. starting
// a session while one is already active.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NotFoundError signals that a referenced session does not exist or is no
// longer active.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError signals structurally invalid caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// DependencyError signals an unreachable or misbehaving collaborator
// (store, station directory, recognition endpoint).
type DependencyError struct {
	Message string
	Err     error
}

func (e *DependencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DependencyError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsDependency reports whether err is a DependencyError.
func IsDependency(err error) bool {
	var target *DependencyError
	return errors.As(err, &target)
}
