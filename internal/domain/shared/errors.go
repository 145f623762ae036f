// Package shared contains error types used across the domain packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	ErrNotFound = errors.New("entity not found")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingField    = errors.New("required field missing")
	ErrValueOutOfRange = errors.New("value out of range")

	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrLocked marks a per-student lock held by another worker.
	ErrLocked = errors.New("resource locked")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "nudge", "ledger", "snapshot"
	Op      string // Operation that failed, e.g., "Evaluate", "Append"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// MissingField builds the per-student error returned when a snapshot lacks a required value.
func MissingField(domain, op, field string) *DomainError {
	return NewDomainError(domain, op, ErrMissingField, fmt.Sprintf("missing %s", field))
}

// Snapshot and ledger errors
var (
	ErrSnapshotNotFound = NewDomainError("snapshot", "Get", ErrNotFound, "progress snapshot not found")
	ErrCourseNotFound   = NewDomainError("course", "DisplayName", ErrNotFound, "course not found")
	ErrNoCurrentTerm    = NewDomainError("term", "Current", ErrNotFound, "no term is marked current")
	ErrStudentLocked    = NewDomainError("delivery", "Lock", ErrLocked, "student is being processed by another worker")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConfig checks if the error is a configuration error.
func IsConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsLocked checks if the error came from a contended per-student lock.
func IsLocked(err error) bool {
	return errors.Is(err, ErrLocked)
}
