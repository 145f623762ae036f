// Package shared contains common domain types, errors and value objects
// that are used across all domain packages.
package shared

import (
	"context"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// StudentID represents a campus student number.
type StudentID string

// Student numbers are digits only, optionally with leading zeros.
var studentIDRegex = regexp.MustCompile(`^[0-9]{5,12}$`)

// IsValid checks if the student ID has the campus format.
func (s StudentID) IsValid() bool {
	return studentIDRegex.MatchString(string(s))
}

// String returns the string representation.
func (s StudentID) String() string {
	return string(s)
}

// NewStudentID creates a new StudentID with validation.
func NewStudentID(id string) (StudentID, error) {
	sid := StudentID(strings.TrimSpace(id))
	if !sid.IsValid() {
		return "", NewDomainError("shared", "NewStudentID", ErrInvalidInput, "invalid student ID format")
	}
	return sid, nil
}

// CourseID represents a course code such as "MATH0300".
type CourseID string

var courseIDRegex = regexp.MustCompile(`^[A-Z]{2,6}[0-9]{3,5}[A-Z]?$`)

// IsValid checks if the course ID has the catalog format.
func (c CourseID) IsValid() bool {
	return courseIDRegex.MatchString(string(c))
}

// String returns the string representation.
func (c CourseID) String() string {
	return string(c)
}

// NewCourseID creates a new CourseID, upper-casing the input.
func NewCourseID(id string) (CourseID, error) {
	cid := CourseID(strings.ToUpper(strings.TrimSpace(id)))
	if !cid.IsValid() {
		return "", NewDomainError("shared", "NewCourseID", ErrInvalidInput, "invalid course ID format")
	}
	return cid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Run correlation
// ═══════════════════════════════════════════════════════════════════════════

// RunID identifies one batch run. Ledger rows and outbox messages carry it.
type RunID string

// String returns the string representation.
func (r RunID) String() string {
	return string(r)
}

type runIDKey struct{}

// ContextWithRunID attaches a run ID to ctx.
func ContextWithRunID(ctx context.Context, id RunID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run ID attached to ctx, if any.
func RunIDFromContext(ctx context.Context) (RunID, bool) {
	id, ok := ctx.Value(runIDKey{}).(RunID)
	return id, ok && id != ""
}
