package nudge

import (
	"context"

	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// StudentCourse identifies one (student, course) pair to evaluate.
type StudentCourse struct {
	StudentID string
	CourseID  string
	// CourseIndex is the course's position in the student's pace order.
	CourseIndex int
}

// SnapshotRepository loads progress snapshots.
type SnapshotRepository interface {
	// ListActive returns the current course of every student enrolled this
	// term, one pair per student.
	ListActive(ctx context.Context) ([]StudentCourse, error)

	// Get builds the snapshot of one student in one course as of today.
	Get(ctx context.Context, studentID, courseID string, today timeutil.Date) (*Snapshot, error)
}

// LedgerRepository reads and appends sent-message ledgers.
type LedgerRepository interface {
	// Load returns every message already sent for this student and course.
	Load(ctx context.Context, studentID, courseID string) (Ledger, error)

	// Append records a sent message. Recording a code twice is a no-op and
	// reports false.
	Append(ctx context.Context, d Decision, sentOn timeutil.Date) (bool, error)
}

// CourseCatalog resolves course display names.
type CourseCatalog interface {
	DisplayName(ctx context.Context, courseID string) (string, error)
}
