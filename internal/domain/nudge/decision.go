package nudge

import "github.com/alem-hub/course-nudge/pkg/timeutil"

// DecisionKind is the outcome of one engine evaluation.
type DecisionKind int

const (
	// DecisionNone means no message this run.
	DecisionNone DecisionKind = iota
	// DecisionSilent records a ladder rung without delivering anything.
	DecisionSilent
	// DecisionContent delivers a message.
	DecisionContent
	// DecisionLogOnly reports a condition to the operational log only.
	DecisionLogOnly
)

// String returns the string representation of the decision kind.
func (k DecisionKind) String() string {
	switch k {
	case DecisionSilent:
		return "silent"
	case DecisionContent:
		return "content"
	case DecisionLogOnly:
		return "log_only"
	default:
		return "none"
	}
}

// Decision is the engine's single output for a student and course.
// Subject and Body are filled in by the presenter for content decisions.
type Decision struct {
	Kind      DecisionKind
	StudentID string
	CourseID  string
	// CoursePosition is the 1-based position of the course in the pace order.
	CoursePosition int
	Milestone      Milestone
	Code           Code
	// Terminal marks "needs human contact" and lockout messages.
	Terminal bool
	// Requirement is the governing requirement for late students.
	Requirement Requirement
	// Reason explains the decision for logs, e.g. "cadence" or "ladder B".
	Reason string

	Subject string
	Body    string
}

// IsNone reports whether nothing should happen.
func (d Decision) IsNone() bool { return d.Kind == DecisionNone }

// Delivers reports whether the decision produces a message for the student.
func (d Decision) Delivers() bool { return d.Kind == DecisionContent }

// Records reports whether the decision must be appended to the ledger.
func (d Decision) Records() bool {
	return d.Kind == DecisionContent || d.Kind == DecisionSilent
}

// Entry builds the ledger entry that records this decision.
func (d Decision) Entry(sentOn timeutil.Date) LedgerEntry {
	return LedgerEntry{Code: d.Code, SentOn: sentOn, Silent: d.Kind == DecisionSilent}
}
