package nudge

import (
	"strings"

	"github.com/alem-hub/course-nudge/internal/domain/shared"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS SNAPSHOT
// Read-only view of one student's status in one course, immutable for a run.
// ══════════════════════════════════════════════════════════════════════════════

// Objective is the progress on a single graded item.
type Objective struct {
	Attempts    int
	LastAttempt timeutil.Date
	Passed      bool
}

// Unit holds the objectives of one course unit.
type Unit struct {
	// SkillsReview is only used for unit 1.
	SkillsReview Objective
	Homework     [HomeworkPerUnit]Objective
	ReviewExam   Objective
	// ReviewOnTimePoints are earned by passing the review exam by its due date.
	ReviewOnTimePoints int
	UnitExam           Objective
}

// Calendar holds the term dates that apply to this student and course.
type Calendar struct {
	ReviewDue        [UnitCount]timeutil.Date
	FinalDue         timeutil.Date
	LastTryDeadline  timeutil.Date
	LastTryCount     int
	WithdrawDeadline timeutil.Date

	// Optional per-requirement due dates, used for urgency scoring only.
	EntranceDue     timeutil.Date
	SkillsReviewDue timeutil.Date
	HomeworkDue     [UnitCount][HomeworkPerUnit]timeutil.Date
	UnitExamDue     [UnitCount]timeutil.Date
}

// Snapshot is the progress of one student in one course.
type Snapshot struct {
	StudentID string
	CourseID  string
	// Section affects the phrasing of help-resource references only.
	Section string
	// CourseIndex is the 0-based position in the student's pace order.
	CourseIndex int
	// Pace is the number of concurrent courses.
	Pace         int
	LastCourse   bool
	DoNotDisturb bool

	PrereqMet bool
	Started   bool
	Entrance  Objective
	Units     [UnitCount]Unit
	Final     Objective
	// FinalAttemptsAfterDue counts final exam attempts after its due date.
	FinalAttemptsAfterDue int

	TotalScore            *int
	MaxPossibleScore      *int
	DaysSinceLastActivity *int

	Calendar Calendar
}

// Validate checks that every field the engine reads is present.
// A failure is a per-student error and must not abort a batch.
func (s *Snapshot) Validate() error {
	const op = "Validate"
	switch {
	case s.StudentID == "":
		return shared.MissingField("snapshot", op, "student id")
	case s.CourseID == "":
		return shared.MissingField("snapshot", op, "course id")
	case s.TotalScore == nil:
		return shared.MissingField("snapshot", op, "total score")
	case s.MaxPossibleScore == nil:
		return shared.MissingField("snapshot", op, "max possible score")
	case s.DaysSinceLastActivity == nil:
		return shared.MissingField("snapshot", op, "days since last activity")
	case s.Calendar.FinalDue.IsZero():
		return shared.MissingField("snapshot", op, "final exam due date")
	case s.Calendar.WithdrawDeadline.IsZero():
		return shared.MissingField("snapshot", op, "withdrawal deadline")
	case s.CourseIndex < 0:
		return shared.NewDomainError("snapshot", op, shared.ErrValueOutOfRange, "negative course index")
	}
	for i, due := range s.Calendar.ReviewDue {
		if due.IsZero() {
			return shared.MissingField("snapshot", op, "review exam due date "+string(rune('1'+i)))
		}
	}
	return nil
}

// Activity returns the days since last activity. Call only after Validate.
func (s *Snapshot) Activity() int { return *s.DaysSinceLastActivity }

// Total returns the cumulative score. Call only after Validate.
func (s *Snapshot) Total() int { return *s.TotalScore }

// MaxPossible returns the maximum achievable score. Call only after Validate.
func (s *Snapshot) MaxPossible() int { return *s.MaxPossibleScore }

// CoursePosition is the 1-based position of the course in the pace order.
func (s *Snapshot) CoursePosition() int { return s.CourseIndex + 1 }

// InPerson reports whether the student is in an in-person section.
func (s *Snapshot) InPerson() bool {
	return strings.HasPrefix(s.Section, "0")
}

// lastTryDeadline returns the end of the extra-try window, which defaults to
// the final due date when the term has none.
func (s *Snapshot) lastTryDeadline() timeutil.Date {
	if s.Calendar.LastTryDeadline.IsZero() {
		return s.Calendar.FinalDue
	}
	return s.Calendar.LastTryDeadline
}

// LastTryAvailable reports whether an unpassed final may still be attempted
// after its due date.
func (s *Snapshot) LastTryAvailable(today timeutil.Date) bool {
	if s.Final.Passed || !today.After(s.Calendar.FinalDue) {
		return false
	}
	return s.FinalAttemptsAfterDue < s.Calendar.LastTryCount
}

// Blocked reports whether the student is locked out of the course.
func (s *Snapshot) Blocked(today timeutil.Date) bool {
	if s.Final.Passed {
		return false
	}
	if today.After(s.Calendar.FinalDue) && !s.LastTryAvailable(today) {
		return true
	}
	return today.After(s.lastTryDeadline())
}

// ObjectiveFor returns the progress record behind r, when r has one.
func (s *Snapshot) ObjectiveFor(r Requirement) (Objective, bool) {
	switch r.Kind {
	case ReqEntrance:
		return s.Entrance, true
	case ReqSkillsReview:
		return s.Units[0].SkillsReview, true
	case ReqHomework:
		return s.Units[r.Unit-1].Homework[r.Index-1], true
	case ReqReviewExam:
		return s.Units[r.Unit-1].ReviewExam, true
	case ReqUnitExam:
		return s.Units[r.Unit-1].UnitExam, true
	case ReqFinal:
		return s.Final, true
	default:
		return Objective{}, false
	}
}

// Satisfied reports whether requirement r is met.
func (s *Snapshot) Satisfied(r Requirement, rules Rules) bool {
	switch r.Kind {
	case ReqPrereq:
		return s.PrereqMet
	case ReqStarted:
		return s.Started
	case ReqScore:
		return s.Total() >= rules.PassingScore
	default:
		obj, ok := s.ObjectiveFor(r)
		return ok && obj.Passed
	}
}
