package nudge

import "fmt"

// Course structure constants.
const (
	// UnitCount is the number of units in a course.
	UnitCount = 4
	// HomeworkPerUnit is the number of homework objectives in each unit.
	HomeworkPerUnit = 5
)

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONE
// Tag carried by every decision and every message code. Ledger queries of the
// form "was anything sent for RE2" are answered by milestone.
// ══════════════════════════════════════════════════════════════════════════════

// Milestone identifies the objective or course event a message is about.
type Milestone string

const (
	MilestoneWelcome      Milestone = "WELCOME"
	MilestonePrereq       Milestone = "PREREQ"
	MilestoneStart        Milestone = "START"
	MilestoneEntrance     Milestone = "USERS"
	MilestoneSkillsReview Milestone = "SR"
	MilestoneFinal        Milestone = "FIN"
	MilestoneLastTry      Milestone = "F1"
	MilestonePoints       Milestone = "PASS"
	MilestoneGrade        Milestone = "MAX"
	MilestoneBlocked      Milestone = "BLOK"
)

// HomeworkMilestone returns the milestone for homework objective obj of unit.
func HomeworkMilestone(unit, obj int) Milestone {
	return Milestone(fmt.Sprintf("HW%d%d", unit, obj))
}

// ReviewMilestone returns the milestone for the review exam of unit.
func ReviewMilestone(unit int) Milestone {
	return Milestone(fmt.Sprintf("RE%d", unit))
}

// UnitExamMilestone returns the milestone for the unit exam of unit.
func UnitExamMilestone(unit int) Milestone {
	return Milestone(fmt.Sprintf("UE%d", unit))
}

// String returns the string representation of the milestone.
func (m Milestone) String() string {
	return string(m)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUIREMENT
// ══════════════════════════════════════════════════════════════════════════════

// RequirementKind is the type of a curriculum requirement.
type RequirementKind int

const (
	ReqNone RequirementKind = iota
	ReqPrereq
	ReqStarted
	ReqEntrance
	ReqSkillsReview
	ReqHomework
	ReqReviewExam
	ReqUnitExam
	ReqFinal
	ReqScore
)

// Requirement is one item of the fixed curriculum order.
// Unit and Index are 1-based and only meaningful for unit-scoped kinds.
type Requirement struct {
	Kind  RequirementKind
	Unit  int
	Index int
}

// IsZero reports whether r is the empty requirement.
func (r Requirement) IsZero() bool {
	return r.Kind == ReqNone
}

// Milestone returns the milestone that governs messages about r.
func (r Requirement) Milestone() Milestone {
	switch r.Kind {
	case ReqPrereq:
		return MilestonePrereq
	case ReqStarted:
		return MilestoneStart
	case ReqEntrance:
		return MilestoneEntrance
	case ReqSkillsReview:
		return MilestoneSkillsReview
	case ReqHomework:
		return HomeworkMilestone(r.Unit, r.Index)
	case ReqReviewExam:
		return ReviewMilestone(r.Unit)
	case ReqUnitExam:
		return UnitExamMilestone(r.Unit)
	case ReqFinal:
		return MilestoneFinal
	case ReqScore:
		return MilestonePoints
	default:
		return ""
	}
}

// String returns a human-readable label, used in operational logs.
func (r Requirement) String() string {
	switch r.Kind {
	case ReqPrereq:
		return "prerequisite"
	case ReqStarted:
		return "course start"
	case ReqEntrance:
		return "Entrance Exam"
	case ReqSkillsReview:
		return "Skills Review"
	case ReqHomework:
		return fmt.Sprintf("HW %d.%d", r.Unit, r.Index)
	case ReqReviewExam:
		return fmt.Sprintf("Unit %d Review Exam", r.Unit)
	case ReqUnitExam:
		return fmt.Sprintf("Unit %d Exam", r.Unit)
	case ReqFinal:
		return "Final Exam"
	case ReqScore:
		return "point threshold"
	default:
		return "none"
	}
}

// Curriculum is the fixed first-failure-wins order of requirements.
var Curriculum = buildCurriculum()

func buildCurriculum() []Requirement {
	out := []Requirement{
		{Kind: ReqPrereq},
		{Kind: ReqStarted},
		{Kind: ReqEntrance},
	}
	for u := 1; u <= UnitCount; u++ {
		if u == 1 {
			out = append(out, Requirement{Kind: ReqSkillsReview, Unit: 1})
		}
		for h := 1; h <= HomeworkPerUnit; h++ {
			out = append(out, Requirement{Kind: ReqHomework, Unit: u, Index: h})
		}
		out = append(out,
			Requirement{Kind: ReqReviewExam, Unit: u},
			Requirement{Kind: ReqUnitExam, Unit: u},
		)
	}
	return append(out, Requirement{Kind: ReqFinal}, Requirement{Kind: ReqScore})
}
