package nudge

import "github.com/alem-hub/course-nudge/pkg/timeutil"

// UrgencyTier classifies a student as behind or on schedule.
type UrgencyTier int

const (
	// TierOnTime means nothing is overdue.
	TierOnTime UrgencyTier = iota
	// TierLate means the student is behind on at least one requirement.
	TierLate
)

// String returns the string representation of the tier.
func (t UrgencyTier) String() string {
	if t == TierLate {
		return "late"
	}
	return "on_time"
}

// Classification is the result of the urgency classifier.
type Classification struct {
	Tier UrgencyTier
	// Requirement is the first unmet requirement in curriculum order; zero when
	// everything is satisfied.
	Requirement Requirement
	// Score weighs how far behind the student is. It never changes which
	// requirement governs; it only drives cadence.
	Score int
}

// Complete reports whether every requirement is satisfied.
func (c Classification) Complete() bool {
	return c.Requirement.IsZero()
}

// FirstUnmet walks the curriculum and returns the first requirement that is
// not satisfied. Requirements after it are never looked at.
func FirstUnmet(s *Snapshot, rules Rules) (Requirement, bool) {
	for _, req := range Curriculum {
		if !s.Satisfied(req, rules) {
			return req, true
		}
	}
	return Requirement{}, false
}

// Classify computes the urgency classification of a validated snapshot. The
// student is late only when a requirement is unmet and the urgency score is
// positive; an unmet start with nothing overdue stays on time and is left to
// proximity reminders.
func Classify(s *Snapshot, today timeutil.Date, rules Rules) Classification {
	req, found := FirstUnmet(s, rules)
	score := UrgencyScore(s, today, rules)

	tier := TierOnTime
	if found && score > 0 {
		tier = TierLate
	}
	return Classification{Tier: tier, Requirement: req, Score: score}
}

// Weights of overdue requirements in the urgency score.
const (
	weightPrereq     = 5
	weightObjective  = 1
	weightReviewExam = 3
	weightUnitExam   = 2
	weightLowScore   = 3
)

// UrgencyScore sums the weights of overdue requirements plus a weight for how
// close (or how far past) the final exam due date is.
func UrgencyScore(s *Snapshot, today timeutil.Date, rules Rules) int {
	score := 0
	if !s.PrereqMet {
		score += weightPrereq
	}

	cal := s.Calendar
	overdue := func(o Objective, due timeutil.Date) bool {
		return !o.Passed && !due.IsZero() && !due.After(today)
	}

	if overdue(s.Entrance, cal.EntranceDue) {
		score += weightObjective
	}
	if overdue(s.Units[0].SkillsReview, cal.SkillsReviewDue) {
		score += weightObjective
	}
	for u := 0; u < UnitCount; u++ {
		unit := s.Units[u]
		for h := 0; h < HomeworkPerUnit; h++ {
			if overdue(unit.Homework[h], cal.HomeworkDue[u][h]) {
				score += weightObjective
			}
		}
		if overdue(unit.ReviewExam, cal.ReviewDue[u]) {
			score += weightReviewExam
		}
		if overdue(unit.UnitExam, cal.UnitExamDue[u]) {
			score += weightUnitExam
		}
	}

	if s.Final.Passed {
		if s.Total() < rules.PassingScore {
			score += weightLowScore
		}
		return score
	}
	return score + finalWeight(s, today)
}

// finalWeight grows as the final exam due date approaches and stays high
// through the extra-try window. Exactly one band applies:
//
//	days until due          weight
//	more than 4             0
//	4 or 3                  1
//	2                       3
//	1                       5
//	0                       7
//	past due, until 3 days
//	after last try          9
//	later                   5
//
// Three days out shares the four-day band so the weight only rises toward the
// due date.
func finalWeight(s *Snapshot, today timeutil.Date) int {
	untilDue := today.DaysUntil(s.Calendar.FinalDue)
	switch {
	case untilDue > 4:
		return 0
	case untilDue >= 3:
		return 1
	case untilDue == 2:
		return 3
	case untilDue == 1:
		return 5
	case untilDue == 0:
		return 7
	}

	last := s.lastTryDeadline()
	if !today.After(last.AddDays(3)) {
		return 9
	}
	return 5
}
