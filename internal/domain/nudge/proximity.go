package nudge

import "github.com/alem-hub/course-nudge/pkg/timeutil"

// ══════════════════════════════════════════════════════════════════════════════
// PROXIMITY REMINDERS
// On-time students get one reminder per upcoming milestone when its due date
// falls inside the reminder window, then a grade nudge once the final is done.
// ══════════════════════════════════════════════════════════════════════════════

// reminder is one entry of the ordered proximity scan.
type reminder struct {
	milestone Milestone
	due       func(*Snapshot) timeutil.Date
	// eligible returns the code to send for this milestone, if any.
	eligible func(*Snapshot) (Code, bool)
}

// reminders is the fixed scan order: review exams 1-4, then the final.
var reminders = buildReminders()

func buildReminders() []reminder {
	out := make([]reminder, 0, UnitCount+1)
	for u := 1; u <= UnitCount; u++ {
		idx := u - 1
		code := ReviewReminderCode(u)
		r := reminder{
			milestone: ReviewMilestone(u),
			due:       func(s *Snapshot) timeutil.Date { return s.Calendar.ReviewDue[idx] },
			eligible: func(s *Snapshot) (Code, bool) {
				return code, !s.Units[idx].ReviewExam.Passed
			},
		}
		if u == 3 {
			r.eligible = func(s *Snapshot) (Code, bool) {
				switch {
				case !s.Units[idx].ReviewExam.Passed:
					return code, true
				case !s.Final.Passed:
					return CodeRE3Congrats, true
				default:
					return "", false
				}
			}
		}
		out = append(out, r)
	}
	return append(out, reminder{
		milestone: MilestoneFinal,
		due:       func(s *Snapshot) timeutil.Date { return s.Calendar.FinalDue },
		eligible: func(s *Snapshot) (Code, bool) {
			return CodeFinalReminder, !s.Final.Passed
		},
	})
}

// ProximityResult is the outcome of the proximity scan.
type ProximityResult struct {
	Milestone Milestone
	Code      Code
}

// Ok reports whether a reminder should be sent.
func (r ProximityResult) Ok() bool { return r.Code.IsValid() }

// Proximity evaluates due-date reminders and grade nudges for on-time students.
func Proximity(s *Snapshot, ledger Ledger, today timeutil.Date, rules Rules, catalog *Catalog) ProximityResult {
	window := today.AdvanceSkippingWeekend(rules.ProximitySteps)

	for _, r := range reminders {
		due := r.due(s)
		if window.Before(due) {
			return ProximityResult{}
		}
		if today.After(due) {
			continue
		}
		// First milestone not yet past: it is the only candidate this run.
		if ledger.HasMilestone(r.milestone, catalog) {
			return ProximityResult{}
		}
		if code, ok := r.eligible(s); ok {
			return ProximityResult{Milestone: r.milestone, Code: code}
		}
		return ProximityResult{}
	}

	if !s.Final.Passed || !rules.Features.GradeNudge {
		return ProximityResult{}
	}
	if ledger.HasMilestone(MilestoneGrade, catalog) {
		return ProximityResult{}
	}
	if code, ok := GradeNudge(s.Total(), s.MaxPossible(), rules); ok {
		return ProximityResult{Milestone: MilestoneGrade, Code: code}
	}
	return ProximityResult{}
}

// GradeNudge picks the re-test nudge for a student who passed the final,
// or reports false when the current grade band is already the best reachable.
func GradeNudge(total, maxPossible int, rules Rules) (Code, bool) {
	switch {
	case total < rules.GradeBScore && maxPossible >= rules.GradeAScore:
		return CodeGradeCCanEarnAB, true
	case total < rules.GradeBScore && maxPossible >= rules.GradeBScore:
		return CodeGradeCCanEarnB, true
	case total < rules.GradeBScore:
		return "", false
	case total < rules.GradeAScore && maxPossible >= rules.GradeAScore:
		return CodeGradeBCanEarnA, true
	default:
		return "", false
	}
}
