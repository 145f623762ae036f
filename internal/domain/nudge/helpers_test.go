package nudge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// Wednesday.
var testToday = timeutil.MustParseDate("2026-10-14")

func intPtr(v int) *int { return &v }

func date(s string) timeutil.Date { return timeutil.MustParseDate(s) }

// newSnapshot returns a validated snapshot of a student on a two-course pace
// who has passed nothing yet and whose due dates are all well ahead.
func newSnapshot() *Snapshot {
	s := &Snapshot{
		StudentID:             "830000001",
		CourseID:              "M 117",
		Section:               "801",
		CourseIndex:           0,
		Pace:                  2,
		PrereqMet:             true,
		Started:               true,
		TotalScore:            intPtr(0),
		MaxPossibleScore:      intPtr(72),
		DaysSinceLastActivity: intPtr(5),
	}
	s.Calendar.ReviewDue = [UnitCount]timeutil.Date{
		date("2026-11-02"), date("2026-11-09"), date("2026-11-16"), date("2026-11-23"),
	}
	s.Calendar.FinalDue = date("2026-11-30")
	s.Calendar.LastTryDeadline = date("2026-12-02")
	s.Calendar.LastTryCount = 1
	s.Calendar.WithdrawDeadline = date("2026-11-20")
	return s
}

// passThrough marks every requirement before target as passed.
func passThrough(s *Snapshot, target Requirement) {
	for _, req := range Curriculum {
		if req == target {
			return
		}
		switch req.Kind {
		case ReqPrereq:
			s.PrereqMet = true
		case ReqStarted:
			s.Started = true
		case ReqEntrance:
			s.Entrance.Passed = true
		case ReqSkillsReview:
			s.Units[0].SkillsReview.Passed = true
		case ReqHomework:
			s.Units[req.Unit-1].Homework[req.Index-1].Passed = true
		case ReqReviewExam:
			s.Units[req.Unit-1].ReviewExam.Passed = true
		case ReqUnitExam:
			s.Units[req.Unit-1].UnitExam.Passed = true
		case ReqFinal:
			s.Final.Passed = true
		}
	}
}

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(DefaultRules())
	require.NoError(t, err)
	return c
}

func mustLadder(t *testing.T, m Milestone) *Ladder {
	t.Helper()
	l, ok := mustCatalog(t).Ladder(m)
	require.True(t, ok, "ladder %s", m)
	return l
}

func sent(codes ...Code) Ledger {
	entries := make([]LedgerEntry, 0, len(codes))
	for _, c := range codes {
		entries = append(entries, LedgerEntry{Code: c, SentOn: testToday.AddDays(-20)})
	}
	return NewLedger(entries...)
}
