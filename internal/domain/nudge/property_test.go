package nudge

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// runLadder evaluates l repeatedly on one day, recording every step that
// sends, and returns the steps in order.
func runLadder(l *Ladder, in LadderInput, rules Rules, runs int) []Step {
	steps := make([]Step, 0, runs)
	for i := 0; i < runs; i++ {
		step := l.Evaluate(in, rules)
		steps = append(steps, step)
		if step.Sends() {
			in.Ledger = in.Ledger.With(LedgerEntry{Code: step.Code, SentOn: in.Today, Silent: step.Kind == StepSilent})
		}
	}
	return steps
}

func ladderInput(attempts, sinceTry, activity int) LadderInput {
	in := LadderInput{
		Attempts:              attempts,
		DaysSinceLastActivity: activity,
		Today:                 testToday,
		Ledger:                NewLedger(),
	}
	if attempts > 0 {
		in.LastAttempt = testToday.AddDays(-sinceTry)
	}
	return in
}

// TestLadderProperties checks the ladder evaluator over every ladder and a
// range of attempt and activity histories.
func TestLadderProperties(t *testing.T) {
	rules := DefaultRules()
	ladders := mustCatalog(t).Ladders()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genLadder := gen.IntRange(0, len(ladders)-1)
	genAttempts := gen.IntRange(0, 8)
	genDays := gen.IntRange(0, 10)

	properties.Property("no code is sent twice", prop.ForAll(
		func(idx, attempts, sinceTry, activity int) bool {
			steps := runLadder(ladders[idx], ladderInput(attempts, sinceTry, activity), rules, 12)
			seen := make(map[Code]bool)
			for _, s := range steps {
				if !s.Sends() {
					continue
				}
				if seen[s.Code] {
					return false
				}
				seen[s.Code] = true
			}
			return true
		},
		genLadder, genAttempts, genDays, genDays,
	))

	properties.Property("log-only is absorbing", prop.ForAll(
		func(idx, attempts, sinceTry, activity int) bool {
			steps := runLadder(ladders[idx], ladderInput(attempts, sinceTry, activity), rules, 12)
			stuck := false
			for _, s := range steps {
				if stuck && s.Kind != StepLogOnly {
					return false
				}
				stuck = stuck || s.Kind == StepLogOnly
			}
			return true
		},
		genLadder, genAttempts, genDays, genDays,
	))

	properties.Property("nothing happens twice on a closed gate", prop.ForAll(
		func(idx, attempts, sinceTry, activity int) bool {
			steps := runLadder(ladders[idx], ladderInput(attempts, sinceTry, activity), rules, 12)
			// A run that stops producing must keep stopping.
			stopped := false
			for _, s := range steps {
				if stopped && s.Kind != StepNone {
					return false
				}
				stopped = stopped || s.Kind == StepNone
			}
			return true
		},
		genLadder, genAttempts, genDays, genDays,
	))

	properties.Property("gated tiers are silent while the student is active", prop.ForAll(
		func(idx, attempts, sinceTry, activity int) bool {
			l := ladders[idx]
			tier := l.TierFor(attempts)
			if !tier.Gated {
				return true
			}
			step := l.Evaluate(ladderInput(attempts, sinceTry, activity%(l.GateDays+1)), rules)
			return step.Kind == StepNone
		},
		genLadder, genAttempts, genDays, genDays,
	))

	properties.Property("an open gate reaches the end of the ladder", prop.ForAll(
		func(idx, attempts int) bool {
			l := ladders[idx]
			in := ladderInput(attempts, 10, 10)
			steps := runLadder(l, in, rules, len(l.TierFor(attempts).Rungs)+2)
			last := steps[len(steps)-1]
			return last.Kind == StepLogOnly
		},
		genLadder, genAttempts,
	))

	properties.TestingRun(t)
}

// TestClassifierProperties checks first-failure-wins over arbitrary pass patterns.
func TestClassifierProperties(t *testing.T) {
	rules := DefaultRules()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("first unmet requirement precedes every other unmet one", prop.ForAll(
		func(passed []bool, total int) bool {
			s := newSnapshot()
			for i, req := range Curriculum {
				if !passed[i] {
					continue
				}
				setPassed(s, req)
			}
			s.PrereqMet, s.Started = passed[0], passed[1]
			s.TotalScore = intPtr(total)

			got, ok := FirstUnmet(s, rules)
			for _, req := range Curriculum {
				if req == got {
					return ok && !s.Satisfied(req, rules)
				}
				if !s.Satisfied(req, rules) {
					return false
				}
			}
			return !ok
		},
		gen.SliceOfN(len(Curriculum), gen.Bool()),
		gen.IntRange(0, 72),
	))

	properties.Property("urgency is never negative and late implies unmet", prop.ForAll(
		func(offset int, final bool) bool {
			s := newSnapshot()
			s.Final.Passed = final
			today := s.Calendar.FinalDue.AddDays(offset)
			cls := Classify(s, today, rules)
			if cls.Score < 0 {
				return false
			}
			return cls.Tier == TierOnTime || !cls.Complete()
		},
		gen.IntRange(-60, 30),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestEngineProperties checks that evaluation is a pure function of its inputs.
func TestEngineProperties(t *testing.T) {
	engine := newEngine(t, DefaultRules())

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same inputs give the same decision", prop.ForAll(
		func(offset, activity, attempts int, course int) bool {
			s := newSnapshot()
			s.CourseIndex = course
			s.DaysSinceLastActivity = intPtr(activity)
			s.Entrance.Attempts = attempts
			s.Calendar.EntranceDue = testToday
			today := testToday.AddDays(offset)

			a, errA := engine.Evaluate(s, NewLedger(), today)
			b, errB := engine.Evaluate(s, NewLedger(), today)
			return errA == nil && errB == nil && a == b
		},
		gen.IntRange(-10, 60),
		gen.IntRange(0, 10),
		gen.IntRange(0, 8),
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t)
}

// TestEngineTermProperties replays a term day by day against an accumulating
// ledger, the way the daily run does.
func TestEngineTermProperties(t *testing.T) {
	rules := DefaultRules()
	engine := newEngine(t, rules)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	const termDays = 90

	properties.Property("no code is recorded twice and ladders end in one terminal", prop.ForAll(
		func(target, attempts, sinceTry, activity, period, course int) bool {
			s := stalledSnapshot(Curriculum[target], attempts, sinceTry, rules)
			s.CourseIndex = course
			s.LastCourse = course == s.Pace-1

			ledger := NewLedger()
			terminals := make(map[Milestone]int)
			for day := 0; day < termDays; day++ {
				today := testToday.AddDays(day)
				// Activity resets every period days; the student never passes anything.
				s.DaysSinceLastActivity = intPtr((activity + day) % period)

				d, err := engine.Evaluate(s, ledger, today)
				if err != nil {
					return false
				}
				if !d.Records() {
					continue
				}
				if ledger.HasAny(d.Code) {
					return false
				}
				if d.Terminal && d.Milestone != MilestoneBlocked {
					terminals[d.Milestone]++
					if terminals[d.Milestone] > 1 {
						return false
					}
				}
				ledger = ledger.With(d.Entry(today))
			}
			return true
		},
		gen.IntRange(0, len(Curriculum)-1),
		gen.IntRange(0, 8),
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.IntRange(2, 30),
		gen.IntRange(0, 1),
	))

	properties.Property("replaying a day after recording it sends nothing new", prop.ForAll(
		func(target, attempts, offset int) bool {
			s := stalledSnapshot(Curriculum[target], attempts, 5, rules)
			s.DaysSinceLastActivity = intPtr(20)
			today := testToday.AddDays(offset)

			first, err := engine.Evaluate(s, NewLedger(), today)
			if err != nil || !first.Records() {
				return err == nil
			}
			again, err := engine.Evaluate(s, NewLedger(first.Entry(today)), today)
			return err == nil && (!again.Records() || again.Code != first.Code)
		},
		gen.IntRange(0, len(Curriculum)-1),
		gen.IntRange(0, 8),
		gen.IntRange(0, 80),
	))

	properties.TestingRun(t)
}

// stalledSnapshot returns a student stuck on target: everything before it is
// passed and target itself has the given attempt history.
func stalledSnapshot(target Requirement, attempts, sinceTry int, rules Rules) *Snapshot {
	s := newSnapshot()
	passThrough(s, target)
	switch target.Kind {
	case ReqPrereq:
		s.PrereqMet = false
	case ReqStarted:
		s.Started = false
	case ReqScore:
		s.TotalScore = intPtr(rules.PassingScore - 1)
	}
	if obj := objectiveOf(s, target); obj != nil && attempts > 0 {
		obj.Attempts = attempts
		obj.LastAttempt = testToday.AddDays(-sinceTry)
	}
	return s
}

func objectiveOf(s *Snapshot, req Requirement) *Objective {
	switch req.Kind {
	case ReqEntrance:
		return &s.Entrance
	case ReqSkillsReview:
		return &s.Units[0].SkillsReview
	case ReqHomework:
		return &s.Units[req.Unit-1].Homework[req.Index-1]
	case ReqReviewExam:
		return &s.Units[req.Unit-1].ReviewExam
	case ReqUnitExam:
		return &s.Units[req.Unit-1].UnitExam
	case ReqFinal:
		return &s.Final
	}
	return nil
}

func setPassed(s *Snapshot, req Requirement) {
	switch req.Kind {
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
