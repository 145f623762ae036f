package nudge

import "github.com/alem-hub/course-nudge/pkg/timeutil"

// Engine selects at most one message per student and course. It is a pure
// function of (snapshot, ledger, today) plus the current switches: no I/O and
// no clock, so independent evaluations may run in parallel.
type Engine struct {
	rules    Rules
	catalog  *Catalog
	switches Switches
}

// Switches turn optional flows on and off between evaluations. ApplyTo may
// only change Features and Cadence.Enabled; the catalog is built once.
type Switches interface {
	ApplyTo(rules Rules) Rules
}

// NewEngine builds an engine and its catalog. Invalid rules or ladder tables
// are returned as configuration errors.
func NewEngine(rules Rules) (*Engine, error) {
	catalog, err := NewCatalog(rules)
	if err != nil {
		return nil, err
	}
	return &Engine{rules: rules, catalog: catalog}, nil
}

// WithSwitches returns an engine that applies s to its rules on every
// evaluation. The catalog is shared.
func (e *Engine) WithSwitches(s Switches) *Engine {
	return &Engine{rules: e.rules, catalog: e.catalog, switches: s}
}

// Rules returns the engine rules with the current switches applied.
func (e *Engine) Rules() Rules {
	if e.switches == nil {
		return e.rules
	}
	return e.switches.ApplyTo(e.rules)
}

// Catalog returns the engine catalog.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Evaluate decides the single action for one student and course.
// A snapshot missing required fields yields an error for this student only.
func (e *Engine) Evaluate(s *Snapshot, ledger Ledger, today timeutil.Date) (Decision, error) {
	if err := s.Validate(); err != nil {
		return Decision{}, err
	}
	if e.switches != nil {
		e = &Engine{rules: e.Rules(), catalog: e.catalog}
	}

	base := Decision{
		StudentID:      s.StudentID,
		CourseID:       s.CourseID,
		CoursePosition: s.CoursePosition(),
	}

	if s.DoNotDisturb {
		return base.withReason("do not disturb"), nil
	}

	if e.rules.Features.Welcome && s.CourseIndex == 0 && !ledger.HasMilestone(MilestoneWelcome, e.catalog) {
		base.Kind = DecisionContent
		base.Milestone = MilestoneWelcome
		base.Code = Welcome(s, today, e.rules)
		base.Reason = "welcome"
		return base, nil
	}

	if s.Blocked(today) {
		base.Milestone = MilestoneBlocked
		return base.fromStep(Lockout(s, ledger, today, e.rules), "lockout"), nil
	}

	cls := Classify(s, today, e.rules)
	base.Requirement = cls.Requirement

	if !e.cadenceOpen(cls, ledger, today) {
		return base.withReason("cadence"), nil
	}

	if cls.Tier == TierOnTime {
		res := Proximity(s, ledger, today, e.rules, e.catalog)
		if !res.Ok() {
			return base.withReason("no reminder due"), nil
		}
		base.Kind = DecisionContent
		base.Milestone = res.Milestone
		base.Code = res.Code
		base.Reason = "proximity"
		return base, nil
	}

	return e.late(s, cls.Requirement, ledger, today, base), nil
}

func (e *Engine) late(s *Snapshot, req Requirement, ledger Ledger, today timeutil.Date, base Decision) Decision {
	if req.Kind == ReqFinal && today.After(s.Calendar.FinalDue) {
		base.Milestone = MilestoneLastTry
		return base.fromStep(LastTry(s, ledger), "last try")
	}

	base.Milestone = req.Milestone()
	ladder, ok := e.catalog.Ladder(base.Milestone)
	if !ok {
		return base.withReason("no ladder")
	}

	obj, _ := s.ObjectiveFor(req)
	step := ladder.Evaluate(LadderInput{
		Attempts:              obj.Attempts,
		LastAttempt:           obj.LastAttempt,
		DaysSinceLastActivity: s.Activity(),
		Today:                 today,
		Ledger:                ledger,
	}, e.rules)

	reason := "ladder"
	if step.Tier != "" {
		reason += " " + step.Tier
	}
	if step.Kind == StepLogOnly {
		reason = "stuck on " + ladder.Label
	}
	return base.fromStep(step, reason)
}

// cadenceOpen reports whether enough weekdays have passed since the latest
// delivered message for this student's urgency.
func (e *Engine) cadenceOpen(cls Classification, ledger Ledger, today timeutil.Date) bool {
	if !e.rules.Cadence.Enabled {
		return true
	}
	latest, ok := ledger.LatestDelivered()
	if !ok {
		return true
	}
	return timeutil.WeekdaysBetween(latest, today) > e.rules.Cadence.QuietDaysFor(cls)
}

func (d Decision) withReason(reason string) Decision {
	d.Kind = DecisionNone
	d.Reason = reason
	return d
}

func (d Decision) fromStep(step Step, reason string) Decision {
	d.Code = step.Code
	d.Reason = reason
	switch step.Kind {
	case StepSilent:
		d.Kind = DecisionSilent
	case StepContent:
		d.Kind = DecisionContent
	case StepTerminal:
		d.Kind = DecisionContent
		d.Terminal = true
	case StepLogOnly:
		d.Kind = DecisionLogOnly
	default:
		d.Kind = DecisionNone
		d.Code = ""
	}
	return d
}
