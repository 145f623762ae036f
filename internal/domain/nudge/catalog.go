package nudge

import (
	"fmt"
	"strings"

	"github.com/alem-hub/course-nudge/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// Every ladder table and every standalone code, keyed by milestone. Built from
// Rules at startup and validated once; a bad table is fatal to the run.
// ══════════════════════════════════════════════════════════════════════════════

// Catalog maps milestones to ladders and codes to milestones.
type Catalog struct {
	ladders    map[Milestone]*Ladder
	milestones map[Code]Milestone
	order      []Milestone
}

// NewCatalog builds the standard catalog for the given rules and validates it.
func NewCatalog(rules Rules) (*Catalog, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	c := &Catalog{
		ladders:    make(map[Milestone]*Ladder),
		milestones: make(map[Code]Milestone),
	}

	var errs []string
	add := func(l *Ladder) {
		if err := c.AddLadder(l); err != nil {
			errs = append(errs, err.Error())
		}
	}
	addCodes := func(m Milestone, codes ...Code) {
		for _, code := range codes {
			if err := c.AddCode(code, m); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	add(simpleLadder(MilestonePrereq, "prerequisite", FamilyPrereq, rules, []RungKind{RungContent, RungContent, RungContent}))
	add(simpleLadder(MilestoneStart, "course start", FamilyStart, rules, []RungKind{RungSilent, RungContent, RungSilent, RungContent}))
	add(standardLadder(MilestoneEntrance, "Entrance Exam", FamilyEntrance, rules))
	add(standardLadder(MilestoneSkillsReview, "Skills Review", FamilySkillsReview, rules))
	for u := 1; u <= UnitCount; u++ {
		for h := 1; h <= HomeworkPerUnit; h++ {
			req := Requirement{Kind: ReqHomework, Unit: u, Index: h}
			add(standardLadder(req.Milestone(), req.String(), HomeworkFamily(u, h), rules))
		}
		re := Requirement{Kind: ReqReviewExam, Unit: u}
		add(standardLadder(re.Milestone(), re.String(), ReviewFamily(u), rules))
		ue := Requirement{Kind: ReqUnitExam, Unit: u}
		add(standardLadder(ue.Milestone(), ue.String(), UnitExamFamily(u), rules))
	}
	add(finalLadder(rules))
	add(simpleLadder(MilestonePoints, "point threshold", FamilyPoints, rules, []RungKind{RungContent}))

	for u := 1; u <= UnitCount; u++ {
		addCodes(ReviewMilestone(u), ReviewReminderCode(u))
	}
	addCodes(ReviewMilestone(3), CodeRE3Congrats)
	addCodes(MilestoneFinal, CodeFinalReminder)
	addCodes(MilestoneGrade, CodeGradeCCanEarnAB, CodeGradeCCanEarnB, CodeGradeBCanEarnA)
	addCodes(MilestoneLastTry, CodeLastTryNotTried, CodeLastTryTried)
	addCodes(MilestoneBlocked, CodeLockedOut, CodeWithdrawAdvice, CodeLockoutOptions)
	addCodes(MilestoneWelcome, welcomeCodes()...)

	if len(errs) > 0 {
		return nil, catalogError(errs)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// AddLadder registers a ladder and all of its codes.
func (c *Catalog) AddLadder(l *Ladder) error {
	if _, exists := c.ladders[l.Milestone]; exists {
		return fmt.Errorf("duplicate ladder for milestone %s", l.Milestone)
	}
	for _, code := range l.Codes() {
		if err := c.AddCode(code, l.Milestone); err != nil {
			return err
		}
	}
	c.ladders[l.Milestone] = l
	c.order = append(c.order, l.Milestone)
	return nil
}

// AddCode maps a code to its milestone. A code may belong to one milestone only.
func (c *Catalog) AddCode(code Code, m Milestone) error {
	if !code.IsValid() {
		return fmt.Errorf("empty code for milestone %s", m)
	}
	if prev, exists := c.milestones[code]; exists {
		if prev == m {
			return nil
		}
		return fmt.Errorf("code %s registered for both %s and %s", code, prev, m)
	}
	c.milestones[code] = m
	return nil
}

// Ladder returns the ladder for m.
func (c *Catalog) Ladder(m Milestone) (*Ladder, bool) {
	l, ok := c.ladders[m]
	return l, ok
}

// Ladders returns all ladders in registration order.
func (c *Catalog) Ladders() []*Ladder {
	out := make([]*Ladder, 0, len(c.order))
	for _, m := range c.order {
		out = append(out, c.ladders[m])
	}
	return out
}

// MilestoneOf returns the milestone a code belongs to.
func (c *Catalog) MilestoneOf(code Code) (Milestone, bool) {
	m, ok := c.milestones[code]
	return m, ok
}

// Known reports whether code is part of the catalog.
func (c *Catalog) Known(code Code) bool {
	_, ok := c.milestones[code]
	return ok
}

// Validate checks every ladder table: tiers start at zero attempts and
// ascend, no tier is empty, no code is emitted twice within a ladder, covered
// codes belong to the same ladder, and every curriculum requirement with an
// objective has a ladder.
func (c *Catalog) Validate() error {
	var errs []string

	for _, m := range c.order {
		errs = append(errs, validateLadder(c.ladders[m])...)
	}

	for _, req := range Curriculum {
		if req.Kind == ReqFinal || req.Kind == ReqScore || req.Kind == ReqPrereq || req.Kind == ReqStarted {
			if _, ok := c.ladders[req.Milestone()]; !ok {
				errs = append(errs, fmt.Sprintf("no ladder for %s", req.Milestone()))
			}
			continue
		}
		l, ok := c.ladders[req.Milestone()]
		if !ok {
			errs = append(errs, fmt.Sprintf("no ladder for %s", req.Milestone()))
			continue
		}
		if !l.Terminal.IsValid() {
			errs = append(errs, fmt.Sprintf("ladder %s has no terminal rung", l.Milestone))
		}
	}

	if len(errs) > 0 {
		return catalogError(errs)
	}
	return nil
}

func validateLadder(l *Ladder) []string {
	var errs []string
	if len(l.Tiers) == 0 {
		return []string{fmt.Sprintf("ladder %s has no tiers", l.Milestone)}
	}
	if l.Tiers[0].MinAttempts != 0 {
		errs = append(errs, fmt.Sprintf("ladder %s first tier must start at 0 attempts", l.Milestone))
	}

	own := make(map[Code]bool)
	for _, code := range l.Codes() {
		own[code] = true
	}

	emitted := make(map[Code]bool)
	prev := -1
	for _, t := range l.Tiers {
		if t.MinAttempts <= prev {
			errs = append(errs, fmt.Sprintf("ladder %s tier %s boundaries not ascending", l.Milestone, t.Name))
		}
		prev = t.MinAttempts
		if len(t.Rungs) == 0 {
			errs = append(errs, fmt.Sprintf("ladder %s tier %s has no rungs", l.Milestone, t.Name))
		}
		for _, r := range t.Rungs {
			for _, code := range []Code{r.Code, r.Recent} {
				if !code.IsValid() {
					continue
				}
				if emitted[code] || code == l.Terminal {
					errs = append(errs, fmt.Sprintf("ladder %s emits %s twice", l.Milestone, code))
				}
				emitted[code] = true
			}
			if !r.Code.IsValid() {
				errs = append(errs, fmt.Sprintf("ladder %s tier %s has a rung without code", l.Milestone, t.Name))
			}
			if r.Kind != RungSilent && r.Kind != RungContent {
				errs = append(errs, fmt.Sprintf("ladder %s rung %s has no kind", l.Milestone, r.Code))
			}
			for _, cov := range r.Covers {
				if !own[cov] {
					errs = append(errs, fmt.Sprintf("ladder %s rung %s covers foreign code %s", l.Milestone, r.Code, cov))
				}
			}
		}
	}
	return errs
}

func catalogError(errs []string) error {
	return shared.WrapError("catalog", "Validate", shared.ErrInvalidConfig,
		"invalid ladder configuration", fmt.Errorf("%s", strings.Join(errs, "; ")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Ladder tables
// ──────────────────────────────────────────────────────────────────────────────

func silentRung(code Code, covers ...Code) Rung {
	return Rung{Code: code, Kind: RungSilent, Covers: covers}
}

func contentRung(code Code, gate int, covers ...Code) Rung {
	return Rung{Code: code, Kind: RungContent, GateDays: gate, Covers: covers}
}

func ungatedRung(code Code, covers ...Code) Rung {
	return Rung{Code: code, Kind: RungContent, Ungated: true, Covers: covers}
}

// standardLadder builds the three-tier table shared by homework, exams,
// entrance exam and skills review.
func standardLadder(m Milestone, label string, f Family, rules Rules) *Ladder {
	g := rules.ActivityGateDays
	r, x := f.R, f.X

	gentle := contentRung(x(1), g, r(1), r(5))
	gentle.Recent = x(2)

	return &Ladder{
		Milestone: m,
		Label:     label,
		GateDays:  g,
		Terminal:  r(99),
		Tiers: []Tier{
			{
				Name:        "A",
				MinAttempts: 0,
				Gated:       true,
				Rungs: []Rung{
					silentRung(r(0)),
					contentRung(r(1), g),
					silentRung(r(2)),
					contentRung(r(3), g),
				},
			},
			{
				Name:            "B",
				MinAttempts:     1,
				Gated:           true,
				MinDaysSinceTry: rules.RetryGapDays,
				Rungs: []Rung{
					silentRung(r(4), r(0)),
					contentRung(r(5), g, r(1)),
					silentRung(r(6), r(2)),
					contentRung(r(7), g, r(3)),
				},
			},
			{
				Name:        "C",
				MinAttempts: rules.ManyAttempts,
				Gated:       true,
				Rungs: []Rung{
					silentRung(x(0), r(0), r(4)),
					gentle,
					contentRung(x(3), g, r(3), r(7)),
				},
			},
		},
	}
}

// simpleLadder builds a single-tier ladder for requirements without attempts.
func simpleLadder(m Milestone, label string, f Family, rules Rules, kinds []RungKind) *Ladder {
	g := rules.ActivityGateDays
	rungs := make([]Rung, 0, len(kinds))
	for i, k := range kinds {
		if k == RungSilent {
			rungs = append(rungs, silentRung(f.R(i)))
		} else {
			rungs = append(rungs, contentRung(f.R(i), g))
		}
	}
	return &Ladder{
		Milestone: m,
		Label:     label,
		GateDays:  g,
		Terminal:  f.R(99),
		Tiers:     []Tier{{Name: "A", MinAttempts: 0, Gated: true, Rungs: rungs}},
	}
}

// finalLadder builds the final exam table. Its rungs are not held back by
// activity except the middle reminder, and an exhausted ladder is log-only.
func finalLadder(rules Rules) *Ladder {
	f := FamilyFinal
	r, x := f.R, f.X
	g := rules.FinalGateDays

	return &Ladder{
		Milestone: MilestoneFinal,
		Label:     "Final Exam",
		GateDays:  rules.ActivityGateDays,
		Tiers: []Tier{
			{
				Name:        "A",
				MinAttempts: 0,
				Rungs: []Rung{
					ungatedRung(r(0)),
					contentRung(r(1), g),
					ungatedRung(r(2)),
				},
			},
			{
				Name:        "B",
				MinAttempts: 1,
				Rungs: []Rung{
					ungatedRung(r(4), r(0)),
					contentRung(r(5), g, r(1)),
					ungatedRung(r(6), r(2)),
				},
			},
			{
				Name:        "C",
				MinAttempts: rules.ManyAttempts,
				Rungs: []Rung{
					ungatedRung(x(0), r(0), r(4)),
					contentRung(x(1), g, r(1), r(5)),
					ungatedRung(x(2), r(2), r(6)),
				},
			},
		},
	}
}
