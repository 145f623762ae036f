package nudge

import "github.com/alem-hub/course-nudge/pkg/timeutil"

// ══════════════════════════════════════════════════════════════════════════════
// OBJECTIVE LADDER
// One evaluator for every objective. A ladder is a table of tiers selected by
// attempt count; each tier is an ordered list of rungs. The next action is the
// first rung whose code set has never been sent.
// ══════════════════════════════════════════════════════════════════════════════

// RungKind distinguishes rungs that deliver text from rungs that only advance state.
type RungKind int

const (
	// RungSilent is recorded in the ledger but delivers nothing.
	RungSilent RungKind = iota + 1
	// RungContent delivers a message.
	RungContent
)

// Rung is one step of a ladder tier.
type Rung struct {
	Code Code
	Kind RungKind
	// Recent, when set, replaces Code if the last attempt is no older than
	// Rules.RecentTryDays. It occupies the same ladder position.
	Recent Code
	// Covers lists codes from other tiers that count as this rung being sent.
	Covers []Code
	// GateDays is the activity gate for a content rung.
	GateDays int
	// Ungated content rungs ignore the activity gate.
	Ungated bool
}

// codes returns every code whose presence marks this rung as sent.
func (r Rung) codes() []Code {
	out := make([]Code, 0, 2+len(r.Covers))
	out = append(out, r.Code)
	if r.Recent.IsValid() {
		out = append(out, r.Recent)
	}
	return append(out, r.Covers...)
}

// Tier is the rung list used for a range of attempt counts.
type Tier struct {
	Name        string
	MinAttempts int
	// Gated tiers produce nothing, silent rungs included, while the student
	// has been active within the ladder's gate.
	Gated bool
	// MinDaysSinceTry holds the tier back until the last attempt is at least this old.
	MinDaysSinceTry int
	Rungs           []Rung
}

// Ladder is the escalation table for one objective.
type Ladder struct {
	Milestone Milestone
	// Label names the objective in operational logs.
	Label string
	// Tiers are ordered by ascending MinAttempts, starting at zero.
	Tiers []Tier
	// Terminal is sent once after every rung is exhausted. Empty means an
	// exhausted ladder is log-only.
	Terminal Code
	// GateDays is the activity gate for gated tiers and the terminal rung.
	GateDays int
}

// LadderInput is the per-objective state the evaluator reads.
type LadderInput struct {
	Attempts              int
	LastAttempt           timeutil.Date
	DaysSinceLastActivity int
	Today                 timeutil.Date
	Ledger                Ledger
}

// StepKind is the outcome of evaluating a ladder.
type StepKind int

const (
	// StepNone produces nothing this run.
	StepNone StepKind = iota
	// StepSilent consumes a silent rung.
	StepSilent
	// StepContent sends a content rung.
	StepContent
	// StepTerminal sends the terminal "needs human contact" message.
	StepTerminal
	// StepLogOnly reports an exhausted objective to the operational log.
	StepLogOnly
)

// String returns the string representation of the step kind.
func (k StepKind) String() string {
	switch k {
	case StepSilent:
		return "silent"
	case StepContent:
		return "content"
	case StepTerminal:
		return "terminal"
	case StepLogOnly:
		return "log_only"
	default:
		return "none"
	}
}

// Step is the evaluator's result.
type Step struct {
	Kind StepKind
	Code Code
	Tier string
}

// Sends reports whether the step produces a message or ledger entry.
func (s Step) Sends() bool {
	return s.Kind == StepSilent || s.Kind == StepContent || s.Kind == StepTerminal
}

// TierFor returns the tier governing the given attempt count.
func (l *Ladder) TierFor(attempts int) *Tier {
	var chosen *Tier
	for i := range l.Tiers {
		if attempts >= l.Tiers[i].MinAttempts {
			chosen = &l.Tiers[i]
		}
	}
	return chosen
}

// Evaluate decides the next rung for one objective.
func (l *Ladder) Evaluate(in LadderInput, rules Rules) Step {
	tier := l.TierFor(in.Attempts)
	if tier == nil {
		return Step{}
	}

	gateOpen := in.DaysSinceLastActivity > l.GateDays
	if tier.Gated && !gateOpen {
		return Step{}
	}

	sinceTry := daysSinceTry(in)
	if tier.MinDaysSinceTry > 0 && sinceTry < tier.MinDaysSinceTry {
		return Step{}
	}

	for _, rung := range tier.Rungs {
		if in.Ledger.HasAny(rung.codes()...) {
			continue
		}

		code := rung.Code
		if rung.Recent.IsValid() && sinceTry <= rules.RecentTryDays {
			code = rung.Recent
		}

		if rung.Kind == RungSilent {
			return Step{Kind: StepSilent, Code: code, Tier: tier.Name}
		}
		if !rung.Ungated && in.DaysSinceLastActivity <= rung.GateDays {
			// The selected rung waits; later rungs are never skipped to.
			return Step{}
		}
		return Step{Kind: StepContent, Code: code, Tier: tier.Name}
	}

	return l.exhausted(in, gateOpen, tier.Name)
}

func (l *Ladder) exhausted(in LadderInput, gateOpen bool, tier string) Step {
	if !l.Terminal.IsValid() {
		return Step{Kind: StepLogOnly, Tier: tier}
	}
	if !gateOpen {
		return Step{}
	}
	return TerminalPolicy{Code: l.Terminal}.Apply(in.Ledger, tier)
}

// neverDays stands in for "no such event" in recency comparisons.
const neverDays = 100

func daysSinceTry(in LadderInput) int {
	if in.LastAttempt.IsZero() {
		return neverDays
	}
	return in.Today.DaysSince(in.LastAttempt)
}

// Codes returns every code the ladder can emit or cover, terminal included.
func (l *Ladder) Codes() []Code {
	seen := make(map[Code]bool)
	var out []Code
	add := func(c Code) {
		if c.IsValid() && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, t := range l.Tiers {
		for _, r := range t.Rungs {
			add(r.Code)
			add(r.Recent)
		}
	}
	add(l.Terminal)
	return out
}
