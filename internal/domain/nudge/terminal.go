package nudge

import "github.com/alem-hub/course-nudge/pkg/timeutil"

// ══════════════════════════════════════════════════════════════════════════════
// TERMINAL ESCALATION
// "Send X at most once, then log only." Shared by every ladder's terminal
// rung, the lockout flow and the final exam extra-try window.
// ══════════════════════════════════════════════════════════════════════════════

// TerminalPolicy sends Code once and reports every later match to the log.
type TerminalPolicy struct {
	Code Code
}

// Apply returns a terminal step if Code is absent from the ledger, else log-only.
func (p TerminalPolicy) Apply(ledger Ledger, tier string) Step {
	if ledger.HasAny(p.Code) {
		return Step{Kind: StepLogOnly, Code: p.Code, Tier: tier}
	}
	return Step{Kind: StepTerminal, Code: p.Code, Tier: tier}
}

// Lockout decides messages for a student locked out of a course: the
// lockout notice once, then after a wait a single follow-up that depends on
// whether withdrawing is still possible.
func Lockout(s *Snapshot, ledger Ledger, today timeutil.Date, rules Rules) Step {
	if !ledger.HasAny(CodeLockedOut) {
		return Step{Kind: StepTerminal, Code: CodeLockedOut}
	}
	if !rules.Features.LockoutFollowUp || ledger.HasAny(CodeWithdrawAdvice, CodeLockoutOptions) {
		return Step{Kind: StepLogOnly, Code: CodeLockedOut}
	}

	days, _ := ledger.DaysSince(CodeLockedOut, today)
	if days < rules.LockoutFollowUpDays {
		return Step{Kind: StepLogOnly, Code: CodeLockedOut}
	}

	switch {
	case !today.After(s.Calendar.WithdrawDeadline):
		return TerminalPolicy{Code: CodeWithdrawAdvice}.Apply(ledger, "")
	case !s.LastCourse:
		return TerminalPolicy{Code: CodeLockoutOptions}.Apply(ledger, "")
	default:
		// Past the withdrawal deadline on the last course: nothing left to offer.
		return Step{Kind: StepLogOnly, Code: CodeLockedOut}
	}
}

// LastTry decides the single message of the final exam extra-try window.
func LastTry(s *Snapshot, ledger Ledger) Step {
	if s.Final.Attempts == 0 {
		if ledger.HasAny(CodeLastTryNotTried) {
			return Step{Kind: StepLogOnly, Code: CodeLastTryNotTried}
		}
		return Step{Kind: StepContent, Code: CodeLastTryNotTried}
	}
	if ledger.HasAny(CodeLastTryNotTried, CodeLastTryTried) {
		return Step{Kind: StepLogOnly, Code: CodeLastTryTried}
	}
	return Step{Kind: StepContent, Code: CodeLastTryTried}
}
