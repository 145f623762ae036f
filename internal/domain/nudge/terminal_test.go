package nudge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalPolicy(t *testing.T) {
	p := TerminalPolicy{Code: "RE1Rre99"}

	step := p.Apply(NewLedger(), "B")
	assert.Equal(t, Step{Kind: StepTerminal, Code: "RE1Rre99", Tier: "B"}, step)

	step = p.Apply(sent("RE1Rre99", "RE1Rre99"), "B")
	assert.Equal(t, StepLogOnly, step.Kind)
	assert.False(t, step.Sends())
}

func TestLockout(t *testing.T) {
	rules := DefaultRules()
	lockedOn := func(d string) Ledger {
		return NewLedger(LedgerEntry{Code: CodeLockedOut, SentOn: date(d)})
	}

	tests := []struct {
		name   string
		today  string
		last   bool
		ledger Ledger
		rules  func(r *Rules)
		want   Step
	}{
		{
			name:  "first notice",
			today: "2026-12-03",
			want:  Step{Kind: StepTerminal, Code: CodeLockedOut},
		},
		{
			name:   "too soon for a follow-up",
			today:  "2026-12-06",
			ledger: lockedOn("2026-12-03"),
			want:   Step{Kind: StepLogOnly, Code: CodeLockedOut},
		},
		{
			name:   "withdrawing still possible",
			today:  "2026-11-19",
			ledger: lockedOn("2026-11-15"),
			want:   Step{Kind: StepTerminal, Code: CodeWithdrawAdvice},
		},
		{
			name:   "withdraw deadline is today",
			today:  "2026-11-20",
			ledger: lockedOn("2026-11-15"),
			want:   Step{Kind: StepTerminal, Code: CodeWithdrawAdvice},
		},
		{
			name:   "other courses remain",
			today:  "2026-12-08",
			ledger: lockedOn("2026-12-03"),
			want:   Step{Kind: StepTerminal, Code: CodeLockoutOptions},
		},
		{
			name:   "last course past the withdraw deadline",
			today:  "2026-12-08",
			last:   true,
			ledger: lockedOn("2026-12-03"),
			want:   Step{Kind: StepLogOnly, Code: CodeLockedOut},
		},
		{
			name:  "follow-up sent once",
			today: "2026-12-20",
			ledger: NewLedger(
				LedgerEntry{Code: CodeLockedOut, SentOn: date("2026-12-03")},
				LedgerEntry{Code: CodeLockoutOptions, SentOn: date("2026-12-08")},
			),
			want: Step{Kind: StepLogOnly, Code: CodeLockedOut},
		},
		{
			name:   "follow-up disabled",
			today:  "2026-12-08",
			ledger: lockedOn("2026-12-03"),
			rules:  func(r *Rules) { r.Features.LockoutFollowUp = false },
			want:   Step{Kind: StepLogOnly, Code: CodeLockedOut},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSnapshot()
			s.LastCourse = tt.last
			r := rules
			if tt.rules != nil {
				tt.rules(&r)
			}
			assert.Equal(t, tt.want, Lockout(s, tt.ledger, date(tt.today), r))
		})
	}
}

func TestLastTry(t *testing.T) {
	t.Run("never tried", func(t *testing.T) {
		s := newSnapshot()
		assert.Equal(t, Step{Kind: StepContent, Code: CodeLastTryNotTried}, LastTry(s, NewLedger()))
		assert.Equal(t, StepLogOnly, LastTry(s, sent(CodeLastTryNotTried)).Kind)
	})

	t.Run("tried before the due date", func(t *testing.T) {
		s := newSnapshot()
		s.Final.Attempts = 2
		assert.Equal(t, Step{Kind: StepContent, Code: CodeLastTryTried}, LastTry(s, NewLedger()))
		assert.Equal(t, StepLogOnly, LastTry(s, sent(CodeLastTryTried)).Kind)
		assert.Equal(t, StepLogOnly, LastTry(s, sent(CodeLastTryNotTried)).Kind)
	})
}

func TestSnapshot_Blocked(t *testing.T) {
	tests := []struct {
		name  string
		today string
		setup func(s *Snapshot)
		want  bool
	}{
		{"before the due date", "2026-11-20", func(s *Snapshot) {}, false},
		{"on the due date", "2026-11-30", func(s *Snapshot) {}, false},
		{"extra try left", "2026-12-01", func(s *Snapshot) {}, false},
		{"extra tries used", "2026-12-01", func(s *Snapshot) { s.FinalAttemptsAfterDue = 1 }, true},
		{"no extra tries this term", "2026-12-01", func(s *Snapshot) { s.Calendar.LastTryCount = 0 }, true},
		{"extra-try window closed", "2026-12-03", func(s *Snapshot) {}, true},
		{"final passed", "2026-12-20", func(s *Snapshot) { s.Final.Passed = true }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSnapshot()
			tt.setup(s)
			assert.Equal(t, tt.want, s.Blocked(date(tt.today)))
		})
	}
}
