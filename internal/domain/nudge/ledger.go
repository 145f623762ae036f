package nudge

import "github.com/alem-hub/course-nudge/pkg/timeutil"

// LedgerEntry is one message code already issued to a student for a course.
type LedgerEntry struct {
	Code   Code
	SentOn timeutil.Date
	// Silent entries advance a ladder without delivering anything.
	Silent bool
}

// Ledger is the append-only set of messages sent to one student for one course.
// Duplicate codes are tolerated and read as "already sent".
type Ledger struct {
	entries []LedgerEntry
}

// NewLedger creates a ledger from stored entries.
func NewLedger(entries ...LedgerEntry) Ledger {
	cp := make([]LedgerEntry, len(entries))
	copy(cp, entries)
	return Ledger{entries: cp}
}

// Entries returns a copy of the ledger entries.
func (l Ledger) Entries() []LedgerEntry {
	cp := make([]LedgerEntry, len(l.entries))
	copy(cp, l.entries)
	return cp
}

// Len returns the number of entries.
func (l Ledger) Len() int { return len(l.entries) }

// With returns a new ledger with entry appended. The receiver is unchanged.
func (l Ledger) With(entry LedgerEntry) Ledger {
	cp := make([]LedgerEntry, len(l.entries), len(l.entries)+1)
	copy(cp, l.entries)
	return Ledger{entries: append(cp, entry)}
}

// HasAny reports whether any of the given codes has been sent.
func (l Ledger) HasAny(codes ...Code) bool {
	for _, e := range l.entries {
		for _, c := range codes {
			if e.Code == c {
				return true
			}
		}
	}
	return false
}

// SentOn returns the most recent date code was sent.
func (l Ledger) SentOn(code Code) (timeutil.Date, bool) {
	var latest timeutil.Date
	found := false
	for _, e := range l.entries {
		if e.Code != code {
			continue
		}
		if !found || e.SentOn.After(latest) {
			latest = e.SentOn
			found = true
		}
	}
	return latest, found
}

// DaysSince returns the days elapsed since code was most recently sent.
func (l Ledger) DaysSince(code Code, today timeutil.Date) (int, bool) {
	sent, ok := l.SentOn(code)
	if !ok {
		return 0, false
	}
	return today.DaysSince(sent), true
}

// LatestDelivered returns the date of the most recent non-silent entry.
func (l Ledger) LatestDelivered() (timeutil.Date, bool) {
	var latest timeutil.Date
	found := false
	for _, e := range l.entries {
		if e.Silent {
			continue
		}
		if !found || e.SentOn.After(latest) {
			latest = e.SentOn
			found = true
		}
	}
	return latest, found
}

// HasMilestone reports whether any code belonging to m has been sent.
func (l Ledger) HasMilestone(m Milestone, catalog *Catalog) bool {
	for _, e := range l.entries {
		if got, ok := catalog.MilestoneOf(e.Code); ok && got == m {
			return true
		}
	}
	return false
}
