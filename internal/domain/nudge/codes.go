package nudge

import "fmt"

// Code is an opaque message identifier recorded in the ledger.
type Code string

// String returns the string representation of the code.
func (c Code) String() string {
	return string(c)
}

// IsValid checks that the code is not empty.
func (c Code) IsValid() bool {
	return len(c) > 0
}

// Family generates the codes of one objective's ladder, e.g. prefix "H12"
// and suffix "hw" yield H12Rhw00..H12Rhw99 and H12Xhw00..H12Xhw03.
type Family struct {
	Prefix string
	Suffix string
}

// R returns the regular-ladder code with the given number.
func (f Family) R(n int) Code {
	return Code(fmt.Sprintf("%sR%s%02d", f.Prefix, f.Suffix, n))
}

// X returns the many-attempts ladder code with the given number.
func (f Family) X(n int) Code {
	return Code(fmt.Sprintf("%sX%s%02d", f.Prefix, f.Suffix, n))
}

// Code families for each objective.
var (
	FamilyPrereq       = Family{Prefix: "PREQ", Suffix: "pr"}
	FamilyStart        = Family{Prefix: "STRT", Suffix: "st"}
	FamilyEntrance     = Family{Prefix: "USR", Suffix: "us"}
	FamilySkillsReview = Family{Prefix: "SKL", Suffix: "sr"}
	FamilyFinal        = Family{Prefix: "FIN", Suffix: "fe"}
	FamilyPoints       = Family{Prefix: "PNTS", Suffix: "rt"}
)

// HomeworkFamily returns the code family for homework objective obj of unit.
func HomeworkFamily(unit, obj int) Family {
	return Family{Prefix: fmt.Sprintf("H%d%d", unit, obj), Suffix: "hw"}
}

// ReviewFamily returns the code family for the review exam of unit.
func ReviewFamily(unit int) Family {
	return Family{Prefix: fmt.Sprintf("RE%d", unit), Suffix: "re"}
}

// UnitExamFamily returns the code family for the unit exam of unit.
func UnitExamFamily(unit int) Family {
	return Family{Prefix: fmt.Sprintf("UE%d", unit), Suffix: "ue"}
}

// Codes outside the objective ladders.
const (
	// On-time reminders.
	CodeRE1Reminder     Code = "RE1Rok00"
	CodeRE2Reminder     Code = "RE2Rok00"
	CodeRE3Reminder     Code = "RE3Rok00"
	CodeRE3Congrats     Code = "RE3Rok01"
	CodeRE4Reminder     Code = "RE4Rok00"
	CodeFinalReminder   Code = "FINRok00"
	CodeGradeCCanEarnAB Code = "GRDCok00"
	CodeGradeCCanEarnB  Code = "GRDCok01"
	CodeGradeBCanEarnA  Code = "GRDBok00"

	// Final exam extra-try window.
	CodeLastTryNotTried Code = "LASTfe00"
	CodeLastTryTried    Code = "LASTfe01"

	// Lockout.
	CodeLockedOut      Code = "BLOKwd00"
	CodeWithdrawAdvice Code = "BLOKwd01"
	CodeLockoutOptions Code = "BLOKwd02"

	// Welcome.
	CodeWelcomePrereq Code = "WELCpr00"
	CodeWelcomeReady  Code = "WELCok00"
)

// ReviewReminderCode returns the on-time reminder code for the review exam of unit.
func ReviewReminderCode(unit int) Code {
	return Code(fmt.Sprintf("RE%dRok00", unit))
}

// WelcomeCode returns a welcome code such as WELCus03.
func WelcomeCode(part string, n int) Code {
	return Code(fmt.Sprintf("WELC%s%02d", part, n))
}
