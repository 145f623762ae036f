package nudge

import "github.com/alem-hub/course-nudge/pkg/timeutil"

// Welcome picks the first message of a student's first course. The code
// reflects where the student stands: prerequisite, not started, working on
// the entrance exam or skills review, or ready to go. Variants ending in an
// odd number are used once the first review exam due date has passed.
func Welcome(s *Snapshot, today timeutil.Date, rules Rules) Code {
	late := 0
	if today.After(s.Calendar.ReviewDue[0]) {
		late = 1
	}

	switch {
	case !s.PrereqMet:
		return CodeWelcomePrereq
	case !s.Started:
		return WelcomeCode("st", late)
	case !s.Entrance.Passed:
		return WelcomeCode("us", attemptBand(s.Entrance.Attempts, rules)*2+late)
	case !s.Units[0].SkillsReview.Passed:
		return WelcomeCode("sr", attemptBand(s.Units[0].SkillsReview.Attempts, rules)*2+late)
	default:
		return CodeWelcomeReady
	}
}

// attemptBand maps an attempt count to 0 (never), 1 (few) or 2 (many).
func attemptBand(attempts int, rules Rules) int {
	switch {
	case attempts == 0:
		return 0
	case attempts < rules.ManyAttempts:
		return 1
	default:
		return 2
	}
}

func welcomeCodes() []Code {
	codes := []Code{CodeWelcomePrereq, CodeWelcomeReady, WelcomeCode("st", 0), WelcomeCode("st", 1)}
	for n := 0; n < 6; n++ {
		codes = append(codes, WelcomeCode("us", n), WelcomeCode("sr", n))
	}
	return codes
}
