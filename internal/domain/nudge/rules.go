package nudge

import (
	"fmt"
	"strings"

	"github.com/alem-hub/course-nudge/internal/domain/shared"
)

// Rules holds every threshold the engine uses. It is passed in explicitly so a
// term or course can override it.
type Rules struct {
	// ActivityGateDays: content rungs fire only when days since last activity exceed it.
	ActivityGateDays int `yaml:"activity_gate_days"`
	// ManyAttempts is the attempt count at which the many-attempts ladder starts.
	ManyAttempts int `yaml:"many_attempts"`
	// RetryGapDays is the minimum days since the last attempt before the
	// few-attempts ladder advances.
	RetryGapDays int `yaml:"retry_gap_days"`
	// RecentTryDays splits the many-attempts reminder into its gentle
	// (older than this) and just-reminding variants.
	RecentTryDays int `yaml:"recent_try_days"`
	// FinalGateDays gates the middle rung of the final exam ladder.
	FinalGateDays int `yaml:"final_gate_days"`

	// ProximitySteps is the size of the due-date reminder window in class days.
	ProximitySteps int `yaml:"proximity_steps"`

	PassingScore int `yaml:"passing_score"`
	GradeBScore  int `yaml:"grade_b_score"`
	GradeAScore  int `yaml:"grade_a_score"`

	// LockoutFollowUpDays is the wait between the lockout message and its follow-up.
	LockoutFollowUpDays int `yaml:"lockout_follow_up_days"`

	Cadence  CadenceRules `yaml:"cadence"`
	Features Features     `yaml:"features"`
}

// CadenceRules throttle how often one student is messaged. A message is
// allowed only when more than the quiet period (in weekdays) has passed since
// the latest delivered message.
type CadenceRules struct {
	Enabled          bool          `yaml:"enabled"`
	OnTimeQuietDays  int           `yaml:"on_time_quiet_days"`
	Bands            []CadenceBand `yaml:"bands"`
	DefaultQuietDays int           `yaml:"default_quiet_days"`
}

// CadenceBand applies to late students whose urgency score is at most MaxScore.
type CadenceBand struct {
	MaxScore  int `yaml:"max_score"`
	QuietDays int `yaml:"quiet_days"`
}

// Features toggles optional message flows.
type Features struct {
	Welcome         bool `yaml:"welcome"`
	GradeNudge      bool `yaml:"grade_nudge"`
	LockoutFollowUp bool `yaml:"lockout_follow_up"`
}

// DefaultRules returns the standard thresholds.
func DefaultRules() Rules {
	return Rules{
		ActivityGateDays:    3,
		ManyAttempts:        4,
		RetryGapDays:        2,
		RecentTryDays:       2,
		FinalGateDays:       2,
		ProximitySteps:      3,
		PassingScore:        54,
		GradeBScore:         62,
		GradeAScore:         65,
		LockoutFollowUpDays: 4,
		Cadence: CadenceRules{
			Enabled:         true,
			OnTimeQuietDays: 4,
			Bands: []CadenceBand{
				{MaxScore: 2, QuietDays: 7},
				{MaxScore: 4, QuietDays: 5},
			},
			DefaultQuietDays: 3,
		},
		Features: Features{
			Welcome:         true,
			GradeNudge:      true,
			LockoutFollowUp: true,
		},
	}
}

// QuietDaysFor returns the cadence quiet period for a classification.
func (c CadenceRules) QuietDaysFor(cls Classification) int {
	if cls.Tier == TierOnTime {
		return c.OnTimeQuietDays
	}
	for _, b := range c.Bands {
		if cls.Score <= b.MaxScore {
			return b.QuietDays
		}
	}
	return c.DefaultQuietDays
}

// Validate checks the rules for consistency. Errors are fatal at startup.
func (r Rules) Validate() error {
	var errs []string

	if r.ActivityGateDays < 0 {
		errs = append(errs, "activity_gate_days must be non-negative")
	}
	if r.ManyAttempts < 2 {
		errs = append(errs, "many_attempts must be at least 2")
	}
	if r.RetryGapDays < 0 || r.RecentTryDays < 0 || r.FinalGateDays < 0 {
		errs = append(errs, "day thresholds must be non-negative")
	}
	if r.ProximitySteps < 1 {
		errs = append(errs, "proximity_steps must be at least 1")
	}
	if r.PassingScore <= 0 || r.GradeBScore <= r.PassingScore || r.GradeAScore <= r.GradeBScore {
		errs = append(errs, "scores must satisfy 0 < passing < grade_b < grade_a")
	}
	if r.LockoutFollowUpDays < 0 {
		errs = append(errs, "lockout_follow_up_days must be non-negative")
	}
	prev := -1
	for i, b := range r.Cadence.Bands {
		if b.MaxScore <= prev {
			errs = append(errs, fmt.Sprintf("cadence band %d must have increasing max_score", i))
		}
		prev = b.MaxScore
	}

	if len(errs) > 0 {
		return shared.WrapError("rules", "Validate", shared.ErrInvalidConfig,
			"invalid engine rules", fmt.Errorf("%s", strings.Join(errs, "; ")))
	}
	return nil
}
