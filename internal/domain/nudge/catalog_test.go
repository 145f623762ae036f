package nudge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-nudge/internal/domain/shared"
)

func TestNewCatalog_Default(t *testing.T) {
	c := mustCatalog(t)

	// prereq, start, entrance, skills review, 4 units of 5 homework + 2 exams,
	// final, point threshold.
	assert.Len(t, c.Ladders(), 34)

	tests := []struct {
		code Code
		want Milestone
	}{
		{"H11Rhw00", HomeworkMilestone(1, 1)},
		{"H45Xhw02", HomeworkMilestone(4, 5)},
		{"RE2Rre99", ReviewMilestone(2)},
		{"RE2Rok00", ReviewMilestone(2)},
		{"RE3Rok01", ReviewMilestone(3)},
		{"UE4Xue03", UnitExamMilestone(4)},
		{"USRRus05", MilestoneEntrance},
		{"SKLXsr00", MilestoneSkillsReview},
		{"FINXfe02", MilestoneFinal},
		{"FINRok00", MilestoneFinal},
		{"PREQRpr99", MilestonePrereq},
		{"STRTRst03", MilestoneStart},
		{"PNTSRrt00", MilestonePoints},
		{"GRDBok00", MilestoneGrade},
		{"LASTfe01", MilestoneLastTry},
		{"BLOKwd02", MilestoneBlocked},
		{"WELCsr05", MilestoneWelcome},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			got, ok := c.MilestoneOf(tt.code)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.False(t, c.Known("FINRfe99"), "final ladder has no terminal code")
	assert.False(t, c.Known("nope"))
}

func TestNewCatalog_Ladders(t *testing.T) {
	c := mustCatalog(t)

	for _, req := range Curriculum {
		l, ok := c.Ladder(req.Milestone())
		require.True(t, ok, "ladder for %s", req)
		assert.Equal(t, 0, l.Tiers[0].MinAttempts)
		if req.Kind != ReqFinal {
			assert.True(t, l.Terminal.IsValid(), "terminal for %s", req)
		}
	}

	prereq, _ := c.Ladder(MilestonePrereq)
	assert.Equal(t, []Code{"PREQRpr00", "PREQRpr01", "PREQRpr02", "PREQRpr99"}, prereq.Codes())

	start, _ := c.Ladder(MilestoneStart)
	require.Len(t, start.Tiers[0].Rungs, 4)
	assert.Equal(t, RungSilent, start.Tiers[0].Rungs[0].Kind)
	assert.Equal(t, RungContent, start.Tiers[0].Rungs[1].Kind)
}

func TestCatalog_AddCodeConflict(t *testing.T) {
	c := mustCatalog(t)

	assert.NoError(t, c.AddCode("RE1Rre00", ReviewMilestone(1)), "same milestone is idempotent")
	assert.Error(t, c.AddCode("RE1Rre00", ReviewMilestone(2)))
	assert.Error(t, c.AddCode("", ReviewMilestone(2)))

	dup, _ := c.Ladder(MilestoneFinal)
	assert.Error(t, c.AddLadder(dup))
}

func TestNewCatalog_InvalidRules(t *testing.T) {
	rules := DefaultRules()
	rules.GradeAScore = rules.GradeBScore

	_, err := NewCatalog(rules)
	require.Error(t, err)
	assert.True(t, shared.IsConfig(err))
}

func TestValidateLadder(t *testing.T) {
	f := HomeworkFamily(9, 9)

	tests := []struct {
		name   string
		ladder *Ladder
		want   string
	}{
		{
			name:   "no tiers",
			ladder: &Ladder{Milestone: "X"},
			want:   "has no tiers",
		},
		{
			name: "first tier not at zero",
			ladder: &Ladder{Milestone: "X", Tiers: []Tier{
				{Name: "A", MinAttempts: 1, Rungs: []Rung{silentRung(f.R(0))}},
			}},
			want: "must start at 0 attempts",
		},
		{
			name: "boundaries out of order",
			ladder: &Ladder{Milestone: "X", Tiers: []Tier{
				{Name: "A", MinAttempts: 0, Rungs: []Rung{silentRung(f.R(0))}},
				{Name: "B", MinAttempts: 0, Rungs: []Rung{silentRung(f.R(4))}},
			}},
			want: "not ascending",
		},
		{
			name: "empty tier",
			ladder: &Ladder{Milestone: "X", Tiers: []Tier{
				{Name: "A", MinAttempts: 0},
			}},
			want: "has no rungs",
		},
		{
			name: "code emitted twice",
			ladder: &Ladder{Milestone: "X", Tiers: []Tier{
				{Name: "A", MinAttempts: 0, Rungs: []Rung{silentRung(f.R(0)), contentRung(f.R(0), 3)}},
			}},
			want: "emits H99Rhw00 twice",
		},
		{
			name: "foreign cover",
			ladder: &Ladder{Milestone: "X", Tiers: []Tier{
				{Name: "A", MinAttempts: 0, Rungs: []Rung{silentRung(f.R(0), "RE1Rre00")}},
			}},
			want: "covers foreign code RE1Rre00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validateLadder(tt.ladder)
			require.NotEmpty(t, errs)
			assert.Contains(t, errs[0], tt.want)
		})
	}

	for _, l := range mustCatalog(t).Ladders() {
		assert.Empty(t, validateLadder(l), "ladder %s", l.Milestone)
	}
}
