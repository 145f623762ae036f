package presenter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-nudge/internal/domain/nudge"
	"github.com/alem-hub/course-nudge/internal/domain/shared"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

var today = timeutil.MustParseDate("2026-10-14") // Wednesday

type courseNames map[string]string

func (c courseNames) DisplayName(_ context.Context, courseID string) (string, error) {
	name, ok := c[courseID]
	if !ok {
		return "", shared.ErrCourseNotFound
	}
	return name, nil
}

func intPtr(v int) *int { return &v }

func newPresenter(t *testing.T) *MessagePresenter {
	t.Helper()
	rules := nudge.DefaultRules()
	catalog, err := nudge.NewCatalog(rules)
	require.NoError(t, err)
	return NewMessagePresenter(courseNames{"MATH0300": "Intermediate Algebra"}, catalog, rules)
}

func snapshot() *nudge.Snapshot {
	s := &nudge.Snapshot{
		StudentID:             "830000001",
		CourseID:              "MATH0300",
		Section:               "001",
		Pace:                  2,
		PrereqMet:             true,
		Started:               true,
		TotalScore:            intPtr(40),
		MaxPossibleScore:      intPtr(72),
		DaysSinceLastActivity: intPtr(3),
	}
	s.Calendar.ReviewDue = [nudge.UnitCount]timeutil.Date{
		timeutil.MustParseDate("2026-10-16"),
		timeutil.MustParseDate("2026-11-09"),
		timeutil.MustParseDate("2026-11-16"),
		timeutil.MustParseDate("2026-11-23"),
	}
	s.Calendar.FinalDue = timeutil.MustParseDate("2026-11-30")
	s.Calendar.LastTryDeadline = timeutil.MustParseDate("2026-12-02")
	s.Calendar.LastTryCount = 2
	s.Calendar.WithdrawDeadline = timeutil.MustParseDate("2026-11-20")
	return s
}

func content(code nudge.Code, m nudge.Milestone) nudge.Decision {
	return nudge.Decision{
		Kind:           nudge.DecisionContent,
		StudentID:      "830000001",
		CourseID:       "MATH0300",
		CoursePosition: 1,
		Milestone:      m,
		Code:           code,
	}
}

func TestRender(t *testing.T) {
	p := newPresenter(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		decision func() nudge.Decision
		edit     func(*nudge.Snapshot)
		subject  string
		body     []string
	}{
		{
			name:     "welcome ready for unit 1",
			decision: func() nudge.Decision { return content(nudge.CodeWelcomeReady, nudge.MilestoneWelcome) },
			subject:  "Welcome to Intermediate Algebra",
			body:     []string{"ready\nfor Unit 1", "Learning Center"},
		},
		{
			name:     "welcome without prerequisite",
			decision: func() nudge.Decision { return content(nudge.CodeWelcomePrereq, nudge.MilestoneWelcome) },
			subject:  "Welcome to Intermediate Algebra",
			body:     []string{"prerequisite"},
		},
		{
			name:     "review reminder within the week uses weekday",
			decision: func() nudge.Decision { return content(nudge.ReviewReminderCode(1), nudge.ReviewMilestone(1)) },
			subject:  "Unit 1 Review Exam due Friday",
			body:     []string{"due Friday", "on-time points"},
		},
		{
			name:     "online section gets online help",
			decision: func() nudge.Decision { return content(nudge.ReviewReminderCode(2), nudge.ReviewMilestone(2)) },
			edit:     func(s *nudge.Snapshot) { s.Section = "801" },
			subject:  "Unit 2 Review Exam due Monday, November 9",
			body:     []string{"online help session"},
		},
		{
			name: "late homework names the objective and course position",
			decision: func() nudge.Decision {
				d := content(nudge.HomeworkFamily(1, 2).R(1), nudge.HomeworkMilestone(1, 2))
				d.CoursePosition = 2
				d.Requirement = nudge.Requirement{Kind: nudge.ReqHomework, Unit: 1, Index: 2}
				return d
			},
			edit: func(s *nudge.Snapshot) {
				s.Units[0].Homework[1] = nudge.Objective{Attempts: 2, LastAttempt: today.AddDays(-5)}
			},
			subject: "Checking in on Intermediate Algebra",
			body:    []string{"Homework 1.2", "second course", "Every attempt helps"},
		},
		{
			name: "many attempts",
			decision: func() nudge.Decision {
				return content(nudge.ReviewFamily(2).X(1), nudge.ReviewMilestone(2))
			},
			subject: "Let's work through the Unit 2 Review Exam together",
			body:    []string{"worked hard"},
		},
		{
			name: "terminal rung asks for contact",
			decision: func() nudge.Decision {
				d := content(nudge.UnitExamFamily(3).R(99), nudge.UnitExamMilestone(3))
				d.Terminal = true
				return d
			},
			subject: "Can we help with Intermediate Algebra?",
			body:    []string{"Unit 3 Exam", "reply"},
		},
		{
			name:     "last try with several tries",
			decision: func() nudge.Decision { return content(nudge.CodeLastTryTried, nudge.MilestoneLastTry) },
			subject:  "One more chance at the Intermediate Algebra Final Exam",
			body:     []string{"retake", "up to 2 times", "December 2"},
		},
		{
			name:     "withdraw advice names the deadline",
			decision: func() nudge.Decision { return content(nudge.CodeWithdrawAdvice, nudge.MilestoneBlocked) },
			subject:  "Withdrawing from Intermediate Algebra",
			body:     []string{"through Friday, November 20"},
		},
		{
			name:     "grade nudge",
			decision: func() nudge.Decision { return content(nudge.CodeGradeBCanEarnA, nudge.MilestoneGrade) },
			subject:  "A higher grade is within reach",
			body:     []string{"40 of 72", "an A"},
		},
		{
			name:     "points below passing",
			decision: func() nudge.Decision { return content(nudge.FamilyPoints.R(0), nudge.MilestonePoints) },
			subject:  "Intermediate Algebra points",
			body:     []string{"40 points", "54"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := snapshot()
			if tt.edit != nil {
				tt.edit(s)
			}

			got, err := p.Render(ctx, tt.decision(), s, today)
			require.NoError(t, err)
			assert.Equal(t, tt.subject, got.Subject)
			for _, want := range tt.body {
				assert.Contains(t, got.Body, want)
			}
			assert.NotContains(t, got.Body, "<no value>")
		})
	}
}

func TestRender_Errors(t *testing.T) {
	p := newPresenter(t)
	ctx := context.Background()

	t.Run("silent decisions have no message", func(t *testing.T) {
		d := content(nudge.ReviewFamily(1).R(0), nudge.ReviewMilestone(1))
		d.Kind = nudge.DecisionSilent
		_, err := p.Render(ctx, d, snapshot(), today)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("unknown course", func(t *testing.T) {
		d := content(nudge.CodeWelcomeReady, nudge.MilestoneWelcome)
		d.CourseID = "MATH9999"
		_, err := p.Render(ctx, d, snapshot(), today)
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		code nudge.Code
		want string
	}{
		{nudge.WelcomeCode("us", 3), "welcome"},
		{nudge.CodeWelcomeReady, "welcome"},
		{nudge.CodeFinalReminder, "reminder"},
		{nudge.CodeRE3Congrats, "congrats"},
		{nudge.CodeGradeCCanEarnB, "grade"},
		{nudge.FamilyPrereq.R(1), "prereq"},
		{nudge.FamilyPrereq.R(99), "needs_contact"},
		{nudge.FamilyStart.R(3), "start"},
		{nudge.FamilyEntrance.X(3), "many_attempts"},
		{nudge.FamilyEntrance.R(5), "late"},
		{nudge.FamilyFinal.R(1), "final"},
		{nudge.FamilyFinal.X(2), "many_attempts"},
		{nudge.FamilyPoints.R(0), "points"},
		{nudge.CodeLastTryNotTried, "last_try"},
		{nudge.CodeLockedOut, "locked_out"},
		{nudge.CodeLockoutOptions, "lockout_options"},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, familyOf(nudge.Decision{Code: tt.code}))
		})
	}
}

func TestDuePhrase(t *testing.T) {
	assert.Equal(t, "today", DuePhrase(today, today))
	assert.Equal(t, "tomorrow", DuePhrase(today.AddDays(1), today))
	assert.Equal(t, "Monday", DuePhrase(today.AddDays(5), today))
	assert.Equal(t, "Wednesday, October 21", DuePhrase(today.AddDays(7), today))
	assert.Equal(t, "Monday, October 12", DuePhrase(today.AddDays(-2), today))
}

func TestOrdinal(t *testing.T) {
	assert.Equal(t, "first", ordinal(1))
	assert.Equal(t, "third", ordinal(3))
	assert.Equal(t, "#7", ordinal(7))
}
