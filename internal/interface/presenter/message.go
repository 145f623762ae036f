// Package presenter renders engine decisions into message subjects and bodies.
// Templates are chosen per code family; the data they see is derived from
// the snapshot the decision was made on.
package presenter

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/alem-hub/course-nudge/internal/domain/nudge"
	"github.com/alem-hub/course-nudge/internal/domain/shared"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE PRESENTER
// ══════════════════════════════════════════════════════════════════════════════

// MessagePresenter fills in Subject and Body of content decisions.
type MessagePresenter struct {
	courses nudge.CourseCatalog
	catalog *nudge.Catalog
	rules   nudge.Rules
	tmpl    *template.Template
}

// NewMessagePresenter creates a presenter. catalog resolves objective labels
// and courses resolves course display names.
func NewMessagePresenter(courses nudge.CourseCatalog, catalog *nudge.Catalog, rules nudge.Rules) *MessagePresenter {
	return &MessagePresenter{
		courses: courses,
		catalog: catalog,
		rules:   rules,
		tmpl:    parsedTemplates,
	}
}

var parsedTemplates = template.Must(
	template.New("messages").
		Option("missingkey=error").
		Funcs(template.FuncMap{"hasPrefix": strings.HasPrefix}).
		Parse(messageTemplates),
)

// messageData is what the templates see.
type messageData struct {
	Code           string
	CourseName     string
	CoursePosition int
	Ordinal        string
	Objective      string
	DuePhrase      string
	PastFirstDue   bool
	Review         bool
	Attempted      bool
	InPerson       bool
	Tries          int
	Total          int
	MaxPossible    int
	PassingScore   int
}

// Render returns d with Subject and Body filled in. Only content decisions
// can be rendered.
func (p *MessagePresenter) Render(ctx context.Context, d nudge.Decision, s *nudge.Snapshot, today timeutil.Date) (nudge.Decision, error) {
	if !d.Delivers() {
		return d, shared.NewDomainError("presenter", "Render", shared.ErrInvalidInput,
			fmt.Sprintf("decision kind %s has no message", d.Kind))
	}

	name, err := p.courses.DisplayName(ctx, d.CourseID)
	if err != nil {
		return d, shared.WrapError("presenter", "Render", shared.ErrNotFound, "course display name", err)
	}

	family := familyOf(d)
	data := p.dataFor(d, s, today, name)

	var subject, body bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&subject, family+".subject", data); err != nil {
		return d, fmt.Errorf("render %s subject: %w", d.Code, err)
	}
	if err := p.tmpl.ExecuteTemplate(&body, family+".body", data); err != nil {
		return d, fmt.Errorf("render %s body: %w", d.Code, err)
	}

	d.Subject = strings.TrimSpace(subject.String())
	d.Body = strings.TrimSpace(body.String())
	return d, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Template selection
// ─────────────────────────────────────────────────────────────────────────────

// familyOf picks the template family for a decision's code.
func familyOf(d nudge.Decision) string {
	code := d.Code
	s := code.String()

	switch code {
	case nudge.CodeLockedOut:
		return "locked_out"
	case nudge.CodeWithdrawAdvice:
		return "withdraw_advice"
	case nudge.CodeLockoutOptions:
		return "lockout_options"
	case nudge.CodeLastTryNotTried, nudge.CodeLastTryTried:
		return "last_try"
	case nudge.CodeRE3Congrats:
		return "congrats"
	case nudge.CodeGradeCCanEarnAB, nudge.CodeGradeCCanEarnB, nudge.CodeGradeBCanEarnA:
		return "grade"
	}

	switch {
	case strings.HasPrefix(s, "WELC"):
		return "welcome"
	case strings.HasSuffix(s, "ok00"):
		return "reminder"
	case d.Terminal || strings.HasSuffix(s, "99"):
		return "needs_contact"
	case strings.HasPrefix(s, nudge.FamilyPrereq.Prefix):
		return "prereq"
	case strings.HasPrefix(s, nudge.FamilyStart.Prefix):
		return "start"
	case strings.HasPrefix(s, nudge.FamilyPoints.Prefix):
		return "points"
	case manyAttempts(s):
		return "many_attempts"
	case strings.HasPrefix(s, nudge.FamilyFinal.Prefix):
		return "final"
	default:
		return "late"
	}
}

// manyAttempts reports whether a ladder code is from the X series, e.g. H12Xhw01.
func manyAttempts(code string) bool {
	// <prefix><R|X><2-letter suffix><2 digits>
	n := len(code)
	return n >= 5 && code[n-5] == 'X'
}

// ─────────────────────────────────────────────────────────────────────────────
// Template data
// ─────────────────────────────────────────────────────────────────────────────

func (p *MessagePresenter) dataFor(d nudge.Decision, s *nudge.Snapshot, today timeutil.Date, courseName string) messageData {
	data := messageData{
		Code:           d.Code.String(),
		CourseName:     courseName,
		CoursePosition: d.CoursePosition,
		Ordinal:        ordinal(d.CoursePosition),
		Objective:      p.objectiveName(d),
		InPerson:       s.InPerson(),
		Tries:          s.Calendar.LastTryCount,
		PassingScore:   p.rules.PassingScore,
		PastFirstDue:   today.After(s.Calendar.ReviewDue[0]),
	}
	if s.TotalScore != nil {
		data.Total = *s.TotalScore
	}
	if s.MaxPossibleScore != nil {
		data.MaxPossible = *s.MaxPossibleScore
	}
	if obj, ok := s.ObjectiveFor(d.Requirement); ok {
		data.Attempted = obj.Attempts > 0
	}

	due := dueDate(d, s)
	if !due.IsZero() {
		data.DuePhrase = DuePhrase(due, today)
	}
	data.Review = strings.HasPrefix(d.Milestone.String(), "RE")

	return data
}

// objectiveName returns the reader-facing name of the decision's objective.
func (p *MessagePresenter) objectiveName(d nudge.Decision) string {
	label := d.Requirement.String()
	if l, ok := p.catalog.Ladder(d.Milestone); ok {
		label = l.Label
	}
	if rest, ok := strings.CutPrefix(label, "HW "); ok {
		return "Homework " + rest
	}
	return label
}

// dueDate returns the date a message refers to, if any.
func dueDate(d nudge.Decision, s *nudge.Snapshot) timeutil.Date {
	switch d.Milestone {
	case nudge.MilestoneFinal:
		return s.Calendar.FinalDue
	case nudge.MilestoneLastTry:
		if s.Calendar.LastTryDeadline.IsZero() {
			return s.Calendar.FinalDue
		}
		return s.Calendar.LastTryDeadline
	case nudge.MilestoneBlocked:
		return s.Calendar.WithdrawDeadline
	}
	if d.Code == nudge.CodeRE3Congrats {
		return s.Calendar.FinalDue
	}
	for u := 1; u <= nudge.UnitCount; u++ {
		if d.Milestone == nudge.ReviewMilestone(u) {
			return s.Calendar.ReviewDue[u-1]
		}
	}
	return timeutil.Date{}
}

// DuePhrase describes a date relative to today: "today" or "tomorrow", the
// weekday name within the coming week, and the full date otherwise.
func DuePhrase(due, today timeutil.Date) string {
	days := today.DaysUntil(due)
	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days > 1 && days < 7:
		return due.WeekdayName()
	default:
		return due.Format(timeutil.FormatWeekdayMonthDay)
	}
}

var ordinals = []string{"first", "second", "third", "fourth", "fifth"}

func ordinal(position int) string {
	if position >= 1 && position <= len(ordinals) {
		return ordinals[position-1]
	}
	return fmt.Sprintf("#%d", position)
}
