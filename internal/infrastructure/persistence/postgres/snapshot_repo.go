package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/course-nudge/internal/domain/nudge"
	"github.com/alem-hub/course-nudge/internal/domain/shared"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// Objective and calendar kinds as stored in the kind columns.
const (
	kindEntrance     = "entrance"
	kindSkillsReview = "skills_review"
	kindHomework     = "homework"
	kindReviewExam   = "review_exam"
	kindUnitExam     = "unit_exam"
	kindFinal        = "final"
)

// SnapshotRepository implements nudge.SnapshotRepository for PostgreSQL.
type SnapshotRepository struct {
	conn *Connection
	// loc turns activity timestamps into campus dates.
	loc *time.Location
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(conn *Connection, loc *time.Location) *SnapshotRepository {
	if loc == nil {
		loc = timeutil.DefaultLocation
	}
	return &SnapshotRepository{conn: conn, loc: loc}
}

// ListActive returns the current course of every student in the current term:
// the uncompleted registration with the lowest course index.
func (r *SnapshotRepository) ListActive(ctx context.Context) ([]nudge.StudentCourse, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT DISTINCT ON (r.student_id) r.student_id, r.course_id, r.course_index
		FROM registrations r
		JOIN terms t ON t.id = r.term_id
		WHERE t.is_current AND NOT r.completed
		ORDER BY r.student_id, r.course_index
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active registrations: %w", err)
	}

	pairs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (nudge.StudentCourse, error) {
		var sc nudge.StudentCourse
		err := row.Scan(&sc.StudentID, &sc.CourseID, &sc.CourseIndex)
		return sc, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan active registrations: %w", err)
	}
	return pairs, nil
}

// Get reads one student's progress in one course in a single read-only
// transaction so the snapshot is consistent.
func (r *SnapshotRepository) Get(ctx context.Context, studentID, courseID string, today timeutil.Date) (*nudge.Snapshot, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var in snapshotRows
	err := r.conn.WithTx(ctx, SnapshotTxOptions(), func(tx pgx.Tx) error {
		var err error
		if in.reg, err = r.getRegistration(ctx, tx, studentID, courseID); err != nil {
			return err
		}
		if in.calendar, err = r.getCalendar(ctx, tx, in.reg, courseID); err != nil {
			return err
		}
		if in.objectives, err = r.getObjectives(ctx, tx, studentID, courseID); err != nil {
			return err
		}
		if err = r.getScores(ctx, tx, studentID, courseID, &in); err != nil {
			return err
		}
		return r.getActivity(ctx, tx, studentID, courseID, &in)
	})
	if err != nil {
		return nil, err
	}

	in.studentID, in.courseID = studentID, courseID
	return assembleSnapshot(in, today, r.loc), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Row types
// ─────────────────────────────────────────────────────────────────────────────

type registrationRow struct {
	termID           string
	section          string
	pace             int
	courseIndex      int
	lastCourse       bool
	prereqMet        bool
	started          bool
	doNotDisturb     bool
	termStart        time.Time
	withdrawDeadline time.Time
	lastTry          *time.Time
	lastTryCount     int
}

type calendarRow struct {
	kind  string
	unit  int
	idx   int
	dueOn time.Time
}

type objectiveRow struct {
	kind             string
	unit             int
	idx              int
	attempts         int
	lastAttempt      *time.Time
	passed           bool
	onTimePoints     int
	attemptsAfterDue int
}

type snapshotRows struct {
	studentID    string
	courseID     string
	reg          registrationRow
	calendar     []calendarRow
	objectives   []objectiveRow
	totalScore   *int
	maxPossible  *int
	lastActivity *time.Time
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

func (r *SnapshotRepository) getRegistration(ctx context.Context, q Querier, studentID, courseID string) (registrationRow, error) {
	query := `
		SELECT r.term_id, r.section, r.pace, r.course_index, r.last_course,
			   r.prereq_met, r.started, r.do_not_disturb,
			   t.starts_on, t.withdraw_deadline, t.final_last_try, t.final_last_try_count
		FROM registrations r
		JOIN terms t ON t.id = r.term_id
		WHERE t.is_current AND r.student_id = $1 AND r.course_id = $2
	`

	var reg registrationRow
	err := q.QueryRow(ctx, query, studentID, courseID).Scan(
		&reg.termID, &reg.section, &reg.pace, &reg.courseIndex, &reg.lastCourse,
		&reg.prereqMet, &reg.started, &reg.doNotDisturb,
		&reg.termStart, &reg.withdrawDeadline, &reg.lastTry, &reg.lastTryCount,
	)
	if err != nil {
		if IsNoRows(err) {
			return reg, shared.ErrSnapshotNotFound
		}
		return reg, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

func (r *SnapshotRepository) getCalendar(ctx context.Context, q Querier, reg registrationRow, courseID string) ([]calendarRow, error) {
	query := `
		SELECT kind, unit, idx, due_on
		FROM course_calendars
		WHERE term_id = $1 AND course_id = $2 AND pace = $3 AND course_index = $4
	`

	rows, err := q.Query(ctx, query, reg.termID, courseID, reg.pace, reg.courseIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (calendarRow, error) {
		var c calendarRow
		err := row.Scan(&c.kind, &c.unit, &c.idx, &c.dueOn)
		return c, err
	})
}

func (r *SnapshotRepository) getObjectives(ctx context.Context, q Querier, studentID, courseID string) ([]objectiveRow, error) {
	query := `
		SELECT kind, unit, idx, attempts, last_attempt, passed, on_time_points, attempts_after_due
		FROM objective_progress
		WHERE student_id = $1 AND course_id = $2
	`

	rows, err := q.Query(ctx, query, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get objectives: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (objectiveRow, error) {
		var o objectiveRow
		err := row.Scan(&o.kind, &o.unit, &o.idx, &o.attempts, &o.lastAttempt,
			&o.passed, &o.onTimePoints, &o.attemptsAfterDue)
		return o, err
	})
}

func (r *SnapshotRepository) getScores(ctx context.Context, q Querier, studentID, courseID string, in *snapshotRows) error {
	query := `SELECT total_score, max_possible_score FROM course_scores WHERE student_id = $1 AND course_id = $2`

	err := q.QueryRow(ctx, query, studentID, courseID).Scan(&in.totalScore, &in.maxPossible)
	if err != nil && !IsNoRows(err) {
		return fmt.Errorf("failed to get scores: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) getActivity(ctx context.Context, q Querier, studentID, courseID string, in *snapshotRows) error {
	query := `SELECT last_activity_at FROM student_activity WHERE student_id = $1 AND course_id = $2`

	err := q.QueryRow(ctx, query, studentID, courseID).Scan(&in.lastActivity)
	if err != nil && !IsNoRows(err) {
		return fmt.Errorf("failed to get activity: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Assembly
// ─────────────────────────────────────────────────────────────────────────────

// assembleSnapshot maps stored rows onto a snapshot. Missing scores stay nil
// so the engine reports them; a student with no recorded activity counts from
// the start of the term.
func assembleSnapshot(in snapshotRows, today timeutil.Date, loc *time.Location) *nudge.Snapshot {
	reg := in.reg
	s := &nudge.Snapshot{
		StudentID:        in.studentID,
		CourseID:         in.courseID,
		Section:          reg.section,
		CourseIndex:      reg.courseIndex,
		Pace:             reg.pace,
		LastCourse:       reg.lastCourse,
		DoNotDisturb:     reg.doNotDisturb,
		PrereqMet:        reg.prereqMet,
		Started:          reg.started,
		TotalScore:       in.totalScore,
		MaxPossibleScore: in.maxPossible,
	}

	s.Calendar.WithdrawDeadline = dbDate(reg.withdrawDeadline)
	s.Calendar.LastTryDeadline = dbDatePtr(reg.lastTry)
	if reg.lastTry != nil {
		s.Calendar.LastTryCount = reg.lastTryCount
	}

	for _, c := range in.calendar {
		due := dbDate(c.dueOn)
		switch {
		case c.kind == kindEntrance:
			s.Calendar.EntranceDue = due
		case c.kind == kindSkillsReview:
			s.Calendar.SkillsReviewDue = due
		case c.kind == kindFinal:
			s.Calendar.FinalDue = due
		case !validUnit(c.unit):
			continue
		case c.kind == kindReviewExam:
			s.Calendar.ReviewDue[c.unit-1] = due
		case c.kind == kindUnitExam:
			s.Calendar.UnitExamDue[c.unit-1] = due
		case c.kind == kindHomework && validHomework(c.idx):
			s.Calendar.HomeworkDue[c.unit-1][c.idx-1] = due
		}
	}

	for _, o := range in.objectives {
		obj := nudge.Objective{
			Attempts:    o.attempts,
			LastAttempt: dbDatePtr(o.lastAttempt),
			Passed:      o.passed,
		}
		switch {
		case o.kind == kindEntrance:
			s.Entrance = obj
		case o.kind == kindFinal:
			s.Final = obj
			s.FinalAttemptsAfterDue = o.attemptsAfterDue
		case o.kind == kindSkillsReview:
			s.Units[0].SkillsReview = obj
		case !validUnit(o.unit):
			continue
		case o.kind == kindReviewExam:
			s.Units[o.unit-1].ReviewExam = obj
			s.Units[o.unit-1].ReviewOnTimePoints = o.onTimePoints
		case o.kind == kindUnitExam:
			s.Units[o.unit-1].UnitExam = obj
		case o.kind == kindHomework && validHomework(o.idx):
			s.Units[o.unit-1].Homework[o.idx-1] = obj
		}
	}

	since := dbDate(reg.termStart)
	if in.lastActivity != nil {
		since = timeutil.DateOf(*in.lastActivity, loc)
	}
	days := today.DaysSince(since)
	if days < 0 {
		days = 0
	}
	s.DaysSinceLastActivity = &days

	return s
}

func validUnit(u int) bool     { return u >= 1 && u <= nudge.UnitCount }
func validHomework(i int) bool { return i >= 1 && i <= nudge.HomeworkPerUnit }

// dbDate converts a DATE column, which pgx scans as UTC midnight.
func dbDate(t time.Time) timeutil.Date {
	return timeutil.DateOf(t, time.UTC)
}

func dbDatePtr(t *time.Time) timeutil.Date {
	if t == nil {
		return timeutil.Date{}
	}
	return dbDate(*t)
}
