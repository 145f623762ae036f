package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// Migration is one embedded schema change.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations and records them in
// schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator over the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

const migrationTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
)`

func (m *Migrator) ensureTable(ctx context.Context) error {
	if _, err := m.conn.Exec(ctx, migrationTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

// pendingMigrations returns the migrations not in applied, oldest first.
func pendingMigrations(all []Migration, applied map[int]time.Time) []Migration {
	var out []Migration
	for _, mig := range all {
		if _, ok := applied[mig.Version]; !ok {
			out = append(out, mig)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// latestApplied returns the highest applied version, or 0.
func latestApplied(applied map[int]time.Time) int {
	latest := 0
	for v := range applied {
		if v > latest {
			latest = v
		}
	}
	return latest
}

// Pending returns how many embedded migrations are not applied yet. The
// worker must not run against an older schema: snapshot reads and ledger
// claims would fail for every student. Read-only; it never creates the
// tracking table.
func (m *Migrator) Pending(ctx context.Context) (int, error) {
	var exists bool
	err := m.conn.QueryRow(ctx, `SELECT to_regclass('schema_migrations') IS NOT NULL`).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to look up migrations table: %w", err)
	}
	if !exists {
		return len(m.migrations), nil
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}
	return len(pendingMigrations(m.migrations, applied)), nil
}

// Migrate applies all pending migrations and returns how many were applied.
// Each migration runs in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range pendingMigrations(m.migrations, applied) {
		if mig.UpSQL == "" {
			return count, fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}
		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		count++
	}
	return count, nil
}

// Rollback reverts the most recent applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	last := latestApplied(applied)
	if last == 0 {
		return nil
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			target = &m.migrations[i]
			break
		}
	}
	if target == nil || target.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, target.DownSQL); err != nil {
			return fmt.Errorf("failed to roll back migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, last)
		return err
	})
}

// Status lists every embedded migration with its applied time.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_terms_and_courses",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_progress",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_ledger_and_outbox",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: TERMS, COURSES, CALENDARS, REGISTRATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS terms (
    id VARCHAR(20) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    starts_on DATE NOT NULL,
    ends_on DATE NOT NULL,
    withdraw_deadline DATE NOT NULL,
    -- end of the final exam extra-try window; NULL means no extra tries
    final_last_try DATE,
    final_last_try_count INTEGER NOT NULL DEFAULT 1,
    is_current BOOLEAN NOT NULL DEFAULT FALSE,

    CONSTRAINT valid_term_dates CHECK (starts_on <= ends_on),
    CONSTRAINT valid_last_try_count CHECK (final_last_try_count >= 0)
);

-- At most one current term
CREATE UNIQUE INDEX IF NOT EXISTS idx_terms_current ON terms(is_current) WHERE is_current;

CREATE TABLE IF NOT EXISTS courses (
    id VARCHAR(20) PRIMARY KEY,
    display_name VARCHAR(200) NOT NULL
);

-- Due dates per term, course and pace. unit and idx are 0 when not unit-scoped.
CREATE TABLE IF NOT EXISTS course_calendars (
    term_id VARCHAR(20) NOT NULL REFERENCES terms(id) ON DELETE CASCADE,
    course_id VARCHAR(20) NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    pace INTEGER NOT NULL,
    course_index INTEGER NOT NULL DEFAULT 0,
    kind VARCHAR(20) NOT NULL,
    unit INTEGER NOT NULL DEFAULT 0,
    idx INTEGER NOT NULL DEFAULT 0,
    due_on DATE NOT NULL,

    PRIMARY KEY (term_id, course_id, pace, course_index, kind, unit, idx),
    CONSTRAINT valid_calendar_kind CHECK (kind IN (
        'entrance', 'skills_review', 'homework', 'review_exam', 'unit_exam', 'final'
    ))
);

CREATE TABLE IF NOT EXISTS registrations (
    student_id VARCHAR(20) NOT NULL,
    term_id VARCHAR(20) NOT NULL REFERENCES terms(id) ON DELETE CASCADE,
    course_id VARCHAR(20) NOT NULL REFERENCES courses(id),
    section VARCHAR(10) NOT NULL,
    pace INTEGER NOT NULL DEFAULT 1,
    course_index INTEGER NOT NULL DEFAULT 0,
    last_course BOOLEAN NOT NULL DEFAULT FALSE,
    prereq_met BOOLEAN NOT NULL DEFAULT FALSE,
    started BOOLEAN NOT NULL DEFAULT FALSE,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    do_not_disturb BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, term_id, course_id),
    CONSTRAINT valid_pace CHECK (pace >= 1),
    CONSTRAINT valid_course_index CHECK (course_index >= 0 AND course_index < pace)
);

CREATE INDEX IF NOT EXISTS idx_registrations_active ON registrations(term_id) WHERE NOT completed;
`

const migration001Down = `
DROP TABLE IF EXISTS registrations;
DROP TABLE IF EXISTS course_calendars;
DROP TABLE IF EXISTS courses;
DROP TABLE IF EXISTS terms;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS objective_progress (
    student_id VARCHAR(20) NOT NULL,
    course_id VARCHAR(20) NOT NULL REFERENCES courses(id),
    kind VARCHAR(20) NOT NULL,
    unit INTEGER NOT NULL DEFAULT 0,
    idx INTEGER NOT NULL DEFAULT 0,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_attempt DATE,
    passed BOOLEAN NOT NULL DEFAULT FALSE,
    -- review exams: points for passing by the due date
    on_time_points INTEGER NOT NULL DEFAULT 0,
    -- final exam: attempts after the due date
    attempts_after_due INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, course_id, kind, unit, idx),
    CONSTRAINT valid_objective_kind CHECK (kind IN (
        'entrance', 'skills_review', 'homework', 'review_exam', 'unit_exam', 'final'
    )),
    CONSTRAINT valid_attempts CHECK (attempts >= 0 AND attempts_after_due >= 0)
);

CREATE TABLE IF NOT EXISTS course_scores (
    student_id VARCHAR(20) NOT NULL,
    course_id VARCHAR(20) NOT NULL REFERENCES courses(id),
    total_score INTEGER,
    max_possible_score INTEGER,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, course_id)
);

CREATE TABLE IF NOT EXISTS student_activity (
    student_id VARCHAR(20) NOT NULL,
    course_id VARCHAR(20) NOT NULL REFERENCES courses(id),
    last_activity_at TIMESTAMP WITH TIME ZONE NOT NULL,

    PRIMARY KEY (student_id, course_id)
);
`

const migration002Down = `
DROP TABLE IF EXISTS student_activity;
DROP TABLE IF EXISTS course_scores;
DROP TABLE IF EXISTS objective_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: LEDGER AND OUTBOX
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Every code issued to a student for a course. Silent rungs have no body.
CREATE TABLE IF NOT EXISTS sent_messages (
    id BIGSERIAL PRIMARY KEY,
    student_id VARCHAR(20) NOT NULL,
    course_id VARCHAR(20) NOT NULL,
    code VARCHAR(20) NOT NULL,
    milestone VARCHAR(10) NOT NULL,
    sent_on DATE NOT NULL,
    silent BOOLEAN NOT NULL DEFAULT FALSE,
    body TEXT,
    run_id UUID,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE (student_id, course_id, code)
);

CREATE INDEX IF NOT EXISTS idx_sent_messages_student_course ON sent_messages(student_id, course_id);
CREATE INDEX IF NOT EXISTS idx_sent_messages_sent_on ON sent_messages(sent_on DESC);

-- Content decisions waiting for the delivery collaborator.
CREATE TABLE IF NOT EXISTS nudge_outbox (
    id UUID PRIMARY KEY,
    run_id UUID,
    student_id VARCHAR(20) NOT NULL,
    course_id VARCHAR(20) NOT NULL,
    course_position INTEGER NOT NULL,
    milestone VARCHAR(10) NOT NULL,
    code VARCHAR(20) NOT NULL,
    terminal BOOLEAN NOT NULL DEFAULT FALSE,
    subject TEXT NOT NULL,
    body TEXT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    delivered_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_outbox_status CHECK (status IN ('pending', 'delivered', 'failed'))
);

CREATE INDEX IF NOT EXISTS idx_nudge_outbox_pending ON nudge_outbox(created_at) WHERE status = 'pending';
`

const migration003Down = `
DROP TABLE IF EXISTS nudge_outbox;
DROP TABLE IF EXISTS sent_messages;
`
