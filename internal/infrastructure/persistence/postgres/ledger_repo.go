package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/course-nudge/internal/domain/nudge"
	"github.com/alem-hub/course-nudge/internal/domain/shared"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements nudge.LedgerRepository for PostgreSQL.
// The sent_messages unique key on (student, course, code) makes Append a
// claim: of two workers racing on the same code only one inserts the row.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

// Load returns the ledger of one student in one course, oldest first.
func (r *LedgerRepository) Load(ctx context.Context, studentID, courseID string) (nudge.Ledger, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT code, sent_on, silent
		FROM sent_messages
		WHERE student_id = $1 AND course_id = $2
		ORDER BY sent_on, id
	`

	rows, err := r.conn.Query(ctx, query, studentID, courseID)
	if err != nil {
		return nudge.Ledger{}, fmt.Errorf("failed to load ledger: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (nudge.LedgerEntry, error) {
		var (
			code   string
			sentOn time.Time
			e      nudge.LedgerEntry
		)
		if err := row.Scan(&code, &sentOn, &e.Silent); err != nil {
			return e, err
		}
		e.Code = nudge.Code(code)
		e.SentOn = dbDate(sentOn)
		return e, nil
	})
	if err != nil {
		return nudge.Ledger{}, fmt.Errorf("failed to scan ledger: %w", err)
	}

	return nudge.NewLedger(entries...), nil
}

// Append records a decision. It reports false when the code was already
// recorded for this student and course.
func (r *LedgerRepository) Append(ctx context.Context, d nudge.Decision, sentOn timeutil.Date) (bool, error) {
	if !d.Records() {
		return false, shared.NewDomainError("ledger", "Append", shared.ErrInvalidInput,
			fmt.Sprintf("decision kind %s is not recorded", d.Kind))
	}
	if !d.Code.IsValid() {
		return false, shared.MissingField("ledger", "Append", "code")
	}

	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO sent_messages (student_id, course_id, code, milestone, sent_on, silent, body, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (student_id, course_id, code) DO NOTHING
	`

	var body *string
	if d.Delivers() {
		body = &d.Body
	}

	tag, err := r.conn.Exec(ctx, query,
		d.StudentID, d.CourseID, d.Code.String(), string(d.Milestone),
		sentOn.Time(), d.Kind == nudge.DecisionSilent, body, runIDArg(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Release removes a claimed entry whose delivery failed, so the next run can
// issue the same code again.
func (r *LedgerRepository) Release(ctx context.Context, d nudge.Decision) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM sent_messages WHERE student_id = $1 AND course_id = $2 AND code = $3`

	if _, err := r.conn.Exec(ctx, query, d.StudentID, d.CourseID, d.Code.String()); err != nil {
		return fmt.Errorf("failed to release ledger entry: %w", err)
	}
	return nil
}

// CountSentOn returns how many entries were recorded on a given day, split by
// silent and delivered.
func (r *LedgerRepository) CountSentOn(ctx context.Context, day timeutil.Date) (delivered, silent int, err error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*) FILTER (WHERE NOT silent), COUNT(*) FILTER (WHERE silent)
		FROM sent_messages
		WHERE sent_on = $1
	`

	if err = r.conn.QueryRow(ctx, query, day.Time()).Scan(&delivered, &silent); err != nil {
		return 0, 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return delivered, silent, nil
}

// runIDArg returns the run ID from ctx as a nullable UUID argument.
func runIDArg(ctx context.Context) *uuid.UUID {
	id, ok := shared.RunIDFromContext(ctx)
	if !ok {
		return nil
	}
	parsed, err := uuid.Parse(id.String())
	if err != nil {
		return nil
	}
	return &parsed
}
