package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alem-hub/course-nudge/internal/domain/nudge"
)

// OutboxPending is the status of a message the relay has not sent yet. The
// relay owns the later transitions.
const OutboxPending = "pending"

// OutboxRepository stores rendered messages for the mail relay to pick up.
type OutboxRepository struct {
	conn *Connection
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(conn *Connection) *OutboxRepository {
	return &OutboxRepository{conn: conn}
}

// Enqueue stores a rendered content decision and returns its message ID.
func (r *OutboxRepository) Enqueue(ctx context.Context, d nudge.Decision) (uuid.UUID, error) {
	if !d.Delivers() {
		return uuid.Nil, fmt.Errorf("outbox: decision kind %s has no message", d.Kind)
	}

	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	id := uuid.New()
	query := `
		INSERT INTO nudge_outbox (id, run_id, student_id, course_id, course_position, milestone, code, terminal, subject, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.conn.Exec(ctx, query,
		id, runIDArg(ctx), d.StudentID, d.CourseID, d.CoursePosition,
		string(d.Milestone), d.Code.String(), d.Terminal, d.Subject, d.Body,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue message: %w", err)
	}
	return id, nil
}

// CountPending returns the number of messages the relay has not picked up.
func (r *OutboxRepository) CountPending(ctx context.Context) (int, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var n int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM nudge_outbox WHERE status = $1`, OutboxPending).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return n, nil
}
