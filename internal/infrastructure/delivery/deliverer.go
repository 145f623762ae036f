// Package delivery hands rendered content decisions to the mail relay.
// The relay itself, with its own retries and bounce handling, lives outside
// this service; delivery here means a durable hand-off.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/alem-hub/course-nudge/internal/domain/nudge"
	"github.com/alem-hub/course-nudge/pkg/circuitbreaker"
	"github.com/alem-hub/course-nudge/pkg/logger"
	"github.com/alem-hub/course-nudge/pkg/retry"
)

// Deliverer hands one content decision to the outside world.
type Deliverer interface {
	Deliver(ctx context.Context, d nudge.Decision) error
}

// ErrNotContent is returned for decisions that carry no message.
var ErrNotContent = errors.New("delivery: decision has no message")

// ══════════════════════════════════════════════════════════════════════════════
// OUTBOX DELIVERER
// ══════════════════════════════════════════════════════════════════════════════

// OutboxWriter stores a message for the relay. Implemented by
// postgres.OutboxRepository.
type OutboxWriter interface {
	Enqueue(ctx context.Context, d nudge.Decision) (uuid.UUID, error)
}

// OutboxDeliverer writes messages to the outbox table, retrying transient
// database errors and failing fast while the database is unavailable.
type OutboxDeliverer struct {
	outbox  OutboxWriter
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewOutboxDeliverer creates an OutboxDeliverer. isTransient decides which
// write errors are worth another attempt.
func NewOutboxDeliverer(outbox OutboxWriter, isTransient func(error) bool, log *logger.Logger) *OutboxDeliverer {
	log = log.With(logger.Component("delivery"))
	breaker := circuitbreaker.OutboxBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})

	return &OutboxDeliverer{
		outbox:  outbox,
		retrier: retry.DatabaseRetrier(isTransient),
		breaker: breaker,
		log:     log,
	}
}

// Deliver enqueues the message.
func (o *OutboxDeliverer) Deliver(ctx context.Context, d nudge.Decision) error {
	if !d.Delivers() {
		return ErrNotContent
	}

	return o.breaker.Execute(ctx, func(ctx context.Context) error {
		return o.retrier.Do(ctx, func(ctx context.Context) error {
			id, err := o.outbox.Enqueue(ctx, d)
			if err != nil {
				return fmt.Errorf("enqueue %s for %s: %w", d.Code, d.StudentID, err)
			}
			o.log.Debug("message queued",
				logger.String("message_id", id.String()),
				logger.StudentID(d.StudentID),
				logger.CourseID(d.CourseID),
				logger.Code(d.Code.String()),
			)
			return nil
		})
	})
}

// Breaker exposes the circuit breaker state for health reporting.
func (o *OutboxDeliverer) Breaker() *circuitbreaker.CircuitBreaker {
	return o.breaker
}

// ══════════════════════════════════════════════════════════════════════════════
// LOG DELIVERER
// ══════════════════════════════════════════════════════════════════════════════

// LogDeliverer writes messages to the log instead of delivering them.
// Used for dry runs and previews.
type LogDeliverer struct {
	log *logger.Logger
}

// NewLogDeliverer creates a LogDeliverer.
func NewLogDeliverer(log *logger.Logger) *LogDeliverer {
	return &LogDeliverer{log: log.With(logger.Component("delivery"), logger.Bool("dry_run", true))}
}

// Deliver logs the message.
func (l *LogDeliverer) Deliver(_ context.Context, d nudge.Decision) error {
	if !d.Delivers() {
		return ErrNotContent
	}
	l.log.Info("message not sent (dry run)",
		logger.StudentID(d.StudentID),
		logger.CourseID(d.CourseID),
		logger.Int("course_position", d.CoursePosition),
		logger.Milestone(d.Milestone.String()),
		logger.Code(d.Code.String()),
		logger.String("subject", d.Subject),
	)
	return nil
}
