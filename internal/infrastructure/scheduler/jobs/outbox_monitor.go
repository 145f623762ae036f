package jobs

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/alem-hub/course-nudge/pkg/logger"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// OUTBOX MONITOR JOB
// ══════════════════════════════════════════════════════════════════════════════

// PendingCounter counts undelivered outbox messages.
type PendingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

// SentCounter counts ledger rows recorded on a day.
type SentCounter interface {
	CountSentOn(ctx context.Context, day timeutil.Date) (delivered, silent int, err error)
}

// OutboxSnapshot is what the monitor saw on its latest check.
type OutboxSnapshot struct {
	Pending        int    `json:"pending"`
	DeliveredToday int    `json:"delivered_today"`
	SilentToday    int    `json:"silent_today"`
	Date           string `json:"date"`
	Backlogged     bool   `json:"backlogged"`
}

// OutboxMonitorJob watches the hand-off to the mail relay. A growing pending
// count means the relay has stopped draining the outbox.
type OutboxMonitorJob struct {
	outbox    PendingCounter
	ledger    SentCounter
	today     func() timeutil.Date
	threshold int
	log       *logger.Logger

	last atomic.Pointer[OutboxSnapshot]
}

// NewOutboxMonitorJob creates the monitor. threshold is the pending count
// above which a warning is logged.
func NewOutboxMonitorJob(outbox PendingCounter, ledger SentCounter, today func() timeutil.Date, threshold int, log *logger.Logger) *OutboxMonitorJob {
	if log == nil {
		log = logger.Nop()
	}
	if threshold <= 0 {
		threshold = 500
	}
	return &OutboxMonitorJob{
		outbox:    outbox,
		ledger:    ledger,
		today:     today,
		threshold: threshold,
		log:       log.With(logger.Component("outbox_monitor")),
	}
}

// Name returns the job name.
func (j *OutboxMonitorJob) Name() string { return "outbox_monitor" }

// Description returns a human-readable description.
func (j *OutboxMonitorJob) Description() string {
	return "Reports the outbox backlog and today's ledger counts"
}

// Last returns the latest check, or nil before the first run.
func (j *OutboxMonitorJob) Last() *OutboxSnapshot { return j.last.Load() }

// Run checks the outbox once.
func (j *OutboxMonitorJob) Run(ctx context.Context) error {
	pending, err := j.outbox.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("outbox monitor: count pending: %w", err)
	}

	day := j.today()
	delivered, silent, err := j.ledger.CountSentOn(ctx, day)
	if err != nil {
		return fmt.Errorf("outbox monitor: count sent: %w", err)
	}

	snap := &OutboxSnapshot{
		Pending:        pending,
		DeliveredToday: delivered,
		SilentToday:    silent,
		Date:           day.String(),
		Backlogged:     pending > j.threshold,
	}
	j.last.Store(snap)

	fields := []logger.Field{
		logger.Int("pending", pending),
		logger.Int("delivered_today", delivered),
		logger.Int("silent_today", silent),
	}
	if snap.Backlogged {
		j.log.Warn("outbox backlog above threshold", append(fields, logger.Int("threshold", j.threshold))...)
	} else {
		j.log.Debug("outbox checked", fields...)
	}
	return nil
}
