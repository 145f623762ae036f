// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/alem-hub/course-nudge/internal/domain/nudge"
	"github.com/alem-hub/course-nudge/internal/domain/shared"
	"github.com/alem-hub/course-nudge/internal/infrastructure/delivery"
	"github.com/alem-hub/course-nudge/pkg/logger"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATE STUDENT COMMAND
// Decides and carries out the single action for one student in one course:
// load progress, run the engine, render, claim the ledger slot and deliver.
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateStudentCommand contains the data to evaluate one student and course.
type EvaluateStudentCommand struct {
	// StudentID is the campus student number.
	StudentID string

	// CourseID is the course being evaluated.
	CourseID string

	// Today is the campus-local date of the run.
	Today timeutil.Date

	// DryRun renders and logs the decision without touching the ledger
	// or the outbox.
	DryRun bool
}

// Validate validates the command.
func (c EvaluateStudentCommand) Validate() error {
	if c.StudentID == "" {
		return shared.MissingField("evaluate_student", "Validate", "student_id")
	}
	if _, err := shared.NewStudentID(c.StudentID); err != nil {
		return fmt.Errorf("evaluate_student: %w", err)
	}
	if c.CourseID == "" {
		return shared.MissingField("evaluate_student", "Validate", "course_id")
	}
	if _, err := shared.NewCourseID(c.CourseID); err != nil {
		return fmt.Errorf("evaluate_student: %w", err)
	}
	if c.Today.IsZero() {
		return shared.MissingField("evaluate_student", "Validate", "today")
	}
	return nil
}

// EvaluateStudentResult contains the outcome of one evaluation.
type EvaluateStudentResult struct {
	// Decision is the engine's decision, rendered when it carries content.
	Decision nudge.Decision

	// Recorded is true when the decision took a new ledger slot.
	Recorded bool

	// Delivered is true when a message was handed to the deliverer.
	Delivered bool

	// Duplicate is true when another run had already recorded the code.
	Duplicate bool

	// DryRun echoes the command flag.
	DryRun bool

	// Duration is how long the evaluation took.
	Duration time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Ledger is the ledger store used by the command. Release undoes a claim
// whose delivery failed, so the next run can try the code again.
type Ledger interface {
	nudge.LedgerRepository
	Release(ctx context.Context, d nudge.Decision) error
}

// Locker serializes work on one student across workers.
type Locker interface {
	Lock(ctx context.Context, studentID string) (release func(), err error)
}

// Renderer fills in the subject and body of content decisions.
type Renderer interface {
	Render(ctx context.Context, d nudge.Decision, s *nudge.Snapshot, today timeutil.Date) (nudge.Decision, error)
}

// noLock is used when no Locker is configured, e.g. single-process CLI runs.
type noLock struct{}

func (noLock) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateStudentHandler handles the EvaluateStudentCommand.
type EvaluateStudentHandler struct {
	snapshots nudge.SnapshotRepository
	ledger    Ledger
	engine    *nudge.Engine
	renderer  Renderer
	deliverer delivery.Deliverer
	dryRun    delivery.Deliverer
	locker    Locker
	log       *logger.Logger
}

// EvaluateStudentDeps groups the collaborators of the handler.
type EvaluateStudentDeps struct {
	Snapshots nudge.SnapshotRepository
	Ledger    Ledger
	Engine    *nudge.Engine
	Renderer  Renderer
	Deliverer delivery.Deliverer
	// Locker may be nil.
	Locker Locker
	Log    *logger.Logger
}

// NewEvaluateStudentHandler creates a new EvaluateStudentHandler.
func NewEvaluateStudentHandler(deps EvaluateStudentDeps) *EvaluateStudentHandler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	var locker Locker = noLock{}
	if deps.Locker != nil {
		locker = deps.Locker
	}

	return &EvaluateStudentHandler{
		snapshots: deps.Snapshots,
		ledger:    deps.Ledger,
		engine:    deps.Engine,
		renderer:  deps.Renderer,
		deliverer: deps.Deliverer,
		dryRun:    delivery.NewLogDeliverer(log),
		locker:    locker,
		log:       log.With(logger.Component("nudge")),
	}
}

// Handle executes the evaluate student command.
//
// A content decision is recorded in the ledger before it is delivered: the
// insert is the claim that keeps two runs from sending the same code. If
// delivery then fails the claim is released.
func (h *EvaluateStudentHandler) Handle(ctx context.Context, cmd EvaluateStudentCommand) (result *EvaluateStudentResult, err error) {
	start := time.Now()

	ctx, span := otel.Tracer("course-nudge/command").Start(ctx, "EvaluateStudent")
	span.SetAttributes(
		attribute.String("student.id", cmd.StudentID),
		attribute.String("course.id", cmd.CourseID),
		attribute.Bool("dry_run", cmd.DryRun),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if result != nil {
			span.SetAttributes(
				attribute.String("decision.kind", result.Decision.Kind.String()),
				attribute.String("decision.code", result.Decision.Code.String()),
			)
		}
		span.End()
	}()

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("evaluate_student: validation failed: %w", err)
	}

	log := h.log.With(logger.StudentID(cmd.StudentID), logger.CourseID(cmd.CourseID))
	if runID, ok := shared.RunIDFromContext(ctx); ok {
		log = log.WithRunID(runID.String())
	}

	release, err := h.locker.Lock(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("evaluate_student: lock: %w", err)
	}
	defer release()

	snapshot, err := h.snapshots.Get(ctx, cmd.StudentID, cmd.CourseID, cmd.Today)
	if err != nil {
		return nil, fmt.Errorf("evaluate_student: load snapshot: %w", err)
	}

	ledger, err := h.ledger.Load(ctx, cmd.StudentID, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("evaluate_student: load ledger: %w", err)
	}

	d, err := h.engine.Evaluate(snapshot, ledger, cmd.Today)
	if err != nil {
		return nil, fmt.Errorf("evaluate_student: evaluate: %w", err)
	}

	result = &EvaluateStudentResult{Decision: d, DryRun: cmd.DryRun}
	defer func() {
		if result != nil {
			result.Duration = time.Since(start)
		}
	}()

	switch d.Kind {
	case nudge.DecisionNone:
		log.Debug("no message", logger.String("reason", d.Reason))
		return result, nil

	case nudge.DecisionLogOnly:
		log.Info(fmt.Sprintf("Student %s %s", d.StudentID, d.Reason),
			logger.Code(d.Code.String()),
			logger.Milestone(d.Milestone.String()),
		)
		return result, nil
	}

	if d.Delivers() {
		d, err = h.renderer.Render(ctx, d, snapshot, cmd.Today)
		if err != nil {
			return nil, fmt.Errorf("evaluate_student: render: %w", err)
		}
		result.Decision = d
	}

	if cmd.DryRun {
		if d.Delivers() {
			if err := h.dryRun.Deliver(ctx, d); err != nil {
				return nil, fmt.Errorf("evaluate_student: dry run: %w", err)
			}
		} else {
			log.Info("silent rung (dry run)", logger.Code(d.Code.String()))
		}
		return result, nil
	}

	claimed, err := h.ledger.Append(ctx, d, cmd.Today)
	if err != nil {
		return nil, fmt.Errorf("evaluate_student: record %s: %w", d.Code, err)
	}
	if !claimed {
		result.Duplicate = true
		log.Warn("code already recorded, skipping", logger.Code(d.Code.String()))
		return result, nil
	}
	result.Recorded = true

	if !d.Delivers() {
		log.Debug("silent rung recorded", logger.Code(d.Code.String()))
		return result, nil
	}

	if err := h.deliverer.Deliver(ctx, d); err != nil {
		if relErr := h.ledger.Release(ctx, d); relErr != nil {
			log.Error("failed to release ledger claim",
				logger.Code(d.Code.String()),
				logger.Err(relErr),
			)
		}
		result.Recorded = false
		return nil, fmt.Errorf("evaluate_student: deliver %s: %w", d.Code, err)
	}
	result.Delivered = true

	log.Info("message queued",
		logger.Code(d.Code.String()),
		logger.Milestone(d.Milestone.String()),
		logger.String("reason", d.Reason),
	)
	return result, nil
}
