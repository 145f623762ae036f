// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/course-nudge/internal/domain/nudge"
	"github.com/alem-hub/course-nudge/internal/domain/shared"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREVIEW DECISION QUERY
// Shows what the engine would do for one student today, without recording or
// sending anything. Used by the preview endpoint and the CLI.
// ══════════════════════════════════════════════════════════════════════════════

// PreviewDecisionQuery contains the parameters of a preview.
type PreviewDecisionQuery struct {
	StudentID string
	CourseID  string

	// Today defaults to the campus date when zero.
	Today timeutil.Date
}

// Validate checks the query parameters.
func (q PreviewDecisionQuery) Validate() error {
	if q.StudentID == "" {
		return shared.MissingField("preview", "Validate", "student_id")
	}
	if q.CourseID == "" {
		return shared.MissingField("preview", "Validate", "course_id")
	}
	return nil
}

// DecisionDTO is the preview result.
type DecisionDTO struct {
	StudentID      string `json:"student_id"`
	CourseID       string `json:"course_id"`
	Date           string `json:"date"`
	Kind           string `json:"kind"`
	CoursePosition int    `json:"course_position"`
	Milestone      string `json:"milestone,omitempty"`
	Code           string `json:"code,omitempty"`
	Terminal       bool   `json:"terminal,omitempty"`
	Requirement    string `json:"requirement,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Subject        string `json:"subject,omitempty"`
	Body           string `json:"body,omitempty"`

	// Ledger lists the codes already recorded, oldest first.
	Ledger []LedgerEntryDTO `json:"ledger"`
}

// LedgerEntryDTO is one recorded code.
type LedgerEntryDTO struct {
	Code   string `json:"code"`
	SentOn string `json:"sent_on"`
	Silent bool   `json:"silent,omitempty"`
}

// Renderer fills in the subject and body of content decisions.
type Renderer interface {
	Render(ctx context.Context, d nudge.Decision, s *nudge.Snapshot, today timeutil.Date) (nudge.Decision, error)
}

// PreviewDecisionHandler handles PreviewDecisionQuery.
type PreviewDecisionHandler struct {
	snapshots nudge.SnapshotRepository
	ledger    nudge.LedgerRepository
	engine    *nudge.Engine
	renderer  Renderer
	today     func() timeutil.Date
}

// NewPreviewDecisionHandler creates a new PreviewDecisionHandler. today
// supplies the campus date for queries that leave it empty.
func NewPreviewDecisionHandler(
	snapshots nudge.SnapshotRepository,
	ledger nudge.LedgerRepository,
	engine *nudge.Engine,
	renderer Renderer,
	today func() timeutil.Date,
) *PreviewDecisionHandler {
	return &PreviewDecisionHandler{
		snapshots: snapshots,
		ledger:    ledger,
		engine:    engine,
		renderer:  renderer,
		today:     today,
	}
}

// Handle runs the engine for one student and returns the rendered decision.
func (h *PreviewDecisionHandler) Handle(ctx context.Context, q PreviewDecisionQuery) (*DecisionDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("preview_decision: %w", err)
	}
	today := q.Today
	if today.IsZero() {
		today = h.today()
	}

	snapshot, err := h.snapshots.Get(ctx, q.StudentID, q.CourseID, today)
	if err != nil {
		return nil, fmt.Errorf("preview_decision: load snapshot: %w", err)
	}
	ledger, err := h.ledger.Load(ctx, q.StudentID, q.CourseID)
	if err != nil {
		return nil, fmt.Errorf("preview_decision: load ledger: %w", err)
	}

	d, err := h.engine.Evaluate(snapshot, ledger, today)
	if err != nil {
		return nil, fmt.Errorf("preview_decision: evaluate: %w", err)
	}
	if d.Delivers() {
		if d, err = h.renderer.Render(ctx, d, snapshot, today); err != nil {
			return nil, fmt.Errorf("preview_decision: render: %w", err)
		}
	}

	return toDTO(d, ledger, q, today), nil
}

func toDTO(d nudge.Decision, ledger nudge.Ledger, q PreviewDecisionQuery, today timeutil.Date) *DecisionDTO {
	dto := &DecisionDTO{
		StudentID:      q.StudentID,
		CourseID:       q.CourseID,
		Date:           today.String(),
		Kind:           d.Kind.String(),
		CoursePosition: d.CoursePosition,
		Code:           d.Code.String(),
		Terminal:       d.Terminal,
		Reason:         d.Reason,
		Subject:        d.Subject,
		Body:           d.Body,
		Ledger:         make([]LedgerEntryDTO, 0, ledger.Len()),
	}
	if d.Milestone != "" {
		dto.Milestone = d.Milestone.String()
	}
	if d.Requirement != (nudge.Requirement{}) {
		dto.Requirement = d.Requirement.String()
	}
	for _, e := range ledger.Entries() {
		dto.Ledger = append(dto.Ledger, LedgerEntryDTO{
			Code:   e.Code.String(),
			SentOn: e.SentOn.String(),
			Silent: e.Silent,
		})
	}
	return dto
}
