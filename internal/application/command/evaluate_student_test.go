package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-nudge/internal/domain/nudge"
	"github.com/alem-hub/course-nudge/internal/domain/shared"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

var today = timeutil.MustParseDate("2026-10-14") // Wednesday

const (
	studentID = "830000001"
	courseID  = "MATH0300"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeSnapshots struct {
	snapshot *nudge.Snapshot
	err      error
}

func (f *fakeSnapshots) ListActive(context.Context) ([]nudge.StudentCourse, error) {
	return []nudge.StudentCourse{{StudentID: studentID, CourseID: courseID}}, nil
}

func (f *fakeSnapshots) Get(_ context.Context, _, _ string, _ timeutil.Date) (*nudge.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	entries   []nudge.LedgerEntry
	appendErr error
	released  []nudge.Code
}

func (f *fakeLedger) Load(context.Context, string, string) (nudge.Ledger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return nudge.NewLedger(f.entries...), nil
}

func (f *fakeLedger) Append(_ context.Context, d nudge.Decision, sentOn timeutil.Date) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return false, f.appendErr
	}
	for _, e := range f.entries {
		if e.Code == d.Code {
			return false, nil
		}
	}
	f.entries = append(f.entries, d.Entry(sentOn))
	return true, nil
}

func (f *fakeLedger) Release(_ context.Context, d nudge.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, d.Code)
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.Code != d.Code {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(_ context.Context, d nudge.Decision, _ *nudge.Snapshot, _ timeutil.Date) (nudge.Decision, error) {
	d.Subject = "subject " + d.Code.String()
	d.Body = "body"
	return d, nil
}

type fakeDeliverer struct {
	delivered []nudge.Decision
	err       error
}

func (f *fakeDeliverer) Deliver(_ context.Context, d nudge.Decision) error {
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, d)
	return nil
}

type fakeLocker struct {
	err      error
	released int
}

func (f *fakeLocker) Lock(context.Context, string) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	return func() { f.released++ }, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

func intPtr(v int) *int { return &v }

// firstCourse is a student in the first course of a two-course pace with
// nothing passed and all due dates ahead.
func firstCourse() *nudge.Snapshot {
	s := &nudge.Snapshot{
		StudentID:             studentID,
		CourseID:              courseID,
		Section:               "801",
		Pace:                  2,
		PrereqMet:             true,
		Started:               true,
		TotalScore:            intPtr(0),
		MaxPossibleScore:      intPtr(72),
		DaysSinceLastActivity: intPtr(5),
	}
	s.Calendar.ReviewDue = [nudge.UnitCount]timeutil.Date{
		timeutil.MustParseDate("2026-11-02"),
		timeutil.MustParseDate("2026-11-09"),
		timeutil.MustParseDate("2026-11-16"),
		timeutil.MustParseDate("2026-11-23"),
	}
	s.Calendar.FinalDue = timeutil.MustParseDate("2026-11-30")
	s.Calendar.LastTryDeadline = timeutil.MustParseDate("2026-12-02")
	s.Calendar.LastTryCount = 1
	s.Calendar.WithdrawDeadline = timeutil.MustParseDate("2026-11-20")
	return s
}

// lateOnEntrance is a second-course student whose entrance exam is overdue.
func lateOnEntrance() *nudge.Snapshot {
	s := firstCourse()
	s.CourseIndex = 1
	s.Calendar.EntranceDue = today.AddDays(-3)
	return s
}

type harness struct {
	ledger    *fakeLedger
	deliverer *fakeDeliverer
	locker    *fakeLocker
	handler   *EvaluateStudentHandler
}

func newHarness(t *testing.T, s *nudge.Snapshot, entries ...nudge.LedgerEntry) *harness {
	t.Helper()
	engine, err := nudge.NewEngine(nudge.DefaultRules())
	require.NoError(t, err)

	h := &harness{
		ledger:    &fakeLedger{entries: entries},
		deliverer: &fakeDeliverer{},
		locker:    &fakeLocker{},
	}
	h.handler = NewEvaluateStudentHandler(EvaluateStudentDeps{
		Snapshots: &fakeSnapshots{snapshot: s},
		Ledger:    h.ledger,
		Engine:    engine,
		Renderer:  fakeRenderer{},
		Deliverer: h.deliverer,
		Locker:    h.locker,
	})
	return h
}

func evaluate(h *harness) (*EvaluateStudentResult, error) {
	return h.handler.Handle(context.Background(), EvaluateStudentCommand{
		StudentID: studentID,
		CourseID:  courseID,
		Today:     today,
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestEvaluateStudentCommand_Validate(t *testing.T) {
	valid := EvaluateStudentCommand{StudentID: studentID, CourseID: courseID, Today: today}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		edit func(c *EvaluateStudentCommand)
	}{
		{"missing student", func(c *EvaluateStudentCommand) { c.StudentID = "" }},
		{"malformed student", func(c *EvaluateStudentCommand) { c.StudentID = "abc" }},
		{"missing course", func(c *EvaluateStudentCommand) { c.CourseID = "" }},
		{"malformed course", func(c *EvaluateStudentCommand) { c.CourseID = "math" }},
		{"missing date", func(c *EvaluateStudentCommand) { c.Today = timeutil.Date{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.edit(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestEvaluateStudentHandler_ContentIsRecordedThenDelivered(t *testing.T) {
	h := newHarness(t, firstCourse())

	res, err := evaluate(h)
	require.NoError(t, err)

	assert.Equal(t, nudge.DecisionContent, res.Decision.Kind)
	assert.Equal(t, nudge.Code("WELCus00"), res.Decision.Code)
	assert.True(t, res.Recorded)
	assert.True(t, res.Delivered)
	require.Len(t, h.deliverer.delivered, 1)
	assert.Equal(t, "subject WELCus00", h.deliverer.delivered[0].Subject)

	require.Len(t, h.ledger.entries, 1)
	assert.False(t, h.ledger.entries[0].Silent)
	assert.Equal(t, 1, h.locker.released)

	// The welcome is sent once.
	res, err = evaluate(h)
	require.NoError(t, err)
	assert.NotEqual(t, nudge.MilestoneWelcome, res.Decision.Milestone)
	assert.Len(t, h.deliverer.delivered, 1)
}

func TestEvaluateStudentHandler_SilentRungIsRecordedOnly(t *testing.T) {
	h := newHarness(t, lateOnEntrance())

	res, err := evaluate(h)
	require.NoError(t, err)

	assert.Equal(t, nudge.DecisionSilent, res.Decision.Kind)
	assert.True(t, res.Recorded)
	assert.False(t, res.Delivered)
	assert.Empty(t, h.deliverer.delivered)
	require.Len(t, h.ledger.entries, 1)
	assert.True(t, h.ledger.entries[0].Silent)
	assert.Equal(t, nudge.Code("USRRus00"), h.ledger.entries[0].Code)
}

func TestEvaluateStudentHandler_NoneAndLogOnlyTouchNothing(t *testing.T) {
	t.Run("do not disturb", func(t *testing.T) {
		s := firstCourse()
		s.DoNotDisturb = true
		h := newHarness(t, s)

		res, err := evaluate(h)
		require.NoError(t, err)
		assert.True(t, res.Decision.IsNone())
		assert.Empty(t, h.ledger.entries)
		assert.Empty(t, h.deliverer.delivered)
	})

	t.Run("stuck student", func(t *testing.T) {
		var entries []nudge.LedgerEntry
		for _, c := range []nudge.Code{"USRRus00", "USRRus01", "USRRus02", "USRRus03", "USRRus99"} {
			entries = append(entries, nudge.LedgerEntry{Code: c, SentOn: today.AddDays(-20)})
		}
		h := newHarness(t, lateOnEntrance(), entries...)

		res, err := evaluate(h)
		require.NoError(t, err)
		assert.Equal(t, nudge.DecisionLogOnly, res.Decision.Kind)
		assert.Equal(t, "stuck on Entrance Exam", res.Decision.Reason)
		assert.Len(t, h.ledger.entries, 5)
		assert.Empty(t, h.deliverer.delivered)
	})
}

func TestEvaluateStudentHandler_DeliveryFailureReleasesClaim(t *testing.T) {
	h := newHarness(t, firstCourse())
	h.deliverer.err = errors.New("outbox unavailable")

	res, err := evaluate(h)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []nudge.Code{"WELCus00"}, h.ledger.released)
	assert.Empty(t, h.ledger.entries)

	// The next run tries again.
	h.deliverer.err = nil
	res, err = evaluate(h)
	require.NoError(t, err)
	assert.True(t, res.Delivered)
}

func TestEvaluateStudentHandler_LostClaimSkipsDelivery(t *testing.T) {
	h := newHarness(t, firstCourse())

	// Another worker recorded the code between our load and append.
	h.handler.ledger = &racingLedger{fakeLedger: h.ledger}

	res, err := evaluate(h)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.False(t, res.Recorded)
	assert.Empty(t, h.deliverer.delivered)
}

// racingLedger loads an empty ledger but reports every append as taken.
type racingLedger struct {
	*fakeLedger
}

func (r *racingLedger) Append(context.Context, nudge.Decision, timeutil.Date) (bool, error) {
	return false, nil
}

func TestEvaluateStudentHandler_DryRunWritesNothing(t *testing.T) {
	h := newHarness(t, firstCourse())

	res, err := h.handler.Handle(context.Background(), EvaluateStudentCommand{
		StudentID: studentID,
		CourseID:  courseID,
		Today:     today,
		DryRun:    true,
	})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, "subject WELCus00", res.Decision.Subject)
	assert.False(t, res.Recorded)
	assert.Empty(t, h.ledger.entries)
	assert.Empty(t, h.deliverer.delivered)
}

func TestEvaluateStudentHandler_Errors(t *testing.T) {
	t.Run("locked student", func(t *testing.T) {
		h := newHarness(t, firstCourse())
		h.locker.err = shared.ErrStudentLocked

		_, err := evaluate(h)
		assert.True(t, shared.IsLocked(err))
		assert.Empty(t, h.ledger.entries)
	})

	t.Run("missing snapshot", func(t *testing.T) {
		h := newHarness(t, nil)
		h.handler.snapshots = &fakeSnapshots{err: shared.ErrSnapshotNotFound}

		_, err := evaluate(h)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("incomplete snapshot", func(t *testing.T) {
		s := firstCourse()
		s.TotalScore = nil
		h := newHarness(t, s)

		_, err := evaluate(h)
		assert.True(t, shared.IsValidation(err))
		assert.Empty(t, h.ledger.entries)
		assert.Equal(t, 1, h.locker.released)
	})

	t.Run("ledger write fails", func(t *testing.T) {
		h := newHarness(t, firstCourse())
		h.ledger.appendErr = errors.New("connection reset")

		_, err := evaluate(h)
		assert.Error(t, err)
		assert.Empty(t, h.deliverer.delivered)
	})
}
