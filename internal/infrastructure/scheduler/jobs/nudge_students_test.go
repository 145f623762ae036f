package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-nudge/internal/application/command"
	"github.com/alem-hub/course-nudge/internal/domain/nudge"
	"github.com/alem-hub/course-nudge/internal/domain/shared"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

var today = timeutil.MustParseDate("2026-10-14")

type roster []nudge.StudentCourse

func (r roster) ListActive(context.Context) ([]nudge.StudentCourse, error) { return r, nil }

type failingRoster struct{}

func (failingRoster) ListActive(context.Context) ([]nudge.StudentCourse, error) {
	return nil, errors.New("db down")
}

// scriptedEvaluator answers per student from a table.
type scriptedEvaluator struct {
	mu       sync.Mutex
	outcomes map[string]func() (*command.EvaluateStudentResult, error)
	seen     []command.EvaluateStudentCommand
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (e *scriptedEvaluator) Handle(_ context.Context, cmd command.EvaluateStudentCommand) (*command.EvaluateStudentResult, error) {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		max := e.maxSeen.Load()
		if n <= max || e.maxSeen.CompareAndSwap(max, n) {
			break
		}
	}

	e.mu.Lock()
	e.seen = append(e.seen, cmd)
	outcome, ok := e.outcomes[cmd.StudentID]
	e.mu.Unlock()

	if !ok {
		return &command.EvaluateStudentResult{Decision: nudge.Decision{Kind: nudge.DecisionNone}}, nil
	}
	return outcome()
}

func decided(kind nudge.DecisionKind, code nudge.Code) func() (*command.EvaluateStudentResult, error) {
	return func() (*command.EvaluateStudentResult, error) {
		return &command.EvaluateStudentResult{Decision: nudge.Decision{Kind: kind, Code: code}}, nil
	}
}

func failed(err error) func() (*command.EvaluateStudentResult, error) {
	return func() (*command.EvaluateStudentResult, error) { return nil, err }
}

type memStats struct {
	saved map[string]interface{}
}

func (m *memStats) Save(_ context.Context, runDate string, summary interface{}) error {
	if m.saved == nil {
		m.saved = make(map[string]interface{})
	}
	m.saved[runDate] = summary
	return nil
}

func pairs(ids ...string) roster {
	r := make(roster, 0, len(ids))
	for _, id := range ids {
		r = append(r, nudge.StudentCourse{StudentID: id, CourseID: "MATH0300"})
	}
	return r
}

func newJob(r Roster, e Evaluator, deps NudgeStudentsDeps) *NudgeStudentsJob {
	deps.Roster = r
	deps.Evaluator = e
	deps.Today = func() timeutil.Date { return today }
	return NewNudgeStudentsJob(deps, NudgeStudentsConfig{Concurrency: 3, RatePerSecond: 1000, RateBurst: 100})
}

func TestNudgeStudentsJob_CountsOutcomes(t *testing.T) {
	eval := &scriptedEvaluator{outcomes: map[string]func() (*command.EvaluateStudentResult, error){
		"100001": decided(nudge.DecisionContent, "WELCok00"),
		"100002": decided(nudge.DecisionContent, "WELCok00"),
		"100003": decided(nudge.DecisionSilent, "USRRus00"),
		"100004": decided(nudge.DecisionLogOnly, "FINXfe02"),
		"100005": failed(shared.MissingField("snapshot", "Validate", "total score")),
		"100006": failed(fmt.Errorf("evaluate_student: lock: %w", shared.ErrStudentLocked)),
		"100007": func() (*command.EvaluateStudentResult, error) {
			return &command.EvaluateStudentResult{
				Decision:  nudge.Decision{Kind: nudge.DecisionContent, Code: "RE1Rok00"},
				Duplicate: true,
			}, nil
		},
	}}
	store := &memStats{}
	job := newJob(pairs("100001", "100002", "100003", "100004", "100005", "100006", "100007", "100008"), eval,
		NudgeStudentsDeps{Stats: store})

	stats, err := job.RunFor(context.Background(), today)
	require.NoError(t, err)

	assert.Equal(t, 8, stats.Total)
	assert.Equal(t, 6, stats.Evaluated)
	assert.Equal(t, 2, stats.Content)
	assert.Equal(t, 1, stats.Silent)
	assert.Equal(t, 1, stats.LogOnly)
	assert.Equal(t, 1, stats.None)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.SkippedLocked)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, map[string]int{"WELCok00": 2, "USRRus00": 1}, stats.ByCode)
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, "100005", stats.Failures[0].StudentID)

	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, "2026-10-14", stats.Date)
	assert.Same(t, stats, job.LastRun())
	assert.Same(t, stats, store.saved["2026-10-14"])

	for _, cmd := range eval.seen {
		assert.Equal(t, today, cmd.Today)
		assert.False(t, cmd.DryRun)
	}
}

func TestNudgeStudentsJob_BoundsConcurrency(t *testing.T) {
	ids := make([]string, 40)
	for i := range ids {
		ids[i] = fmt.Sprintf("2000%02d", i)
	}
	eval := &scriptedEvaluator{}
	job := newJob(pairs(ids...), eval, NudgeStudentsDeps{})

	stats, err := job.RunFor(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 40, stats.Evaluated)
	assert.LessOrEqual(t, eval.maxSeen.Load(), int32(3))
}

func TestNudgeStudentsJob_RolloutAndDryRun(t *testing.T) {
	eval := &scriptedEvaluator{}
	job := newJob(pairs("100001", "100002", "100003"), eval, NudgeStudentsDeps{
		InRollout: func(id string) bool { return id != "100002" },
		DryRun:    func() bool { return true },
	})

	stats, err := job.RunFor(context.Background(), today)
	require.NoError(t, err)
	assert.True(t, stats.DryRun)
	assert.Equal(t, 1, stats.SkippedRollout)
	assert.Equal(t, 2, stats.Evaluated)

	require.Len(t, eval.seen, 2)
	for _, cmd := range eval.seen {
		assert.NotEqual(t, "100002", cmd.StudentID)
		assert.True(t, cmd.DryRun)
	}
}

func TestNudgeStudentsJob_OneEvaluationPerStudent(t *testing.T) {
	eval := &scriptedEvaluator{outcomes: map[string]func() (*command.EvaluateStudentResult, error){
		"100001": decided(nudge.DecisionContent, "RE1Rok00"),
		"100002": decided(nudge.DecisionContent, "WELCok00"),
	}}
	job := newJob(roster{
		{StudentID: "100001", CourseID: "MATH0310", CourseIndex: 1},
		{StudentID: "100002", CourseID: "MATH0300", CourseIndex: 0},
		{StudentID: "100001", CourseID: "MATH0300", CourseIndex: 0},
	}, eval, NudgeStudentsDeps{})

	stats, err := job.RunFor(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Content)
	assert.Equal(t, map[string]int{"RE1Rok00": 1, "WELCok00": 1}, stats.ByCode)

	var courses []string
	for _, cmd := range eval.seen {
		if cmd.StudentID == "100001" {
			courses = append(courses, cmd.CourseID)
		}
	}
	assert.Equal(t, []string{"MATH0300"}, courses)
}

func TestCurrentCourses(t *testing.T) {
	got := currentCourses([]nudge.StudentCourse{
		{StudentID: "1", CourseID: "B", CourseIndex: 2},
		{StudentID: "2", CourseID: "A", CourseIndex: 0},
		{StudentID: "1", CourseID: "A", CourseIndex: 1},
		{StudentID: "1", CourseID: "C", CourseIndex: 3},
	})
	assert.Equal(t, []nudge.StudentCourse{
		{StudentID: "1", CourseID: "A", CourseIndex: 1},
		{StudentID: "2", CourseID: "A", CourseIndex: 0},
	}, got)
}

func TestNudgeStudentsJob_Errors(t *testing.T) {
	t.Run("roster unavailable", func(t *testing.T) {
		job := newJob(failingRoster{}, &scriptedEvaluator{}, NudgeStudentsDeps{})
		_, err := job.RunFor(context.Background(), today)
		assert.Error(t, err)
	})

	t.Run("every evaluation failed", func(t *testing.T) {
		boom := failed(errors.New("boom"))
		eval := &scriptedEvaluator{outcomes: map[string]func() (*command.EvaluateStudentResult, error){
			"100001": boom,
			"100002": boom,
		}}
		job := newJob(pairs("100001", "100002"), eval, NudgeStudentsDeps{})
		stats, err := job.RunFor(context.Background(), today)
		assert.ErrorIs(t, err, ErrRunFailed)
		assert.Equal(t, 2, stats.Failed)
	})

	t.Run("empty roster is fine", func(t *testing.T) {
		job := newJob(roster{}, &scriptedEvaluator{}, NudgeStudentsDeps{})
		stats, err := job.RunFor(context.Background(), today)
		require.NoError(t, err)
		assert.Zero(t, stats.Total)
	})

	t.Run("canceled run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		job := newJob(pairs("100001"), &scriptedEvaluator{}, NudgeStudentsDeps{})
		stats, err := job.RunFor(ctx, today)
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, stats.Canceled)
	})
}

func TestNudgeStudentsJob_RunUsesToday(t *testing.T) {
	eval := &scriptedEvaluator{}
	job := newJob(pairs("100001"), eval, NudgeStudentsDeps{})

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, eval.seen, 1)
	assert.Equal(t, today, eval.seen[0].Today)
	assert.Equal(t, "nudge_students", job.Name())
}
