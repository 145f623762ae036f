// Package jobs contains the scheduled jobs of course-nudge.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/alem-hub/course-nudge/internal/application/command"
	"github.com/alem-hub/course-nudge/internal/domain/nudge"
	"github.com/alem-hub/course-nudge/internal/domain/shared"
	"github.com/alem-hub/course-nudge/pkg/logger"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// NUDGE STUDENTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// Evaluator runs one student through the engine. Implemented by
// command.EvaluateStudentHandler.
type Evaluator interface {
	Handle(ctx context.Context, cmd command.EvaluateStudentCommand) (*command.EvaluateStudentResult, error)
}

// Roster lists the current (student, course) pair of every active student.
type Roster interface {
	ListActive(ctx context.Context) ([]nudge.StudentCourse, error)
}

// StatsSaver keeps run summaries. Implemented by redis.RunStatsStore.
type StatsSaver interface {
	Save(ctx context.Context, runDate string, summary interface{}) error
}

// NudgeStudentsJob is the daily run: every active student is evaluated once
// for their current course. One student's failure never stops the run.
type NudgeStudentsJob struct {
	roster    Roster
	evaluator Evaluator
	stats     StatsSaver
	inRollout func(studentID string) bool
	dryRun    func() bool
	today     func() timeutil.Date
	log       *logger.Logger
	config    NudgeStudentsConfig

	lastRun atomic.Pointer[RunStats]
}

// NudgeStudentsConfig contains configuration for the nudge run.
type NudgeStudentsConfig struct {
	// Concurrency bounds evaluations in flight.
	Concurrency int

	// RatePerSecond and RateBurst throttle how fast evaluations start.
	RatePerSecond float64
	RateBurst     int

	// MaxFailureDetails caps the failures kept in RunStats.
	MaxFailureDetails int
}

// DefaultNudgeStudentsConfig returns sensible defaults.
func DefaultNudgeStudentsConfig() NudgeStudentsConfig {
	return NudgeStudentsConfig{
		Concurrency:       8,
		RatePerSecond:     20,
		RateBurst:         5,
		MaxFailureDetails: 50,
	}
}

// NudgeStudentsDeps groups the collaborators of the job.
type NudgeStudentsDeps struct {
	Roster    Roster
	Evaluator Evaluator
	// Stats may be nil.
	Stats StatsSaver
	// InRollout defaults to everyone.
	InRollout func(studentID string) bool
	// DryRun is read at the start of each run; nil means never.
	DryRun func() bool
	Today  func() timeutil.Date
	Log    *logger.Logger
}

// RunStats summarizes one run.
type RunStats struct {
	RunID       string    `json:"run_id"`
	Date        string    `json:"date"`
	DryRun      bool      `json:"dry_run"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`

	Total          int `json:"total"`
	Evaluated      int `json:"evaluated"`
	Content        int `json:"content"`
	Silent         int `json:"silent"`
	LogOnly        int `json:"log_only"`
	None           int `json:"none"`
	Duplicates     int `json:"duplicates"`
	SkippedRollout int `json:"skipped_rollout"`
	SkippedLocked  int `json:"skipped_locked"`
	Failed         int `json:"failed"`

	// ByCode counts content and silent decisions per code.
	ByCode   map[string]int `json:"by_code"`
	Failures []Failure      `json:"failures,omitempty"`
	Canceled bool           `json:"canceled,omitempty"`
}

// Failure describes one student whose evaluation failed.
type Failure struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
	Error     string `json:"error"`
}

// ErrRunFailed is returned when every evaluation of a run failed.
var ErrRunFailed = errors.New("nudge run: every evaluation failed")

// NewNudgeStudentsJob creates a new nudge students job.
func NewNudgeStudentsJob(deps NudgeStudentsDeps, config NudgeStudentsConfig) *NudgeStudentsJob {
	def := DefaultNudgeStudentsConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = def.RatePerSecond
	}
	if config.RateBurst <= 0 {
		config.RateBurst = def.RateBurst
	}
	if config.MaxFailureDetails <= 0 {
		config.MaxFailureDetails = def.MaxFailureDetails
	}
	if deps.InRollout == nil {
		deps.InRollout = func(string) bool { return true }
	}
	if deps.DryRun == nil {
		deps.DryRun = func() bool { return false }
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}

	return &NudgeStudentsJob{
		roster:    deps.Roster,
		evaluator: deps.Evaluator,
		stats:     deps.Stats,
		inRollout: deps.InRollout,
		dryRun:    deps.DryRun,
		today:     deps.Today,
		log:       deps.Log.With(logger.Component("nudge_run")),
		config:    config,
	}
}

// Name returns the job name.
func (j *NudgeStudentsJob) Name() string {
	return "nudge_students"
}

// Description returns a human-readable description.
func (j *NudgeStudentsJob) Description() string {
	return "Evaluates every active student and queues at most one message each"
}

// LastRun returns the stats of the most recent run, or nil.
func (j *NudgeStudentsJob) LastRun() *RunStats {
	return j.lastRun.Load()
}

// Run executes the job for today.
func (j *NudgeStudentsJob) Run(ctx context.Context) error {
	_, err := j.RunFor(ctx, j.today())
	return err
}

// RunFor evaluates every active student as of the given date.
func (j *NudgeStudentsJob) RunFor(ctx context.Context, today timeutil.Date) (stats *RunStats, err error) {
	runID := uuid.New()
	ctx = shared.ContextWithRunID(ctx, shared.RunID(runID.String()))

	ctx, span := otel.Tracer("course-nudge/jobs").Start(ctx, "NudgeStudents")
	span.SetAttributes(
		attribute.String("run.id", runID.String()),
		attribute.String("run.date", today.String()),
	)
	defer func() {
		if stats != nil {
			span.SetAttributes(
				attribute.Int("run.total", stats.Total),
				attribute.Int("run.content", stats.Content),
				attribute.Int("run.failed", stats.Failed),
			)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := j.log.WithRunID(runID.String()).With(logger.String("date", today.String()))

	stats = &RunStats{
		RunID:     runID.String(),
		Date:      today.String(),
		DryRun:    j.dryRun(),
		StartedAt: time.Now(),
		ByCode:    make(map[string]int),
	}

	roster, err := j.roster.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("nudge run: list active students: %w", err)
	}
	pairs := currentCourses(roster)
	if dropped := len(roster) - len(pairs); dropped > 0 {
		log.Warn("roster listed students more than once", logger.Int("dropped", dropped))
	}
	stats.Total = len(pairs)
	log.Info("nudge run started",
		logger.Int("students", len(pairs)),
		logger.Bool("dry_run", stats.DryRun),
	)

	j.fanOut(ctx, pairs, today, stats, log)

	stats.CompletedAt = time.Now()
	stats.DurationMS = stats.CompletedAt.Sub(stats.StartedAt).Milliseconds()
	stats.Canceled = ctx.Err() != nil
	sort.Slice(stats.Failures, func(a, b int) bool { return stats.Failures[a].StudentID < stats.Failures[b].StudentID })
	j.lastRun.Store(stats)

	if j.stats != nil {
		// Saved even when the run was canceled.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if serr := j.stats.Save(saveCtx, stats.Date, stats); serr != nil {
			log.Warn("failed to save run stats", logger.Err(serr))
		}
		cancel()
	}

	log.Info("nudge run completed",
		logger.Int("evaluated", stats.Evaluated),
		logger.Int("content", stats.Content),
		logger.Int("silent", stats.Silent),
		logger.Int("log_only", stats.LogOnly),
		logger.Int("skipped_locked", stats.SkippedLocked),
		logger.Int("failed", stats.Failed),
		logger.Latency(stats.CompletedAt.Sub(stats.StartedAt)),
	)

	switch {
	case stats.Canceled:
		return stats, ctx.Err()
	case stats.Failed > 0 && stats.Failed == stats.Total-stats.SkippedRollout:
		return stats, ErrRunFailed
	}
	return stats, nil
}

// currentCourses keeps one pair per student, the one with the lowest course
// index, in first-seen student order.
func currentCourses(roster []nudge.StudentCourse) []nudge.StudentCourse {
	pos := make(map[string]int, len(roster))
	out := make([]nudge.StudentCourse, 0, len(roster))
	for _, sc := range roster {
		i, seen := pos[sc.StudentID]
		switch {
		case !seen:
			pos[sc.StudentID] = len(out)
			out = append(out, sc)
		case sc.CourseIndex < out[i].CourseIndex:
			out[i] = sc
		}
	}
	return out
}

// fanOut evaluates pairs concurrently. Per-student errors are counted, not
// returned, so the group never cancels itself.
func (j *NudgeStudentsJob) fanOut(ctx context.Context, pairs []nudge.StudentCourse, today timeutil.Date, stats *RunStats, log *logger.Logger) {
	limiter := rate.NewLimiter(rate.Limit(j.config.RatePerSecond), j.config.RateBurst)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	var mu sync.Mutex
	dryRun := stats.DryRun

	for _, pair := range pairs {
		if !j.inRollout(pair.StudentID) {
			mu.Lock()
			stats.SkippedRollout++
			mu.Unlock()
			continue
		}
		if err := limiter.Wait(gctx); err != nil {
			break
		}

		pair := pair
		g.Go(func() error {
			res, err := j.evaluator.Handle(gctx, command.EvaluateStudentCommand{
				StudentID: pair.StudentID,
				CourseID:  pair.CourseID,
				Today:     today,
				DryRun:    dryRun,
			})

			mu.Lock()
			defer mu.Unlock()
			j.record(stats, pair, res, err, log)
			return nil
		})
	}
	_ = g.Wait()
}

// record adds one outcome to stats. Callers hold the stats lock.
func (j *NudgeStudentsJob) record(stats *RunStats, pair nudge.StudentCourse, res *command.EvaluateStudentResult, err error, log *logger.Logger) {
	if err != nil {
		if shared.IsLocked(err) {
			stats.SkippedLocked++
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		stats.Failed++
		if len(stats.Failures) < j.config.MaxFailureDetails {
			stats.Failures = append(stats.Failures, Failure{
				StudentID: pair.StudentID,
				CourseID:  pair.CourseID,
				Error:     err.Error(),
			})
		}
		log.Warn("evaluation failed",
			logger.StudentID(pair.StudentID),
			logger.CourseID(pair.CourseID),
			logger.Err(err),
		)
		return
	}

	stats.Evaluated++
	d := res.Decision
	switch {
	case res.Duplicate:
		stats.Duplicates++
	case d.Kind == nudge.DecisionContent:
		stats.Content++
		stats.ByCode[d.Code.String()]++
	case d.Kind == nudge.DecisionSilent:
		stats.Silent++
		stats.ByCode[d.Code.String()]++
	case d.Kind == nudge.DecisionLogOnly:
		stats.LogOnly++
	default:
		stats.None++
	}
}
