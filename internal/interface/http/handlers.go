package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/alem-hub/course-nudge/config"
	"github.com/alem-hub/course-nudge/internal/application/query"
	"github.com/alem-hub/course-nudge/internal/domain/shared"
	"github.com/alem-hub/course-nudge/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/course-nudge/internal/infrastructure/scheduler"
	"github.com/alem-hub/course-nudge/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/course-nudge/pkg/logger"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"name":    "course-nudge",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":   "/health",
			"preview":  "/v1/preview?student={id}&course={id}&date={yyyy-mm-dd}",
			"runs":     "/v1/runs/latest",
			"jobs":     "/v1/jobs",
			"history":  "/v1/jobs/history?job={name}&limit={n}",
			"outbox":   "/v1/outbox",
			"features": "/v1/features",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, r, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, r, http.StatusOK, status)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleReady answers the Kubernetes readiness check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive answers the Kubernetes liveness check.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// PREVIEW HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handlePreview handles GET /v1/preview?student=&course=&date=
// Nothing is recorded or sent.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.deps.Preview == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Preview not configured")
		return
	}

	q := query.PreviewDecisionQuery{
		StudentID: r.URL.Query().Get("student"),
		CourseID:  r.URL.Query().Get("course"),
	}
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := timeutil.ParseDate(raw)
		if err != nil {
			writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD", err.Error())
			return
		}
		q.Today = day
	}

	result, err := s.deps.Preview.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to preview decision")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// RUN SUMMARY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleLatestRun handles GET /v1/runs/latest
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Run history not configured")
		return
	}

	var stats jobs.RunStats
	if err := s.deps.Runs.Latest(r.Context(), &stats); err != nil {
		s.writeRunError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// handleRunForDate handles GET /v1/runs/{date}
func (s *Server) handleRunForDate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Run history not configured")
		return
	}

	day, err := timeutil.ParseDate(r.PathValue("date"))
	if err != nil {
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD", err.Error())
		return
	}

	var stats jobs.RunStats
	if err := s.deps.Runs.ForDate(r.Context(), day.String(), &stats); err != nil {
		s.writeRunError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func (s *Server) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, redis.ErrCacheMiss) {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "No run recorded")
		return
	}
	logger.FromContext(r.Context()).Error("failed to load run stats", logger.Err(err))
	writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load run stats")
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListJobs handles GET /v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Scheduler not configured")
		return
	}

	list := s.deps.Jobs.ListJobs()
	writeJSONWithMeta(w, r, http.StatusOK, list, &ResponseMeta{TotalCount: len(list)})
}

// JobResultDTO is one finished job run.
type JobResultDTO struct {
	Job         string    `json:"job"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Duration    string    `json:"duration"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Manual      bool      `json:"manual,omitempty"`
}

// handleJobHistory handles GET /v1/jobs/history?job=&limit=
// Newest runs come first.
func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Scheduler not configured")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	job := r.URL.Query().Get("job")

	// Filter before limiting so ?job= still returns up to limit runs.
	history := s.deps.Jobs.History(0)
	out := make([]JobResultDTO, 0, limit)
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		res := history[i]
		if job != "" && res.JobName != job {
			continue
		}
		dto := JobResultDTO{
			Job:         res.JobName,
			StartedAt:   res.StartedAt,
			CompletedAt: res.CompletedAt,
			Duration:    res.Duration.Round(time.Millisecond).String(),
			Success:     res.Success,
			Manual:      res.Manual,
		}
		if res.Error != nil {
			dto.Error = res.Error.Error()
		}
		out = append(out, dto)
	}
	writeJSONWithMeta(w, r, http.StatusOK, out, &ResponseMeta{TotalCount: len(out)})
}

// handleRunJob handles POST /v1/jobs/{name}/run
// The job runs in the background; the response only confirms it started.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Scheduler not configured")
		return
	}

	name := r.PathValue("name")
	var found *scheduler.JobInfo
	for _, info := range s.deps.Jobs.ListJobs() {
		if info.Name == name {
			info := info
			found = &info
			break
		}
	}
	switch {
	case found == nil:
		writeJSONError(w, r, http.StatusNotFound, "job_not_found", "No job named "+name)
		return
	case found.Running:
		writeJSONError(w, r, http.StatusConflict, "job_in_flight", "Job is already running")
		return
	}

	log := logger.FromContext(r.Context()).With(logger.String("job", name))
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		result, err := s.deps.Jobs.RunNow(s.baseCtx, name)
		switch {
		case errors.Is(err, scheduler.ErrJobInFlight):
			log.Warn("manual run skipped, job already running")
		case err != nil:
			log.Error("manual run failed", logger.Err(err))
		default:
			log.Info("manual run completed", logger.Latency(result.Duration))
		}
	}()

	writeJSON(w, r, http.StatusAccepted, map[string]string{"job": name, "status": "started"})
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTBOX HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleOutbox handles GET /v1/outbox
func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	if s.deps.Outbox == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Outbox monitor not configured")
		return
	}

	last := s.deps.Outbox.Last()
	if last == nil {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "Outbox has not been checked yet")
		return
	}
	writeJSON(w, r, http.StatusOK, last)
}

// ══════════════════════════════════════════════════════════════════════════════
// FEATURE FLAG HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// FeatureDTO is one feature flag as operators see it.
type FeatureDTO struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Enabled        bool   `json:"enabled"`
	RolloutPercent int    `json:"rollout_percent"`
	StartupOnly    bool   `json:"startup_only,omitempty"`
}

func toFeatureDTO(f *config.Feature) FeatureDTO {
	return FeatureDTO{
		Name:           f.Name,
		Description:    f.Description,
		Enabled:        f.Enabled,
		RolloutPercent: f.RolloutPercent,
		StartupOnly:    f.StartupOnly,
	}
}

// SetFeatureRequest changes one flag. Exactly one field must be set.
type SetFeatureRequest struct {
	Enabled        *bool `json:"enabled"`
	RolloutPercent *int  `json:"rollout_percent"`
}

// StudentOverrideRequest pins one flag for one student.
type StudentOverrideRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleListFeatures handles GET /v1/features
func (s *Server) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	if s.deps.Features == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Feature flags not configured")
		return
	}

	all := s.deps.Features.GetAllFeatures()
	out := make([]FeatureDTO, 0, len(all))
	for _, f := range all {
		out = append(out, toFeatureDTO(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSONWithMeta(w, r, http.StatusOK, out, &ResponseMeta{TotalCount: len(out)})
}

// handleSetFeature handles PUT /v1/features/{name}
// Message-flow switches and the rollout share apply from the next evaluation.
func (s *Server) handleSetFeature(w http.ResponseWriter, r *http.Request) {
	if s.deps.Features == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Feature flags not configured")
		return
	}

	name := r.PathValue("name")
	current, ok := s.deps.Features.GetAllFeatures()[name]
	if !ok {
		writeJSONError(w, r, http.StatusNotFound, "feature_not_found", "No feature named "+name)
		return
	}
	if current.StartupOnly {
		writeJSONError(w, r, http.StatusConflict, "startup_only", "Feature is read at startup; change it in the environment")
		return
	}

	var req SetFeatureRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var err error
	switch {
	case req.Enabled != nil && req.RolloutPercent != nil:
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Set either enabled or rollout_percent")
		return
	case req.Enabled != nil && *req.Enabled:
		err = s.deps.Features.EnableFeature(name)
	case req.Enabled != nil:
		err = s.deps.Features.DisableFeature(name)
	case req.RolloutPercent != nil:
		err = s.deps.Features.SetRolloutPercent(name, *req.RolloutPercent)
	default:
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Set either enabled or rollout_percent")
		return
	}
	if err != nil {
		s.writeFeatureError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("feature flag changed", logger.String("feature", name))
	writeJSON(w, r, http.StatusOK, toFeatureDTO(s.deps.Features.GetAllFeatures()[name]))
}

// handleSetStudentOverride handles PUT /v1/features/{name}/students/{student}
func (s *Server) handleSetStudentOverride(w http.ResponseWriter, r *http.Request) {
	if s.deps.Features == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Feature flags not configured")
		return
	}

	name, studentID := r.PathValue("name"), r.PathValue("student")
	if _, ok := s.deps.Features.GetAllFeatures()[name]; !ok {
		writeJSONError(w, r, http.StatusNotFound, "feature_not_found", "No feature named "+name)
		return
	}

	var req StudentOverrideRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "enabled is required")
		return
	}

	s.deps.Features.SetStudentOverride(studentID, name, *req.Enabled)
	logger.FromContext(r.Context()).Info("student override set",
		logger.String("feature", name),
		logger.StudentID(studentID),
		logger.Bool("enabled", *req.Enabled),
	)
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"feature": name,
		"student": studentID,
		"enabled": *req.Enabled,
	})
}

// handleClearStudentOverrides handles DELETE /v1/students/{student}/overrides
func (s *Server) handleClearStudentOverrides(w http.ResponseWriter, r *http.Request) {
	if s.deps.Features == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Feature flags not configured")
		return
	}

	studentID := r.PathValue("student")
	s.deps.Features.ClearStudentOverrides(studentID)
	logger.FromContext(r.Context()).Info("student overrides cleared", logger.StudentID(studentID))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeFeatureError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, config.ErrFeatureNotFound):
		writeJSONError(w, r, http.StatusNotFound, "feature_not_found", err.Error())
	case errors.Is(err, config.ErrInvalidRolloutPercent):
		writeJSONError(w, r, http.StatusBadRequest, "invalid_rollout_percent", err.Error())
	default:
		logger.FromContext(r.Context()).Error("failed to change feature", logger.Err(err))
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "Failed to change feature")
	}
}

// decodeBody reads a small JSON body into dest, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_body", "Request body must be JSON", err.Error())
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps domain errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case shared.IsValidation(err):
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_request", message, err.Error())
	case shared.IsNotFound(err):
		writeJSONErrorWithDetails(w, r, http.StatusNotFound, "not_found", message, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, r, http.StatusGatewayTimeout, "timeout", message)
	default:
		logger.FromContext(r.Context()).Error(message, logger.Err(err))
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", message)
	}
}
