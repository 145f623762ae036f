package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alem-hub/course-nudge/internal/domain/shared"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECK INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports the status served on /health and /ready.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc is a function that performs a single health check.
// It returns an error if the check fails.
type HealthCheckFunc func(ctx context.Context) error

// HealthStatus represents the overall health status of the service.
type HealthStatus struct {
	// Healthy indicates if the service is healthy overall.
	Healthy bool `json:"healthy"`

	// Ready indicates if the service is ready to accept requests.
	Ready bool `json:"ready"`

	// Message provides additional context about the health status.
	Message string `json:"message,omitempty"`

	// Checks contains individual health check results.
	Checks map[string]CheckResult `json:"checks,omitempty"`

	// Uptime is how long the service has been running.
	Uptime string `json:"uptime,omitempty"`

	// Timestamp is when the check was performed.
	Timestamp time.Time `json:"timestamp"`

	// Version is the service version.
	Version string `json:"version,omitempty"`
}

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Healthy bool `json:"healthy"`

	// Degraded checks are reported but do not fail the service.
	Degraded bool `json:"degraded,omitempty"`

	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// ErrDegraded marks a check failure that should be reported without
// taking the service out of rotation.
var ErrDegraded = errors.New("degraded")

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE HEALTH CHECKER
// ══════════════════════════════════════════════════════════════════════════════

// CompositeHealthChecker aggregates multiple health checks.
type CompositeHealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheckFunc
	startTime time.Time
	version   string
	timeout   time.Duration
}

// DefaultCheckTimeout bounds each check when no timeout is given.
const DefaultCheckTimeout = 5 * time.Second

// NewCompositeHealthChecker creates a checker that gives each check at most
// timeout to answer.
func NewCompositeHealthChecker(version string, timeout time.Duration) *CompositeHealthChecker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &CompositeHealthChecker{
		checks:    make(map[string]HealthCheckFunc),
		startTime: time.Now(),
		version:   version,
		timeout:   timeout,
	}
}

// AddCheck adds a named health check function.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs all checks in parallel and returns the aggregated status.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Checks:    make(map[string]CheckResult, len(checks)),
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}

	if len(checks) == 0 {
		status.Message = "No health checks registered"
		return status
	}

	type named struct {
		name   string
		result CheckResult
	}
	var wg sync.WaitGroup
	results := make(chan named, len(checks))

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check HealthCheckFunc) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := check(checkCtx)

			result := CheckResult{
				Healthy:  err == nil,
				Duration: time.Since(start).Round(time.Millisecond).String(),
				Message:  "OK",
			}
			if err != nil {
				result.Message = err.Error()
				result.Degraded = errors.Is(err, ErrDegraded)
			}
			results <- named{name, result}
		}(name, check)
	}

	wg.Wait()
	close(results)

	var failed, degraded []string
	for r := range results {
		status.Checks[r.name] = r.result
		switch {
		case r.result.Healthy:
		case r.result.Degraded:
			degraded = append(degraded, r.name)
		default:
			status.Healthy = false
			status.Ready = false
			failed = append(failed, r.name)
		}
	}
	sort.Strings(failed)
	sort.Strings(degraded)

	switch {
	case len(failed) > 0:
		status.Message = "Some checks failed: " + strings.Join(failed, ", ")
	case len(degraded) > 0:
		status.Message = "Degraded: " + strings.Join(degraded, ", ")
	default:
		status.Message = "All checks passed"
	}

	return status
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCY CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is anything that can check its own connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Database is the Postgres pool as the health checks see it.
type Database interface {
	Pinger
	Usage() (acquired, max int32)
}

// NewDatabaseCheck fails when Postgres is unreachable and degrades when every
// pool connection is checked out, which stalls previews during a run.
func NewDatabaseCheck(db Database) HealthCheckFunc {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return err
		}
		if acquired, max := db.Usage(); max > 0 && acquired >= max {
			return fmt.Errorf("%w: pool saturated (%d/%d connections in use)", ErrDegraded, acquired, max)
		}
		return nil
	}
}

// NewCacheCheck fails when Redis is unreachable. Per-student locks live
// there, so no student can be evaluated without it.
func NewCacheCheck(cache Pinger) HealthCheckFunc {
	return func(ctx context.Context) error {
		return cache.Ping(ctx)
	}
}

// BreakerState reports whether a circuit breaker is open.
type BreakerState interface {
	IsOpen() bool
	Name() string
}

// NewBreakerCheck reports an open circuit breaker. Deliveries are released
// and retried on the next run, so an open breaker only degrades the service.
func NewBreakerCheck(cb BreakerState) HealthCheckFunc {
	return func(ctx context.Context) error {
		if cb.IsOpen() {
			return fmt.Errorf("%w: circuit %s is open", ErrDegraded, cb.Name())
		}
		return nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// NUDGE CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// PendingMigrations counts schema migrations not applied yet. Implemented
// by postgres.Migrator.
type PendingMigrations interface {
	Pending(ctx context.Context) (int, error)
}

// NewSchemaCheck fails while migrations are pending: snapshot reads and
// ledger claims would fail for every student.
func NewSchemaCheck(m PendingMigrations) HealthCheckFunc {
	return func(ctx context.Context) error {
		n, err := m.Pending(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%d migration(s) pending; run nudgectl migrate", n)
		}
		return nil
	}
}

// TermLookup finds the current term. Implemented by postgres.TermRepository.
type TermLookup interface {
	CurrentTerm(ctx context.Context) (id string, endsOn timeutil.Date, err error)
}

// NewCurrentTermCheck degrades when no term is current or the current term
// has ended. Either way the roster is empty and runs nudge nobody.
func NewCurrentTermCheck(terms TermLookup, today func() timeutil.Date) HealthCheckFunc {
	return func(ctx context.Context) error {
		id, endsOn, err := terms.CurrentTerm(ctx)
		switch {
		case errors.Is(err, shared.ErrNoCurrentTerm):
			return fmt.Errorf("%w: no current term", ErrDegraded)
		case err != nil:
			return err
		}
		if day := today(); day.After(endsOn) {
			return fmt.Errorf("%w: term %s ended on %s", ErrDegraded, id, endsOn)
		}
		return nil
	}
}
