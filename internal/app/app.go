// Package app wires the course-nudge components together. Both the worker
// and the CLI build their object graph here.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alem-hub/course-nudge/config"
	"github.com/alem-hub/course-nudge/internal/application/command"
	"github.com/alem-hub/course-nudge/internal/application/query"
	"github.com/alem-hub/course-nudge/internal/domain/nudge"
	"github.com/alem-hub/course-nudge/internal/infrastructure/delivery"
	"github.com/alem-hub/course-nudge/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/course-nudge/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/course-nudge/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/course-nudge/internal/interface/http/handlers"
	"github.com/alem-hub/course-nudge/internal/interface/presenter"
	"github.com/alem-hub/course-nudge/pkg/circuitbreaker"
	"github.com/alem-hub/course-nudge/pkg/logger"
	"github.com/alem-hub/course-nudge/pkg/retry"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// App holds the wired components.
type App struct {
	Cfg *config.Config
	Log *logger.Logger

	DB    *postgres.Connection
	Cache *redis.Cache // nil when Redis is disabled

	Snapshots *postgres.SnapshotRepository
	Ledger    *postgres.LedgerRepository
	Outbox    *postgres.OutboxRepository
	RunStats  *redis.RunStatsStore // nil when Redis is disabled

	Engine    *nudge.Engine
	Deliverer delivery.Deliverer
	Breaker   *circuitbreaker.CircuitBreaker // nil in log delivery mode

	Evaluate      *command.EvaluateStudentHandler
	Preview       *query.PreviewDecisionHandler
	NudgeJob      *jobs.NudgeStudentsJob
	OutboxMonitor *jobs.OutboxMonitorJob
}

// NewLogger builds the process logger from the observability settings.
func NewLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stderr
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = cfg.Observability.LogFormat
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// CacheConfig maps the Redis settings onto the cache client config.
func CacheConfig(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = cfg.Redis.URL
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	if cfg.Redis.Namespace != "" {
		rc.Namespace = cfg.Redis.Namespace
	}
	return rc
}

// Today returns the campus-local date.
func (a *App) Today() timeutil.Date {
	return timeutil.Today(a.Cfg.App.Location)
}

// New connects to PostgreSQL and Redis and wires every component. Connections
// are retried while the dependencies start up.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("app: DATABASE_URL is not set")
	}
	a := &App{Cfg: cfg, Log: log}

	startup := retry.StartupRetrier(func(attempt int, err error, delay time.Duration) {
		log.Warn("dependency not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	})

	// ─────────────────────────────────────────────────────────────────────────
	// PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	pool := postgres.DefaultPoolOptions()
	pool.MaxConns = int32(cfg.Database.MaxOpenConns)
	pool.MinConns = int32(cfg.Database.MaxIdleConns)
	pool.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pool.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pool.QueryTimeout = cfg.Database.QueryTimeout

	err := startup.Do(ctx, func(ctx context.Context) error {
		conn, err := postgres.NewConnection(ctx, cfg.Database.URL, pool)
		if err != nil {
			return err
		}
		a.DB = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("app: connect postgres: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Redis.Disabled {
		rc := CacheConfig(cfg)

		err := startup.Do(ctx, func(ctx context.Context) error {
			cache, err := redis.NewCache(rc)
			if err != nil {
				return err
			}
			if err := cache.Ping(ctx); err != nil {
				_ = cache.Close()
				return err
			}
			a.Cache = cache
			return nil
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app: connect redis: %w", err)
		}
		log.Info("redis connection established")
	} else {
		log.Warn("redis disabled: no per-student locks, course names read from postgres")
	}

	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// wire builds repositories, the engine and the handlers on top of the
// open connections.
func (a *App) wire() error {
	cfg := a.Cfg
	log := a.Log

	engine, err := nudge.NewEngine(cfg.Engine.FileRules)
	if err != nil {
		return fmt.Errorf("app: engine: %w", err)
	}
	engine = engine.WithSwitches(cfg.Features)
	a.Engine = engine

	a.Snapshots = postgres.NewSnapshotRepository(a.DB, cfg.App.Location)
	a.Ledger = postgres.NewLedgerRepository(a.DB)
	a.Outbox = postgres.NewOutboxRepository(a.DB)

	var courses nudge.CourseCatalog = postgres.NewCourseRepository(a.DB)
	var locker command.Locker
	if a.Cache != nil {
		courses = redis.NewCourseNameCache(a.Cache, courses, cfg.Redis.CourseNameTTL)
		locker = redis.NewStudentLocker(a.Cache, cfg.Redis.LockTTL)
		a.RunStats = redis.NewRunStatsStore(a.Cache)
	}

	renderer := presenter.NewMessagePresenter(courses, engine.Catalog(), cfg.Engine.Rules)

	if cfg.Delivery.Mode == config.DeliveryLog {
		a.Deliverer = delivery.NewLogDeliverer(log)
	} else {
		outbox := delivery.NewOutboxDeliverer(a.Outbox, postgres.IsConnectionError, log)
		a.Deliverer = outbox
		a.Breaker = outbox.Breaker()
	}

	a.Evaluate = command.NewEvaluateStudentHandler(command.EvaluateStudentDeps{
		Snapshots: a.Snapshots,
		Ledger:    a.Ledger,
		Engine:    engine,
		Renderer:  renderer,
		Deliverer: a.Deliverer,
		Locker:    locker,
		Log:       log,
	})
	a.Preview = query.NewPreviewDecisionHandler(a.Snapshots, a.Ledger, engine, renderer, a.Today)

	deps := jobs.NudgeStudentsDeps{
		Roster:    a.Snapshots,
		Evaluator: a.Evaluate,
		InRollout: cfg.Features.InRollout,
		DryRun:    cfg.DryRun,
		Today:     a.Today,
		Log:       log,
	}
	if a.RunStats != nil {
		deps.Stats = a.RunStats
	}
	a.NudgeJob = jobs.NewNudgeStudentsJob(deps, jobs.NudgeStudentsConfig{
		Concurrency:   cfg.Scheduler.Concurrency,
		RatePerSecond: cfg.Scheduler.RatePerSecond,
		RateBurst:     cfg.Scheduler.RateBurst,
	})
	a.OutboxMonitor = jobs.NewOutboxMonitorJob(a.Outbox, a.Ledger, a.Today, cfg.Scheduler.OutboxBacklogThreshold, log)

	return nil
}

// HealthChecker registers a check per live dependency.
func (a *App) HealthChecker() *handlers.CompositeHealthChecker {
	checker := handlers.NewCompositeHealthChecker(a.Cfg.App.Version, a.Cfg.HTTP.HealthCheckTimeout)
	checker.AddCheck("postgres", handlers.NewDatabaseCheck(a.DB))
	checker.AddCheck("schema", handlers.NewSchemaCheck(postgres.NewMigrator(a.DB)))
	checker.AddCheck("current_term", handlers.NewCurrentTermCheck(postgres.NewTermRepository(a.DB), a.Today))
	if a.Cache != nil {
		checker.AddCheck("redis", handlers.NewCacheCheck(a.Cache))
	}
	if a.Breaker != nil {
		checker.AddCheck("outbox_breaker", handlers.NewBreakerCheck(a.Breaker))
	}
	return checker
}

// Close releases the connections.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Log.Warn("failed to close redis", logger.Err(err))
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
