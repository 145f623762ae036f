// Package main is the long-running course-nudge worker.
//
// The worker runs the daily nudge pass on a schedule, watches the outbox
// backlog and serves health checks and decision previews over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/course-nudge/config"
	"github.com/alem-hub/course-nudge/internal/app"
	"github.com/alem-hub/course-nudge/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/course-nudge/internal/infrastructure/scheduler"
	httpserver "github.com/alem-hub/course-nudge/internal/interface/http"
	"github.com/alem-hub/course-nudge/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := app.NewLogger(cfg)
	defer func() { _ = log.Sync() }()

	log.Info("starting course-nudge worker",
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
		logger.String("delivery", cfg.Delivery.Mode),
	)

	shutdownTracing, err := app.InitTracing(cfg, log)
	if err != nil {
		log.Warn("tracing disabled", logger.Err(err))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. CONNECTIONS & WIRING
	// ─────────────────────────────────────────────────────────────────────────
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	applied, err := postgres.NewMigrator(a.DB).Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date", logger.Int("applied", applied))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:     log,
		Timezone:   cfg.App.Location,
		JobTimeout: cfg.Scheduler.JobTimeout,
	})

	daily, err := scheduler.DailyAt(cfg.Scheduler.RunHour, cfg.Scheduler.RunMinute, cfg.Scheduler.WeekdaysOnly, cfg.App.Location)
	if err != nil {
		return fmt.Errorf("invalid run time: %w", err)
	}
	if err := sched.Register(a.NudgeJob, daily); err != nil {
		return err
	}
	if err := sched.Register(a.OutboxMonitor, scheduler.Every(cfg.Scheduler.OutboxCheckInterval)); err != nil {
		return err
	}
	if cfg.DryRun() {
		// Nothing reaches the outbox in log mode.
		_ = sched.SetEnabled(a.OutboxMonitor.Name(), false)
	}

	sched.OnJobComplete(func(r scheduler.JobResult) {
		if !r.Success {
			log.Error("job failed",
				logger.String("job", r.JobName),
				logger.Err(r.Error),
				logger.Latency(r.Duration),
			)
		}
	})

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		log.Warn("scheduler disabled; runs only start through the API or nudgectl")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP
	// ─────────────────────────────────────────────────────────────────────────
	var server *httpserver.Server
	serverErr := make(<-chan error)
	if cfg.HTTP.Enabled {
		hc := httpserver.DefaultConfig()
		hc.Port = cfg.HTTP.Port
		hc.ReadTimeout = cfg.HTTP.ReadTimeout
		hc.WriteTimeout = cfg.HTTP.WriteTimeout
		hc.APIKeys = cfg.HTTP.APIKeys
		hc.RateLimitPerSecond = cfg.HTTP.RateLimitPerSecond
		hc.RateLimitBurst = cfg.HTTP.RateLimitBurst
		hc.Version = cfg.App.Version

		deps := httpserver.Dependencies{
			Preview:       a.Preview,
			Jobs:          sched,
			Outbox:        a.OutboxMonitor,
			Features:      a.Cfg.Features,
			Logger:        log,
			HealthChecker: a.HealthChecker(),
		}
		if a.RunStats != nil {
			deps.Runs = a.RunStats
		}
		server = httpserver.NewServer(hc, deps)
		serverErr = server.StartAsync()
	}

	log.Info("course-nudge worker is running",
		logger.Int("run_hour", cfg.Scheduler.RunHour),
		logger.Int("run_minute", cfg.Scheduler.RunMinute),
		logger.Bool("weekdays_only", cfg.Scheduler.WeekdaysOnly),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-serverErr:
		if ok && err != nil {
			runErr = err
			log.Error("http server stopped", logger.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown incomplete", logger.Err(err))
		}
	}
	if sched.IsRunning() {
		if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Warn("scheduler stop failed", logger.Err(err))
		}
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing flush failed", logger.Err(err))
		}
	}

	log.Info("shutdown completed")
	return runErr
}
