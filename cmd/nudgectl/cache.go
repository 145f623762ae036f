package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alem-hub/course-nudge/internal/app"
	"github.com/alem-hub/course-nudge/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/course-nudge/pkg/logger"
)

var flushCourseNamesCmd = &cobra.Command{
	Use:   "flush-course-names [course...]",
	Short: "Drop cached course display names",
	Long: `Remove course display names from the Redis cache so the next run reads
them from the courses table. Run it after renaming a course.

Without arguments every cached name in the configured key namespace is
dropped.`,
	RunE: runFlushCourseNames,
}

func runFlushCourseNames(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Redis.Disabled {
		return errors.New("redis is disabled (REDIS_DISABLED); nothing is cached")
	}

	cache, err := redis.NewCache(app.CacheConfig(cfg))
	if err != nil {
		return err
	}
	defer cache.Close()

	removed, err := redis.NewCourseNameCache(cache, nil, 0).Invalidate(ctx, args...)
	if err != nil {
		return fmt.Errorf("flush course names: %w", err)
	}
	log.Info("course names dropped",
		logger.Int64("removed", removed),
		logger.String("namespace", cfg.Redis.Namespace),
	)
	return nil
}
