package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alem-hub/course-nudge/config"
	"github.com/alem-hub/course-nudge/internal/app"
	"github.com/alem-hub/course-nudge/pkg/logger"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

var rootCmd = &cobra.Command{
	Use:           "nudgectl",
	Short:         "Operate the course-nudge decision engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Log at debug level")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(validateRulesCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(flushCourseNamesCmd)
}

// loadConfig reads the environment configuration and builds the logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.App.Debug = true
	}
	return cfg, app.NewLogger(cfg), nil
}

// openApp wires the full component graph.
func openApp(ctx context.Context, cmd *cobra.Command, mutate func(*config.Config)) (*app.App, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	return app.New(ctx, cfg, log)
}

// dateFlag parses a YYYY-MM-DD flag; empty means the zero date.
func dateFlag(cmd *cobra.Command, name string) (timeutil.Date, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return timeutil.Date{}, nil
	}
	d, err := timeutil.ParseDate(raw)
	if err != nil {
		return timeutil.Date{}, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return d, nil
}
