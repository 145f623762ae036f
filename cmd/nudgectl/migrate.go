package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alem-hub/course-nudge/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/course-nudge/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply pending schema migrations to the database named by DATABASE_URL.

With --status the command only lists migrations and whether they are applied.
With --rollback it reverts the most recent applied migration.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().Bool("status", false, "List migrations without applying them")
	migrateCmd.Flags().Bool("rollback", false, "Revert the most recent migration")
	migrateCmd.MarkFlagsMutuallyExclusive("status", "rollback")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	opts := postgres.DefaultPoolOptions()
	opts.MaxConns = 2
	opts.MinConns = 0
	conn, err := postgres.NewConnection(ctx, cfg.Database.URL, opts)
	if err != nil {
		return err
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)

	if status, _ := cmd.Flags().GetBool("status"); status {
		migrations, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
		for _, m := range migrations {
			applied := "-"
			if m.IsApplied {
				applied = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.Name, applied)
		}
		return tw.Flush()
	}

	if rollback, _ := cmd.Flags().GetBool("rollback"); rollback {
		if err := migrator.Rollback(ctx); err != nil {
			return err
		}
		log.Info("rolled back the latest migration")
		return nil
	}

	applied, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	log.Info("migrations applied", logger.Int("count", applied))
	return nil
}
