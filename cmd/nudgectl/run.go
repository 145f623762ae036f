package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/alem-hub/course-nudge/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one nudge pass over every active student",
	Long: `Evaluate every active student-course pair once, as of --date (default:
today in the campus timezone), and print the run statistics as JSON.

--dry-run renders and logs decisions without writing the ledger or the outbox.`,
	RunE: runNudge,
}

func init() {
	runCmd.Flags().String("date", "", "Evaluation date, YYYY-MM-DD (default: today)")
	runCmd.Flags().Bool("dry-run", false, "Log decisions instead of delivering them")
}

func runNudge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	date, err := dateFlag(cmd, "date")
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	a, err := openApp(ctx, cmd, func(cfg *config.Config) {
		if dryRun {
			cfg.Delivery.Mode = config.DeliveryLog
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if date.IsZero() {
		date = a.Today()
	}

	stats, runErr := a.NudgeJob.RunFor(ctx, date)
	if stats != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			return err
		}
	}
	return runErr
}
