package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/alem-hub/course-nudge/internal/application/query"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the decision for one student and course without sending it",
	Long: `Load the snapshot and ledger of one student-course pair, run the engine
as of --date and print the decision, its rendered message and the ledger as
JSON. Nothing is written.`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().String("student", "", "Student id (required)")
	previewCmd.Flags().String("course", "", "Course id (required)")
	previewCmd.Flags().String("date", "", "Evaluation date, YYYY-MM-DD (default: today)")
	_ = previewCmd.MarkFlagRequired("student")
	_ = previewCmd.MarkFlagRequired("course")
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	date, err := dateFlag(cmd, "date")
	if err != nil {
		return err
	}
	studentID, _ := cmd.Flags().GetString("student")
	courseID, _ := cmd.Flags().GetString("course")

	a, err := openApp(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	dto, err := a.Preview.Handle(ctx, query.PreviewDecisionQuery{
		StudentID: studentID,
		CourseID:  courseID,
		Today:     date,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(dto)
}
