package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alem-hub/course-nudge/config"
	"github.com/alem-hub/course-nudge/internal/domain/nudge"
)

var validateRulesCmd = &cobra.Command{
	Use:   "validate-rules [file]",
	Short: "Validate an engine rules file",
	Long: `Decode a YAML rules file on top of the built-in defaults and validate it,
together with the built-in code catalog.

Without a file argument the defaults are validated. --print writes the
effective rules as YAML.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidateRules,
}

func init() {
	validateRulesCmd.Flags().Bool("print", false, "Print the effective rules as YAML")
}

func runValidateRules(cmd *cobra.Command, args []string) error {
	rules := nudge.DefaultRules()
	source := "built-in defaults"
	if len(args) == 1 {
		var err error
		if rules, err = config.LoadRules(args[0]); err != nil {
			return err
		}
		source = args[0]
	} else if err := rules.Validate(); err != nil {
		return err
	}

	if _, err := nudge.NewEngine(rules); err != nil {
		return fmt.Errorf("engine rejected rules: %w", err)
	}

	if p, _ := cmd.Flags().GetBool("print"); p {
		out, err := config.MarshalRules(rules)
		if err != nil {
			return err
		}
		_, _ = os.Stdout.Write(out)
		return nil
	}

	fmt.Printf("rules OK (%s)\n", source)
	return nil
}
