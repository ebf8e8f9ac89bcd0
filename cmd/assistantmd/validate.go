package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/runtime"
)

// validateCmd parses every workflow under data_root without executing
// anything (context templates are not checked), surfacing parse/validation
// errors the way
// the teacher's own `validate` subcommand reports a config's problems.
// It exits non-zero when any file failed to load, for CI use.
func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Parse every workflow, reporting errors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dataRoot, _ := cmd.Flags().GetString("data-root")
			systemRoot, _ := cmd.Flags().GetString("system-root")

			rc, err := runtime.Bootstrap(cmd.Context(), runtime.Config{
				DataRoot:             dataRoot,
				SystemRoot:           systemRoot,
				SchedulerWorkerLimit: 4,
			})
			if err != nil {
				return err
			}

			result, err := rc.Validate(cmd.Context())
			if err != nil {
				return err
			}
			if result.ErrorSummary.TotalErrors == 0 {
				fmt.Printf("%d definitions loaded, no errors\n", result.DefinitionsLoaded)
				return nil
			}
			for _, e := range result.Errors {
				fmt.Printf("%s: %v\n", e.File, e.Error)
			}
			os.Exit(1)
			return nil
		},
	}
}
