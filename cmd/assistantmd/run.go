package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/runtime"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/step"
)

// runCmd runs one workflow manually by its global_id (spec §4.H "manual
// invocation is always allowed regardless of schedule/enabled"), optionally
// restricted to a single step by heading.
func runCmd() *cobra.Command {
	var stepName string
	cmd := &cobra.Command{
		Use:   "run <global_id>",
		Short: "Run a workflow once, manually",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			record, err := rc.RunWorkflow(cmd.Context(), args[0], step.CauseManual, stepName)
			if err != nil {
				return err
			}
			for _, s := range record.Steps {
				if s.Skipped {
					fmt.Printf("[%s] skipped (%s)\n", s.Heading, s.SkipReason)
					continue
				}
				fmt.Printf("[%s] %s\n", s.Heading, s.Output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&stepName, "step", "", "Run only the step with this heading")
	return cmd
}
