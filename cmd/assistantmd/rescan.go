package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/runtime"
)

// rescanCmd bootstraps just long enough to run one Workflow/Context
// Loader rescan and Scheduler reconcile, then reports what it found
// (spec §4.J/§4.K). Useful after editing vault files by hand without a
// `serve` process already watching them.
func rescanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescan",
		Short: "Rescan vaults and reconcile scheduled jobs",
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

			result, err := rc.Rescan(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf(
				"scanned %d files, loaded %d definitions, %d errors\n",
				result.FilesProcessed, result.DefinitionsLoaded, result.ErrorSummary.TotalErrors,
			)
			for file, count := range result.ErrorSummary.ByFile {
				fmt.Printf("  %s: %d error(s)\n", file, count)
			}
			return nil
		},
	}
}
