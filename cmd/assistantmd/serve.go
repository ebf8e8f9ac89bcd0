package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/runtime"
)

// serveCmd bootstraps the Runtime Context and runs the Scheduler's tick
// loop until interrupted (spec §4.L/§5). It is the long-running host
// process: the chat/schedule entry points (RunWorkflow/BuildContext) are
// exposed to whatever thin transport the deployment wires in front of
// this process, which is out of scope for this repo (spec §1 Non-goals).
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Bootstrap the runtime and run the scheduler loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dataRoot, _ := cmd.Flags().GetString("data-root")
			systemRoot, _ := cmd.Flags().GetString("system-root")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			rc, err := runtime.Bootstrap(ctx, runtime.Config{
				DataRoot:             dataRoot,
				SystemRoot:           systemRoot,
				SchedulerWorkerLimit: 4,
			})
			if err != nil {
				return err
			}
			log.Info("runtime bootstrapped", "data_root", dataRoot, "system_root", systemRoot)

			rc.StartScheduler(ctx)
			<-ctx.Done()
			log.Info("shutting down")
			return nil
		},
	}
}
