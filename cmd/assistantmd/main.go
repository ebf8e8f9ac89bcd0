package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/DodgyBadger/AssistantMD-sub001/pkg/logger"
)

var log logger.Logger

func main() {
	rootCmd := &cobra.Command{
		Use:   "assistantmd",
		Short: "AssistantMD - a markdown-first agent host",
		Long:  "A command-line interface for running and scheduling AssistantMD workflows and chat context templates.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			level := logger.InfoLevel
			if verbose {
				level = logger.DebugLevel
			}
			log = logger.NewLogger(logger.Config{Level: level, Output: os.Stderr})
			return nil
		},
	}

	rootCmd.PersistentFlags().StringP("data-root", "", ".", "Directory containing one or more vaults")
	rootCmd.PersistentFlags().StringP("system-root", "", ".assistantmd", "Directory holding settings.yaml, secrets.yaml, and shared context templates")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(rescanCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
