package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "studybuddy",
		Short: "StudyBuddy backend",
		Long: `StudyBuddy turns uploaded course material into topics, notes, quizzes and exams.

Commands:
  serve            Run the HTTP API (and inline jobs in development)
  worker           Consume jobs from the Redis queue
  sweep            Fail jobs stuck in processing
  migrate          Create or update the database schema
  export-feedback  Write rated content to object storage`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default ./studybuddy.yaml)")

	root.AddCommand(
		newServeCommand(),
		newWorkerCommand(),
		newSweepCommand(),
		newMigrateCommand(),
		newExportFeedbackCommand(),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "studybuddy %s (%s)\n", cfg.Version, cfg.Environment)
			return nil
		},
	}
}
