package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pmtracker",
		Short: "Preventive maintenance execution tracker",
		Long: `pmtracker serves the preventive maintenance workflow: PM documents and
their task lists, guided executions with photo evidence, PDF reports and the
shift leader review.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging regardless of env")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newTemplateCommand())
	cmd.AddCommand(newReportCommand())

	return cmd
}
