package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Work with execution reports",
	}
	cmd.AddCommand(newReportRenderCommand(), newReportRetryCommand())
	return cmd
}

func newReportRenderCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "render <execution-id>",
		Short: "Render the PDF report of an execution to a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadApp(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.executionSvc.Render(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if output == "" {
				output = rep.FileName
			}
			if err := os.WriteFile(output, rep.Data, 0o644); err != nil {
				return errors.Wrapf(err, "write %s", output)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d pages, %d photos unavailable)\n", output, rep.Pages, rep.MissingPhotos)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to the report file name)")
	return cmd
}

func newReportRetryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <execution-id>",
		Short: "Compile and store a pending report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadApp(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.executionSvc.RetryReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", res.ReportURL)
			return nil
		},
	}
}
