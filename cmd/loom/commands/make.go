package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/core/domain"
)

func (c *CLI) newMakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "make [targets...]",
		Short: "Build everything outdated, or the named targets and their dependencies",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := runOptions(cmd, args)
			if err != nil {
				return err
			}

			report, runErr := c.app.Make(cmd.Context(), opts)
			if report != nil {
				printReport(cmd, report)
			}
			return runErr
		},
	}

	cmd.Flags().IntP("jobs", "j", 0, "Parallel builds per stage (default from the plan)")
	cmd.Flags().String("trigger", "", "Staleness policy: any, command, depends, file, always")
	cmd.Flags().Bool("stop-on-error", false, "Skip later stages after the first failure")

	return cmd
}

func printReport(cmd *cobra.Command, report *domain.BuildReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report.Summary())

	for _, name := range report.WithStatus(domain.StatusFailed) {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed %s: %v\n", name, report.Entries[name].Err)
	}
	for _, name := range report.WithStatus(domain.StatusSkipped) {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s (after %s)\n", name, report.Entries[name].Cause)
	}
}
