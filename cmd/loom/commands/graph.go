package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph [targets...]",
		Short: "Print the dependency graph as parallelizable stages",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := runOptions(cmd, args)
			if err != nil {
				return err
			}

			stages, err := c.app.Stages(cmd.Context(), opts)
			if err != nil {
				return err
			}
			for i, stage := range stages {
				fmt.Fprintf(cmd.OutOrStdout(), "stage %d: %s\n", i+1, strings.Join(stage, " "))
			}
			return nil
		},
	}
}
