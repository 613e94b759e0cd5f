package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newOutdatedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outdated [targets...]",
		Short: "List targets that would rebuild, without building anything",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := runOptions(cmd, args)
			if err != nil {
				return err
			}

			outdated, err := c.app.Outdated(cmd.Context(), opts)
			if err != nil {
				return err
			}
			for _, name := range outdated {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.Flags().String("trigger", "", "Staleness policy: any, command, depends, file, always")

	return cmd
}
