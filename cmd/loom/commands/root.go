// Package commands implements the CLI commands for the loom build tool.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/adapters/config"
	"github.com/loomworks/loom/internal/app"
)

// CLI represents the command line interface for loom.
type CLI struct {
	app     *app.App
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
func New(a *app.App) *CLI {
	rootCmd := &cobra.Command{
		Use:           "loom",
		Short:         "A make-like runner for data pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultFilename, "Path to the plan file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newMakeCmd())
	rootCmd.AddCommand(c.newOutdatedCmd())
	rootCmd.AddCommand(c.newGraphCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetSetupHook sets up a PersistentPreRun function that retrieves the
// persistent flags and calls the provided callback before any command runs.
func (c *CLI) SetSetupHook(fn func(configPath string, verbose bool)) {
	c.rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return err
		}
		fn(configPath, verbose)
		return nil
	}
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects command output. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// runOptions assembles app run options from a command's flags and args.
func runOptions(cmd *cobra.Command, targets []string) (app.Options, error) {
	opts := app.Options{Targets: targets}

	if f := cmd.Flags().Lookup("jobs"); f != nil {
		jobs, err := cmd.Flags().GetInt("jobs")
		if err != nil {
			return app.Options{}, err
		}
		opts.Jobs = jobs
	}
	if f := cmd.Flags().Lookup("trigger"); f != nil {
		trigger, err := cmd.Flags().GetString("trigger")
		if err != nil {
			return app.Options{}, err
		}
		opts.Trigger = trigger
	}
	if f := cmd.Flags().Lookup("stop-on-error"); f != nil {
		stop, err := cmd.Flags().GetBool("stop-on-error")
		if err != nil {
			return app.Options{}, err
		}
		opts.StopOnError = stop
	}

	return opts, nil
}
