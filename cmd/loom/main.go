// Package main is the entry point for the loom build tool.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"

	"github.com/loomworks/loom/cmd/loom/commands"
	"github.com/loomworks/loom/internal/adapters/config"
	"github.com/loomworks/loom/internal/adapters/logger"
	"github.com/loomworks/loom/internal/app"
	"github.com/loomworks/loom/internal/core/domain"
	_ "github.com/loomworks/loom/internal/wiring"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 0. Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Initialize application components
	components, _, err := graft.ExecuteFor[*app.Components](ctx)
	if err != nil {
		// Logger is not available yet if initialization failed
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}

	// 2. Interface - CLI
	cli := commands.New(components.App)
	cli.SetSetupHook(func(configPath string, verbose bool) {
		if loader, ok := components.Loader.(*config.FileLoader); ok {
			loader.Filename = configPath
		}
		if log, ok := components.Logger.(*logger.Logger); ok {
			log.SetVerbose(verbose)
		}
	})

	// 3. Execution
	if err := cli.Execute(ctx); err != nil {
		if errors.Is(err, domain.ErrBuildExecutionFailed) {
			// Failures are already reported per target.
			return 1
		}
		components.Logger.Error(err)
		return 1
	}
	return 0
}
