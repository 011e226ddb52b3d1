package main

import (
	"context"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/allisson/extractvault/internal/app"
	"github.com/allisson/extractvault/internal/config"
)

func getCommands(version string) []*cli.Command {
	return slices.Concat(
		getSystemCommands(version),
		getKeyCommands(),
		getExtractionCommands(),
	)
}

// containerAction builds a container from the environment for one command run and shuts
// it down afterwards, even when ctx was cancelled.
func containerAction(
	run func(ctx context.Context, cmd *cli.Command, container *app.Container) error,
) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		container := app.NewContainer(config.Load())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), container.ShutdownTimeout())
			defer cancel()
			_ = container.Shutdown(shutdownCtx)
		}()
		return run(ctx, cmd, container)
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}
