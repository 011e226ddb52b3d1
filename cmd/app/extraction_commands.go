package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/extractvault/cmd/app/commands"
	"github.com/allisson/extractvault/internal/app"
)

func getExtractionCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "sweep-expired",
			Usage: "Delete unreviewed extraction records past their retention window",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Usage:   "Show how many records would be deleted without deleting",
				},
				formatFlag(),
			},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				sweeper, err := container.SweeperUseCase()
				if err != nil {
					return err
				}
				return commands.RunSweepExpired(
					ctx,
					sweeper,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			}),
		},
	}
}
