package main

import (
	"context"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/extractvault/cmd/app/commands"
	"github.com/allisson/extractvault/internal/app"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-field-key",
			Usage: "Generate a new field encryption key version",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "id",
					Aliases: []string{"i"},
					Value:   "",
					Usage:   "Key version ID (e.g., field-key-2026)",
				},
				&cli.StringFlag{
					Name:  "kms-provider",
					Value: "",
					Usage: "KMS provider (localsecrets, gcpkms, awskms, azurekeyvault, hashivault)",
				},
				&cli.StringFlag{
					Name:  "kms-key-uri",
					Value: "",
					Usage: "KMS key URI (e.g., base64key://, gcpkms://projects/.../cryptoKeys/...)",
				},
				&cli.BoolFlag{
					Name:  "append",
					Value: false,
					Usage: "Append the new version to the current FIELD_KEYS value",
				},
			},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				existing := ""
				if cmd.Bool("append") {
					existing = os.Getenv("FIELD_KEYS")
				}

				return commands.RunCreateFieldKey(
					ctx,
					container.KMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("kms-provider"),
					cmd.String("kms-key-uri"),
					existing,
				)
			}),
		},
		{
			Name:  "issue-token",
			Usage: "Issue a bearer token for an actor",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "actor",
					Aliases:  []string{"a"},
					Required: true,
					Usage:    "Actor ID placed in the token subject",
				},
				&cli.DurationFlag{
					Name:  "ttl",
					Value: time.Hour,
					Usage: "Token lifetime",
				},
				&cli.DurationFlag{
					Name:  "elevated-for",
					Value: 0,
					Usage: "Mark the session elevated for this long (0 disables)",
				},
				formatFlag(),
			},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				provider, err := container.ElevationProvider()
				if err != nil {
					return err
				}

				return commands.RunIssueToken(
					provider,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("actor"),
					cmd.Duration("ttl"),
					cmd.Duration("elevated-for"),
					cmd.String("format"),
				)
			}),
		},
	}
}
