package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/savaki/changeset-replace/cmd/changeset-replace/commands"
	"github.com/savaki/changeset-replace/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "changeset-replace",
		Usage: "Inspect CodePipeline change set replacement jobs",
		Description: `Offline tooling for the changeset-replace Lambda.

This tool provides commands for:
  - Showing the change set a job would create, with artifact references resolved
  - Resolving a single artifact reference expression against a job's input artifacts

Neither command assumes a role, touches CloudFormation or reports to CodePipeline.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables (e.g. Param_* overrides) from this file",
			},
		},
		Before: func(c *cli.Context) error {
			if filename := c.String("env-file"); filename != "" {
				if err := godotenv.Load(filename); err != nil {
					return fmt.Errorf("failed to load env file: %w", err)
				}
			}
			return nil
		},
		Commands: []*cli.Command{
			commands.PlanCommand(&logger),
			commands.ResolveCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
