package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/savaki/changeset-replace/internal/di"
	"github.com/urfave/cli/v2"
)

var envFlag = &cli.StringFlag{
	Name:    "env",
	Aliases: []string{"e"},
	Usage:   "Environment whose Parameter Store settings to load (ignored with DISABLE_SSM=true)",
	EnvVars: []string{"ENV", "ENVIRONMENT"},
}

var jobFlag = &cli.StringFlag{
	Name:     "job",
	Aliases:  []string{"j"},
	Usage:    "JSON or YAML file holding the CodePipeline job event (or just the job)",
	Required: true,
}

func newContainer(c *cli.Context, logger *zerolog.Logger) (di.Container, error) {
	container, err := di.New(c.String("env"), di.WithContext(logger.WithContext(c.Context)))
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	return container, nil
}

// requireEnv rejects an empty --env when configuration comes from Parameter Store
func requireEnv(c *cli.Context) error {
	if c.String("env") == "" && os.Getenv("DISABLE_SSM") != "true" {
		return fmt.Errorf("--env is required unless DISABLE_SSM=true")
	}
	return nil
}
