package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/savaki/changeset-replace/internal/changeset"
	"github.com/savaki/changeset-replace/internal/di"
	"github.com/savaki/changeset-replace/internal/job"
	"github.com/urfave/cli/v2"
)

// Planner resolves a job into the change set it would create
type Planner interface {
	Plan(ctx context.Context, pipelineJob events.CodePipelineJob) (*job.UserParameters, error)
}

// PlanCommand returns the plan command which prints the resolved change set input
func PlanCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Show the change set a CodePipeline job would create",
		Description: `Parses the job's UserParameters, merges parameter overrides from the
environment and resolves the TemplateURL reference against the job's input
artifacts. The result is printed as JSON.

Artifacts are downloaded with your own credentials.

Examples:
  # Plan a captured job event
  changeset-replace plan --job event.json

  # Supply Param_* overrides from a file
  changeset-replace --env-file overrides.env plan --job event.yaml`,
		Flags: []cli.Flag{
			jobFlag,
			envFlag,
		},
		Action: func(c *cli.Context) error {
			return planAction(c, logger)
		},
	}
}

func planAction(c *cli.Context, logger *zerolog.Logger) error {
	if err := requireEnv(c); err != nil {
		return err
	}

	pipelineJob, err := job.LoadFile(c.String("job"))
	if err != nil {
		return err
	}

	container, err := newContainer(c, logger)
	if err != nil {
		return err
	}
	replacer, err := di.Get[*changeset.Replacer](container)
	if err != nil {
		return err
	}

	ctx := logger.WithContext(c.Context)
	return runPlan(ctx, replacer, pipelineJob, c.App.Writer)
}

func runPlan(ctx context.Context, planner Planner, pipelineJob events.CodePipelineJob, w io.Writer) error {
	params, err := planner.Plan(ctx, pipelineJob)
	if err != nil {
		return fmt.Errorf("failed to plan job %s: %w", pipelineJob.ID, err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(params)
}
