package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/savaki/changeset-replace/internal/di"
	"github.com/savaki/changeset-replace/internal/job"
	"github.com/savaki/changeset-replace/internal/resolver"
	"github.com/urfave/cli/v2"
)

// ExpressionResolver expands a reference expression against a job's artifacts
type ExpressionResolver interface {
	Resolve(ctx context.Context, raw string, job events.CodePipelineJob) (string, error)
}

// ResolveCommand returns the resolve command for debugging reference expressions
func ResolveCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve an artifact reference expression against a job's input artifacts",
		ArgsUsage: "<expression>",
		Description: `Expressions take the form ${Artifact::File} or ${Artifact::File::Key}.
Only the first expression in the argument is replaced; text around it is kept.

Examples:
  changeset-replace resolve --job event.json '${BuildOutput::template-url.txt}'
  changeset-replace resolve --job event.json 'https://${BuildOutput::out.json::Url}'`,
		Flags: []cli.Flag{
			jobFlag,
			envFlag,
		},
		Action: func(c *cli.Context) error {
			return resolveAction(c, logger)
		},
	}
}

func resolveAction(c *cli.Context, logger *zerolog.Logger) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one expression, got %d", c.NArg())
	}

	pipelineJob, err := job.LoadFile(c.String("job"))
	if err != nil {
		return err
	}

	container, err := newContainer(c, logger)
	if err != nil {
		return err
	}
	r, err := di.Get[*resolver.Resolver](container)
	if err != nil {
		return err
	}

	ctx := logger.WithContext(c.Context)
	return runResolve(ctx, r, pipelineJob, c.Args().First(), c.App.Writer)
}

func runResolve(ctx context.Context, r ExpressionResolver, pipelineJob events.CodePipelineJob, expression string, w io.Writer) error {
	value, err := r.Resolve(ctx, expression, pipelineJob)
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", expression, err)
	}

	_, err = fmt.Fprintln(w, value)
	return err
}
