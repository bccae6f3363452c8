package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/savaki/changeset-replace/internal/changeset"
	"github.com/savaki/changeset-replace/internal/di"
	"github.com/savaki/changeset-replace/internal/job"
	"github.com/savaki/changeset-replace/internal/services"
	"github.com/segmentio/ksuid"
	"github.com/urfave/cli/v2"
)

// Runner replaces the change set for one job and reports the outcome
type Runner interface {
	Run(ctx context.Context, pipelineJob events.CodePipelineJob, executionID string) error
}

type Handler struct {
	runner Runner
}

func NewHandler(runner Runner) *Handler {
	return &Handler{
		runner: runner,
	}
}

// HandleCodePipelineJob processes one CodePipeline job invocation. Job failures
// are reported to CodePipeline; only a failure to report fails the invocation.
func (h *Handler) HandleCodePipelineJob(ctx context.Context, event events.CodePipelineJobEvent) error {
	executionID := executionID(ctx)

	logger := zerolog.Ctx(ctx).With().Str("execution_id", executionID).Logger()
	ctx = logger.WithContext(ctx)

	logger.Info().
		Str("job_id", event.CodePipelineJob.ID).
		Str("account_id", event.CodePipelineJob.AccountID).
		Int("input_artifacts", len(event.CodePipelineJob.Data.InputArtifacts)).
		Msg("Received CodePipeline job")

	return h.runner.Run(ctx, event.CodePipelineJob, executionID)
}

// executionID is the Lambda request id, or a fresh KSUID when invoked outside Lambda
func executionID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return ksuid.New().String()
}

// newReplacer builds the container, applies the configured log level and
// returns the replacer together with the adjusted logger
func newReplacer(ctx context.Context, env string, logger zerolog.Logger) (*changeset.Replacer, zerolog.Logger, error) {
	container, err := di.New(env, di.WithContext(logger.WithContext(ctx)))
	if err != nil {
		return nil, logger, fmt.Errorf("failed to create container: %w", err)
	}

	config, err := di.Get[*services.Config](container)
	if err != nil {
		return nil, logger, err
	}
	logger, err = di.ConfigureLogger(logger, config)
	if err != nil {
		return nil, logger, err
	}

	// the remaining providers only build clients from the already loaded AWS config
	replacer := di.MustGet[*changeset.Replacer](container)
	return replacer, logger, nil
}

func lookupEnv() (string, error) {
	env := os.Getenv("ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" && os.Getenv("DISABLE_SSM") != "true" {
		return "", fmt.Errorf("ENV or ENVIRONMENT variable is required unless DISABLE_SSM=true")
	}
	return env, nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "changeset-replace").Logger()

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		// Lambda mode
		env, err := lookupEnv()
		if err != nil {
			logger.Error().Err(err).Msg("Invalid environment")
			os.Exit(1)
		}

		replacer, logger, err := newReplacer(context.Background(), env, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create handler")
			os.Exit(1)
		}
		handler := NewHandler(replacer)

		// Wrap handler to inject logger into context
		wrappedHandler := func(ctx context.Context, event events.CodePipelineJobEvent) error {
			ctx = logger.WithContext(ctx)
			return handler.HandleCodePipelineJob(ctx, event)
		}
		lambda.Start(wrappedHandler)
		return
	}

	// CLI mode
	app := &cli.App{
		Name:  "changeset-replace",
		Usage: "Replace a CloudFormation change set for a CodePipeline job read from a file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "job",
				Aliases:  []string{"j"},
				Usage:    "JSON or YAML file holding the CodePipeline job event",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables (e.g. Param_* overrides) from this file",
			},
			&cli.BoolFlag{
				Name:    "disable-ssm",
				Usage:   "Disable AWS Systems Manager Parameter Store (use environment variables)",
				EnvVars: []string{"DISABLE_SSM"},
			},
		},
		Action: func(c *cli.Context) error {
			if filename := c.String("env-file"); filename != "" {
				if err := godotenv.Load(filename); err != nil {
					return fmt.Errorf("failed to load env file: %w", err)
				}
			}
			if c.Bool("disable-ssm") {
				os.Setenv("DISABLE_SSM", "true")
			}

			env, err := lookupEnv()
			if err != nil {
				return err
			}

			pipelineJob, err := job.LoadFile(c.String("job"))
			if err != nil {
				return err
			}

			replacer, logger, err := newReplacer(c.Context, env, logger)
			if err != nil {
				return fmt.Errorf("failed to create handler: %w", err)
			}

			ctx := logger.WithContext(c.Context)
			event := events.CodePipelineJobEvent{CodePipelineJob: pipelineJob}
			return NewHandler(replacer).HandleCodePipelineJob(ctx, event)
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
