// Package changeset replaces a named CloudFormation change set on behalf of a
// CodePipeline job and reports the outcome back to the pipeline.
package changeset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	apperrors "github.com/savaki/changeset-replace/internal/errors"
	"github.com/savaki/changeset-replace/internal/job"
	"github.com/savaki/changeset-replace/internal/resolver"
	"github.com/savaki/gox/slicex"
)

// SessionName is the role session name used for every assumed role
const SessionName = "Codepipeline-CloudFormation-ChangeSetReplace-S3"

// JobReporter reports job outcomes to the pipeline
type JobReporter interface {
	PutJobSuccess(ctx context.Context, jobID string) error
	PutJobFailure(ctx context.Context, jobID, message, executionID string) error
}

// RoleAssumer issues temporary credentials for a role
type RoleAssumer interface {
	AssumeRole(ctx context.Context, roleArn, sessionName string) (aws.Credentials, error)
}

// Resolver expands artifact references in configuration strings
type Resolver interface {
	Resolve(ctx context.Context, raw string, job events.CodePipelineJob) (string, error)
}

// StackAPI duck types the CloudFormation client operations we use
type StackAPI interface {
	ListChangeSets(ctx context.Context, params *cloudformation.ListChangeSetsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ListChangeSetsOutput, error)
	DeleteChangeSet(ctx context.Context, params *cloudformation.DeleteChangeSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteChangeSetOutput, error)
	CreateChangeSet(ctx context.Context, params *cloudformation.CreateChangeSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateChangeSetOutput, error)
}

// StackClientFactory builds a CloudFormation client scoped to the given credentials
type StackClientFactory func(creds aws.Credentials) StackAPI

// Replacer creates (or replaces) the change set described by a pipeline job
type Replacer struct {
	reporter    JobReporter
	assumer     RoleAssumer
	resolver    Resolver
	stacks      StackClientFactory
	environ     func() []string
	paramPrefix string
}

type Input struct {
	Reporter    JobReporter
	Assumer     RoleAssumer
	Resolver    Resolver
	Stacks      StackClientFactory
	Environ     func() []string // source of parameter override variables, typically os.Environ
	ParamPrefix string
}

func New(input Input) *Replacer {
	return &Replacer{
		reporter:    input.Reporter,
		assumer:     input.Assumer,
		resolver:    input.Resolver,
		stacks:      input.Stacks,
		environ:     input.Environ,
		paramPrefix: input.ParamPrefix,
	}
}

// Plan parses the job and resolves the template location without calling any
// service other than the artifact store.
func (r *Replacer) Plan(ctx context.Context, pipelineJob events.CodePipelineJob) (*job.UserParameters, error) {
	logger := zerolog.Ctx(ctx)

	var environ []string
	if r.environ != nil {
		environ = r.environ()
	}

	params, err := job.Parse(pipelineJob, environ, r.paramPrefix)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("stack_name", aws.ToString(params.Configuration.StackName)).
		Str("change_set_name", aws.ToString(params.Configuration.ChangeSetName)).
		Str("template_url", aws.ToString(params.Configuration.TemplateURL)).
		Strs("parameter_keys", parameterKeys(params)).
		Msg("Parsed change set input")

	if params.Configuration.TemplateURL != nil {
		templateURL, err := r.resolver.Resolve(ctx, *params.Configuration.TemplateURL, pipelineJob)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve TemplateURL: %w", err)
		}
		if ref, ok := resolver.Parse(templateURL); ok {
			return nil, fmt.Errorf("%w: TemplateURL still references '%s::%s' after resolution", apperrors.ErrMalformedJobInput, ref.Artifact, ref.File)
		}
		params.Configuration.TemplateURL = aws.String(templateURL)

		logger.Debug().
			Str("template_url", templateURL).
			Msg("Resolved TemplateURL")
	}

	return params, nil
}

// Run replaces the change set and reports the outcome to the pipeline using
// executionID as the external execution id. Failures of the job are reported,
// not returned; the returned error is the error from reporting.
func (r *Replacer) Run(ctx context.Context, pipelineJob events.CodePipelineJob, executionID string) (err error) {
	logger := zerolog.Ctx(ctx).With().Str("job_id", pipelineJob.ID).Logger()
	ctx = logger.WithContext(ctx)

	defer func(begin time.Time) {
		logger.Info().
			Interface("error", err).
			Dur("duration", time.Since(begin)).
			Msg("Run completed")
	}(time.Now())

	if replaceErr := r.replace(ctx, pipelineJob); replaceErr != nil {
		event := logger.Error().Err(replaceErr)
		var apiErr smithy.APIError
		if errors.As(replaceErr, &apiErr) {
			event = event.Str("error_code", apiErr.ErrorCode())
		}
		event.Msg("An error occurred running ChangeSetReplace S3")

		return r.reporter.PutJobFailure(ctx, pipelineJob.ID, replaceErr.Error(), executionID)
	}

	return r.reporter.PutJobSuccess(ctx, pipelineJob.ID)
}

func (r *Replacer) replace(ctx context.Context, pipelineJob events.CodePipelineJob) error {
	logger := zerolog.Ctx(ctx)

	params, err := r.Plan(ctx, pipelineJob)
	if err != nil {
		return err
	}

	creds, err := r.assumer.AssumeRole(ctx, params.RoleArn, SessionName)
	if err != nil {
		return err
	}
	client := r.stacks(creds)

	input := params.Input()
	stackName := aws.ToString(input.StackName)
	changeSetName := aws.ToString(input.ChangeSetName)

	exists, err := changeSetExists(ctx, client, stackName, changeSetName)
	if err != nil {
		return err
	}

	if exists {
		logger.Info().
			Str("stack_name", stackName).
			Str("change_set_name", changeSetName).
			Msg("Deleting existing change set")

		_, err = client.DeleteChangeSet(ctx, &cloudformation.DeleteChangeSetInput{
			StackName:     aws.String(stackName),
			ChangeSetName: aws.String(changeSetName),
		})
		if err != nil {
			return fmt.Errorf("failed to delete change set %s: %w", changeSetName, err)
		}
	}

	result, err := client.CreateChangeSet(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create change set %s: %w", changeSetName, err)
	}

	logger.Info().
		Str("stack_name", stackName).
		Str("change_set_name", changeSetName).
		Str("change_set_id", aws.ToString(result.Id)).
		Bool("replaced", exists).
		Msg("Created change set")
	return nil
}

// changeSetExists pages through the stack's change sets looking for name
func changeSetExists(ctx context.Context, client StackAPI, stackName, name string) (bool, error) {
	var token *string
	for {
		out, err := client.ListChangeSets(ctx, &cloudformation.ListChangeSetsInput{
			StackName: aws.String(stackName),
			NextToken: token,
		})
		if err != nil {
			if isStackNotFound(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to list change sets for %s: %w", stackName, err)
		}

		for _, summary := range out.Summaries {
			if aws.ToString(summary.ChangeSetName) == name {
				return true, nil
			}
		}

		if aws.ToString(out.NextToken) == "" {
			return false, nil
		}
		token = out.NextToken
	}
}

// isStackNotFound reports whether err is CloudFormation's response for a stack
// that has not been created yet (e.g. a change set of type CREATE)
func isStackNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist")
	}
	return false
}

func parameterKeys(params *job.UserParameters) []string {
	return slicex.Map(params.Configuration.Parameters, func(p types.Parameter) string {
		return aws.ToString(p.ParameterKey)
	})
}
