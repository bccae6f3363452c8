package services

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
)

// CodePipelineAPI is the subset of the CodePipeline client used to report job results
type CodePipelineAPI interface {
	PutJobSuccessResult(ctx context.Context, params *codepipeline.PutJobSuccessResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobSuccessResultOutput, error)
	PutJobFailureResult(ctx context.Context, params *codepipeline.PutJobFailureResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobFailureResultOutput, error)
}

// PipelineReporter reports job outcomes back to CodePipeline
type PipelineReporter struct {
	client CodePipelineAPI
}

func NewPipelineReporter(client CodePipelineAPI) *PipelineReporter {
	return &PipelineReporter{
		client: client,
	}
}

func (p *PipelineReporter) PutJobSuccess(ctx context.Context, jobID string) error {
	_, err := p.client.PutJobSuccessResult(ctx, &codepipeline.PutJobSuccessResultInput{
		JobId: aws.String(jobID),
	})
	if err != nil {
		return fmt.Errorf("failed to put job success result for %s: %w", jobID, err)
	}
	return nil
}

// PutJobFailure marks the job as failed with failure type JobFailed
func (p *PipelineReporter) PutJobFailure(ctx context.Context, jobID, message, executionID string) error {
	_, err := p.client.PutJobFailureResult(ctx, &codepipeline.PutJobFailureResultInput{
		JobId: aws.String(jobID),
		FailureDetails: &types.FailureDetails{
			Type:                types.FailureTypeJobFailed,
			Message:             aws.String(truncate(message, maxFailureMessage)),
			ExternalExecutionId: aws.String(executionID),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put job failure result for %s: %w", jobID, err)
	}
	return nil
}

// CodePipeline rejects failure messages longer than this
const maxFailureMessage = 5000

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
