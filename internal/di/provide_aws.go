package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/savaki/changeset-replace/internal/services"
)

func ProvideAWSConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

func ProvideS3Client(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg)
}

func ProvideSTSClient(cfg aws.Config) *sts.Client {
	return sts.NewFromConfig(cfg)
}

func ProvideCodePipelineClient(cfg aws.Config) *codepipeline.Client {
	return codepipeline.NewFromConfig(cfg)
}

// ProvideRoleAssumer uses the handler's own credentials to assume job roles
func ProvideRoleAssumer(client *sts.Client, config *services.Config) *services.RoleAssumer {
	return services.NewRoleAssumer(client, config.SessionDuration)
}

func ProvidePipelineReporter(client *codepipeline.Client) *services.PipelineReporter {
	return services.NewPipelineReporter(client)
}
