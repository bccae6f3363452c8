package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/savaki/changeset-replace/internal/errors"
)

// STSAPI is the subset of the STS client used to assume cross account roles
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// RoleAssumer exchanges the handler's credentials for short lived credentials
// in the target account
type RoleAssumer struct {
	client   STSAPI
	duration time.Duration
}

// NewRoleAssumer returns a RoleAssumer. A zero duration uses the STS default.
func NewRoleAssumer(client STSAPI, duration time.Duration) *RoleAssumer {
	return &RoleAssumer{
		client:   client,
		duration: duration,
	}
}

func (r *RoleAssumer) AssumeRole(ctx context.Context, roleArn, sessionName string) (aws.Credentials, error) {
	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleArn),
		RoleSessionName: aws.String(sessionName),
	}
	if r.duration > 0 {
		input.DurationSeconds = aws.Int32(int32(r.duration / time.Second))
	}

	result, err := r.client.AssumeRole(ctx, input)
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("failed to assume role %s: %w", roleArn, err)
	}

	c := result.Credentials
	if c == nil || c.AccessKeyId == nil || c.SecretAccessKey == nil {
		return aws.Credentials{}, fmt.Errorf("%w: %s", errors.ErrNoCredentials, roleArn)
	}

	creds := aws.Credentials{
		AccessKeyID:     aws.ToString(c.AccessKeyId),
		SecretAccessKey: aws.ToString(c.SecretAccessKey),
		SessionToken:    aws.ToString(c.SessionToken),
		Source:          "AssumeRole",
	}
	if c.Expiration != nil {
		creds.CanExpire = true
		creds.Expires = *c.Expiration
	}
	return creds, nil
}

// NewStackClient returns a CloudFormation client that signs requests with creds
// instead of the credentials in cfg
func NewStackClient(cfg aws.Config, creds aws.Credentials) *cloudformation.Client {
	return cloudformation.NewFromConfig(cfg, func(o *cloudformation.Options) {
		o.Credentials = credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	})
}
