// Package job decodes the UserParameters carried by a CodePipeline job into a
// CloudFormation change set request.
package job

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/savaki/changeset-replace/internal/errors"
	"github.com/savaki/changeset-replace/internal/utils"
)

// ChangeSetConfiguration is a CreateChangeSet request plus an optional map of
// parameter overrides. Fields use the CloudFormation API names (StackName,
// ChangeSetName, TemplateURL, Capabilities, ...).
type ChangeSetConfiguration struct {
	cloudformation.CreateChangeSetInput
	ParameterOverrides map[string]string `json:"ParameterOverrides,omitempty"`
}

// UserParameters is the JSON document configured on the pipeline action
type UserParameters struct {
	RoleArn       string                 `json:"RoleArn"`
	Configuration ChangeSetConfiguration `json:"Configuration"`
}

// Input returns the request to submit to CloudFormation
func (u *UserParameters) Input() *cloudformation.CreateChangeSetInput {
	input := u.Configuration.CreateChangeSetInput
	return &input
}

// Parse decodes the job's UserParameters. The configured parameter list is
// replaced by the explicit ParameterOverrides followed by any {prefix}{Key}
// variables found in environ.
func Parse(job events.CodePipelineJob, environ []string, prefix string) (*UserParameters, error) {
	raw := job.Data.ActionConfiguration.Configuration.UserParameters
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: UserParameters not set", errors.ErrMalformedJobInput)
	}

	var params UserParameters
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("%w: failed to parse UserParameters: %w", errors.ErrMalformedJobInput, err)
	}

	if err := params.validate(); err != nil {
		return nil, err
	}

	cfg := &params.Configuration
	cfg.Parameters = utils.MergeParameters(cfg.ParameterOverrides, utils.EnvOverrides(environ, prefix))
	cfg.ParameterOverrides = nil

	return &params, nil
}

func (u *UserParameters) validate() error {
	var missing []string
	if u.RoleArn == "" {
		missing = append(missing, "RoleArn")
	}
	if aws.ToString(u.Configuration.StackName) == "" {
		missing = append(missing, "Configuration.StackName")
	}
	if aws.ToString(u.Configuration.ChangeSetName) == "" {
		missing = append(missing, "Configuration.ChangeSetName")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields %s", errors.ErrMalformedJobInput, strings.Join(missing, ", "))
	}
	return nil
}
