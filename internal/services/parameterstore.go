package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/savaki/changeset-replace/internal/utils"
)

// Config holds the handler settings loaded from Parameter Store or the environment
type Config struct {
	LogLevel        string
	Debug           bool
	ParamPrefix     string        // environment variable prefix for parameter overrides
	SessionDuration time.Duration // zero uses the STS default
}

// ParameterStore defines the interface for loading handler configuration
type ParameterStore interface {
	// GetConfig loads all handler configuration
	GetConfig(ctx context.Context) (*Config, error)
}

// SSMAPI is the subset of the SSM client used to read configuration
type SSMAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client SSMAPI
	env    string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client SSMAPI, env string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		env:    env,
	}
}

// GetConfig reads every parameter under /{env}/changeset-replace
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	path := fmt.Sprintf("/%s/changeset-replace", s.env)

	params := make(map[string]string)
	paginator := ssm.NewGetParametersByPathPaginator(s.client, &ssm.GetParametersByPathInput{
		Path:           aws.String(path),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
		}
		for _, param := range page.Parameters {
			if param.Name != nil && param.Value != nil {
				name := strings.TrimPrefix(*param.Name, path+"/")
				params[name] = *param.Value
			}
		}
	}

	return newConfig(func(name string) string { return params[name] })
}

// EnvParameterStore implements ParameterStore using environment variables
type EnvParameterStore struct {
	lookup func(string) string
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore() *EnvParameterStore {
	return &EnvParameterStore{
		lookup: os.Getenv,
	}
}

var envNames = map[string]string{
	"log-level":        "LOG_LEVEL",
	"debug":            "DEBUG",
	"param-prefix":     "PARAM_PREFIX",
	"session-duration": "SESSION_DURATION",
}

// GetConfig loads all handler configuration from environment variables
func (e *EnvParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	return newConfig(func(name string) string { return e.lookup(envNames[name]) })
}

// STS accepts role sessions from 15 minutes up to 12 hours
const (
	minSessionDuration = 15 * time.Minute
	maxSessionDuration = 12 * time.Hour
)

func newConfig(get func(name string) string) (*Config, error) {
	config := &Config{
		LogLevel:    get("log-level"),
		ParamPrefix: get("param-prefix"),
	}

	if v := get("debug"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid debug setting %q: %w", v, err)
		}
		config.Debug = debug
	}

	if v := get("session-duration"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid session duration %q: %w", v, err)
		}
		if d < minSessionDuration || d > maxSessionDuration {
			return nil, fmt.Errorf("invalid session duration %q: must be between %v and %v", v, minSessionDuration, maxSessionDuration)
		}
		config.SessionDuration = d
	}

	// Set defaults
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.Debug {
		config.LogLevel = "debug"
	}
	if config.ParamPrefix == "" {
		config.ParamPrefix = utils.DefaultParamPrefix
	}

	return config, nil
}
