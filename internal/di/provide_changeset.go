package di

import (
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/savaki/changeset-replace/internal/artifact"
	"github.com/savaki/changeset-replace/internal/changeset"
	"github.com/savaki/changeset-replace/internal/resolver"
	"github.com/savaki/changeset-replace/internal/services"
)

// ProvideFetcher reads artifacts with the handler's credentials; the artifact
// credentials CodePipeline sends with the job are not used.
func ProvideFetcher(client *s3.Client) *artifact.Fetcher {
	return artifact.NewFetcher(client)
}

func ProvideResolver(fetcher *artifact.Fetcher) *resolver.Resolver {
	return resolver.New(fetcher)
}

// ProvideStackClientFactory builds a fresh CloudFormation client per job from
// the assumed role credentials
func ProvideStackClientFactory(cfg aws.Config) changeset.StackClientFactory {
	return func(creds aws.Credentials) changeset.StackAPI {
		return services.NewStackClient(cfg, creds)
	}
}

func ProvideReplacer(
	reporter *services.PipelineReporter,
	assumer *services.RoleAssumer,
	res *resolver.Resolver,
	stacks changeset.StackClientFactory,
	config *services.Config,
) *changeset.Replacer {
	return changeset.New(changeset.Input{
		Reporter:    reporter,
		Assumer:     assumer,
		Resolver:    res,
		Stacks:      stacks,
		Environ:     os.Environ,
		ParamPrefix: config.ParamPrefix,
	})
}
