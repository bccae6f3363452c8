package utils

import (
	"maps"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

// DefaultParamPrefix marks environment variables that override stack parameters
const DefaultParamPrefix = "Param_"

// EnvOverrides extracts parameter overrides from environ (KEY=value pairs, as
// returned by os.Environ). Variables named {prefix}{Key} contribute Key=value.
func EnvOverrides(environ []string, prefix string) map[string]string {
	overrides := map[string]string{}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.TrimPrefix(name, prefix)
		if key == "" {
			continue
		}
		overrides[key] = value
	}
	return overrides
}

// MergeParameters builds a CloudFormation parameter list from explicit overrides
// followed by environment overrides. Keys within each source are sorted. Keys
// defined by both sources appear twice with the environment value last.
func MergeParameters(overrides, envOverrides map[string]string) []types.Parameter {
	results := make([]types.Parameter, 0, len(overrides)+len(envOverrides))
	for _, m := range []map[string]string{overrides, envOverrides} {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			results = append(results, types.Parameter{
				ParameterKey:   aws.String(k),
				ParameterValue: aws.String(m[k]),
			})
		}
	}
	return results
}
