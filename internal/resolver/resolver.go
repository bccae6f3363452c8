// Package resolver expands artifact reference expressions of the form
// ${ArtifactName::FileName} and ${ArtifactName::FileName::Key} using files
// stored inside a pipeline's zipped input artifacts.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/savaki/changeset-replace/internal/artifact"
	"github.com/savaki/changeset-replace/internal/errors"
	"gopkg.in/yaml.v3"
)

var reReference = regexp.MustCompile(`\$\{([^:}]+)::([^}:]+)(?:::([^}]+))?\}`)

// EntryFetcher returns the contents of a single file inside a zipped artifact
type EntryFetcher interface {
	FetchArchiveEntry(ctx context.Context, loc artifact.Location, entryName string) ([]byte, error)
}

// Reference is a parsed reference expression
type Reference struct {
	Artifact string
	File     string
	Key      string // optional

	start, end int
}

// Parse returns the first reference expression found in raw
func Parse(raw string) (Reference, bool) {
	m := reReference.FindStringSubmatchIndex(raw)
	if m == nil {
		return Reference{}, false
	}

	ref := Reference{
		Artifact: raw[m[2]:m[3]],
		File:     raw[m[4]:m[5]],
		start:    m[0],
		end:      m[1],
	}
	if m[6] >= 0 {
		ref.Key = raw[m[6]:m[7]]
	}
	return ref, true
}

type Resolver struct {
	fetcher EntryFetcher
}

func New(fetcher EntryFetcher) *Resolver {
	return &Resolver{
		fetcher: fetcher,
	}
}

// Resolve replaces the first reference expression in raw with the value it points
// to. Strings without a reference expression are returned unchanged. Nothing is
// cached; each call downloads the artifact again.
func (r *Resolver) Resolve(ctx context.Context, raw string, job events.CodePipelineJob) (string, error) {
	logger := zerolog.Ctx(ctx)

	ref, ok := Parse(raw)
	if !ok {
		return raw, nil
	}

	logger.Debug().
		Str("artifact", ref.Artifact).
		Str("file", ref.File).
		Str("key", ref.Key).
		Msg("Resolving artifact reference")

	input, ok := findArtifact(job, ref.Artifact)
	if !ok {
		return "", fmt.Errorf("%w: no input artifact named '%s' for key '%s'", errors.ErrUnknownArtifact, ref.Artifact, raw)
	}

	body, err := r.fetcher.FetchArchiveEntry(ctx, artifact.LocationOf(input), ref.File)
	if err != nil {
		return "", fmt.Errorf("%w: invalid resource for key '%s': %w", errors.ErrMissingArtifactFile, raw, err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("%w: file '%s' in artifact '%s' is empty", errors.ErrMissingArtifactFile, ref.File, ref.Artifact)
	}

	value := string(body)
	if ref.Key != "" {
		value, err = lookupKey(ref.File, body, ref.Key)
		if err != nil {
			return "", fmt.Errorf("invalid resource for key '%s': %w", raw, err)
		}
	}

	return raw[:ref.start] + value + raw[ref.end:], nil
}

func findArtifact(job events.CodePipelineJob, name string) (events.CodePipelineInputArtifact, bool) {
	for _, a := range job.Data.InputArtifacts {
		if a.Name == name {
			return a, true
		}
	}
	return events.CodePipelineInputArtifact{}, false
}

// lookupKey decodes body as a document and returns the stringified value of key.
// Entries named *.yaml or *.yml are decoded as YAML, everything else as JSON.
func lookupKey(filename string, body []byte, key string) (string, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".yaml", ".yml":
		return lookupYAMLKey(filename, body, key)
	}

	doc := map[string]any{}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to parse %s as json: %w", filename, err)
	}

	value, ok := doc[key]
	if !ok || isFalsy(value) {
		return "", missingKey(key, filename)
	}
	return stringify(value)
}

// lookupYAMLKey returns scalars exactly as written in the entry; 2024-01-01 and
// 1.50 are not reformatted
func lookupYAMLKey(filename string, body []byte, key string) (string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(body, &root); err != nil {
		return "", fmt.Errorf("failed to parse %s as yaml: %w", filename, err)
	}

	doc := &root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return "", missingKey(key, filename)
		}
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return "", fmt.Errorf("failed to parse %s as yaml: document is not a mapping", filename)
	}

	var node *yaml.Node
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == key {
			node = doc.Content[i+1]
			break
		}
	}
	if node == nil {
		return "", missingKey(key, filename)
	}
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}

	var value any
	if err := node.Decode(&value); err != nil {
		return "", fmt.Errorf("failed to decode '%s' in %s: %w", key, filename, err)
	}
	if isFalsy(value) {
		return "", missingKey(key, filename)
	}

	if node.Kind == yaml.ScalarNode {
		return node.Value, nil
	}
	return stringify(value)
}

func missingKey(key, filename string) error {
	return fmt.Errorf("%w: '%s' not set in %s", errors.ErrMissingJSONKey, key, filename)
}

// isFalsy treats null, false, zero and the empty string as unset
func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case int:
		return t == 0
	case uint64:
		return t == 0
	case float64:
		return t == 0
	}
	return false
}

func stringify(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode value: %w", err)
	}
	return string(data), nil
}
