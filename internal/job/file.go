package job

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a CodePipeline job from a JSON or YAML file. The file may hold
// either the full Lambda event ({"CodePipeline.job": {...}}) or just the job.
func LoadFile(filename string) (events.CodePipelineJob, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return events.CodePipelineJob{}, fmt.Errorf("reading job file: %w", err)
	}
	return Decode(data)
}

// Decode decodes a CodePipeline job event or job from JSON or YAML
func Decode(data []byte) (events.CodePipelineJob, error) {
	// YAML is a superset of JSON; normalize to JSON so the event's json tags apply
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return events.CodePipelineJob{}, fmt.Errorf("parsing job file: %w", err)
	}
	normalized, err := json.Marshal(doc)
	if err != nil {
		return events.CodePipelineJob{}, fmt.Errorf("parsing job file: %w", err)
	}

	var event events.CodePipelineJobEvent
	if err := json.Unmarshal(normalized, &event); err != nil {
		return events.CodePipelineJob{}, fmt.Errorf("parsing job file: %w", err)
	}
	if event.CodePipelineJob.ID != "" {
		return event.CodePipelineJob, nil
	}

	var pipelineJob events.CodePipelineJob
	if err := json.Unmarshal(normalized, &pipelineJob); err != nil {
		return events.CodePipelineJob{}, fmt.Errorf("parsing job file: %w", err)
	}
	if pipelineJob.ID == "" {
		return events.CodePipelineJob{}, fmt.Errorf("parsing job file: job id not set")
	}
	return pipelineJob, nil
}
