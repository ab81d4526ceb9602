package repository

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/soyeon/reflow/internal/reflow"
)

// LoadFile parses a workflow definition from a YAML file and validates its
// structure before returning it.
func LoadFile(path string) (*reflow.ReasoningWorkflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML (or JSON, which YAML subsumes) workflow bytes.
func Parse(data []byte) (*reflow.ReasoningWorkflow, error) {
	var wf reflow.ReasoningWorkflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parsing workflow: %w", err)
	}
	if wf.ID == "" {
		wf.ID = wf.Name
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}
