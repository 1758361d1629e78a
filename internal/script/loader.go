package script

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Script and batch files may be YAML or JSON; JSON is a YAML subset so one
// decoder covers both.

// LoadScriptFile reads and validates a script definition.
func LoadScriptFile(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ParseScript(b)
}

// ParseScript decodes and validates script bytes.
func ParseScript(b []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("script has no steps")
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, step.Label(), err)
		}
	}
	return &s, nil
}

func validateStep(step Step) error {
	switch step.Type {
	case StepChat:
		if step.Message == "" {
			return fmt.Errorf("chat step requires message")
		}
	case StepTool:
		if step.Server == "" || step.Tool == "" {
			return fmt.Errorf("tool step requires server and tool")
		}
	case StepBatch:
		if step.BatchFile == "" {
			return fmt.Errorf("batch step requires batch_file")
		}
	case StepWait:
		if step.Seconds < 0 {
			return fmt.Errorf("wait step seconds must not be negative")
		}
	case "":
		return fmt.Errorf("missing type")
	default:
		// Unknown types load fine and produce an inline error at run time.
	}
	return nil
}

// LoadBatchFile reads and validates a batch definition.
func LoadBatchFile(path string) (*Batch, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	return ParseBatch(b)
}

// ParseBatch decodes and validates batch bytes.
func ParseBatch(b []byte) (*Batch, error) {
	var batch Batch
	if err := yaml.Unmarshal(b, &batch); err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}
	if len(batch.Tools) == 0 {
		return nil, fmt.Errorf("batch has no tools")
	}
	for i, inv := range batch.Tools {
		if inv.Server == "" || inv.Tool == "" {
			return nil, fmt.Errorf("tools[%d]: requires server and tool", i)
		}
	}
	return &batch, nil
}
