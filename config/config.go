// Package config loads and validates the .aegis.yaml policy file and
// resolves it into the read-only policy.Policy the facade consumes.
// Policy-file parsing is external I/O to the guard core; this package is
// the boundary. YAML parsing uses gopkg.in/yaml.v3, which also accepts
// JSON policy files (JSON is a YAML subset), covering both wire formats.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nox-hq/aegis/policy"
)

// DefaultFileName is the conventional policy file name.
const DefaultFileName = ".aegis.yaml"

// InvalidError aggregates every schema violation found in a policy file
// into one failure with human-readable messages.
type InvalidError struct {
	Errors []string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid policy: %s", strings.Join(e.Errors, "; "))
}

// File is the on-disk policy shape.
type File struct {
	Version      int              `yaml:"version"`
	Capabilities CapabilitiesFile `yaml:"capabilities"`
	Limits       map[string]Limit `yaml:"limits"`
	Input        InputFile        `yaml:"input"`
	Output       OutputFile       `yaml:"output"`
	Alignment    AlignmentFile    `yaml:"alignment"`
	DataFlow     DataFlowFile     `yaml:"data_flow"`
}

// CapabilitiesFile holds the capability glob lists.
type CapabilitiesFile struct {
	Allow           []string `yaml:"allow"`
	Deny            []string `yaml:"deny"`
	RequireApproval []string `yaml:"require_approval"`
}

// Limit is one tool's rate limit: at most Max calls per Window.
type Limit struct {
	Max    int    `yaml:"max"`
	Window string `yaml:"window"`
}

// InputFile tunes the Input Scanner.
type InputFile struct {
	Sensitivity string `yaml:"sensitivity"`
}

// OutputFile tunes the Stream Monitor.
type OutputFile struct {
	PIIRedaction bool     `yaml:"pii_redaction"`
	Canaries     []string `yaml:"canaries"`
}

// AlignmentFile tunes the LLM-judge.
type AlignmentFile struct {
	JudgeEnabled          bool    `yaml:"judge_enabled"`
	JudgeTriggerThreshold float64 `yaml:"judge_trigger_threshold"`
}

// DataFlowFile tunes the exfiltration guard.
type DataFlowFile struct {
	NoExfiltration           bool     `yaml:"no_exfiltration"`
	ExfiltrationToolPatterns []string `yaml:"exfiltration_tool_patterns"`
}

// Load reads, parses, validates, and resolves a policy file. A missing
// file resolves to the default (permissive) policy with no error, so a
// project without a policy file runs unconfigured rather than failing.
func Load(path string) (policy.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return policy.Default(), nil
		}
		return policy.Policy{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates raw policy bytes.
func Parse(data []byte) (policy.Policy, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return policy.Policy{}, fmt.Errorf("parsing policy: %w", err)
	}
	if errs := validate(f); len(errs) > 0 {
		return policy.Policy{}, &InvalidError{Errors: errs}
	}
	return resolve(f), nil
}

// validate applies the strict schema: version must equal 1, limits must
// be positive, enums must hold. It collects every violation instead of
// stopping at the first.
func validate(f File) []string {
	var errs []string

	if f.Version != 1 {
		errs = append(errs, fmt.Sprintf("version must be 1, got %d", f.Version))
	}

	for tool, l := range f.Limits {
		if tool == "" {
			errs = append(errs, "limits: empty tool name")
		}
		if l.Max <= 0 {
			errs = append(errs, fmt.Sprintf("limits.%s: max must be positive, got %d", tool, l.Max))
		}
	}

	switch f.Input.Sensitivity {
	case "", "paranoid", "balanced", "permissive":
	default:
		errs = append(errs, fmt.Sprintf("input.sensitivity must be paranoid|balanced|permissive, got %q", f.Input.Sensitivity))
	}

	if th := f.Alignment.JudgeTriggerThreshold; th < 0 || th > 1 {
		errs = append(errs, fmt.Sprintf("alignment.judge_trigger_threshold must be in [0,1], got %v", th))
	}

	for _, g := range f.Capabilities.Deny {
		if g == "" {
			errs = append(errs, "capabilities.deny: empty glob")
		}
	}
	for _, g := range f.Capabilities.Allow {
		if g == "" {
			errs = append(errs, "capabilities.allow: empty glob")
		}
	}

	return errs
}

// resolve converts the validated file shape into the core's read-only
// Policy.
func resolve(f File) policy.Policy {
	limits := make(policy.Limits, len(f.Limits))
	for tool, l := range f.Limits {
		limits[tool] = policy.Limit{Max: l.Max, Window: l.Window}
	}
	return policy.Policy{
		Version: f.Version,
		Capabilities: policy.Capabilities{
			Allow:           f.Capabilities.Allow,
			Deny:            f.Capabilities.Deny,
			RequireApproval: f.Capabilities.RequireApproval,
		},
		Limits: limits,
		Input:  policy.Input{Sensitivity: f.Input.Sensitivity},
		Output: policy.Output{
			PIIRedaction: f.Output.PIIRedaction,
			Canaries:     f.Output.Canaries,
		},
		Alignment: policy.Alignment{
			JudgeEnabled:          f.Alignment.JudgeEnabled,
			JudgeTriggerThreshold: f.Alignment.JudgeTriggerThreshold,
		},
		DataFlow: policy.DataFlow{
			NoExfiltration:           f.DataFlow.NoExfiltration,
			ExfiltrationToolPatterns: f.DataFlow.ExfiltrationToolPatterns,
		},
	}
}
