package model

import (
	"fmt"
	"strings"
)

// StepType tags the variant of a workflow step.
type StepType string

const (
	StepPrompt    StepType = "prompt"
	StepAgent     StepType = "agent"
	StepApplyDiff StepType = "apply_diff"
	StepCommand   StepType = "command"
)

// knownStepTypes is the closed set of step variants.
var knownStepTypes = map[StepType]bool{
	StepPrompt:    true,
	StepAgent:     true,
	StepApplyDiff: true,
	StepCommand:   true,
}

// AgentPolicy bounds what an agent step may do.
type AgentPolicy struct {
	MaxTurns     int      `yaml:"max_turns" json:"max_turns"`
	AllowedTools []string `yaml:"allowed_tools,omitempty" json:"allowed_tools,omitempty"`
}

// Step is one unit of work within a workflow. Variant-specific fields
// are populated according to Type; the rest stay zero.
type Step struct {
	ID           string       `yaml:"id" json:"id"`
	Type         StepType     `yaml:"type" json:"type"`
	PromptFile   string       `yaml:"prompt_file,omitempty" json:"prompt_file,omitempty"`
	AgentPolicy  *AgentPolicy `yaml:"agent_policy,omitempty" json:"agent_policy,omitempty"`
	Command      string       `yaml:"command,omitempty" json:"command,omitempty"`
	AllowedTools []string     `yaml:"allowed_tools,omitempty" json:"allowed_tools,omitempty"`
}

// Workflow is a named sequence of steps submitted for governed
// execution. Treated as immutable once handed to the orchestrator.
type Workflow struct {
	ID         string            `yaml:"id" json:"id"`
	Name       string            `yaml:"name" json:"name"`
	Model      string            `yaml:"model" json:"model"`
	Steps      []Step            `yaml:"steps" json:"steps"`
	Guardrails []string          `yaml:"guardrails,omitempty" json:"guardrails,omitempty"`
	Env        map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// ValidationError aggregates every structural problem found in a
// workflow so callers can report them all at once.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow validation failed: %s", strings.Join(e.Issues, "; "))
}

// Validate checks the workflow's structure and collects all issues.
// A missing agent policy or a short name is a policy finding, not a
// validation error; only structural defects are reported here.
func (w *Workflow) Validate() error {
	var issues []string

	if w.ID == "" {
		issues = append(issues, "workflow id is required")
	}
	if len(w.Steps) == 0 {
		issues = append(issues, "workflow has no steps")
	}

	seen := make(map[string]bool, len(w.Steps))
	for i, st := range w.Steps {
		label := st.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
			issues = append(issues, fmt.Sprintf("step %s: id is required", label))
		} else if seen[st.ID] {
			issues = append(issues, fmt.Sprintf("step %s: duplicate id", st.ID))
		}
		seen[st.ID] = true

		if !knownStepTypes[st.Type] {
			issues = append(issues, fmt.Sprintf("step %s: unknown type %q", label, st.Type))
			continue
		}
		switch st.Type {
		case StepPrompt:
			if st.PromptFile == "" {
				issues = append(issues, fmt.Sprintf("step %s: prompt step requires prompt_file", label))
			}
		case StepCommand:
			if st.Command == "" {
				issues = append(issues, fmt.Sprintf("step %s: command step requires command", label))
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// HasStepType reports whether any step carries the given variant tag.
func (w *Workflow) HasStepType(t StepType) bool {
	for _, st := range w.Steps {
		if st.Type == t {
			return true
		}
	}
	return false
}
