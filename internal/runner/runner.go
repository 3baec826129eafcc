// Package runner delegates normalized workflows to an execution
// engine. The engine is an external collaborator: it receives the
// workflow description, runs it, and reports a status. Governance
// treats any status other than completed as failed.
package runner

import (
	"context"

	"github.com/flowguard/flowguard/internal/model"
)

// Status reported by an execution engine.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Spec is the normalized workflow description handed to an engine:
// model id, guardrail names, environment map, step list, and the
// run-mode flag.
type Spec struct {
	WorkflowID string            `json:"workflow_id"`
	Model      string            `json:"model"`
	Guardrails []string          `json:"guardrails,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	Steps      []model.Step      `json:"steps"`
	DryRun     bool              `json:"dry_run"`
}

// Result is what an engine reports back after a run.
type Result struct {
	Status Status   `json:"status"`
	Errors []string `json:"errors,omitempty"`
}

// Runner executes a workflow spec. Run blocks until the engine
// finishes or ctx expires; implementations must honor cancellation.
type Runner interface {
	Name() string
	Run(ctx context.Context, spec Spec) (Result, error)
}

// SpecFor builds the engine spec for one workflow.
func SpecFor(wf *model.Workflow, dryRun bool) Spec {
	return Spec{
		WorkflowID: wf.ID,
		Model:      wf.Model,
		Guardrails: wf.Guardrails,
		Env:        wf.Env,
		Steps:      wf.Steps,
		DryRun:     dryRun,
	}
}
