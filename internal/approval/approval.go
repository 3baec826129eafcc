// Package approval gates workflow execution behind human sign-off.
// The coordinator holds every request it has ever seen for the life of
// the process; requests are never deleted, only resolved, so the audit
// trail can always be reconstructed. Pending requests do not survive a
// restart.
package approval

import (
	"errors"
	"time"

	"github.com/flowguard/flowguard/internal/model"
)

// Status represents the state of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Approver groups that can be required to sign off on a workflow.
const (
	ApproverSecurityTeam       = "security_team"
	ApproverEngineeringManager = "engineering_manager"
	ApproverWorkflowAdmin      = "workflow_admin"
)

// ResolvedByTimeout marks requests denied by ExpireStale rather than a
// human decision.
const ResolvedByTimeout = "timeout"

var (
	ErrNotFound        = errors.New("approval: request not found")
	ErrUnauthorized    = errors.New("approval: approver not authorized")
	ErrAlreadyResolved = errors.New("approval: request already resolved")
)

// Request is a single human-gating record tied to one workflow
// submission. Once the status leaves pending it never changes again.
type Request struct {
	ID                string         `json:"id"`
	Workflow          model.Workflow `json:"workflow"`
	Reason            string         `json:"reason"`
	Requester         string         `json:"requester"`
	RequiredApprovers []string       `json:"required_approvers"`
	Status            Status         `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	ResolvedAt        *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy        string         `json:"resolved_by,omitempty"`
}

// Resolved reports whether the request has left the pending state.
func (r Request) Resolved() bool {
	return r.Status != StatusPending
}

// RequiredApprovers derives who must sign off on a workflow. Agent
// steps pull in the security team, apply_diff steps the engineering
// manager. Workflows with neither fall back to the workflow admin so
// the set is never empty.
func RequiredApprovers(wf *model.Workflow) []string {
	var approvers []string
	if wf.HasStepType(model.StepAgent) {
		approvers = append(approvers, ApproverSecurityTeam)
	}
	if wf.HasStepType(model.StepApplyDiff) {
		approvers = append(approvers, ApproverEngineeringManager)
	}
	if len(approvers) == 0 {
		approvers = append(approvers, ApproverWorkflowAdmin)
	}
	return approvers
}
