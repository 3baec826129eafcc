package policy

import (
	"fmt"

	"github.com/flowguard/flowguard/internal/model"
)

// PolicySecurity is the registry name of the security policy.
const PolicySecurity = "security"

// SecurityPolicy flags workflows that run without guardrails and agent
// steps that run without an agent policy.
type SecurityPolicy struct{}

func (SecurityPolicy) Name() string { return PolicySecurity }

func (SecurityPolicy) Evaluate(wf *model.Workflow, _ *model.GovernanceConfig) []model.PolicyViolation {
	var violations []model.PolicyViolation

	if len(wf.Guardrails) == 0 {
		violations = append(violations, model.PolicyViolation{
			Policy:      PolicySecurity,
			Severity:    model.SeverityMedium,
			Description: "no guardrails configured for workflow",
		})
	}

	for _, st := range wf.Steps {
		if st.Type == model.StepAgent && st.AgentPolicy == nil {
			violations = append(violations, model.PolicyViolation{
				Policy:      PolicySecurity,
				Severity:    model.SeverityHigh,
				Description: fmt.Sprintf("agent step %q has no agent policy", st.ID),
				StepID:      st.ID,
			})
		}
	}

	return violations
}
