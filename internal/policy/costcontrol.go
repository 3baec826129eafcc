package policy

import (
	"fmt"

	"github.com/flowguard/flowguard/internal/model"
)

// PolicyCostControl is the registry name of the cost-control policy.
const PolicyCostControl = "cost_control"

// Estimator predicts the cost of running a workflow, in USD. The exact
// figures are a deployment choice; policy logic only compares the
// estimate against the configured budget.
type Estimator func(wf *model.Workflow) float64

// Illustrative per-step costs used by the default estimator.
const (
	defaultStepCost      = 0.05
	defaultAgentStepCost = 0.25
)

// DefaultEstimator charges a flat rate per step, with a higher rate
// for agent steps.
func DefaultEstimator(wf *model.Workflow) float64 {
	var total float64
	for _, st := range wf.Steps {
		if st.Type == model.StepAgent {
			total += defaultAgentStepCost
		} else {
			total += defaultStepCost
		}
	}
	return total
}

// CostControlPolicy flags workflows whose estimated cost exceeds the
// configured budget or whose model is not on the allowed list.
type CostControlPolicy struct {
	estimate Estimator
}

// NewCostControlPolicy builds the policy around an estimator.
// A nil estimator falls back to DefaultEstimator.
func NewCostControlPolicy(estimate Estimator) *CostControlPolicy {
	if estimate == nil {
		estimate = DefaultEstimator
	}
	return &CostControlPolicy{estimate: estimate}
}

func (*CostControlPolicy) Name() string { return PolicyCostControl }

func (p *CostControlPolicy) Evaluate(wf *model.Workflow, cfg *model.GovernanceConfig) []model.PolicyViolation {
	var violations []model.PolicyViolation
	cc := cfg.CostControls

	if cc.BudgetLimit != nil {
		if estimated := p.estimate(wf); estimated > *cc.BudgetLimit {
			violations = append(violations, model.PolicyViolation{
				Policy:      PolicyCostControl,
				Severity:    model.SeverityHigh,
				Description: fmt.Sprintf("estimated cost $%.2f exceeds budget limit $%.2f", estimated, *cc.BudgetLimit),
			})
		}
	}

	if len(cc.ModelRestrictions) > 0 && !contains(cc.ModelRestrictions, wf.Model) {
		violations = append(violations, model.PolicyViolation{
			Policy:      PolicyCostControl,
			Severity:    model.SeverityMedium,
			Description: fmt.Sprintf("model %q is not in the allowed model list", wf.Model),
		})
	}

	return violations
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
