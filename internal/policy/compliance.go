package policy

import (
	"github.com/flowguard/flowguard/internal/model"
)

// PolicyCompliance is the registry name of the compliance policy.
const PolicyCompliance = "compliance"

// minNameLength is the shortest workflow name considered descriptive
// enough for audit traceability.
const minNameLength = 10

// CompliancePolicy flags configurations that disable compliance
// logging and workflows whose names are too short to audit.
type CompliancePolicy struct{}

func (CompliancePolicy) Name() string { return PolicyCompliance }

func (CompliancePolicy) Evaluate(wf *model.Workflow, cfg *model.GovernanceConfig) []model.PolicyViolation {
	var violations []model.PolicyViolation

	if !cfg.ComplianceLogging {
		violations = append(violations, model.PolicyViolation{
			Policy:      PolicyCompliance,
			Severity:    model.SeverityMedium,
			Description: "compliance logging is disabled",
		})
	}

	if len(wf.Name) < minNameLength {
		violations = append(violations, model.PolicyViolation{
			Policy:      PolicyCompliance,
			Severity:    model.SeverityLow,
			Description: "workflow name is missing or too short for audit traceability",
		})
	}

	return violations
}
