package policy

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/flowguard/flowguard/internal/model"
)

// DefaultGovernanceConfig returns the governance configuration applied
// when none is supplied: all built-in policies, compliance logging on,
// detailed audit, no hard budget.
func DefaultGovernanceConfig() *model.GovernanceConfig {
	return &model.GovernanceConfig{
		Policies:          []string{PolicySecurity, PolicyCostControl, PolicyCompliance},
		ApprovalRequired:  false,
		ComplianceLogging: true,
		CostControls: model.CostControls{
			TimeoutMinutes: 30,
		},
		AuditLevel: model.AuditDetailed,
	}
}

// LoadGovernanceConfig loads a governance configuration from a YAML
// file. Empty path falls back to ~/.flowguard/governance.yaml. A file
// that does not exist yields the defaults; one that fails to parse is
// an error, since half-read governance rules must never run.
func LoadGovernanceConfig(path string) (*model.GovernanceConfig, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return DefaultGovernanceConfig(), nil
		}
		path = filepath.Join(home, ".flowguard", "governance.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultGovernanceConfig(), nil
		}
		return nil, fmt.Errorf("policy: read governance config: %w", err)
	}

	// Unmarshal over the defaults so absent keys keep their values.
	cfg := DefaultGovernanceConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("policy: parse governance config: %w", err)
	}

	return cfg, nil
}

// DefaultGovernanceYAML returns a commented YAML document for init.
func DefaultGovernanceYAML() string {
	return `# flowguard governance configuration
#
# Policies run in the listed order. Unknown names are skipped with a
# warning; they never fail the evaluation.
policies:
  - security
  - cost_control
  - compliance

# Gate execution behind human sign-off. Required approvers are derived
# from the workflow's step types.
approval_required: false

# Disabling compliance logging is itself a medium-severity finding.
compliance_logging: true

# Cost controls used by the cost_control policy.
cost_controls:
  # budget_limit: 10.0
  # model_restrictions:
  #   - claude-sonnet-4
  #   - claude-haiku-4
  timeout_minutes: 30

# basic | detailed | comprehensive
audit_level: detailed

# Approval notification channels. Each entry is POSTed when a workflow
# needs sign-off. Formats: generic | slack | pagerduty.
# notifications:
#   - url: https://hooks.slack.com/services/T000/B000/XXXX
#     format: slack
`
}
