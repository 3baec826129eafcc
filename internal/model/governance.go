package model

// AuditLevel controls how much detail the audit trail carries.
type AuditLevel string

const (
	AuditBasic         AuditLevel = "basic"
	AuditDetailed      AuditLevel = "detailed"
	AuditComprehensive AuditLevel = "comprehensive"
)

// CostControls holds the budget thresholds applied by the cost policy.
// A nil BudgetLimit means no limit is enforced.
type CostControls struct {
	BudgetLimit       *float64 `yaml:"budget_limit,omitempty" json:"budget_limit,omitempty"`
	ModelRestrictions []string `yaml:"model_restrictions,omitempty" json:"model_restrictions,omitempty"`
	TimeoutMinutes    int      `yaml:"timeout_minutes,omitempty" json:"timeout_minutes,omitempty"`
}

// GovernanceConfig is supplied per evaluation call and never persisted.
// Policies run in the listed order; unknown names are skipped with a
// warning rather than failing the evaluation.
type GovernanceConfig struct {
	Policies          []string     `yaml:"policies" json:"policies"`
	ApprovalRequired  bool         `yaml:"approval_required" json:"approval_required"`
	ComplianceLogging bool         `yaml:"compliance_logging" json:"compliance_logging"`
	CostControls      CostControls `yaml:"cost_controls" json:"cost_controls"`
	AuditLevel        AuditLevel   `yaml:"audit_level" json:"audit_level"`
}
