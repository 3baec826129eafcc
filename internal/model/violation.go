package model

// Severity classifies how serious a policy violation is.
// Only high severity blocks execution.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityRank maps severities to comparable integers for sorting.
var SeverityRank = map[Severity]int{
	SeverityLow:    0,
	SeverityMedium: 1,
	SeverityHigh:   2,
}

// PolicyViolation is one finding produced by a policy evaluation.
type PolicyViolation struct {
	Policy      string   `json:"policy"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	StepID      string   `json:"step_id,omitempty"`
}

// PolicyResult is the aggregated output of enforcing a governance
// configuration against one workflow. Allowed is derived from the
// violations alone, never set independently.
type PolicyResult struct {
	Allowed         bool              `json:"allowed"`
	Violations      []PolicyViolation `json:"violations"`
	AppliedPolicies []string          `json:"applied_policies"`
}

// Allows reports whether the violation set permits execution.
func Allows(violations []PolicyViolation) bool {
	for _, v := range violations {
		if v.Severity == SeverityHigh {
			return false
		}
	}
	return true
}
