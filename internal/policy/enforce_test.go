package policy

import (
	"testing"

	"go.uber.org/zap"
)

func TestEnforceCleanWorkflowAllowed(t *testing.T) {
	engine := NewEngine(nil, zap.NewNop())
	result := engine.Enforce(testWorkflow(), DefaultGovernanceConfig())

	if !result.Allowed {
		t.Fatalf("clean workflow blocked: %v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("expected no violations, got %v", result.Violations)
	}
	want := []string{PolicySecurity, PolicyCostControl, PolicyCompliance}
	if len(result.AppliedPolicies) != len(want) {
		t.Fatalf("applied = %v, want %v", result.AppliedPolicies, want)
	}
	for i, name := range want {
		if result.AppliedPolicies[i] != name {
			t.Errorf("applied[%d] = %q, want %q", i, result.AppliedPolicies[i], name)
		}
	}
}

func TestEnforceBlocksOnHighSeverity(t *testing.T) {
	wf := testWorkflow()
	wf.Steps[1].AgentPolicy = nil

	result := NewEngine(nil, zap.NewNop()).Enforce(wf, DefaultGovernanceConfig())
	if result.Allowed {
		t.Fatal("workflow with a high-severity violation was allowed")
	}
}

func TestEnforceAllowsAdvisoryViolations(t *testing.T) {
	wf := testWorkflow()
	wf.Name = "short"
	cfg := DefaultGovernanceConfig()
	cfg.ComplianceLogging = false

	result := NewEngine(nil, zap.NewNop()).Enforce(wf, cfg)
	if !result.Allowed {
		t.Fatalf("medium and low violations must not block: %v", result.Violations)
	}
	if len(result.Violations) != 2 {
		t.Errorf("expected 2 advisory violations, got %v", result.Violations)
	}
}

func TestEnforceSkipsUnknownPolicies(t *testing.T) {
	cfg := DefaultGovernanceConfig()
	cfg.Policies = []string{"security", "made_up_policy", "compliance"}

	result := NewEngine(nil, zap.NewNop()).Enforce(testWorkflow(), cfg)
	if !result.Allowed {
		t.Fatalf("unknown policy must not block: %v", result.Violations)
	}
	want := []string{"security", "compliance"}
	if len(result.AppliedPolicies) != len(want) {
		t.Fatalf("applied = %v, want %v", result.AppliedPolicies, want)
	}
	for i, name := range want {
		if result.AppliedPolicies[i] != name {
			t.Errorf("applied[%d] = %q, want %q", i, result.AppliedPolicies[i], name)
		}
	}
}

func TestEnforceNilConfigUsesDefaults(t *testing.T) {
	result := NewEngine(nil, zap.NewNop()).Enforce(testWorkflow(), nil)
	if !result.Allowed {
		t.Fatalf("clean workflow blocked under defaults: %v", result.Violations)
	}
	if len(result.AppliedPolicies) != 3 {
		t.Errorf("applied = %v, want all default policies", result.AppliedPolicies)
	}
}

func TestEnforceEmptyPolicyListAllowsEverything(t *testing.T) {
	wf := testWorkflow()
	wf.Guardrails = nil
	wf.Steps[1].AgentPolicy = nil
	cfg := DefaultGovernanceConfig()
	cfg.Policies = []string{}

	result := NewEngine(nil, zap.NewNop()).Enforce(wf, cfg)
	if !result.Allowed {
		t.Fatal("no configured policies means nothing can block")
	}
	if len(result.Violations) != 0 {
		t.Errorf("violations = %v, want none", result.Violations)
	}
	if result.Violations == nil || result.AppliedPolicies == nil {
		t.Error("result slices must be non-nil for JSON encoding")
	}
}

func TestEnforceViolationsFollowConfigOrder(t *testing.T) {
	wf := testWorkflow()
	wf.Name = "short"
	wf.Guardrails = nil
	cfg := DefaultGovernanceConfig()
	cfg.Policies = []string{PolicyCompliance, PolicySecurity}

	result := NewEngine(nil, zap.NewNop()).Enforce(wf, cfg)
	if len(result.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %v", result.Violations)
	}
	if result.Violations[0].Policy != PolicyCompliance {
		t.Errorf("first violation from %q, want compliance first", result.Violations[0].Policy)
	}
	if result.Violations[1].Policy != PolicySecurity {
		t.Errorf("second violation from %q, want security second", result.Violations[1].Policy)
	}
}
