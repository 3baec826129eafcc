package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flowguard/flowguard/internal/model"
)

func testWorkflow() *model.Workflow {
	return &model.Workflow{
		ID:         "wf-review",
		Name:       "automated code review pipeline",
		Model:      "claude-sonnet-4",
		Guardrails: []string{"no-secrets"},
		Steps: []model.Step{
			{ID: "plan", Type: model.StepPrompt, PromptFile: "plan.md"},
			{ID: "review", Type: model.StepAgent, AgentPolicy: &model.AgentPolicy{MaxTurns: 5}},
			{ID: "verify", Type: model.StepCommand, Command: "make test"},
		},
	}
}

func TestSecurityPolicyCleanWorkflow(t *testing.T) {
	wf := testWorkflow()
	violations := SecurityPolicy{}.Evaluate(wf, DefaultGovernanceConfig())
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %d: %v", len(violations), violations)
	}
}

func TestSecurityPolicyFlagsMissingGuardrailsAndAgentPolicy(t *testing.T) {
	wf := testWorkflow()
	wf.Guardrails = nil
	wf.Steps[1].AgentPolicy = nil

	violations := SecurityPolicy{}.Evaluate(wf, DefaultGovernanceConfig())
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %d: %v", len(violations), violations)
	}

	var guardrails, agent *model.PolicyViolation
	for i := range violations {
		switch violations[i].Severity {
		case model.SeverityMedium:
			guardrails = &violations[i]
		case model.SeverityHigh:
			agent = &violations[i]
		}
	}
	if guardrails == nil {
		t.Fatal("missing medium-severity guardrails violation")
	}
	if agent == nil {
		t.Fatal("missing high-severity agent policy violation")
	}
	if agent.StepID != "review" {
		t.Errorf("agent violation step = %q, want %q", agent.StepID, "review")
	}
	if !strings.Contains(agent.Description, "review") {
		t.Errorf("agent violation description %q does not name the step", agent.Description)
	}
}

func TestSecurityPolicyFlagsEveryUncoveredAgentStep(t *testing.T) {
	wf := testWorkflow()
	wf.Steps = append(wf.Steps, model.Step{ID: "refactor", Type: model.StepAgent})
	wf.Steps[1].AgentPolicy = nil

	violations := SecurityPolicy{}.Evaluate(wf, DefaultGovernanceConfig())
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %d: %v", len(violations), violations)
	}
	for _, v := range violations {
		if v.Severity != model.SeverityHigh {
			t.Errorf("violation %q severity = %q, want high", v.Description, v.Severity)
		}
	}
}

func TestCostControlPolicyBudget(t *testing.T) {
	tests := []struct {
		name       string
		budget     float64
		agentSteps int
		plainSteps int
		want       int
	}{
		{"under budget", 1.00, 1, 2, 0},
		{"exactly at budget is allowed", 0.25, 1, 0, 0},
		{"over budget", 0.30, 1, 2, 1},
		{"many agent steps blow small budget", 0.50, 3, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := &model.Workflow{ID: "wf-cost", Name: "cost control exercise"}
			for i := 0; i < tt.agentSteps; i++ {
				wf.Steps = append(wf.Steps, model.Step{
					ID:          "agent-" + string(rune('a'+i)),
					Type:        model.StepAgent,
					AgentPolicy: &model.AgentPolicy{MaxTurns: 3},
				})
			}
			for i := 0; i < tt.plainSteps; i++ {
				wf.Steps = append(wf.Steps, model.Step{
					ID:         "step-" + string(rune('a'+i)),
					Type:       model.StepPrompt,
					PromptFile: "p.md",
				})
			}
			cfg := DefaultGovernanceConfig()
			cfg.CostControls.BudgetLimit = &tt.budget

			violations := NewCostControlPolicy(nil).Evaluate(wf, cfg)
			if len(violations) != tt.want {
				t.Fatalf("expected %d violations, got %d: %v", tt.want, len(violations), violations)
			}
			if tt.want == 1 && violations[0].Severity != model.SeverityHigh {
				t.Errorf("budget violation severity = %q, want high", violations[0].Severity)
			}
		})
	}
}

func TestCostControlPolicyNoBudgetNoViolation(t *testing.T) {
	wf := testWorkflow()
	violations := NewCostControlPolicy(nil).Evaluate(wf, DefaultGovernanceConfig())
	if len(violations) != 0 {
		t.Fatalf("expected no violations without a budget, got %v", violations)
	}
}

func TestCostControlPolicyModelRestrictions(t *testing.T) {
	wf := testWorkflow()
	cfg := DefaultGovernanceConfig()
	cfg.CostControls.ModelRestrictions = []string{"claude-haiku-4"}

	violations := NewCostControlPolicy(nil).Evaluate(wf, cfg)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d: %v", len(violations), violations)
	}
	if violations[0].Severity != model.SeverityMedium {
		t.Errorf("severity = %q, want medium", violations[0].Severity)
	}

	cfg.CostControls.ModelRestrictions = []string{"claude-haiku-4", "claude-sonnet-4"}
	if got := NewCostControlPolicy(nil).Evaluate(wf, cfg); len(got) != 0 {
		t.Fatalf("allowed model flagged: %v", got)
	}
}

func TestCostControlPolicyCustomEstimator(t *testing.T) {
	wf := testWorkflow()
	budget := 5.0
	cfg := DefaultGovernanceConfig()
	cfg.CostControls.BudgetLimit = &budget

	expensive := func(_ *model.Workflow) float64 { return 100.0 }
	violations := NewCostControlPolicy(expensive).Evaluate(wf, cfg)
	if len(violations) != 1 {
		t.Fatalf("expected custom estimator to trip the budget, got %v", violations)
	}
}

func TestCompliancePolicy(t *testing.T) {
	tests := []struct {
		name    string
		wfName  string
		logging bool
		want    int
	}{
		{"compliant", "automated code review pipeline", true, 0},
		{"logging disabled", "automated code review pipeline", false, 1},
		{"short name", "short", true, 1},
		{"both findings", "short", false, 2},
		{"empty name", "", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := testWorkflow()
			wf.Name = tt.wfName
			cfg := DefaultGovernanceConfig()
			cfg.ComplianceLogging = tt.logging

			violations := CompliancePolicy{}.Evaluate(wf, cfg)
			if len(violations) != tt.want {
				t.Fatalf("expected %d violations, got %d: %v", tt.want, len(violations), violations)
			}
			for _, v := range violations {
				if v.Severity == model.SeverityHigh {
					t.Errorf("compliance produced high severity %q, findings should be advisory", v.Description)
				}
			}
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()
	for _, name := range []string{PolicySecurity, PolicyCostControl, PolicyCompliance} {
		p, ok := reg.Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) missing", name)
		}
		if p.Name() != name {
			t.Errorf("Lookup(%q).Name() = %q", name, p.Name())
		}
	}
	if _, ok := reg.Lookup("nonexistent"); ok {
		t.Error("Lookup returned a policy for an unknown name")
	}

	names := reg.Names()
	if len(names) != 3 {
		t.Fatalf("Names() = %v, want 3 entries", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("Names() not sorted: %v", names)
		}
	}
}

func TestLoadGovernanceConfigMissingFile(t *testing.T) {
	cfg, err := LoadGovernanceConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should return defaults, got error: %v", err)
	}
	def := DefaultGovernanceConfig()
	if len(cfg.Policies) != len(def.Policies) {
		t.Errorf("policies = %v, want defaults %v", cfg.Policies, def.Policies)
	}
	if !cfg.ComplianceLogging {
		t.Error("defaults should enable compliance logging")
	}
}

func TestLoadGovernanceConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "governance.yaml")
	content := `policies:
  - security
approval_required: true
cost_controls:
  budget_limit: 2.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadGovernanceConfig(path)
	if err != nil {
		t.Fatalf("LoadGovernanceConfig: %v", err)
	}
	if len(cfg.Policies) != 1 || cfg.Policies[0] != PolicySecurity {
		t.Errorf("policies = %v, want [security]", cfg.Policies)
	}
	if !cfg.ApprovalRequired {
		t.Error("approval_required not applied")
	}
	if cfg.CostControls.BudgetLimit == nil || *cfg.CostControls.BudgetLimit != 2.5 {
		t.Errorf("budget_limit = %v, want 2.5", cfg.CostControls.BudgetLimit)
	}
	// Unspecified fields keep their defaults.
	if !cfg.ComplianceLogging {
		t.Error("compliance_logging default lost on partial config")
	}
	if cfg.AuditLevel != model.AuditDetailed {
		t.Errorf("audit_level = %q, want detailed default", cfg.AuditLevel)
	}
}

func TestLoadGovernanceConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "governance.yaml")
	if err := os.WriteFile(path, []byte("policies: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGovernanceConfig(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}
