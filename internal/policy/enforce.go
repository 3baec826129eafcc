package policy

import (
	"go.uber.org/zap"

	"github.com/flowguard/flowguard/internal/model"
)

// Engine aggregates registered policies over a governance
// configuration. Policies run sequentially so violation ordering in
// reports stays stable.
type Engine struct {
	registry *Registry
	logger   *zap.Logger
}

// NewEngine builds an enforcement engine. A nil registry falls back to
// the built-in policies; a nil logger discards warnings.
func NewEngine(registry *Registry, logger *zap.Logger) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{registry: registry, logger: logger}
}

// Enforce evaluates the configured policies against a workflow.
//
// Evaluation order (must not be changed):
//  1. Nil config falls back to DefaultGovernanceConfig.
//  2. Policy names run in configured order; an unknown name logs a
//     warning and is skipped without joining AppliedPolicies.
//  3. Violations concatenate in evaluation order.
//  4. Allowed is true iff no violation carries high severity.
func (e *Engine) Enforce(wf *model.Workflow, cfg *model.GovernanceConfig) model.PolicyResult {
	if cfg == nil {
		cfg = DefaultGovernanceConfig()
	}

	result := model.PolicyResult{
		Violations:      []model.PolicyViolation{},
		AppliedPolicies: []string{},
	}

	for _, name := range cfg.Policies {
		p, ok := e.registry.Lookup(name)
		if !ok {
			e.logger.Warn("unknown policy name, skipping",
				zap.String("policy", name),
				zap.String("workflow", wf.ID))
			continue
		}
		result.Violations = append(result.Violations, p.Evaluate(wf, cfg)...)
		result.AppliedPolicies = append(result.AppliedPolicies, name)
	}

	result.Allowed = model.Allows(result.Violations)
	return result
}
