// Package policy implements the rule evaluators that decide whether a
// workflow may execute, and the registry that resolves configured
// policy names to implementations.
package policy

import (
	"sort"

	"github.com/flowguard/flowguard/internal/model"
)

// Policy is one named rule evaluator. Evaluate must never panic for
// well-formed input; missing fields are treated as absent.
type Policy interface {
	Name() string
	Evaluate(wf *model.Workflow, cfg *model.GovernanceConfig) []model.PolicyViolation
}

// Registry maps policy names to implementations. Populated at startup;
// lookups of unknown names report absence rather than failing.
type Registry struct {
	policies map[string]Policy
}

// NewRegistry creates a registry holding the given policies.
func NewRegistry(policies ...Policy) *Registry {
	r := &Registry{policies: make(map[string]Policy, len(policies))}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// DefaultRegistry returns a registry with the built-in policies.
func DefaultRegistry() *Registry {
	return NewRegistry(
		SecurityPolicy{},
		NewCostControlPolicy(nil),
		CompliancePolicy{},
	)
}

// Register adds or replaces a policy under its name.
func (r *Registry) Register(p Policy) {
	r.policies[p.Name()] = p
}

// Lookup resolves a policy by name.
func (r *Registry) Lookup(name string) (Policy, bool) {
	p, ok := r.policies[name]
	return p, ok
}

// Names returns the registered policy names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
