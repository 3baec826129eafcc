package audit

import (
	"sort"
	"time"

	"github.com/flowguard/flowguard/internal/model"
)

// BuildTrail produces the ordered audit entries for one governance
// cycle. Construction order is fixed: one governance_check_start entry
// at the evaluation start, one policy_violation entry per violation,
// one governance_check_complete entry at the evaluation end. Auditors
// rely on that ordering; do not reorder.
//
// The builder is pure and must be called exactly once per execution
// attempt. Recording the entries is the caller's business. cfg must
// not be nil.
func BuildTrail(wf *model.Workflow, cfg *model.GovernanceConfig, result model.PolicyResult, start, end time.Time) []Entry {
	details := map[string]any{
		"workflow_name":      wf.Name,
		"policies":           cfg.Policies,
		"compliance_logging": cfg.ComplianceLogging,
	}
	if cfg.AuditLevel == model.AuditDetailed || cfg.AuditLevel == model.AuditComprehensive {
		details["step_count"] = len(wf.Steps)
	}
	if cfg.AuditLevel == model.AuditComprehensive {
		cc := map[string]any{"timeout_minutes": cfg.CostControls.TimeoutMinutes}
		if cfg.CostControls.BudgetLimit != nil {
			cc["budget_limit"] = *cfg.CostControls.BudgetLimit
		}
		if len(cfg.CostControls.ModelRestrictions) > 0 {
			cc["model_restrictions"] = cfg.CostControls.ModelRestrictions
		}
		details["cost_controls"] = cc
		if len(wf.Env) > 0 {
			details["env_keys"] = sortedKeys(wf.Env)
		}
	}

	entries := make([]Entry, 0, len(result.Violations)+2)
	entries = append(entries, Entry{
		Timestamp: FormatTime(start),
		Event:     EventCheckStart,
		Workflow:  wf.ID,
		Details:   details,
	})

	for _, v := range result.Violations {
		d := map[string]any{
			"policy":      v.Policy,
			"severity":    string(v.Severity),
			"description": v.Description,
		}
		if v.StepID != "" {
			d["step_id"] = v.StepID
		}
		entries = append(entries, Entry{
			Timestamp: FormatTime(time.Now()),
			Event:     EventViolation,
			Workflow:  wf.ID,
			Details:   d,
		})
	}

	entries = append(entries, Entry{
		Timestamp: FormatTime(end),
		Event:     EventCheckComplete,
		Workflow:  wf.ID,
		Details: map[string]any{
			"allowed":         result.Allowed,
			"violation_count": len(result.Violations),
			"duration_ms":     end.Sub(start).Milliseconds(),
		},
	})

	return entries
}

// ExecutionEntry records the outcome of delegating a workflow to an
// execution engine.
func ExecutionEntry(workflowID, engine, status string, stepCount int, costUSD float64) Entry {
	return Entry{
		Timestamp: FormatTime(time.Now()),
		Event:     EventExecution,
		Workflow:  workflowID,
		Details: map[string]any{
			"engine":     engine,
			"status":     status,
			"step_count": stepCount,
		},
		CostUSD: &costUSD,
	}
}

// ErrorEntry records a delegation that failed before completing.
func ErrorEntry(workflowID, engine, message string) Entry {
	return Entry{
		Timestamp: FormatTime(time.Now()),
		Event:     EventError,
		Workflow:  workflowID,
		Details: map[string]any{
			"engine": engine,
			"error":  message,
		},
	}
}

// sortedKeys keeps env key listings deterministic across runs.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
