// Package govern sequences the governance pipeline around one
// workflow submission: structural validation, policy enforcement, the
// human approval gate, delegation to an execution engine, and the
// audit trail that records all of it.
package govern

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flowguard/flowguard/internal/approval"
	"github.com/flowguard/flowguard/internal/audit"
	"github.com/flowguard/flowguard/internal/model"
	"github.com/flowguard/flowguard/internal/policy"
	"github.com/flowguard/flowguard/internal/runner"
)

// Status is the terminal state of one governed submission.
type Status string

const (
	StatusCompleted       Status = "completed"
	StatusBlocked         Status = "blocked"
	StatusDenied          Status = "denied"
	StatusPendingApproval Status = "pending_approval"
	StatusFailed          Status = "failed"
)

// Outcome is everything one Execute call produced.
type Outcome struct {
	Status     Status
	Result     model.PolicyResult
	ApprovalID string
	CostUSD    float64
	RunError   string
	Trail      []audit.Entry
}

// Prompt resolves a pending approval inline, typically by asking a
// human on the terminal. It returns the deciding approver and their
// decision. An error leaves the request pending.
type Prompt func(req approval.Request) (approver string, approved bool, err error)

// Forwarder receives converted audit events so governed runs surface
// in the same destinations as raw assistant logs. The shipper
// satisfies this.
type Forwarder interface {
	Process(ctx context.Context, entry model.LogEntry)
}

// Config assembles an Engine. Runner and AuditLog are required; nil
// collaborators elsewhere fall back to built-ins.
type Config struct {
	Policies  *policy.Engine
	Approvals *approval.Coordinator
	Runner    runner.Runner
	AuditLog  *audit.Log
	Forward   Forwarder
	Estimate  policy.Estimator
	Prompt    Prompt
	Requester string
	DryRun    bool
	Logger    *zap.Logger
}

// Engine drives governed workflow execution.
type Engine struct {
	policies  *policy.Engine
	approvals *approval.Coordinator
	runner    runner.Runner
	auditLog  *audit.Log
	forward   Forwarder
	estimate  policy.Estimator
	prompt    Prompt
	requester string
	dryRun    bool
	logger    *zap.Logger
}

// New builds an Engine from the config.
func New(cfg Config) (*Engine, error) {
	if cfg.Runner == nil {
		return nil, errors.New("govern: runner is required")
	}
	if cfg.AuditLog == nil {
		return nil, errors.New("govern: audit log is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Policies == nil {
		cfg.Policies = policy.NewEngine(nil, cfg.Logger)
	}
	if cfg.Approvals == nil {
		cfg.Approvals = approval.NewCoordinator(nil, cfg.Logger)
	}
	if cfg.Estimate == nil {
		cfg.Estimate = policy.DefaultEstimator
	}
	return &Engine{
		policies:  cfg.Policies,
		approvals: cfg.Approvals,
		runner:    cfg.Runner,
		auditLog:  cfg.AuditLog,
		forward:   cfg.Forward,
		estimate:  cfg.Estimate,
		prompt:    cfg.Prompt,
		requester: cfg.Requester,
		dryRun:    cfg.DryRun,
		logger:    cfg.Logger,
	}, nil
}

// Execute runs one workflow through the full governance pipeline. The
// returned error is reserved for structural validation failures and
// audit log write failures; policy blocks, denials, pending approvals,
// and engine failures are outcomes, not errors. A run whose trail
// cannot be recorded is reported as an error even if the engine
// finished, because an unaudited execution is the one state this
// pipeline must never produce.
func (e *Engine) Execute(ctx context.Context, wf *model.Workflow, cfg *model.GovernanceConfig) (*Outcome, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = policy.DefaultGovernanceConfig()
	}

	start := time.Now()
	result := e.policies.Enforce(wf, cfg)
	trail := audit.BuildTrail(wf, cfg, result, start, time.Now())

	out := &Outcome{Result: result, Trail: trail}
	if err := e.record(ctx, trail); err != nil {
		return nil, err
	}

	if !result.Allowed {
		e.logger.Warn("workflow blocked by policy",
			zap.String("workflow", wf.ID),
			zap.Int("violations", len(result.Violations)))
		out.Status = StatusBlocked
		return out, nil
	}

	if cfg.ApprovalRequired {
		status, approvalID := e.gate(wf, result)
		out.ApprovalID = approvalID
		if status != "" {
			out.Status = status
			return out, nil
		}
	}

	runCtx := ctx
	if cfg.CostControls.TimeoutMinutes > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.CostControls.TimeoutMinutes)*time.Minute)
		defer cancel()
	}

	out.CostUSD = e.estimate(wf)
	res, err := e.runner.Run(runCtx, runner.SpecFor(wf, e.dryRun))
	if err != nil || res.Status != runner.StatusCompleted {
		msg := describeRunFailure(res, err)
		entry := audit.ErrorEntry(wf.ID, e.runner.Name(), msg)
		if rerr := e.record(ctx, []audit.Entry{entry}); rerr != nil {
			return nil, rerr
		}
		e.logger.Error("workflow execution failed",
			zap.String("workflow", wf.ID),
			zap.String("engine", e.runner.Name()),
			zap.String("reason", msg))
		out.Trail = append(out.Trail, entry)
		out.Status = StatusFailed
		out.RunError = msg
		return out, nil
	}

	entry := audit.ExecutionEntry(wf.ID, e.runner.Name(), string(res.Status), len(wf.Steps), out.CostUSD)
	if err := e.record(ctx, []audit.Entry{entry}); err != nil {
		return nil, err
	}
	e.logger.Info("workflow executed",
		zap.String("workflow", wf.ID),
		zap.String("engine", e.runner.Name()),
		zap.Float64("cost_usd", out.CostUSD))
	out.Trail = append(out.Trail, entry)
	out.Status = StatusCompleted
	return out, nil
}

// gate applies the human sign-off requirement. An empty status means
// the gate is open and execution may proceed.
func (e *Engine) gate(wf *model.Workflow, result model.PolicyResult) (Status, string) {
	if req, ok := e.approvals.FindApproved(wf.ID); ok {
		e.logger.Info("reusing standing approval",
			zap.String("workflow", wf.ID),
			zap.String("approval", req.ID),
			zap.String("approved_by", req.ResolvedBy))
		return "", req.ID
	}

	reason := "governance config requires human sign-off"
	if n := len(result.Violations); n > 0 {
		reason = fmt.Sprintf("governance config requires human sign-off (%d policy findings)", n)
	}
	req := e.approvals.RequestApproval(wf, reason, e.requester)

	if e.prompt == nil {
		return StatusPendingApproval, req.ID
	}

	approver, approved, err := e.prompt(req)
	if err != nil {
		e.logger.Warn("approval prompt failed, request stays pending",
			zap.String("approval", req.ID), zap.Error(err))
		return StatusPendingApproval, req.ID
	}
	approved, err = e.approvals.ProcessApproval(req.ID, approved, approver)
	if err != nil {
		e.logger.Warn("approval decision rejected, request stays pending",
			zap.String("approval", req.ID), zap.Error(err))
		return StatusPendingApproval, req.ID
	}
	if !approved {
		return StatusDenied, req.ID
	}
	return "", req.ID
}

// record appends entries to the audit log and forwards their log
// shape to the aggregation pipeline when one is attached.
func (e *Engine) record(ctx context.Context, entries []audit.Entry) error {
	if err := e.auditLog.RecordAll(entries); err != nil {
		return fmt.Errorf("govern: record audit trail: %w", err)
	}
	if e.forward != nil {
		for _, entry := range entries {
			e.forward.Process(ctx, toLogEntry(entry))
		}
	}
	return nil
}

func describeRunFailure(res runner.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	msg := fmt.Sprintf("engine reported status %q", res.Status)
	if len(res.Errors) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, res.Errors)
	}
	return msg
}
