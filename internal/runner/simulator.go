package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Simulator is a local stand-in engine for demos and tests. It walks
// the steps without invoking any model and reports completed, so the
// full governance path can be exercised offline.
type Simulator struct {
	logger *zap.Logger

	// StepDelay slows each step down for demo pacing. Zero runs
	// instantly.
	StepDelay time.Duration
}

// NewSimulator creates a Simulator. A nil logger discards output.
func NewSimulator(logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{logger: logger}
}

func (s *Simulator) Name() string { return "simulator" }

// Run checks the spec and walks its steps. Cancellation between steps
// fails the run with the context error.
func (s *Simulator) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.WorkflowID == "" {
		return Result{Status: StatusFailed, Errors: []string{"spec has no workflow id"}}, nil
	}
	if len(spec.Steps) == 0 {
		return Result{Status: StatusFailed, Errors: []string{"spec has no steps"}}, nil
	}

	for _, st := range spec.Steps {
		select {
		case <-ctx.Done():
			return Result{Status: StatusFailed, Errors: []string{ctx.Err().Error()}},
				fmt.Errorf("runner: simulation interrupted: %w", ctx.Err())
		default:
		}
		s.logger.Debug("simulating step",
			zap.String("workflow", spec.WorkflowID),
			zap.String("step", st.ID),
			zap.String("type", string(st.Type)))
		if s.StepDelay > 0 {
			time.Sleep(s.StepDelay)
		}
	}

	return Result{Status: StatusCompleted}, nil
}
