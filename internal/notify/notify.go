// Package notify delivers approval requests to the channels where
// approvers live. The log notifier stands in for a real channel in
// local setups; the webhook notifier speaks generic JSON, Slack Block
// Kit, or PagerDuty Events v2.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/flowguard/flowguard/internal/approval"
)

// Config defines a webhook notification destination.
type Config struct {
	URL     string            `koanf:"url"     yaml:"url"     json:"url"`
	Format  string            `koanf:"format"  yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Headers map[string]string `koanf:"headers" yaml:"headers" json:"headers"`
}

// LogNotifier writes approval requests to the process log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger discards output.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// NotifyApprovers logs the request and always succeeds.
func (n *LogNotifier) NotifyApprovers(_ context.Context, req approval.Request) error {
	n.logger.Info("approval required",
		zap.String("approval", req.ID),
		zap.String("workflow", req.Workflow.ID),
		zap.String("requester", req.Requester),
		zap.String("reason", req.Reason),
		zap.Strings("approvers", req.RequiredApprovers))
	return nil
}
