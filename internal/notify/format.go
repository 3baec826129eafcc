package notify

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/flowguard/flowguard/internal/approval"
)

// FormatPayload renders an approval request into the body shape the
// configured channel expects. Unknown formats fall back to the generic
// JSON encoding of the request itself.
func FormatPayload(format string, req approval.Request) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(req)
	case "pagerduty":
		return formatPagerDuty(req)
	default:
		return formatGeneric(req)
	}
}

func formatGeneric(req approval.Request) ([]byte, error) {
	return json.Marshal(req)
}

func formatSlack(req approval.Request) ([]byte, error) {
	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("flowguard: approval required for %s", req.Workflow.ID),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Workflow:* %s", req.Workflow.Name)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Requester:* %s", req.Requester)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", req.Reason)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Approvers:* %s", strings.Join(req.RequiredApprovers, ", "))},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(req approval.Request) ([]byte, error) {
	// Security sign-off pages louder than routine admin approval.
	severity := "warning"
	if slices.Contains(req.RequiredApprovers, approval.ApproverSecurityTeam) {
		severity = "critical"
	}

	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("flowguard approval required: %s", req.Workflow.ID),
			"severity": severity,
			"source":   "flowguard",
			"custom_details": map[string]any{
				"approval_id": req.ID,
				"workflow":    req.Workflow.ID,
				"requester":   req.Requester,
				"reason":      req.Reason,
				"approvers":   req.RequiredApprovers,
			},
		},
	}
	return json.Marshal(payload)
}
