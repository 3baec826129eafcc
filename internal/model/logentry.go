package model

import "time"

// Log severity levels used by the aggregation pipeline.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// DefaultSource is assigned to entries whose origin is not recorded.
const DefaultSource = "claude-code"

// GovernanceMeta is the governance annotation block on a log entry.
// The upstream pipeline sets the workflow-scoped fields; aggregation
// adds only its own keys and never overwrites what is already set.
type GovernanceMeta struct {
	WorkflowID      string    `json:"workflow_id,omitempty"`
	PolicyChecked   bool      `json:"policy_checked,omitempty"`
	Violations      int       `json:"violations,omitempty"`
	ApprovalID      string    `json:"approval_id,omitempty"`
	AggregatedAt    time.Time `json:"aggregated_at,omitzero"`
	ComplianceLevel string    `json:"compliance_level,omitempty"`
	RetentionDays   int       `json:"retention_days,omitempty"`
}

// LogMetadata describes the environment that produced an entry.
type LogMetadata struct {
	ToolVersion string `json:"tool_version,omitempty"`
	Platform    string `json:"platform,omitempty"`
	Region      string `json:"region,omitempty"`
}

// LogEntry is the canonical record flowing through the aggregation
// pipeline. The parser creates it; sanitization and then governance
// enrichment mutate it in place, in that order, before it is queued.
type LogEntry struct {
	Timestamp  time.Time       `json:"timestamp"`
	Level      string          `json:"level"`
	Source     string          `json:"source"`
	SessionID  string          `json:"session_id"`
	UserID     string          `json:"user_id,omitempty"`
	ProjectID  string          `json:"project_id,omitempty"`
	TeamID     string          `json:"team_id,omitempty"`
	Event      string          `json:"event"`
	Data       map[string]any  `json:"data,omitempty"`
	Governance *GovernanceMeta `json:"governance,omitempty"`
	Metadata   LogMetadata     `json:"metadata"`
}
