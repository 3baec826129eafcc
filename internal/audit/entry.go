// Package audit builds and persists the governance audit trail. The
// trail builder is pure; the log is an append-only JSONL file with
// SHA-256 hash chaining so tampering, deletion, and insertion are all
// detectable after the fact.
package audit

import "time"

// TimestampFormat is the layout used in audit entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Event classifies one line of the audit trail.
type Event string

const (
	EventCheckStart    Event = "governance_check_start"
	EventViolation     Event = "policy_violation"
	EventCheckComplete Event = "governance_check_complete"
	EventExecution     Event = "workflow_execution"
	EventError         Event = "workflow_error"
)

// Entry is one line in the hash-chained JSONL audit log. Details is a
// map, which is safe for hashing: encoding/json writes map keys in
// sorted order, so re-marshaling an entry reproduces the same line.
type Entry struct {
	Timestamp string         `json:"ts"`
	Event     Event          `json:"event"`
	Workflow  string         `json:"workflow"`
	Details   map[string]any `json:"details,omitempty"`
	CostUSD   *float64       `json:"cost_usd,omitempty"`
	PrevHash  string         `json:"prev_hash"`
}

// FormatTime renders a timestamp in the audit layout, always UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
