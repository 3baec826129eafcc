package govern

import (
	"encoding/json"
	"runtime"
	"time"

	"github.com/flowguard/flowguard/internal/audit"
	"github.com/flowguard/flowguard/internal/model"
)

// logSource marks entries that originate from the governance pipeline
// itself rather than from raw assistant logs.
const logSource = "flowguard"

// toLogEntry converts an audit entry into the aggregation pipeline's
// log shape. Details are cloned so downstream sanitization cannot
// reach back into the recorded trail.
func toLogEntry(entry audit.Entry) model.LogEntry {
	ts, err := time.Parse(audit.TimestampFormat, entry.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	data := cloneDetails(entry.Details)
	if entry.CostUSD != nil {
		if data == nil {
			data = make(map[string]any, 1)
		}
		data["cost_usd"] = *entry.CostUSD
	}

	level := model.LevelInfo
	switch entry.Event {
	case audit.EventViolation:
		level = model.LevelWarn
	case audit.EventError:
		level = model.LevelError
	}

	meta := &model.GovernanceMeta{
		WorkflowID:    entry.Workflow,
		PolicyChecked: true,
	}
	if n, ok := entry.Details["violation_count"].(int); ok {
		meta.Violations = n
	}

	return model.LogEntry{
		Timestamp:  ts,
		Level:      level,
		Source:     logSource,
		SessionID:  "govern-" + entry.Workflow,
		Event:      string(entry.Event),
		Data:       data,
		Governance: meta,
		Metadata:   model.LogMetadata{Platform: runtime.GOOS},
	}
}

// cloneDetails deep-copies a details map through JSON, which also
// normalizes values to the types a parsed log entry would carry.
func cloneDetails(details map[string]any) map[string]any {
	if len(details) == 0 {
		return nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
