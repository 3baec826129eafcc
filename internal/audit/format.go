package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a replay as an aligned text timeline, one
// line per entry, bracketed by the workflow scope and trail totals.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Entries) == 0 {
		scope := result.Workflow
		if scope == "" {
			scope = "all workflows"
		}
		return fmt.Sprintf("Workflow: %s | No entries found.\n", scope)
	}

	var b strings.Builder

	scope := result.Workflow
	if scope == "" {
		scope = "all workflows"
	}
	firstTime := formatDateRange(result.Summary.FirstTimestamp)
	lastTime := formatTimeOnly(result.Summary.LastTimestamp)
	b.WriteString(fmt.Sprintf("Workflow: %s | %s–%s UTC\n", scope, firstTime, lastTime))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		b.WriteString(fmt.Sprintf("%-10s %-26s %-15s %s\n",
			formatTimeOnly(e.Timestamp), e.Event, truncate(e.Workflow, 15), detailSummary(e)))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a replay as indented JSON for machine consumers.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("audit: marshal replay result: %w", err)
	}
	return string(data), nil
}

// detailSummary compresses an entry's details onto one timeline cell.
// Numeric detail values arrive as float64 after a JSON round trip and
// as int when the entry was built in process; both are handled.
func detailSummary(e Entry) string {
	switch e.Event {
	case EventCheckStart:
		return "policies=" + strings.Join(stringsField(e.Details, "policies"), ",")
	case EventViolation:
		sev, _ := e.Details["severity"].(string)
		desc, _ := e.Details["description"].(string)
		return fmt.Sprintf("%s: %s", sev, truncate(desc, 48))
	case EventCheckComplete:
		allowed, _ := e.Details["allowed"].(bool)
		return fmt.Sprintf("allowed=%t violations=%d in %dms",
			allowed, numberField(e.Details, "violation_count"), numberField(e.Details, "duration_ms"))
	case EventExecution:
		engine, _ := e.Details["engine"].(string)
		status, _ := e.Details["status"].(string)
		s := fmt.Sprintf("engine=%s status=%s", engine, status)
		if e.CostUSD != nil {
			s += fmt.Sprintf(" cost=$%.2f", *e.CostUSD)
		}
		return s
	case EventError:
		msg, _ := e.Details["error"].(string)
		return truncate(msg, 60)
	}
	return ""
}

func stringsField(details map[string]any, key string) []string {
	switch v := details[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func numberField(details map[string]any, key string) int64 {
	switch v := details[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s ReplaySummary) string {
	parts := []string{}
	if s.CheckCount > 0 {
		parts = append(parts, fmt.Sprintf("%d check", s.CheckCount))
	}
	if s.ViolationCount > 0 {
		parts = append(parts, fmt.Sprintf("%d violation", s.ViolationCount))
	}
	if s.BlockedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d blocked", s.BlockedCount))
	}
	if s.ExecutionCount > 0 {
		parts = append(parts, fmt.Sprintf("%d execution", s.ExecutionCount))
	}
	if s.ErrorCount > 0 {
		parts = append(parts, fmt.Sprintf("%d error", s.ErrorCount))
	}

	line := fmt.Sprintf("Summary: %s", strings.Join(parts, ", "))
	if s.MaxSeverity != "" {
		line += fmt.Sprintf(" | Max severity: %s", s.MaxSeverity)
	}
	if s.TotalCostUSD > 0 {
		line += fmt.Sprintf(" | Cost: $%.2f", s.TotalCostUSD)
	}
	return line + "\n"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
