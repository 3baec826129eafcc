package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/flowguard/flowguard/internal/model"
)

// ReplayFilter holds filtering criteria for audit replay.
type ReplayFilter struct {
	Workflow string    // empty = all workflows
	Event    Event     // empty = all events
	From     time.Time // zero value = no lower bound
	To       time.Time // zero value = no upper bound
}

// ReplaySummary holds event counts and metadata for a replayed trail.
type ReplaySummary struct {
	Total          int     `json:"total"`
	CheckCount     int     `json:"check_count"`
	ViolationCount int     `json:"violation_count"`
	BlockedCount   int     `json:"blocked_count"`
	ExecutionCount int     `json:"execution_count"`
	ErrorCount     int     `json:"error_count"`
	TotalCostUSD   float64 `json:"total_cost_usd"`
	FirstTimestamp string  `json:"first_timestamp"`
	LastTimestamp  string  `json:"last_timestamp"`
	MaxSeverity    string  `json:"max_severity,omitempty"`
}

// ReplayResult holds filtered entries and a summary of what they show.
type ReplayResult struct {
	Workflow string        `json:"workflow,omitempty"`
	Entries  []Entry       `json:"entries"`
	Summary  ReplaySummary `json:"summary"`
}

// Replay reconstructs a workflow's governance history from the audit
// log: entries passing the filter, in file order, plus running totals.
// Malformed lines are skipped rather than failing the replay; Verify
// is the tool for integrity questions.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{
		Workflow: filter.Workflow,
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}

		if filter.Workflow != "" && entry.Workflow != filter.Workflow {
			continue
		}
		if filter.Event != "" && entry.Event != filter.Event {
			continue
		}

		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, err := time.Parse(TimestampFormat, entry.Timestamp)
			if err != nil {
				continue
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				continue
			}
		}

		result.Entries = append(result.Entries, entry)
		result.Summary.tally(entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: read log: %w", err)
	}

	return result, nil
}

func (s *ReplaySummary) tally(entry Entry) {
	s.Total++

	switch entry.Event {
	case EventCheckStart:
		s.CheckCount++
	case EventViolation:
		s.ViolationCount++
		if sev, ok := entry.Details["severity"].(string); ok {
			if model.SeverityRank[model.Severity(sev)] > model.SeverityRank[model.Severity(s.MaxSeverity)] {
				s.MaxSeverity = sev
			}
		}
	case EventCheckComplete:
		if allowed, ok := entry.Details["allowed"].(bool); ok && !allowed {
			s.BlockedCount++
		}
	case EventExecution:
		s.ExecutionCount++
		if entry.CostUSD != nil {
			s.TotalCostUSD += *entry.CostUSD
		}
	case EventError:
		s.ErrorCount++
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
