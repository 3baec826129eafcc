package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/flowguard/flowguard/internal/model"
)

// EventTextLog tags free-text lines that could not be parsed as JSON.
const EventTextLog = "text_log"

// defaultEvent tags structured entries that carry no event name.
const defaultEvent = "log_entry"

// Parser converts raw log bytes into normalized entries. The zero
// value is usable; the metadata and identity fields fill gaps in
// entries that do not carry their own.
type Parser struct {
	meta   model.LogMetadata
	userID string
	teamID string
}

// NewParser creates a Parser with caller-supplied metadata overrides
// and default user/team identities.
func NewParser(meta model.LogMetadata, userID, teamID string) *Parser {
	return &Parser{meta: meta, userID: userID, teamID: teamID}
}

// ParseFile reads one file and parses its contents.
func (p *Parser) ParseFile(path string) ([]model.LogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}
	return p.ParseBytes(data, path), nil
}

// ParseBytes parses raw bytes into normalized entries. A whole-file
// JSON parse is attempted first: an array yields one entry per
// element, an object a single entry. Anything else falls back to
// line-delimited parsing. No input line is dropped: lines that fail
// to parse become text_log entries.
func (p *Parser) ParseBytes(data []byte, path string) []model.LogEntry {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	var whole any
	if err := json.Unmarshal(trimmed, &whole); err == nil {
		switch v := whole.(type) {
		case []any:
			entries := make([]model.LogEntry, 0, len(v))
			for _, item := range v {
				entries = append(entries, p.normalizeValue(item, path))
			}
			return entries
		default:
			return []model.LogEntry{p.normalizeValue(v, path)}
		}
	}

	return p.parseLines(data, path)
}

// parseLines splits on newlines, discards blanks, and parses each
// remaining line independently.
func (p *Parser) parseLines(data []byte, path string) []model.LogEntry {
	var entries []model.LogEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			entries = append(entries, p.textEntry(line, path))
			continue
		}
		entries = append(entries, p.normalize(obj, path))
	}
	return entries
}

// normalizeValue wraps non-object JSON values so they survive
// normalization instead of being discarded.
func (p *Parser) normalizeValue(v any, path string) model.LogEntry {
	if obj, ok := v.(map[string]any); ok {
		return p.normalize(obj, path)
	}
	return p.normalize(map[string]any{"value": v}, path)
}

func (p *Parser) textEntry(line, path string) model.LogEntry {
	return p.normalize(map[string]any{
		"event":       EventTextLog,
		"text":        line,
		"source_file": path,
	}, path)
}
