package ingest

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/flowguard/flowguard/internal/model"
)

// timestampKeys are consulted in order; the first parseable value wins.
var timestampKeys = []string{"timestamp", "ts", "time"}

// normalize maps an arbitrary parsed object into the canonical
// LogEntry shape. Recognized keys are consumed into typed fields;
// everything else stays in Data. Missing fields get defaults, never
// errors.
func (p *Parser) normalize(raw map[string]any, path string) model.LogEntry {
	data := make(map[string]any, len(raw))
	for k, v := range raw {
		data[k] = v
	}

	entry := model.LogEntry{
		Timestamp: takeTimestamp(data),
		Level:     takeLevel(data),
	}

	if source, ok := takeFirst(data, "source"); ok {
		entry.Source = source
	} else {
		entry.Source = model.DefaultSource
	}

	if session, ok := takeFirst(data, "session_id", "sessionId"); ok {
		entry.SessionID = session
	} else {
		entry.SessionID = sessionHash(path)
	}

	if user, ok := takeFirst(data, "user_id", "user"); ok {
		entry.UserID = user
	} else {
		entry.UserID = p.userID
	}

	if team, ok := takeFirst(data, "team_id", "team"); ok {
		entry.TeamID = team
	} else {
		entry.TeamID = p.teamID
	}

	if project, ok := takeFirst(data, "project_id", "projectId"); ok {
		entry.ProjectID = project
	} else {
		entry.ProjectID = projectFromPath(path)
	}

	if event, ok := takeFirst(data, "event", "event_name", "type"); ok {
		entry.Event = event
	} else {
		entry.Event = defaultEvent
	}

	if rawGov, ok := data["governance"].(map[string]any); ok {
		if meta := coerceGovernance(rawGov); meta != nil {
			entry.Governance = meta
			delete(data, "governance")
		}
	}

	if len(data) > 0 {
		entry.Data = data
	}

	entry.Metadata = p.metadata()
	return entry
}

// takeFirst returns the first non-empty string value among keys and
// removes it from data.
func takeFirst(data map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := data[k].(string); ok && v != "" {
			delete(data, k)
			return v, true
		}
	}
	return "", false
}

// takeTimestamp consumes the first parseable timestamp key. Keys with
// unparseable values are left in place and the entry falls back to
// the current time.
func takeTimestamp(data map[string]any) time.Time {
	for _, key := range timestampKeys {
		v, ok := data[key]
		if !ok {
			continue
		}
		if t, ok := parseTimestamp(v); ok {
			delete(data, key)
			return t
		}
	}
	return time.Now().UTC()
}

func parseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC(), true
		}
	case float64:
		if t <= 0 {
			return time.Time{}, false
		}
		if t >= 1e12 { // epoch milliseconds
			return time.UnixMilli(int64(t)).UTC(), true
		}
		return time.Unix(int64(t), 0).UTC(), true
	}
	return time.Time{}, false
}

func takeLevel(data map[string]any) string {
	for _, key := range []string{"level", "severity"} {
		v, ok := data[key].(string)
		if !ok {
			continue
		}
		delete(data, key)
		return normalizeLevel(v)
	}
	return model.LevelInfo
}

func normalizeLevel(s string) string {
	switch strings.ToLower(s) {
	case "debug":
		return model.LevelDebug
	case "warn", "warning":
		return model.LevelWarn
	case "error", "fatal":
		return model.LevelError
	default:
		return model.LevelInfo
	}
}

// sessionHash derives a stable session id from the source file path,
// so all entries of one file land in the same session.
func sessionHash(path string) string {
	h := fnv.New64a()
	h.Write([]byte(path))
	return fmt.Sprintf("session-%016x", h.Sum64())
}

// projectFromPath extracts <name> from a projects/<name>/ path
// segment. The segment after projects must be a directory, not the
// file itself.
func projectFromPath(path string) string {
	segs := strings.Split(filepath.ToSlash(path), "/")
	for i, seg := range segs {
		if seg == "projects" && i+1 < len(segs)-1 {
			return segs[i+1]
		}
	}
	return ""
}

// coerceGovernance maps a raw governance block onto the typed meta.
// Blocks that do not fit the shape are left in Data untouched.
func coerceGovernance(raw map[string]any) *model.GovernanceMeta {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var meta model.GovernanceMeta
	if err := json.Unmarshal(buf, &meta); err != nil {
		return nil
	}
	return &meta
}

func (p *Parser) metadata() model.LogMetadata {
	meta := model.LogMetadata{
		ToolVersion: p.meta.ToolVersion,
		Platform:    runtime.GOOS,
		Region:      p.meta.Region,
	}
	if p.meta.Platform != "" {
		meta.Platform = p.meta.Platform
	}
	return meta
}
