package sink

import (
	"fmt"
	"time"

	"github.com/flowguard/flowguard/internal/model"
)

// syncEntries builds n entries with ascending timestamps and distinct
// session IDs.
func syncEntries(n int) []model.LogEntry {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := make([]model.LogEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, model.LogEntry{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Level:     model.LevelInfo,
			Source:    model.DefaultSource,
			SessionID: fmt.Sprintf("session-%d", i),
			Event:     "log_entry",
			Data:      map[string]any{"seq": i},
		})
	}
	return entries
}
