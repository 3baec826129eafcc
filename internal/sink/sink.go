// Package sink delivers normalized log entries to one configured
// destination. CloudWatch Logs and S3 are all-or-nothing per sync
// attempt; Kinesis delivers per entry with partial-failure semantics.
// Every failure is converted into a SyncResult, never propagated as a
// panic or a lost batch.
package sink

import (
	"context"
	"time"

	"github.com/flowguard/flowguard/internal/model"
)

// defaultCallTimeout bounds a single destination call so a dead
// endpoint cannot block the pipeline indefinitely.
const defaultCallTimeout = 30 * time.Second

// SyncResult reports the outcome of one sync attempt.
type SyncResult struct {
	Success          bool     `json:"success"`
	EntriesProcessed int      `json:"entries_processed"`
	EntriesSkipped   int      `json:"entries_skipped"`
	Errors           []string `json:"errors,omitempty"`
	SyncID           string   `json:"sync_id"`
}

// Destination is a configured delivery target. Implementations are
// constructed once and never mutated afterwards; Sync may be called
// concurrently.
type Destination interface {
	Name() string
	Sync(ctx context.Context, entries []model.LogEntry) SyncResult
}

// failedResult converts a total failure into a SyncResult: nothing
// processed, everything skipped, one error string.
func failedResult(syncID string, skipped int, msg string) SyncResult {
	return SyncResult{
		SyncID:         syncID,
		EntriesSkipped: skipped,
		Errors:         []string{msg},
	}
}
