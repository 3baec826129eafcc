package shipper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flowguard/flowguard/internal/model"
	"github.com/flowguard/flowguard/internal/sink"
)

// fakeDest records every batch it receives. When synced is set, each
// Sync call reports its entry count there, which lets tests wait for
// asynchronous worker-pool deliveries.
type fakeDest struct {
	mu      sync.Mutex
	batches [][]model.LogEntry
	fail    bool
	synced  chan int
}

func (d *fakeDest) Name() string { return "fake" }

func (d *fakeDest) Sync(ctx context.Context, entries []model.LogEntry) sink.SyncResult {
	d.mu.Lock()
	batch := make([]model.LogEntry, len(entries))
	copy(batch, entries)
	d.batches = append(d.batches, batch)
	d.mu.Unlock()
	if d.synced != nil {
		d.synced <- len(entries)
	}
	if d.fail {
		return sink.SyncResult{
			EntriesSkipped: len(entries),
			Errors:         []string{"fake: destination down"},
			SyncID:         "test-sync",
		}
	}
	return sink.SyncResult{
		Success:          true,
		EntriesProcessed: len(entries),
		SyncID:           "test-sync",
	}
}

func (d *fakeDest) batchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.batches)
}

func (d *fakeDest) allEntries() []model.LogEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	var all []model.LogEntry
	for _, b := range d.batches {
		all = append(all, b...)
	}
	return all
}

func testConfig(mode string) Config {
	cfg := DefaultConfig()
	cfg.Root = "testdata-unused"
	cfg.Mode = mode
	cfg.Workers = 2
	cfg.BatchSize = 10
	return cfg
}

func waitSynced(t *testing.T, ch chan int, want int) {
	t.Helper()
	total := 0
	deadline := time.After(5 * time.Second)
	for total < want {
		select {
		case n := <-ch:
			total += n
		case <-deadline:
			t.Fatalf("timed out waiting for %d synced entries, got %d", want, total)
		}
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	cfg := testConfig("eventually")
	if _, err := New(cfg, &fakeDest{}, nil); err == nil {
		t.Error("expected error for invalid mode")
	}
	if _, err := New(testConfig(ModeBatch), nil, nil); err == nil {
		t.Error("expected error for nil destination")
	}
}

func TestBatchModeQueuesUntilFlush(t *testing.T) {
	dest := &fakeDest{}
	s, err := New(testConfig(ModeBatch), dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.Process(ctx, model.LogEntry{Event: "tool_use"})
	}

	if got := dest.batchCount(); got != 0 {
		t.Fatalf("batch mode shipped %d batches before flush", got)
	}
	if s.QueueDepth() != 3 {
		t.Fatalf("queue depth = %d, want 3", s.QueueDepth())
	}

	results := s.Flush(ctx)
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("Flush results = %+v, want one success", results)
	}
	if got := dest.batchCount(); got != 1 {
		t.Fatalf("flushed %d batches, want 1", got)
	}
	if s.QueueDepth() != 0 {
		t.Errorf("queue depth = %d after flush", s.QueueDepth())
	}
}

func TestFlushRespectsBatchSize(t *testing.T) {
	dest := &fakeDest{}
	cfg := testConfig(ModeBatch)
	cfg.BatchSize = 2
	s, err := New(cfg, dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Process(ctx, model.LogEntry{Event: "tool_use"})
	}

	results := s.Flush(ctx)
	if len(results) != 3 {
		t.Fatalf("Flush produced %d results, want 3", len(results))
	}
	sizes := []int{len(dest.batches[0]), len(dest.batches[1]), len(dest.batches[2])}
	if sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Errorf("batch sizes = %v, want [2 2 1]", sizes)
	}
}

func TestRealTimeModeShipsEachEntry(t *testing.T) {
	dest := &fakeDest{synced: make(chan int, 8)}
	s, err := New(testConfig(ModeRealTime), dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	s.Process(ctx, model.LogEntry{Event: "tool_use"})
	s.Process(ctx, model.LogEntry{Event: "api_request"})
	waitSynced(t, dest.synced, 2)

	if got := dest.batchCount(); got != 2 {
		t.Fatalf("real-time mode shipped %d batches, want 2 single-entry batches", got)
	}
	if s.QueueDepth() != 0 {
		t.Errorf("real-time mode queued %d entries", s.QueueDepth())
	}
}

func TestHybridModeShipsAndQueues(t *testing.T) {
	dest := &fakeDest{synced: make(chan int, 8)}
	s, err := New(testConfig(ModeHybrid), dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	s.Process(context.Background(), model.LogEntry{Event: "tool_use"})
	waitSynced(t, dest.synced, 1)

	if got := dest.batchCount(); got != 1 {
		t.Fatalf("hybrid mode shipped %d immediate batches, want 1", got)
	}
	if s.QueueDepth() != 1 {
		t.Fatalf("hybrid mode queued %d entries, want 1", s.QueueDepth())
	}
}

func TestProcessSanitizesBeforeShipping(t *testing.T) {
	dest := &fakeDest{}
	s, err := New(testConfig(ModeBatch), dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	s.Process(ctx, model.LogEntry{
		Event: "api_request",
		Data: map[string]any{
			"api_key": "sk-live-12345",
			"message": "contact dev@example.com",
		},
	})
	s.Flush(ctx)

	entries := dest.allEntries()
	if len(entries) != 1 {
		t.Fatalf("shipped %d entries, want 1", len(entries))
	}
	data := entries[0].Data
	if data["api_key"] != "[REDACTED]" {
		t.Errorf("api_key = %q, want redacted", data["api_key"])
	}
	if msg := data["message"].(string); strings.Contains(msg, "dev@example.com") {
		t.Errorf("message still carries the address: %q", msg)
	}
}

func TestProcessSkipsSanitizationWhenOff(t *testing.T) {
	dest := &fakeDest{}
	cfg := testConfig(ModeBatch)
	cfg.Sanitize = false
	s, err := New(cfg, dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	s.Process(ctx, model.LogEntry{
		Event: "api_request",
		Data:  map[string]any{"api_key": "sk-live-12345"},
	})
	s.Flush(ctx)

	if got := dest.allEntries()[0].Data["api_key"]; got != "sk-live-12345" {
		t.Errorf("api_key = %q, sanitization should be off", got)
	}
}

func TestEnrichStampsOnlyUnsetFields(t *testing.T) {
	dest := &fakeDest{}
	cfg := testConfig(ModeBatch)
	cfg.ComplianceLevel = "strict"
	cfg.RetentionDays = 30
	s, err := New(cfg, dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	s.Process(ctx, model.LogEntry{Event: "bare"})
	upstream := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Process(ctx, model.LogEntry{
		Event: "governed",
		Governance: &model.GovernanceMeta{
			WorkflowID:      "deploy-service",
			ComplianceLevel: "regulated",
			RetentionDays:   365,
			AggregatedAt:    upstream,
		},
	})
	s.Flush(ctx)

	entries := dest.allEntries()
	bare, governed := entries[0].Governance, entries[1].Governance

	if bare == nil {
		t.Fatal("enrichment should create the governance block")
	}
	if bare.AggregatedAt.IsZero() {
		t.Error("aggregated_at not stamped")
	}
	if bare.ComplianceLevel != "strict" || bare.RetentionDays != 30 {
		t.Errorf("bare entry enriched as %+v", bare)
	}

	if governed.ComplianceLevel != "regulated" || governed.RetentionDays != 365 {
		t.Errorf("upstream governance overwritten: %+v", governed)
	}
	if !governed.AggregatedAt.Equal(upstream) {
		t.Errorf("upstream aggregated_at overwritten: %v", governed.AggregatedAt)
	}
	if governed.WorkflowID != "deploy-service" {
		t.Errorf("workflow id lost: %q", governed.WorkflowID)
	}
}

func TestSubscribeSeesProcessedEntries(t *testing.T) {
	dest := &fakeDest{}
	s, err := New(testConfig(ModeBatch), dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	ch := s.Subscribe()
	s.Process(context.Background(), model.LogEntry{Event: "tool_use"})

	select {
	case entry := <-ch:
		if entry.Event != "tool_use" {
			t.Errorf("subscriber got event %q", entry.Event)
		}
		if entry.Governance == nil {
			t.Error("subscriber should see post-enrichment entries")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the entry")
	}
}

func TestQueueEvictionIsCounted(t *testing.T) {
	dest := &fakeDest{}
	cfg := testConfig(ModeBatch)
	cfg.QueueCap = 2
	s, err := New(cfg, dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		s.Process(ctx, model.LogEntry{Event: "burst"})
	}
	if s.QueueDepth() != 2 {
		t.Fatalf("queue depth = %d, want cap 2", s.QueueDepth())
	}
}

func writeTestRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	logs := filepath.Join(root, "logs")
	if err := os.MkdirAll(logs, 0o755); err != nil {
		t.Fatal(err)
	}
	lines := `{"event": "tool_use", "session_id": "abc", "message": "first"}
{"event": "api_request", "session_id": "abc", "message": "second"}
`
	if err := os.WriteFile(filepath.Join(logs, "app.log"), []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestAggregateParsesKnownSubdirs(t *testing.T) {
	root := writeTestRoot(t)
	dest := &fakeDest{}
	cfg := testConfig(ModeBatch)
	cfg.Root = root
	s, err := New(cfg, dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	n, err := s.Aggregate(ctx)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if n != 2 {
		t.Fatalf("Aggregate processed %d entries, want 2", n)
	}
	if s.QueueDepth() != 2 {
		t.Fatalf("queue depth = %d, want 2", s.QueueDepth())
	}

	// A second pass over unchanged files is a no-op.
	n, err = s.Aggregate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("second Aggregate processed %d entries, want 0", n)
	}
}

func TestAggregatePicksUpAppendedLines(t *testing.T) {
	root := writeTestRoot(t)
	dest := &fakeDest{}
	cfg := testConfig(ModeBatch)
	cfg.Root = root
	s, err := New(cfg, dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := s.Aggregate(ctx); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(root, "logs", "app.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"event": "session_end", "session_id": "abc"}` + "\n"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	n, err := s.Aggregate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("appended pass processed %d entries, want 1", n)
	}

	s.Flush(ctx)
	entries := dest.allEntries()
	last := entries[len(entries)-1]
	if last.Event != "session_end" {
		t.Errorf("last event = %q, want the appended line only", last.Event)
	}
}

func TestAggregateRereadsTruncatedFile(t *testing.T) {
	root := writeTestRoot(t)
	dest := &fakeDest{}
	cfg := testConfig(ModeBatch)
	cfg.Root = root
	s, err := New(cfg, dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := s.Aggregate(ctx); err != nil {
		t.Fatal(err)
	}

	// Rewrite shorter than the recorded offset.
	path := filepath.Join(root, "logs", "app.log")
	if err := os.WriteFile(path, []byte(`{"event": "rewritten"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := s.Aggregate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("truncated pass processed %d entries, want 1", n)
	}
}

func TestAggregateMissingRoot(t *testing.T) {
	dest := &fakeDest{}
	cfg := testConfig(ModeBatch)
	cfg.Root = filepath.Join(t.TempDir(), "never-created")
	s, err := New(cfg, dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.Aggregate(context.Background())
	if err != nil {
		t.Fatalf("missing root should not error, got %v", err)
	}
	if n != 0 {
		t.Fatalf("processed %d entries from a missing root", n)
	}
}

func TestFailedSyncReportsInResults(t *testing.T) {
	dest := &fakeDest{fail: true}
	s, err := New(testConfig(ModeBatch), dest, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	s.Process(ctx, model.LogEntry{Event: "tool_use"})
	results := s.Flush(ctx)
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	r := results[0]
	if r.Success || r.EntriesSkipped != 1 || len(r.Errors) == 0 {
		t.Errorf("failure result = %+v", r)
	}
}
