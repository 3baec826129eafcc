// Package shipper runs the log aggregation pipeline: it discovers raw
// log files under a root directory, parses them into normalized
// entries, sanitizes and enriches each one, and delivers the stream
// to the configured destination in real-time, batch, or hybrid mode.
package shipper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/flowguard/flowguard/internal/ingest"
	"github.com/flowguard/flowguard/internal/model"
	"github.com/flowguard/flowguard/internal/sanitize"
	"github.com/flowguard/flowguard/internal/sink"
)

const (
	// subscriberBuffer is the per-subscriber channel depth. A consumer
	// that falls further behind misses entries rather than stalling
	// the pipeline.
	subscriberBuffer = 64

	// shutdownTimeout bounds the final flush when Run winds down.
	shutdownTimeout = 30 * time.Second
)

// Shipper is the aggregation pipeline. Construct with New; all methods
// are safe for concurrent use.
type Shipper struct {
	cfg       Config
	dest      sink.Destination
	parser    *ingest.Parser
	sanitizer *sanitize.Sanitizer
	queue     *syncQueue
	pool      *ants.Pool
	metrics   *metrics
	logger    *zap.Logger

	offMu   sync.Mutex
	offsets map[string]int64

	subMu  sync.Mutex
	subs   []chan model.LogEntry
	closed bool
}

// New builds a Shipper from a validated config and a destination. The
// worker pool exists only in modes that ship entries one at a time.
func New(cfg Config, dest sink.Destination, logger *zap.Logger) (*Shipper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dest == nil {
		return nil, errors.New("shipper: destination is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Shipper{
		cfg:  cfg,
		dest: dest,
		parser: ingest.NewParser(model.LogMetadata{
			ToolVersion: cfg.ToolVersion,
			Region:      cfg.Region,
		}, cfg.UserID, cfg.TeamID),
		queue:   newSyncQueue(cfg.QueueCap),
		logger:  logger,
		offsets: make(map[string]int64),
	}
	s.metrics = newMetrics(s.queue)
	if cfg.Sanitize {
		s.sanitizer = sanitize.New()
	}
	if cfg.Mode != ModeBatch {
		pool, err := ants.NewPool(cfg.Workers)
		if err != nil {
			return nil, fmt.Errorf("shipper: create worker pool: %w", err)
		}
		s.pool = pool
	}
	return s, nil
}

// Registry exposes the pipeline's metrics for a /metrics endpoint.
func (s *Shipper) Registry() *prometheus.Registry {
	return s.metrics.registry
}

// QueueDepth reports how many entries are waiting for the next batch.
func (s *Shipper) QueueDepth() int {
	return s.queue.Len()
}

// Aggregate runs one pass over the configured root: discover known
// subdirectories, collect their files, parse, and process. It returns
// the number of entries processed. Consumed files keep their read
// offsets, so repeat passes pick up only appended data.
func (s *Shipper) Aggregate(ctx context.Context) (int, error) {
	dirs, err := ingest.Discover(s.cfg.Root)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, dir := range dirs {
		files, err := ingest.CollectFiles(dir)
		if err != nil {
			s.logger.Warn("skipping unreadable directory",
				zap.String("dir", dir), zap.Error(err))
			continue
		}
		for _, path := range files {
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			default:
			}
			total += s.consumeFile(ctx, path)
		}
	}
	return total, nil
}

// consumeFile parses the unread tail of one file and processes its
// entries. Source files are treated as append-only; a file that
// shrank was rewritten and is read again from the start.
func (s *Shipper) consumeFile(ctx context.Context, path string) int {
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("stat log file", zap.String("file", path), zap.Error(err))
		return 0
	}
	size := info.Size()

	s.offMu.Lock()
	offset := s.offsets[path]
	s.offMu.Unlock()

	if size == offset {
		return 0
	}
	if size < offset {
		offset = 0
	}

	data, err := readFrom(path, offset)
	if err != nil {
		s.logger.Warn("read log file", zap.String("file", path), zap.Error(err))
		return 0
	}

	entries := s.parser.ParseBytes(data, path)
	s.metrics.parsed.Add(float64(len(entries)))

	s.offMu.Lock()
	s.offsets[path] = size
	s.offMu.Unlock()

	for _, entry := range entries {
		s.Process(ctx, entry)
	}
	return len(entries)
}

func readFrom(path string, offset int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, err
		}
	}
	return io.ReadAll(f)
}

// Process runs one entry through sanitization, governance enrichment,
// and the configured dispatch mode, in that fixed order.
func (s *Shipper) Process(ctx context.Context, entry model.LogEntry) {
	if s.sanitizer != nil {
		s.sanitizer.Sanitize(&entry)
	}
	s.enrich(&entry)
	s.metrics.processed.Inc()
	s.publish(entry)

	switch s.cfg.Mode {
	case ModeRealTime:
		s.syncOne(ctx, entry)
	case ModeBatch:
		s.enqueue(entry)
	case ModeHybrid:
		s.syncOne(ctx, entry)
		s.enqueue(entry)
	}
}

// enrich stamps aggregation metadata on the entry's governance block.
// Fields the upstream governance pipeline already set stay untouched.
func (s *Shipper) enrich(entry *model.LogEntry) {
	if entry.Governance == nil {
		entry.Governance = &model.GovernanceMeta{}
	}
	g := entry.Governance
	if g.AggregatedAt.IsZero() {
		g.AggregatedAt = time.Now().UTC()
	}
	if g.ComplianceLevel == "" {
		g.ComplianceLevel = s.cfg.ComplianceLevel
	}
	if g.RetentionDays == 0 {
		g.RetentionDays = s.cfg.RetentionDays
	}
}

func (s *Shipper) enqueue(entry model.LogEntry) {
	if evicted := s.queue.Enqueue(entry); evicted > 0 {
		s.metrics.evicted.Add(float64(evicted))
		s.logger.Warn("sync queue full, evicted oldest entries",
			zap.Int("evicted", evicted))
	}
}

// syncOne ships a single entry through the worker pool. Submit blocks
// when every worker is busy, which backpressures the parser instead
// of growing an unbounded goroutine pile.
func (s *Shipper) syncOne(ctx context.Context, entry model.LogEntry) {
	task := func() {
		s.recordResult(s.dest.Sync(ctx, []model.LogEntry{entry}))
	}
	if err := s.pool.Submit(task); err != nil {
		// Pool already released during shutdown; ship inline so the
		// entry is not lost.
		task()
	}
}

// Flush drains the queue completely, one batch-size slice per sync
// attempt, and returns every result.
func (s *Shipper) Flush(ctx context.Context) []sink.SyncResult {
	var results []sink.SyncResult
	for {
		batch := s.queue.Drain(s.cfg.BatchSize)
		if len(batch) == 0 {
			return results
		}
		result := s.dest.Sync(ctx, batch)
		s.recordResult(result)
		results = append(results, result)
	}
}

func (s *Shipper) recordResult(result sink.SyncResult) {
	s.metrics.synced.Add(float64(result.EntriesProcessed))
	s.metrics.skipped.Add(float64(result.EntriesSkipped))
	if result.Success {
		s.metrics.attempts.WithLabelValues("success").Inc()
		s.logger.Debug("sync attempt succeeded",
			zap.String("sync_id", result.SyncID),
			zap.Int("entries", result.EntriesProcessed))
		return
	}
	s.metrics.attempts.WithLabelValues("failure").Inc()
	s.logger.Warn("sync attempt failed",
		zap.String("sync_id", result.SyncID),
		zap.Int("processed", result.EntriesProcessed),
		zap.Int("skipped", result.EntriesSkipped),
		zap.Strings("errors", result.Errors))
}

// Subscribe returns a channel carrying every processed entry. The
// channel closes when Run winds down. Subscribers are observers: one
// that stops reading misses entries, it does not stall the pipeline.
func (s *Shipper) Subscribe() <-chan model.LogEntry {
	ch := make(chan model.LogEntry, subscriberBuffer)
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

func (s *Shipper) publish(entry model.LogEntry) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

func (s *Shipper) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

// Run is daemon mode: an initial aggregation pass replays existing
// files, the tailer picks up new and growing ones, and the batch
// timer drains the queue. Run blocks until ctx is cancelled, then
// flushes outstanding work under a bounded context and closes
// subscriber channels.
func (s *Shipper) Run(ctx context.Context) error {
	if _, err := s.Aggregate(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	tailDone := make(chan error, 1)
	go func() { tailDone <- s.tail(ctx) }()

	var tick <-chan time.Time
	if s.cfg.Mode != ModeRealTime {
		ticker := time.NewTicker(s.cfg.BatchInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			<-tailDone
			s.shutdown()
			return nil
		case err := <-tailDone:
			s.shutdown()
			return err
		case <-tick:
			if batch := s.queue.Drain(s.cfg.BatchSize); len(batch) > 0 {
				s.recordResult(s.dest.Sync(ctx, batch))
			}
		}
	}
}

func (s *Shipper) tail(ctx context.Context) error {
	handle := func(ctx context.Context, path string) { s.consumeFile(ctx, path) }
	if s.cfg.Poll {
		p := &pollTailer{root: s.cfg.Root, interval: s.cfg.PollInterval, handler: handle}
		return p.Run(ctx)
	}
	t := &tailer{root: s.cfg.Root, debounce: s.cfg.Debounce, handler: handle, logger: s.logger}
	return t.Run(ctx)
}

// shutdown drains outstanding work. The fresh bounded context lets
// the final flush finish after the run context is already cancelled.
func (s *Shipper) shutdown() {
	if s.pool != nil {
		if err := s.pool.ReleaseTimeout(shutdownTimeout); err != nil {
			s.logger.Warn("worker pool did not drain", zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.Flush(ctx)
	s.closeSubscribers()
}
