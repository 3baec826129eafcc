package shipper

import (
	"sync"

	"github.com/flowguard/flowguard/internal/model"
)

// syncQueue buffers processed entries between the pipeline and the
// batch drain. Drain removes what it returns under the same lock, so
// no entry is shipped twice and none is lost between the read and the
// cut. When the cap is hit the oldest entries give way.
type syncQueue struct {
	mu      sync.Mutex
	entries []model.LogEntry
	cap     int
}

func newSyncQueue(capacity int) *syncQueue {
	return &syncQueue{cap: capacity}
}

// Enqueue appends an entry and reports how many old entries were
// evicted to stay under the cap.
func (q *syncQueue) Enqueue(entry model.LogEntry) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry)
	if q.cap <= 0 || len(q.entries) <= q.cap {
		return 0
	}
	evicted := len(q.entries) - q.cap
	q.entries = append([]model.LogEntry(nil), q.entries[evicted:]...)
	return evicted
}

// Drain removes and returns up to max entries from the front of the
// queue. A max of zero or less means everything.
func (q *syncQueue) Drain(max int) []model.LogEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	n := len(q.entries)
	if max > 0 && n > max {
		n = max
	}
	batch := q.entries[:n:n]
	rest := make([]model.LogEntry, len(q.entries)-n)
	copy(rest, q.entries[n:])
	q.entries = rest
	return batch
}

// Len reports how many entries are waiting.
func (q *syncQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
