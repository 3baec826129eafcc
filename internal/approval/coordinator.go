package approval

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"

	"github.com/flowguard/flowguard/internal/model"
)

// notifyTimeout bounds the background notification attempt so a dead
// webhook cannot pile up goroutines.
const notifyTimeout = 10 * time.Second

// Notifier delivers a new approval request to the people who can
// resolve it. Delivery is best effort; a failed notification leaves
// the request pending and discoverable through Pending.
type Notifier interface {
	NotifyApprovers(ctx context.Context, req Request) error
}

type noopNotifier struct{}

func (noopNotifier) NotifyApprovers(context.Context, Request) error { return nil }

// record guards one request. Transitions lock the record, not the map,
// so decisions on unrelated requests never contend.
type record struct {
	mu  sync.Mutex
	req Request
}

// Coordinator manages approval requests for the life of the process.
type Coordinator struct {
	requests cmap.ConcurrentMap[string, *record]
	notifier Notifier
	logger   *zap.Logger
}

// NewCoordinator creates a Coordinator. A nil notifier disables
// notifications; a nil logger discards log output.
func NewCoordinator(notifier Notifier, logger *zap.Logger) *Coordinator {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		requests: cmap.New[*record](),
		notifier: notifier,
		logger:   logger,
	}
}

// RequestApproval creates a pending request for the workflow, derives
// its required approvers, and notifies them in the background. The
// returned snapshot carries the generated id.
func (c *Coordinator) RequestApproval(wf *model.Workflow, reason, requester string) Request {
	req := Request{
		ID:                uuid.NewString(),
		Workflow:          *wf,
		Reason:            reason,
		Requester:         requester,
		RequiredApprovers: RequiredApprovers(wf),
		Status:            StatusPending,
		CreatedAt:         time.Now().UTC(),
	}
	c.requests.Set(req.ID, &record{req: req})

	c.logger.Info("approval requested",
		zap.String("approval", req.ID),
		zap.String("workflow", wf.ID),
		zap.Strings("approvers", req.RequiredApprovers))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := c.notifier.NotifyApprovers(ctx, req); err != nil {
			c.logger.Warn("approver notification failed",
				zap.String("approval", req.ID),
				zap.Error(err))
		}
	}()

	return req
}

// ProcessApproval records a human decision on a pending request and
// returns it. The approver must be in the request's required set; an
// unauthorized approver leaves the request pending. A second decision
// on the same request fails with ErrAlreadyResolved, it never
// overwrites the first.
func (c *Coordinator) ProcessApproval(id string, approved bool, approver string) (bool, error) {
	rec, ok := c.requests.Get(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !slices.Contains(rec.req.RequiredApprovers, approver) {
		return false, fmt.Errorf("%w: %q may not resolve %s", ErrUnauthorized, approver, id)
	}
	if rec.req.Status != StatusPending {
		return false, fmt.Errorf("%w: %s is already %s", ErrAlreadyResolved, id, rec.req.Status)
	}

	now := time.Now().UTC()
	rec.req.ResolvedAt = &now
	rec.req.ResolvedBy = approver
	if approved {
		rec.req.Status = StatusApproved
	} else {
		rec.req.Status = StatusDenied
	}

	c.logger.Info("approval resolved",
		zap.String("approval", id),
		zap.String("status", string(rec.req.Status)),
		zap.String("approver", approver))

	return approved, nil
}

// Get returns a snapshot of the request with the given id.
func (c *Coordinator) Get(id string) (Request, error) {
	rec, ok := c.requests.Get(id)
	if !ok {
		return Request{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.req, nil
}

// Pending returns all unresolved requests, oldest first.
func (c *Coordinator) Pending() []Request {
	var pending []Request
	for item := range c.requests.IterBuffered() {
		rec := item.Val
		rec.mu.Lock()
		if rec.req.Status == StatusPending {
			pending = append(pending, rec.req)
		}
		rec.mu.Unlock()
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

// FindApproved returns the most recent approved request for the
// workflow, if any. Lets callers reuse a standing approval instead of
// asking the same people twice for the same run.
func (c *Coordinator) FindApproved(workflowID string) (Request, bool) {
	var best Request
	found := false
	for item := range c.requests.IterBuffered() {
		rec := item.Val
		rec.mu.Lock()
		if rec.req.Workflow.ID == workflowID && rec.req.Status == StatusApproved {
			if !found || rec.req.CreatedAt.After(best.CreatedAt) {
				best = rec.req
				found = true
			}
		}
		rec.mu.Unlock()
	}
	return best, found
}

// ExpireStale denies pending requests older than maxAge and returns
// the ids it expired. The coordinator never expires requests on its
// own; callers drive this from their timeout policy.
func (c *Coordinator) ExpireStale(maxAge time.Duration) []string {
	cutoff := time.Now().UTC().Add(-maxAge)
	var expired []string
	for item := range c.requests.IterBuffered() {
		rec := item.Val
		rec.mu.Lock()
		if rec.req.Status == StatusPending && rec.req.CreatedAt.Before(cutoff) {
			now := time.Now().UTC()
			rec.req.Status = StatusDenied
			rec.req.ResolvedAt = &now
			rec.req.ResolvedBy = ResolvedByTimeout
			expired = append(expired, rec.req.ID)
		}
		rec.mu.Unlock()
	}
	if len(expired) > 0 {
		c.logger.Info("expired stale approvals", zap.Strings("approvals", expired))
	}
	return expired
}
