package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier receives every progress update, e.g. to push it to connected dashboards.
type Notifier interface {
	Notify(p Progress)
}

// Tracker records job progress in a Store and fans updates out to a Notifier.
// Store failures are logged and never interrupt the job being tracked.
type Tracker struct {
	mu       sync.Mutex
	store    Store
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewTracker(store Store, notifier Notifier, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// Pending registers a job that was accepted but has not counted its work yet.
func (t *Tracker) Pending(ctx context.Context, key Key) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := Progress{Key: key, Status: StatusPending, StartedAt: t.now()}
	t.save(ctx, &p)
	return p
}

// Start marks the job as processing with the given amount of work.
func (t *Tracker) Start(ctx context.Context, key Key, total int) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := Progress{Key: key, Status: StatusProcessing, Total: total, StartedAt: t.now()}
	if existing, err := t.store.Get(ctx, key); err == nil && existing.Status == StatusPending {
		p.StartedAt = existing.StartedAt
	}
	t.save(ctx, &p)
	return p
}

// Advance counts one processed unit; failed units are counted as processed too.
func (t *Tracker) Advance(ctx context.Context, key Key, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, err := t.store.Get(ctx, key)
	if err != nil {
		t.logger.Warn("progress entry missing", zap.String("key", key.String()), zap.Error(err))
		return
	}
	p.Processed++
	if failed {
		p.Failed++
	}
	t.save(ctx, p)
}

// Complete marks the job done; the entry stays visible for the store's grace window.
func (t *Tracker) Complete(ctx context.Context, key Key) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, err := t.store.Get(ctx, key)
	if err != nil {
		p = &Progress{Key: key, StartedAt: t.now()}
	}
	now := t.now()
	p.Status = StatusCompleted
	p.CompletedAt = &now
	t.save(ctx, p)
	return *p
}

func (t *Tracker) Get(ctx context.Context, key Key) (*Progress, error) {
	return t.store.Get(ctx, key)
}

func (t *Tracker) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Progress, error) {
	return t.store.ListByTenant(ctx, tenantID)
}

func (t *Tracker) save(ctx context.Context, p *Progress) {
	p.recompute()
	if err := t.store.Save(ctx, *p); err != nil {
		t.logger.Error("failed to save progress", zap.String("key", p.Key.String()), zap.Error(err))
	}
	if t.notifier != nil {
		t.notifier.Notify(*p)
	}
}
