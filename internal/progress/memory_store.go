package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps progress in process memory. Completed entries are dropped once they
// outlive the grace window.
type MemoryStore struct {
	mu    sync.Mutex
	items map[Key]Progress
	grace time.Duration
	now   func() time.Time
}

func NewMemoryStore(grace time.Duration) *MemoryStore {
	return &MemoryStore{
		items: make(map[Key]Progress),
		grace: grace,
		now:   time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, p Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.Key] = p
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Stale(s.now(), s.grace) {
		delete(s.items, key)
		return nil, ErrNotFound
	}
	return &p, nil
}

// ListByTenant returns the tenant's live entries, most recently started first.
func (s *MemoryStore) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]Progress, 0)
	for key, p := range s.items {
		if key.TenantID != tenantID {
			continue
		}
		if p.Stale(now, s.grace) {
			delete(s.items, key)
			continue
		}
		out = append(out, p)
	}
	sortByStart(out)
	return out, nil
}

func sortByStart(items []Progress) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].StartedAt.Equal(items[j].StartedAt) {
			return items[i].Key.String() < items[j].Key.String()
		}
		return items[i].StartedAt.After(items[j].StartedAt)
	})
}
