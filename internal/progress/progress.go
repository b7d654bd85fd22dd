package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Status of a tracked job
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Kind of long-running operation
type Kind string

const (
	KindTenantRecalculation Kind = "tenant_recalculation"
	KindBulkRelink          Kind = "bulk_relink"
)

// ErrNotFound is returned when no live progress entry exists for a key.
var ErrNotFound = errors.New("progress not found")

// Key identifies one job: the tenant, the operation kind and a caller-chosen reference id.
type Key struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	Kind        Kind      `json:"kind"`
	ReferenceID string    `json:"reference_id"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.TenantID, k.Kind, k.ReferenceID)
}

// Progress is the pollable state of a job.
type Progress struct {
	Key
	Status      Status     `json:"status"`
	Processed   int        `json:"processed"`
	Failed      int        `json:"failed"`
	Total       int        `json:"total"`
	Percentage  float64    `json:"percentage"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (p *Progress) recompute() {
	if p.Total <= 0 {
		if p.Status == StatusCompleted {
			p.Percentage = 100
		} else {
			p.Percentage = 0
		}
		return
	}
	p.Percentage = math.Round(float64(p.Processed)/float64(p.Total)*10000) / 100
}

// Stale reports whether a completed entry has outlived the grace window.
func (p *Progress) Stale(now time.Time, grace time.Duration) bool {
	return p.Status == StatusCompleted && p.CompletedAt != nil && now.Sub(*p.CompletedAt) > grace
}

// Store persists progress entries.
type Store interface {
	Save(ctx context.Context, p Progress) error
	Get(ctx context.Context, key Key) (*Progress, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Progress, error)
}
