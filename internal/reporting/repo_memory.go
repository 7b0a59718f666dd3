package reporting

import (
	"context"
	"sync"
	"time"

	"callplane/internal/calls"
	"callplane/internal/catalog"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early development.
type MemoryRepo struct {
	mu sync.Mutex

	Calls []calls.CallRecord
	Links map[int64]catalog.Link
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{Links: map[int64]catalog.Link{}} }

func (r *MemoryRepo) ListCalls(ctx context.Context, from, to time.Time, campaignID *int64) ([]calls.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.CallRecord, 0)
	for _, c := range r.Calls {
		if c.StartedAt.Before(from) || !c.StartedAt.Before(to) {
			continue
		}
		if campaignID != nil && (c.CampaignID == nil || *c.CampaignID != *campaignID) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) GetLink(ctx context.Context, linkID int64) (catalog.Link, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.Links[linkID]
	return l, ok, nil
}
