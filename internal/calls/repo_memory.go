package calls

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and local development.
// Insert is atomic under a single mutex, matching the all-or-nothing contract.
type MemoryRepo struct {
	mu sync.Mutex

	nextID  int64
	records map[int64]CallRecord
	byExt   map[string]int64

	// Links holds volume counters keyed by link id. A link missing from the
	// map does not exist.
	Links map[int64]int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		records: map[int64]CallRecord{},
		byExt:   map[string]int64{},
		Links:   map[int64]int{},
	}
}

func (r *MemoryRepo) Insert(ctx context.Context, rec CallRecord, incrementLink bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byExt[rec.ExternalCallID]; dup {
		return 0, ErrDuplicateCall
	}
	if incrementLink {
		if rec.LinkID == nil {
			return 0, ErrLinkNotFound
		}
		if _, ok := r.Links[*rec.LinkID]; !ok {
			return 0, ErrLinkNotFound
		}
	}

	r.nextID++
	rec.ID = r.nextID
	r.records[rec.ID] = rec
	r.byExt[rec.ExternalCallID] = rec.ID
	if incrementLink {
		r.Links[*rec.LinkID]++
	}
	return rec.ID, nil
}

func (r *MemoryRepo) Get(id int64) (CallRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}

func (r *MemoryRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *MemoryRepo) Counter(linkID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Links[linkID]
}
