package concurrency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"callplane/internal/catalog"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newBroker(t *testing.T) (*Broker, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Unix(1700000000, 0).UTC()
	b := NewBroker(rdb, time.Minute)
	b.clock = func() time.Time { return now }
	return b, mr, &now
}

func TestBroker_EnforcesLimit(t *testing.T) {
	b, _, _ := newBroker(t)
	ctx := context.Background()

	for _, call := range []string{"c1", "c2"} {
		if _, err := b.Acquire(ctx, 7, call, 2); err != nil {
			t.Fatalf("acquire %s: %v", call, err)
		}
	}
	lease, err := b.Acquire(ctx, 7, "c3", 2)
	if !errors.Is(err, ErrNoSlot) {
		t.Fatalf("expected ErrNoSlot, got %v", err)
	}
	if lease.InUse != 2 {
		t.Fatalf("expected in_use 2, got %d", lease.InUse)
	}

	// Other links are independent.
	if _, err := b.Acquire(ctx, 8, "c3", 1); err != nil {
		t.Fatalf("acquire on other link: %v", err)
	}
}

func TestBroker_ReacquireIsIdempotent(t *testing.T) {
	b, _, _ := newBroker(t)
	ctx := context.Background()

	if _, err := b.Acquire(ctx, 7, "c1", 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	lease, err := b.Acquire(ctx, 7, "c1", 1)
	if err != nil {
		t.Fatalf("re-acquire should renew, got %v", err)
	}
	if lease.InUse != 1 {
		t.Fatalf("expected in_use 1, got %d", lease.InUse)
	}
}

func TestBroker_ReleaseFreesSlotOnce(t *testing.T) {
	b, mr, _ := newBroker(t)
	ctx := context.Background()

	if _, err := b.Acquire(ctx, 7, "c1", 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	ok, err := b.Release(ctx, 7, "c1")
	if err != nil || !ok {
		t.Fatalf("expected release, got %v %v", ok, err)
	}
	ok, err = b.Release(ctx, 7, "c1")
	if err != nil || ok {
		t.Fatalf("second release must be a no-op, got %v %v", ok, err)
	}
	if mr.Exists(b.key(7)) {
		t.Fatalf("empty slot set should be deleted")
	}
	if _, err := b.Acquire(ctx, 7, "c2", 1); err != nil {
		t.Fatalf("slot should be free: %v", err)
	}
}

func TestBroker_ExpiredLeasesArePruned(t *testing.T) {
	b, _, now := newBroker(t)
	ctx := context.Background()

	if _, err := b.Acquire(ctx, 7, "crashed", 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	*now = now.Add(2 * time.Minute)

	if n, err := b.InUse(ctx, 7); err != nil || n != 0 {
		t.Fatalf("expected 0 live leases, got %d %v", n, err)
	}
	if _, err := b.Acquire(ctx, 7, "next", 1); err != nil {
		t.Fatalf("expired lease should not hold the slot: %v", err)
	}
}

func TestBroker_ConcurrentAcquireNeverExceedsLimit(t *testing.T) {
	b, _, _ := newBroker(t)
	ctx := context.Background()
	const limit = 3

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := b.Acquire(ctx, 7, fmt.Sprintf("c%d", i), limit)
			if err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if granted != limit {
		t.Fatalf("expected %d grants, got %d", limit, granted)
	}
}

type stubLinks map[int64]catalog.Link

func (s stubLinks) GetLink(ctx context.Context, id int64) (catalog.Link, bool, error) {
	l, ok := s[id]
	return l, ok, nil
}

func TestService_UsesLinkMaxConcurrency(t *testing.T) {
	b, _, _ := newBroker(t)
	svc := NewService(stubLinks{
		7: {ID: 7, Status: catalog.StatusActive, MaxConcurrency: 1},
		8: {ID: 8, Status: catalog.StatusInactive, MaxConcurrency: 5},
	}, b)
	ctx := context.Background()

	if _, err := svc.Acquire(ctx, 7, "c1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := svc.Acquire(ctx, 7, "c2"); !errors.Is(err, ErrNoSlot) {
		t.Fatalf("expected ErrNoSlot, got %v", err)
	}
	if _, err := svc.Acquire(ctx, 8, "c1"); !errors.Is(err, ErrLinkInactive) {
		t.Fatalf("expected ErrLinkInactive, got %v", err)
	}
	if _, err := svc.Acquire(ctx, 9, "c1"); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}
