package concurrency

import (
	"context"
	"errors"
	"fmt"

	"callplane/internal/catalog"
	"callplane/pkg/logger"
)

var (
	ErrLinkNotFound = errors.New("concurrency: link not found")
	ErrLinkInactive = errors.New("concurrency: link inactive")
)

// LinkReader loads the authoritative link row.
type LinkReader interface {
	GetLink(ctx context.Context, linkID int64) (catalog.Link, bool, error)
}

// Service binds the broker to each link's configured max_concurrency.
type Service struct {
	links  LinkReader
	broker *Broker
}

func NewService(links LinkReader, broker *Broker) *Service {
	return &Service{links: links, broker: broker}
}

func (s *Service) Acquire(ctx context.Context, linkID int64, callID string) (Lease, error) {
	l, ok, err := s.links.GetLink(ctx, linkID)
	if err != nil {
		return Lease{}, fmt.Errorf("concurrency: get link: %w", err)
	}
	if !ok {
		return Lease{}, ErrLinkNotFound
	}
	if !l.Status.IsActive() {
		return Lease{}, ErrLinkInactive
	}
	lease, err := s.broker.Acquire(ctx, linkID, callID, l.MaxConcurrency)
	if errors.Is(err, ErrNoSlot) {
		logger.From(ctx).Info("concurrency slot refused", "link_id", linkID, "call_id", callID, "in_use", lease.InUse, "limit", lease.Limit)
	}
	return lease, err
}

func (s *Service) Release(ctx context.Context, linkID int64, callID string) (bool, error) {
	return s.broker.Release(ctx, linkID, callID)
}
