package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callplane/internal/calls"
	"callplane/internal/catalog"
)

var (
	ErrInvalidRequest = errors.New("reporting: invalid request")
	ErrNotFound       = errors.New("reporting: not found")
)

// MaxRange bounds a single summary query.
const MaxRange = 31 * 24 * time.Hour

// Repository abstracts data access for reporting.
// Implementations read the immutable call records and the authoritative link row.
type Repository interface {
	ListCalls(ctx context.Context, from, to time.Time, campaignID *int64) ([]calls.CallRecord, error)
	GetLink(ctx context.Context, linkID int64) (catalog.Link, bool, error)
}

type Service struct {
	repo Repository
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository) *Service { return &Service{repo: repo, clock: time.Now} }

// CallsSummary aggregates call records by status. A zero range defaults to the
// last 24 hours.
func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	rng := req.Range
	if rng.From.IsZero() && rng.To.IsZero() {
		rng.To = s.clock().UTC()
		rng.From = rng.To.Add(-24 * time.Hour)
	}
	if rng.From.IsZero() || rng.To.IsZero() || !rng.To.After(rng.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if rng.To.Sub(rng.From) > MaxRange {
		return CallsSummary{}, fmt.Errorf("%w: range exceeds %s", ErrInvalidRequest, MaxRange)
	}
	if req.CampaignID != nil && *req.CampaignID <= 0 {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, rng.From, rng.To, req.CampaignID)
	if err != nil {
		return CallsSummary{}, fmt.Errorf("reporting: list calls: %w", err)
	}

	out := CallsSummary{CampaignID: req.CampaignID, Range: rng, ByStatus: map[string]int{}}
	for _, c := range rows {
		out.TotalCalls++
		out.ByStatus[string(c.Status)]++
		if c.DurationSeconds != nil {
			out.TotalDurationSeconds += *c.DurationSeconds
		}
		if c.BillableSeconds != nil {
			out.TotalBillableSeconds += *c.BillableSeconds
		}
		switch c.Status {
		case calls.CallStatusAnswered:
			out.AnsweredCalls++
		case calls.CallStatusRejectedCC, calls.CallStatusRejectedTotal:
			out.RejectedCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AnswerRate = float64(out.AnsweredCalls) / float64(out.TotalCalls)
	}
	if out.AnsweredCalls > 0 {
		out.AverageBillableSeconds = out.TotalBillableSeconds / out.AnsweredCalls
	}
	return out, nil
}

// LinkUsage reports a link's volume counter as currently stored.
func (s *Service) LinkUsage(ctx context.Context, linkID int64) (LinkUsage, error) {
	if linkID <= 0 {
		return LinkUsage{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return LinkUsage{}, errors.New("reporting: repository not configured")
	}
	l, ok, err := s.repo.GetLink(ctx, linkID)
	if err != nil {
		return LinkUsage{}, fmt.Errorf("reporting: get link: %w", err)
	}
	if !ok {
		return LinkUsage{}, ErrNotFound
	}
	return LinkUsage{
		LinkID:            l.ID,
		CampaignID:        l.CampaignID,
		ClientID:          l.ClientID,
		Status:            string(l.Status),
		MaxConcurrency:    l.MaxConcurrency,
		TotalCallsAllowed: l.TotalCallsAllowed,
		CurrentTotalCalls: l.CurrentTotalCalls,
		Remaining:         l.Remaining(),
		CapReached:        l.CapReached(),
		UpdatedAt:         l.UpdatedAt,
	}, nil
}
