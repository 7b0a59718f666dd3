package routing

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"callplane/internal/catalog"
	"callplane/pkg/logger"
)

// Resolver decides whether a dialed DID may proceed and which targets to offer.
//
// Resolve is read-only and holds no state between calls, so it is safe to run
// concurrently from any number of handlers. Live concurrency is not enforced
// here; targets carry max_concurrency for the telephony engine to apply. Only
// the lifetime volume cap is checked, against the row as currently stored.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns a proceed or reject Result. A non-nil error means routing
// could not be evaluated and must not be treated as a reject.
func (r *Resolver) Resolve(ctx context.Context, didNumber string) (Result, error) {
	res, err := r.resolve(ctx, strings.TrimSpace(didNumber))
	observe(res, err)
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, number string) (Result, error) {
	log := logger.From(ctx).With("did", number)

	if r.store == nil {
		return Result{}, errors.New("routing: store not configured")
	}
	if number == "" {
		log.Warn("routing rejected", "reason", ReasonInvalidDIDInput)
		return reject(ReasonInvalidDIDInput), nil
	}

	did, ok, err := r.store.FindDIDByNumber(ctx, number)
	if err != nil {
		return Result{}, fmt.Errorf("routing: find did: %w", err)
	}
	if !ok {
		log.Warn("routing rejected", "reason", ReasonDIDNotFound)
		return reject(ReasonDIDNotFound), nil
	}
	log = log.With("did_id", did.ID)
	if !did.Status.IsActive() {
		log.Warn("routing rejected", "reason", ReasonDIDInactive, "did_status", did.Status)
		return reject(ReasonDIDInactive), nil
	}

	owner, ok, err := r.store.GetUser(ctx, did.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("routing: get owner: %w", err)
	}
	if !ok {
		log.Error("did owner missing", "user_id", did.UserID)
		return reject(ReasonInternalDataError), nil
	}
	if !owner.Status.IsActive() {
		log.Warn("routing rejected", "reason", ReasonOwnerInactive, "user_id", owner.ID, "user_status", owner.Status)
		return reject(ReasonOwnerInactive), nil
	}

	campaigns, err := r.store.ListActiveCampaignsForDID(ctx, owner.ID, did.ID)
	if err != nil {
		return Result{}, fmt.Errorf("routing: list campaigns: %w", err)
	}
	if len(campaigns) == 0 {
		log.Warn("routing rejected", "reason", ReasonNoActiveCampaign, "user_id", owner.ID)
		return reject(ReasonNoActiveCampaign), nil
	}
	campaign := pickCampaign(campaigns)
	if len(campaigns) > 1 {
		ids := make([]int64, 0, len(campaigns))
		for _, c := range campaigns {
			ids = append(ids, c.ID)
		}
		log.Warn("ambiguous active campaign for did", "candidates", ids, "selected", campaign.ID)
	}
	log = log.With("campaign_id", campaign.ID)
	if err := campaign.Validate(); err != nil {
		log.Warn("campaign row violates invariants", "err", err)
	}

	links, err := r.store.ListEligibleLinks(ctx, campaign.ID)
	if err != nil {
		return Result{}, fmt.Errorf("routing: list links: %w", err)
	}
	if len(links) == 0 {
		log.Warn("routing rejected", "reason", ReasonNoActiveClients)
		return reject(ReasonNoActiveClients), nil
	}

	strategy := campaign.RoutingStrategy
	if !strategy.Valid() {
		log.Warn("unknown routing strategy, ordering by priority", "strategy", strategy)
	}
	orderLinks(links)

	targets := make([]Target, 0, len(links))
	for _, el := range links {
		if err := el.Link.Validate(); err != nil {
			log.Warn("link row violates invariants", "link_id", el.Link.ID, "err", err)
		}
		if el.Link.CapReached() {
			log.Info("link skipped: volume cap reached",
				"link_id", el.Link.ID,
				"total_calls_allowed", *el.Link.TotalCallsAllowed,
				"current_total_calls", el.Link.CurrentTotalCalls,
			)
			continue
		}
		targets = append(targets, toTarget(el))
	}
	if len(targets) == 0 {
		log.Warn("routing rejected", "reason", ReasonNoEligibleClients)
		return reject(ReasonNoEligibleClients), nil
	}

	log.Info("routing proceed", "strategy", strategy, "targets", len(targets))
	return proceed(Route{
		UserID:             owner.ID,
		CampaignID:         campaign.ID,
		DIDID:              did.ID,
		RoutingStrategy:    strategy,
		DialTimeoutSeconds: campaign.DialTimeoutSeconds,
		Targets:            targets,
	}), nil
}

// pickCampaign applies the deterministic tie-break: lowest campaign id wins.
func pickCampaign(campaigns []catalog.Campaign) catalog.Campaign {
	return slices.MinFunc(campaigns, func(a, b catalog.Campaign) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

// orderLinks sorts by forwarding priority, then link id. The same order is the
// hint for every strategy; rotation and weighted sampling happen downstream.
func orderLinks(links []EligibleLink) {
	slices.SortFunc(links, func(a, b EligibleLink) int {
		if c := cmp.Compare(a.Link.ForwardingPriority, b.Link.ForwardingPriority); c != 0 {
			return c
		}
		return cmp.Compare(a.Link.ID, b.Link.ID)
	})
}

func toTarget(el EligibleLink) Target {
	return Target{
		LinkID:           el.Link.ID,
		ClientID:         el.Client.ID,
		ClientIdentifier: el.Client.Identifier,
		ClientName:       el.Client.Name,
		URI:              el.Contact.URI,
		MaxConcurrency:   el.Link.MaxConcurrency,
		Weight:           el.Link.Weight,
		Priority:         el.Link.ForwardingPriority,
		OutboundAuth:     el.Contact.OutboundAuth,
		CallerIDOverride: el.Contact.CallerIDOverride,
		DialContext:      el.Contact.DialContext,
		Transport:        el.Contact.Transport,
	}
}
