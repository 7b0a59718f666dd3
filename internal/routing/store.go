package routing

import (
	"context"

	"callplane/internal/catalog"
)

// Store is the read-only data access the resolver needs.
// Implementations must read the authoritative rows (no caching of link counters).
type Store interface {
	// FindDIDByNumber returns (DID{}, false, nil) when no DID has this exact number.
	FindDIDByNumber(ctx context.Context, number string) (catalog.DID, bool, error)

	// GetUser returns (User{}, false, nil) when the user row is missing.
	GetUser(ctx context.Context, userID int64) (catalog.User, bool, error)

	// ListActiveCampaignsForDID returns the active campaigns owned by ownerID and
	// linked to didID, ordered by campaign id ascending.
	ListActiveCampaignsForDID(ctx context.Context, ownerID, didID int64) ([]catalog.Campaign, error)

	// ListEligibleLinks returns the campaign's active links whose client is active
	// and has an outbound contact URI. Order is not significant.
	ListEligibleLinks(ctx context.Context, campaignID int64) ([]EligibleLink, error)
}

// EligibleLink is a link joined with the client and outbound contact it points at.
type EligibleLink struct {
	Link    catalog.Link
	Client  catalog.Client
	Contact catalog.OutboundContact
}
