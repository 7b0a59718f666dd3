package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"callplane/internal/catalog"
	"callplane/internal/routing"
	"callplane/pkg/utils"
)

// RoutingStore implements routing.Store with plain reads outside any
// transaction. Link counters are always read from the row.
type RoutingStore struct {
	db *sql.DB
}

func NewRoutingStore(db *sql.DB) *RoutingStore { return &RoutingStore{db: db} }

var _ routing.Store = (*RoutingStore)(nil)

func (s *RoutingStore) FindDIDByNumber(ctx context.Context, number string) (catalog.DID, bool, error) {
	const q = `
SELECT id, number, user_id, status, created_at
FROM dids
WHERE number = $1
`
	var d catalog.DID
	if err := s.db.QueryRowContext(ctx, q, number).Scan(&d.ID, &d.Number, &d.UserID, &d.Status, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.DID{}, false, nil
		}
		return catalog.DID{}, false, err
	}
	return d, true, nil
}

func (s *RoutingStore) GetUser(ctx context.Context, userID int64) (catalog.User, bool, error) {
	const q = `
SELECT id, username, status, created_at
FROM users
WHERE id = $1
`
	var u catalog.User
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(&u.ID, &u.Username, &u.Status, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.User{}, false, nil
		}
		return catalog.User{}, false, err
	}
	return u, true, nil
}

func (s *RoutingStore) ListActiveCampaignsForDID(ctx context.Context, ownerID, didID int64) ([]catalog.Campaign, error) {
	const q = `
SELECT c.id, c.user_id, c.name, c.status, c.routing_strategy, c.dial_timeout_seconds, c.created_at
FROM campaigns c
JOIN campaign_dids cd ON cd.campaign_id = c.id
WHERE cd.did_id = $1 AND c.user_id = $2 AND c.status = 'active'
ORDER BY c.id ASC
`
	rows, err := s.db.QueryContext(ctx, q, didID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Campaign
	for rows.Next() {
		var c catalog.Campaign
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Status, &c.RoutingStrategy, &c.DialTimeoutSeconds, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *RoutingStore) ListEligibleLinks(ctx context.Context, campaignID int64) ([]routing.EligibleLink, error) {
	const q = `
SELECT
    s.id, s.campaign_id, s.client_id, s.status, s.max_concurrency, s.total_calls_allowed,
    s.current_total_calls, s.forwarding_priority, s.weight, s.updated_at,
    cl.client_identifier, cl.name, cl.status,
    oc.uri, oc.codecs, oc.outbound_auth, oc.callerid_override, oc.context, oc.transport
FROM campaign_client_settings s
JOIN clients cl ON cl.id = s.client_id
JOIN outbound_contacts oc ON oc.client_id = cl.id
WHERE s.campaign_id = $1
  AND s.status = 'active'
  AND cl.status = 'active'
  AND oc.uri IS NOT NULL AND oc.uri <> ''
ORDER BY s.forwarding_priority ASC, s.id ASC
`
	rows, err := s.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []routing.EligibleLink
	for rows.Next() {
		var (
			el      routing.EligibleLink
			allowed sql.NullInt64
			codecs  sql.NullString
			auth    sql.NullString
			cid     sql.NullString
			dialCtx sql.NullString
			trans   sql.NullString
		)
		if err := rows.Scan(
			&el.Link.ID, &el.Link.CampaignID, &el.Link.ClientID, &el.Link.Status, &el.Link.MaxConcurrency, &allowed,
			&el.Link.CurrentTotalCalls, &el.Link.ForwardingPriority, &el.Link.Weight, &el.Link.UpdatedAt,
			&el.Client.Identifier, &el.Client.Name, &el.Client.Status,
			&el.Contact.URI, &codecs, &auth, &cid, &dialCtx, &trans,
		); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		el.Link.TotalCallsAllowed = intPtr(allowed)
		el.Client.ID = el.Link.ClientID
		el.Contact.ClientID = el.Link.ClientID
		el.Contact.Codecs = codecs.String
		el.Contact.OutboundAuth = stringPtr(auth)
		el.Contact.CallerIDOverride = stringPtr(cid)
		el.Contact.DialContext = stringPtr(dialCtx)
		el.Contact.Transport = stringPtr(trans)
		out = append(out, el)
	}
	return out, rows.Err()
}

// GetLink reads a single link row.
func (s *RoutingStore) GetLink(ctx context.Context, linkID int64) (catalog.Link, bool, error) {
	return getLink(ctx, s.db, linkID)
}

func getLink(ctx context.Context, db utils.Querier, linkID int64) (catalog.Link, bool, error) {
	const q = `
SELECT id, campaign_id, client_id, status, max_concurrency, total_calls_allowed,
       current_total_calls, forwarding_priority, weight, updated_at
FROM campaign_client_settings
WHERE id = $1
`
	var (
		l       catalog.Link
		allowed sql.NullInt64
	)
	if err := db.QueryRowContext(ctx, q, linkID).Scan(
		&l.ID, &l.CampaignID, &l.ClientID, &l.Status, &l.MaxConcurrency, &allowed,
		&l.CurrentTotalCalls, &l.ForwardingPriority, &l.Weight, &l.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Link{}, false, nil
		}
		return catalog.Link{}, false, err
	}
	l.TotalCallsAllowed = intPtr(allowed)
	return l, true, nil
}
