package routing

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"callplane/internal/catalog"
)

// MemoryStore is an in-memory Store for tests and local development.
// Err, when set, is returned from every read to simulate data-access faults.
type MemoryStore struct {
	mu sync.RWMutex

	users        map[int64]catalog.User
	dids         map[int64]catalog.DID
	campaigns    map[int64]catalog.Campaign
	campaignDIDs map[int64][]int64 // did_id -> campaign ids
	clients      map[int64]catalog.Client
	contacts     map[int64]catalog.OutboundContact
	links        map[int64]catalog.Link

	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        map[int64]catalog.User{},
		dids:         map[int64]catalog.DID{},
		campaigns:    map[int64]catalog.Campaign{},
		campaignDIDs: map[int64][]int64{},
		clients:      map[int64]catalog.Client{},
		contacts:     map[int64]catalog.OutboundContact{},
		links:        map[int64]catalog.Link{},
	}
}

func (s *MemoryStore) PutUser(u catalog.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *MemoryStore) DeleteUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

func (s *MemoryStore) PutDID(d catalog.DID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dids[d.ID] = d
}

func (s *MemoryStore) PutCampaign(c catalog.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = c
}

func (s *MemoryStore) LinkDID(campaignID, didID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaignDIDs[didID] = append(s.campaignDIDs[didID], campaignID)
}

func (s *MemoryStore) PutClient(c catalog.Client, contact *catalog.OutboundContact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
	if contact != nil {
		ct := *contact
		ct.ClientID = c.ID
		s.contacts[c.ID] = ct
	} else {
		delete(s.contacts, c.ID)
	}
}

func (s *MemoryStore) PutLink(l catalog.Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[l.ID] = l
}

func (s *MemoryStore) FindDIDByNumber(ctx context.Context, number string) (catalog.DID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return catalog.DID{}, false, s.Err
	}
	for _, d := range s.dids {
		if d.Number == number {
			return d, true, nil
		}
	}
	return catalog.DID{}, false, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, userID int64) (catalog.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return catalog.User{}, false, s.Err
	}
	u, ok := s.users[userID]
	return u, ok, nil
}

func (s *MemoryStore) ListActiveCampaignsForDID(ctx context.Context, ownerID, didID int64) ([]catalog.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []catalog.Campaign
	for _, cid := range s.campaignDIDs[didID] {
		c, ok := s.campaigns[cid]
		if !ok || c.UserID != ownerID || !c.Status.IsActive() {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b catalog.Campaign) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) ListEligibleLinks(ctx context.Context, campaignID int64) ([]EligibleLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []EligibleLink
	for _, l := range s.links {
		if l.CampaignID != campaignID || !l.Status.IsActive() {
			continue
		}
		cl, ok := s.clients[l.ClientID]
		if !ok || !cl.Status.IsActive() {
			continue
		}
		ct, ok := s.contacts[cl.ID]
		if !ok || ct.URI == "" {
			continue
		}
		out = append(out, EligibleLink{Link: l, Client: cl, Contact: ct})
	}
	return out, nil
}
