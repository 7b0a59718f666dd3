package catalog

import (
	"errors"
	"fmt"
	"time"
)

// Entities in this package are owned by the management plane. The routing core
// reads them; the only column it ever writes is Link.CurrentTotalCalls, and
// only through an atomic increment in the call ledger.

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"

	// User-only states.
	StatusPendingApproval Status = "pending_approval"
	StatusSuspended       Status = "suspended"

	// Campaign-only state.
	StatusPaused Status = "paused"
)

func (s Status) IsActive() bool { return s == StatusActive }

// Strategy is the campaign routing strategy tag. The core does not execute
// round_robin or weighted selection; it only advertises weight/priority.
type Strategy string

const (
	StrategyPriority   Strategy = "priority"
	StrategyRoundRobin Strategy = "round_robin"
	StrategyWeighted   Strategy = "weighted"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyPriority, StrategyRoundRobin, StrategyWeighted:
		return true
	default:
		return false
	}
}

const DefaultDialTimeoutSeconds = 30

type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Status    Status    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DID is a phone number owned by exactly one user.
type DID struct {
	ID        int64     `json:"id" db:"id"`
	Number    string    `json:"number" db:"number"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Status    Status    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Campaign struct {
	ID                 int64     `json:"id" db:"id"`
	UserID             int64     `json:"user_id" db:"user_id"`
	Name               string    `json:"name" db:"name"`
	Status             Status    `json:"status" db:"status"`
	RoutingStrategy    Strategy  `json:"routing_strategy" db:"routing_strategy"`
	DialTimeoutSeconds int       `json:"dial_timeout_seconds" db:"dial_timeout_seconds"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

func (c Campaign) Validate() error {
	var errs []error
	if c.UserID <= 0 {
		errs = append(errs, errors.New("campaign: owner required"))
	}
	if c.Name == "" {
		errs = append(errs, errors.New("campaign: name required"))
	}
	if !c.RoutingStrategy.Valid() {
		errs = append(errs, fmt.Errorf("campaign: unknown routing strategy %q", c.RoutingStrategy))
	}
	if c.DialTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("campaign: dial timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Client is a downstream call-receiving destination.
type Client struct {
	ID         int64     `json:"id" db:"id"`
	Identifier string    `json:"client_identifier" db:"client_identifier"`
	Name       string    `json:"name" db:"name"`
	Status     Status    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// OutboundContact is the externally generated dial configuration of a client.
// A client without a contact URI is not routable.
type OutboundContact struct {
	ClientID         int64   `json:"client_id" db:"client_id"`
	URI              string  `json:"uri" db:"uri"`
	Codecs           string  `json:"codecs,omitempty" db:"codecs"`
	OutboundAuth     *string `json:"outbound_auth,omitempty" db:"outbound_auth"`
	CallerIDOverride *string `json:"callerid_override,omitempty" db:"callerid_override"`
	DialContext      *string `json:"context,omitempty" db:"context"`
	Transport        *string `json:"transport,omitempty" db:"transport"`
}

// Link is the campaign-client setting: the capacity- and priority-bearing
// association between a campaign and a client.
//
// Invariant: CurrentTotalCalls is monotonically increasing and is only changed
// by an atomic server-side increment.
type Link struct {
	ID                 int64     `json:"id" db:"id"`
	CampaignID         int64     `json:"campaign_id" db:"campaign_id"`
	ClientID           int64     `json:"client_id" db:"client_id"`
	Status             Status    `json:"status" db:"status"`
	MaxConcurrency     int       `json:"max_concurrency" db:"max_concurrency"`
	TotalCallsAllowed  *int      `json:"total_calls_allowed,omitempty" db:"total_calls_allowed"`
	CurrentTotalCalls  int       `json:"current_total_calls" db:"current_total_calls"`
	ForwardingPriority int       `json:"forwarding_priority" db:"forwarding_priority"`
	Weight             int       `json:"weight" db:"weight"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

func (l Link) Validate() error {
	var errs []error
	if l.CampaignID <= 0 || l.ClientID <= 0 {
		errs = append(errs, errors.New("link: campaign and client required"))
	}
	if l.MaxConcurrency < 1 {
		errs = append(errs, errors.New("link: max_concurrency must be at least 1"))
	}
	if l.Weight <= 0 {
		errs = append(errs, errors.New("link: weight must be positive"))
	}
	if l.TotalCallsAllowed != nil && *l.TotalCallsAllowed < 0 {
		errs = append(errs, errors.New("link: total_calls_allowed must not be negative"))
	}
	if l.CurrentTotalCalls < 0 {
		errs = append(errs, errors.New("link: current_total_calls must not be negative"))
	}
	return errors.Join(errs...)
}

// CapReached reports whether the volume cap is exhausted. A nil cap is unlimited.
func (l Link) CapReached() bool {
	return l.TotalCallsAllowed != nil && l.CurrentTotalCalls >= *l.TotalCallsAllowed
}

// Remaining returns the calls left under the volume cap, or nil when unlimited.
func (l Link) Remaining() *int {
	if l.TotalCallsAllowed == nil {
		return nil
	}
	r := *l.TotalCallsAllowed - l.CurrentTotalCalls
	if r < 0 {
		r = 0
	}
	return &r
}
