package routing

import "callplane/internal/catalog"

// Result is the output of Resolve. A reject is a normal value, never an error:
// callers branch on Status and, for rejects, on Reason.
type Result struct {
	Status Status `json:"status"`
	Reason Reason `json:"rejectReason,omitempty"`
	Route  *Route `json:"routingInfo,omitempty"`
}

type Status string

const (
	StatusProceed Status = "proceed"
	StatusReject  Status = "reject"
)

// Reason is a stable reject code consumed by telephony dialplans.
type Reason string

const (
	ReasonInvalidDIDInput   Reason = "invalid_did_input"
	ReasonDIDNotFound       Reason = "did_not_found"
	ReasonDIDInactive       Reason = "did_inactive"
	ReasonInternalDataError Reason = "internal_data_error"
	ReasonOwnerInactive     Reason = "owner_inactive"
	ReasonNoActiveCampaign  Reason = "no_active_campaign_for_did"
	ReasonNoActiveClients   Reason = "no_active_clients_in_campaign"
	ReasonNoEligibleClients Reason = "no_eligible_clients_available"
)

// Route describes where a proceeding call may be offered, in order.
type Route struct {
	UserID             int64            `json:"user_id"`
	CampaignID         int64            `json:"campaign_id"`
	DIDID              int64            `json:"did_id"`
	RoutingStrategy    catalog.Strategy `json:"routing_strategy"`
	DialTimeoutSeconds int              `json:"dial_timeout_seconds"`
	Targets            []Target         `json:"targets"`
}

// Target is one candidate destination. Values are copied verbatim from the
// link, client and outbound contact rows.
type Target struct {
	LinkID           int64   `json:"campaignClientSettingId"`
	ClientID         int64   `json:"client_id"`
	ClientIdentifier string  `json:"client_identifier"`
	ClientName       string  `json:"client_name"`
	URI              string  `json:"sip_uri"`
	MaxConcurrency   int     `json:"max_concurrency"`
	Weight           int     `json:"weight"`
	Priority         int     `json:"priority"`
	OutboundAuth     *string `json:"outbound_auth"`
	CallerIDOverride *string `json:"callerid_override"`
	DialContext      *string `json:"context"`
	Transport        *string `json:"transport"`
}

func reject(reason Reason) Result {
	return Result{Status: StatusReject, Reason: reason}
}

func proceed(route Route) Result {
	return Result{Status: StatusProceed, Route: &route}
}
