package reporting

import "time"

// TimeRange is half-open: From inclusive, To exclusive.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call-record metrics over started_at.
// A nil CampaignID covers every campaign.
type CallsSummaryRequest struct {
	Range      TimeRange `json:"range"`
	CampaignID *int64    `json:"campaign_id,omitempty"`
}

type CallsSummary struct {
	CampaignID *int64    `json:"campaign_id,omitempty"`
	Range      TimeRange `json:"range"`

	TotalCalls    int     `json:"total_calls"`
	AnsweredCalls int     `json:"answered_calls"`
	AnswerRate    float64 `json:"answer_rate"`

	// Rejected counts calls the telephony engine turned away on a cap.
	RejectedCalls int `json:"rejected_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	TotalBillableSeconds   int `json:"total_billable_seconds"`
	AverageBillableSeconds int `json:"average_billable_seconds"`

	ByStatus map[string]int `json:"by_status"`
}

// LinkUsage is a snapshot of a routing link's volume counter.
type LinkUsage struct {
	LinkID            int64     `json:"link_id"`
	CampaignID        int64     `json:"campaign_id"`
	ClientID          int64     `json:"client_id"`
	Status            string    `json:"status"`
	MaxConcurrency    int       `json:"max_concurrency"`
	TotalCallsAllowed *int      `json:"total_calls_allowed"`
	CurrentTotalCalls int       `json:"current_total_calls"`
	Remaining         *int      `json:"remaining"`
	CapReached        bool      `json:"cap_reached"`
	UpdatedAt         time.Time `json:"updated_at"`
}
