package calls

import (
	"strconv"
	"strings"
	"time"
)

// CallRecord is one immutable row per call attempt.
//
// Every foreign reference is independently nullable: routing may fail before
// any of them is known, and the store nulls them out when the referenced
// entity is removed. The record itself is never deleted with them.
type CallRecord struct {
	ID             int64  `json:"id" db:"id"`
	ExternalCallID string `json:"external_call_id" db:"external_call_id"`

	UserID     *int64 `json:"user_id,omitempty" db:"user_id"`
	CampaignID *int64 `json:"campaign_id,omitempty" db:"campaign_id"`
	DIDID      *int64 `json:"did_id,omitempty" db:"did_id"`
	ClientID   *int64 `json:"client_id,omitempty" db:"client_id"`
	LinkID     *int64 `json:"link_id,omitempty" db:"link_id"`

	DialedNumber string `json:"dialed_number" db:"dialed_number"`
	CallerIDNum  string `json:"caller_id_num,omitempty" db:"caller_id_num"`
	CallerIDName string `json:"caller_id_name,omitempty" db:"caller_id_name"`

	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty" db:"answered_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	DurationSeconds *int `json:"duration_seconds,omitempty" db:"duration_seconds"`
	BillableSeconds *int `json:"billable_seconds,omitempty" db:"billable_seconds"`

	Status          CallStatus `json:"status" db:"status"`
	HangupCauseCode *int       `json:"hangup_cause_code,omitempty" db:"hangup_cause_code"`
	HangupCauseText string     `json:"hangup_cause_text,omitempty" db:"hangup_cause_text"`
	LinkedCallID    string     `json:"linked_call_id,omitempty" db:"linked_call_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CallAttempt is the input to RecordCall. LinkRef is kept as the raw value the
// telephony engine sent; it is parsed during recording and dropped if malformed.
type CallAttempt struct {
	ExternalCallID string
	DialedNumber   string
	StartedAt      time.Time
	Status         string

	UserID     *int64
	CampaignID *int64
	DIDID      *int64
	ClientID   *int64
	LinkRef    string

	CallerIDNum     string
	CallerIDName    string
	AnsweredAt      *time.Time
	EndedAt         *time.Time
	DurationSeconds *int
	BillableSeconds *int
	HangupCauseCode *int
	HangupCauseText string
	LinkedCallID    string
}

// CallStatus is the upper-cased dial outcome reported by the telephony engine.
// Values outside the known set are still recorded.
type CallStatus string

const (
	CallStatusAnswered      CallStatus = "ANSWERED"
	CallStatusNoAnswer      CallStatus = "NOANSWER"
	CallStatusBusy          CallStatus = "BUSY"
	CallStatusFailed        CallStatus = "FAILED"
	CallStatusCancel        CallStatus = "CANCEL"
	CallStatusCongestion    CallStatus = "CONGESTION"
	CallStatusChanUnavail   CallStatus = "CHANUNAVAIL"
	CallStatusRejectedCC    CallStatus = "REJECTED_CC"
	CallStatusRejectedTotal CallStatus = "REJECTED_TOTAL"
)

func NormalizeStatus(s string) CallStatus {
	return CallStatus(strings.ToUpper(strings.TrimSpace(s)))
}

func (s CallStatus) Known() bool {
	switch s {
	case CallStatusAnswered, CallStatusNoAnswer, CallStatusBusy, CallStatusFailed, CallStatusCancel,
		CallStatusCongestion, CallStatusChanUnavail, CallStatusRejectedCC, CallStatusRejectedTotal:
		return true
	default:
		return false
	}
}

// parseLinkRef returns the link id for a well-formed positive reference.
func parseLinkRef(ref string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
