package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"callplane/internal/calls"
	"callplane/pkg/logger"

	"github.com/gin-gonic/gin"
)

// logCallRequest is the CDR body posted by the telephony engine once a call ends.
// Unknown fields are ignored.
type logCallRequest struct {
	IncomingDIDNumber string   `json:"incomingDidNumber"`
	TimestampStart    *cdrTime `json:"timestampStart"`
	CallStatus        string   `json:"callStatus"`
	UniqueID          string   `json:"asteriskUniqueid"`
	UserID            *int64   `json:"userId"`
	CampaignID        *int64   `json:"campaignId"`
	DIDID             *int64   `json:"didId"`
	ClientID          *int64   `json:"clientId"`
	LinkRef           linkRef  `json:"campaignClientSettingId"`
	CallerIDNum       *string  `json:"callerIdNum"`
	CallerIDName      *string  `json:"callerIdName"`
	TimestampAnswered *cdrTime `json:"timestampAnswered"`
	TimestampEnd      *cdrTime `json:"timestampEnd"`
	DurationSeconds   *int     `json:"durationSeconds"`
	BillsecSeconds    *int     `json:"billsecSeconds"`
	HangupCauseCode   *int     `json:"hangupCauseCode"`
	HangupCauseText   *string  `json:"hangupCauseText"`
	LinkedID          *string  `json:"asteriskLinkedid"`
}

func (r logCallRequest) attempt() calls.CallAttempt {
	in := calls.CallAttempt{
		ExternalCallID:  r.UniqueID,
		DialedNumber:    r.IncomingDIDNumber,
		Status:          r.CallStatus,
		UserID:          r.UserID,
		CampaignID:      r.CampaignID,
		DIDID:           r.DIDID,
		ClientID:        r.ClientID,
		LinkRef:         string(r.LinkRef),
		CallerIDNum:     deref(r.CallerIDNum),
		CallerIDName:    deref(r.CallerIDName),
		AnsweredAt:      r.TimestampAnswered.ptr(),
		EndedAt:         r.TimestampEnd.ptr(),
		DurationSeconds: r.DurationSeconds,
		BillableSeconds: r.BillsecSeconds,
		HangupCauseCode: r.HangupCauseCode,
		HangupCauseText: deref(r.HangupCauseText),
		LinkedCallID:    deref(r.LinkedID),
	}
	if t := r.TimestampStart.ptr(); t != nil {
		in.StartedAt = *t
	}
	return in
}

// LogCall answers POST /log_call.
func (h Handlers) LogCall(c *gin.Context) {
	if h.Recorder == nil {
		errorJSON(c, http.StatusInternalServerError, "call logging not configured")
		return
	}
	log := logger.FromGin(c)

	var req logCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid log_call body", "err", err)
		errorJSON(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	id, err := h.Recorder.RecordCall(c.Request.Context(), req.attempt())
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"status": "success", "message": "CDR logged successfully", "cdrId": id})
	case errors.Is(err, calls.ErrInvalidArgument):
		errorJSON(c, http.StatusBadRequest, "Invalid CDR data: "+err.Error())
	case errors.Is(err, calls.ErrDuplicateCall):
		errorJSON(c, http.StatusConflict, "Duplicate call id: "+req.UniqueID)
	case errors.Is(err, calls.ErrLinkNotFound), errors.Is(err, calls.ErrReferenceNotFound):
		errorJSON(c, http.StatusNotFound, err.Error())
	default:
		log.Error("log_call failed", "external_call_id", req.UniqueID, "err", err)
		errorJSON(c, http.StatusInternalServerError, "Internal server error during call logging.")
	}
}

// linkRef accepts the routing link id as a JSON number or string. Any other
// JSON value is kept raw so it can be logged and skipped downstream.
type linkRef string

func (l *linkRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*l = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = linkRef(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			// Bools, objects and arrays are kept verbatim and rejected as a
			// link reference later; the call itself is still recorded.
			*l = linkRef(b)
			return nil
		}
		*l = linkRef(n.String())
	}
	return nil
}

// cdrTime accepts RFC 3339 and the zone-less layouts telephony CDRs commonly use.
// Zone-less values are taken as UTC.
type cdrTime time.Time

var cdrLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func (t *cdrTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string")
	}
	s = strings.TrimSpace(s)
	for _, layout := range cdrLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			*t = cdrTime(v.UTC())
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t *cdrTime) ptr() *time.Time {
	if t == nil {
		return nil
	}
	v := time.Time(*t)
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
