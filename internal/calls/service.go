package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callplane/pkg/logger"
)

// Recorder writes call records and keeps link volume counters in step with them.
//
// Counter invariant: a link's current_total_calls equals the number of committed
// records that referenced it with status ANSWERED. Duplicate external call ids
// are rejected by the store, so a retry can never increment twice.
type Recorder struct {
	repo Repository
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, clock: time.Now}
}

// RecordCall validates the attempt, persists it and returns the record id.
func (r *Recorder) RecordCall(ctx context.Context, in CallAttempt) (int64, error) {
	id, err := r.record(ctx, in)
	recordOutcomes.WithLabelValues(outcome(err)).Inc()
	return id, err
}

func (r *Recorder) record(ctx context.Context, in CallAttempt) (int64, error) {
	if err := validate(in); err != nil {
		return 0, err
	}
	log := logger.From(ctx).With("external_call_id", in.ExternalCallID)

	status := NormalizeStatus(in.Status)
	if !status.Known() {
		log.Warn("unknown call status recorded as-is", "status", status)
	}

	rec := CallRecord{
		ExternalCallID:  strings.TrimSpace(in.ExternalCallID),
		UserID:          in.UserID,
		CampaignID:      in.CampaignID,
		DIDID:           in.DIDID,
		ClientID:        in.ClientID,
		DialedNumber:    strings.TrimSpace(in.DialedNumber),
		CallerIDNum:     in.CallerIDNum,
		CallerIDName:    in.CallerIDName,
		StartedAt:       in.StartedAt,
		AnsweredAt:      in.AnsweredAt,
		EndedAt:         in.EndedAt,
		DurationSeconds: in.DurationSeconds,
		BillableSeconds: in.BillableSeconds,
		Status:          status,
		HangupCauseCode: in.HangupCauseCode,
		HangupCauseText: in.HangupCauseText,
		LinkedCallID:    in.LinkedCallID,
		CreatedAt:       r.clock().UTC(),
	}

	increment := false
	if status == CallStatusAnswered && strings.TrimSpace(in.LinkRef) != "" {
		if linkID, ok := parseLinkRef(in.LinkRef); ok {
			rec.LinkID = &linkID
			increment = true
		} else {
			log.Warn("malformed link reference, counter not incremented", "link_ref", in.LinkRef)
		}
	}

	if r.repo == nil {
		return 0, errors.New("calls: repository not configured")
	}
	id, err := r.repo.Insert(ctx, rec, increment)
	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateCall):
		log.Warn("duplicate call record rejected")
		return 0, err
	case errors.Is(err, ErrLinkNotFound):
		if rec.LinkID != nil {
			log = log.With("link_id", *rec.LinkID)
		}
		log.Error("answered call references missing link")
		return 0, err
	case errors.Is(err, ErrReferenceNotFound):
		log.Error("call record references missing entity", "err", err)
		return 0, err
	default:
		return 0, fmt.Errorf("calls: record %s: %w", rec.ExternalCallID, err)
	}

	if increment {
		linkIncrements.Inc()
		log.Info("call recorded", "id", id, "status", status, "link_id", *rec.LinkID)
	} else {
		log.Info("call recorded", "id", id, "status", status)
	}
	return id, nil
}

func validate(in CallAttempt) error {
	var missing []string
	if strings.TrimSpace(in.DialedNumber) == "" {
		missing = append(missing, "dialed_number")
	}
	if in.StartedAt.IsZero() {
		missing = append(missing, "started_at")
	}
	if strings.TrimSpace(in.Status) == "" {
		missing = append(missing, "status")
	}
	if strings.TrimSpace(in.ExternalCallID) == "" {
		missing = append(missing, "external_call_id")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
