package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"callplane/internal/calls"
	"callplane/internal/catalog"
	"callplane/pkg/utils"
)

// CallStore implements calls.Repository and the call-record reads used by reporting.
type CallStore struct {
	db *sql.DB
}

func NewCallStore(db *sql.DB) *CallStore { return &CallStore{db: db} }

var _ calls.Repository = (*CallStore)(nil)

// Insert writes the record and, if asked, bumps the link counter in the same
// transaction. The increment is a single server-side UPDATE so concurrent
// writers never lose an update.
func (s *CallStore) Insert(ctx context.Context, rec calls.CallRecord, incrementLink bool) (int64, error) {
	if incrementLink && rec.LinkID == nil {
		return 0, calls.ErrLinkNotFound
	}

	var id int64
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		id, err = insertCallRecord(ctx, tx, rec)
		if err != nil {
			return err
		}
		if incrementLink {
			if _, err := incrementLinkCounter(ctx, tx, *rec.LinkID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, mapCallError(err)
	}
	return id, nil
}

func insertCallRecord(ctx context.Context, tx *sql.Tx, rec calls.CallRecord) (int64, error) {
	const q = `
INSERT INTO call_records (
    external_call_id, user_id, campaign_id, did_id, client_id, link_id,
    dialed_number, caller_id_num, caller_id_name,
    started_at, answered_at, ended_at, duration_seconds, billable_seconds,
    status, hangup_cause_code, hangup_cause_text, linked_call_id, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
RETURNING id
`
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	var id int64
	err := tx.QueryRowContext(ctx, q,
		rec.ExternalCallID,
		nullInt64(rec.UserID),
		nullInt64(rec.CampaignID),
		nullInt64(rec.DIDID),
		nullInt64(rec.ClientID),
		nullInt64(rec.LinkID),
		rec.DialedNumber,
		nullString(rec.CallerIDNum),
		nullString(rec.CallerIDName),
		rec.StartedAt,
		nullTime(rec.AnsweredAt),
		nullTime(rec.EndedAt),
		nullInt(rec.DurationSeconds),
		nullInt(rec.BillableSeconds),
		string(rec.Status),
		nullInt(rec.HangupCauseCode),
		nullString(rec.HangupCauseText),
		nullString(rec.LinkedCallID),
		created,
	).Scan(&id)
	return id, err
}

func incrementLinkCounter(ctx context.Context, tx *sql.Tx, linkID int64) (int, error) {
	const q = `
UPDATE campaign_client_settings
SET current_total_calls = current_total_calls + 1,
    updated_at = now()
WHERE id = $1
RETURNING current_total_calls
`
	var n int
	if err := tx.QueryRowContext(ctx, q, linkID).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, calls.ErrLinkNotFound
		}
		return 0, err
	}
	return n, nil
}

func mapCallError(err error) error {
	switch {
	case errors.Is(err, calls.ErrLinkNotFound):
		return err
	case utils.IsUniqueViolation(err, constraintExternalCallID):
		return calls.ErrDuplicateCall
	case utils.IsForeignKeyViolation(err, constraintCallLink):
		return calls.ErrLinkNotFound
	case utils.IsForeignKeyViolation(err, ""):
		return fmt.Errorf("%w: %s", calls.ErrReferenceNotFound, utils.ConstraintName(err))
	default:
		return err
	}
}

// ListCalls returns records whose started_at falls in [from, to), optionally
// restricted to one campaign.
func (s *CallStore) ListCalls(ctx context.Context, from, to time.Time, campaignID *int64) ([]calls.CallRecord, error) {
	const q = `
SELECT id, external_call_id, user_id, campaign_id, did_id, client_id, link_id,
       dialed_number, caller_id_num, caller_id_name,
       started_at, answered_at, ended_at, duration_seconds, billable_seconds,
       status, hangup_cause_code, hangup_cause_text, linked_call_id, created_at
FROM call_records
WHERE started_at >= $1 AND started_at < $2
  AND ($3::BIGINT IS NULL OR campaign_id = $3)
ORDER BY started_at ASC, id ASC
`
	rows, err := s.db.QueryContext(ctx, q, from, to, nullInt64(campaignID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calls.CallRecord
	for rows.Next() {
		var (
			r                                        calls.CallRecord
			userID, campID, didID, clientID, linkID  sql.NullInt64
			dur, bill, cause                         sql.NullInt64
			callerNum, callerName, causeText, linked sql.NullString
			answered, ended                          sql.NullTime
		)
		if err := rows.Scan(
			&r.ID, &r.ExternalCallID, &userID, &campID, &didID, &clientID, &linkID,
			&r.DialedNumber, &callerNum, &callerName,
			&r.StartedAt, &answered, &ended, &dur, &bill,
			&r.Status, &cause, &causeText, &linked, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan call record: %w", err)
		}
		r.UserID = int64Ptr(userID)
		r.CampaignID = int64Ptr(campID)
		r.DIDID = int64Ptr(didID)
		r.ClientID = int64Ptr(clientID)
		r.LinkID = int64Ptr(linkID)
		r.CallerIDNum = callerNum.String
		r.CallerIDName = callerName.String
		r.AnsweredAt = timePtr(answered)
		r.EndedAt = timePtr(ended)
		r.DurationSeconds = intPtr(dur)
		r.BillableSeconds = intPtr(bill)
		r.HangupCauseCode = intPtr(cause)
		r.HangupCauseText = causeText.String
		r.LinkedCallID = linked.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetLink reads the authoritative link row for usage reports.
func (s *CallStore) GetLink(ctx context.Context, linkID int64) (catalog.Link, bool, error) {
	return getLink(ctx, s.db, linkID)
}
