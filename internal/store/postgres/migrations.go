package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"callplane/pkg/utils"
)

// Migration is one forward-only schema step. Versions are applied in order,
// each in its own transaction together with its schema_migrations row.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Constraint names the store maps to domain errors.
const (
	constraintExternalCallID = "call_records_external_call_id_key"
	constraintCallLink       = "call_records_link_id_fkey"
)

var Migrations = []Migration{
	{
		Version: 1,
		Name:    "catalog",
		SQL: `
CREATE TABLE users (
    id          BIGSERIAL PRIMARY KEY,
    username    TEXT NOT NULL UNIQUE,
    status      TEXT NOT NULL DEFAULT 'pending_approval'
                CHECK (status IN ('active', 'inactive', 'pending_approval', 'suspended')),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE dids (
    id          BIGSERIAL PRIMARY KEY,
    number      TEXT NOT NULL UNIQUE,
    user_id     BIGINT NOT NULL REFERENCES users (id) ON DELETE RESTRICT,
    status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE campaigns (
    id                    BIGSERIAL PRIMARY KEY,
    user_id               BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    name                  TEXT NOT NULL,
    status                TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive', 'paused')),
    routing_strategy      TEXT NOT NULL DEFAULT 'priority'
                          CHECK (routing_strategy IN ('priority', 'round_robin', 'weighted')),
    dial_timeout_seconds  INTEGER NOT NULL DEFAULT 30 CHECK (dial_timeout_seconds > 0),
    created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (user_id, name)
);

CREATE TABLE campaign_dids (
    campaign_id  BIGINT NOT NULL REFERENCES campaigns (id) ON DELETE CASCADE,
    did_id       BIGINT NOT NULL REFERENCES dids (id) ON DELETE CASCADE,
    PRIMARY KEY (campaign_id, did_id)
);

CREATE TABLE clients (
    id                 BIGSERIAL PRIMARY KEY,
    client_identifier  TEXT NOT NULL UNIQUE,
    name               TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- Written by the telephony configuration generator, read-only here.
CREATE TABLE outbound_contacts (
    client_id          BIGINT PRIMARY KEY REFERENCES clients (id) ON DELETE CASCADE,
    uri                TEXT,
    codecs             TEXT,
    outbound_auth      TEXT,
    callerid_override  TEXT,
    context            TEXT,
    transport          TEXT
);

CREATE TABLE campaign_client_settings (
    id                   BIGSERIAL PRIMARY KEY,
    campaign_id          BIGINT NOT NULL REFERENCES campaigns (id) ON DELETE CASCADE,
    client_id            BIGINT NOT NULL REFERENCES clients (id) ON DELETE CASCADE,
    status               TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
    max_concurrency      INTEGER NOT NULL DEFAULT 1 CHECK (max_concurrency >= 1),
    total_calls_allowed  INTEGER CHECK (total_calls_allowed >= 0),
    current_total_calls  INTEGER NOT NULL DEFAULT 0 CHECK (current_total_calls >= 0),
    forwarding_priority  INTEGER NOT NULL DEFAULT 0,
    weight               INTEGER NOT NULL DEFAULT 100 CHECK (weight > 0),
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (campaign_id, client_id)
);
`,
	},
	{
		Version: 2,
		Name:    "call_records",
		SQL: `
CREATE TABLE call_records (
    id                 BIGSERIAL PRIMARY KEY,
    external_call_id   TEXT NOT NULL,
    user_id            BIGINT REFERENCES users (id) ON DELETE SET NULL,
    campaign_id        BIGINT REFERENCES campaigns (id) ON DELETE SET NULL,
    did_id             BIGINT REFERENCES dids (id) ON DELETE SET NULL,
    client_id          BIGINT REFERENCES clients (id) ON DELETE SET NULL,
    link_id            BIGINT,
    dialed_number      TEXT NOT NULL,
    caller_id_num      TEXT,
    caller_id_name     TEXT,
    started_at         TIMESTAMPTZ NOT NULL,
    answered_at        TIMESTAMPTZ,
    ended_at           TIMESTAMPTZ,
    duration_seconds   INTEGER,
    billable_seconds   INTEGER,
    status             TEXT NOT NULL,
    hangup_cause_code  INTEGER,
    hangup_cause_text  TEXT,
    linked_call_id     TEXT,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT ` + constraintExternalCallID + ` UNIQUE (external_call_id),
    CONSTRAINT ` + constraintCallLink + ` FOREIGN KEY (link_id)
        REFERENCES campaign_client_settings (id) ON DELETE SET NULL
);
`,
	},
	{
		Version: 3,
		Name:    "lookup_indexes",
		SQL: `
CREATE INDEX idx_campaign_dids_did ON campaign_dids (did_id);
CREATE INDEX idx_settings_campaign_status ON campaign_client_settings (campaign_id, status);
CREATE INDEX idx_call_records_started_at ON call_records (started_at);
CREATE INDEX idx_call_records_campaign_started ON call_records (campaign_id, started_at);
CREATE INDEX idx_call_records_status ON call_records (status);
CREATE INDEX idx_call_records_linked_call_id ON call_records (linked_call_id);
`,
	},
}

// Migrate applies every migration newer than the recorded schema version and
// returns the names of those it applied.
func Migrate(ctx context.Context, db *sql.DB) ([]string, error) {
	const createTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version     INTEGER PRIMARY KEY,
    name        TEXT NOT NULL,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)
`
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	for _, m := range Migrations {
		ran := false
		err := utils.WithTx(ctx, db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
			// Serializes concurrent migrators; released at commit.
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(7311020)`); err != nil {
				return err
			}
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return nil
			}
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
				return err
			}
			ran = true
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("migration %d_%s: %w", m.Version, m.Name, err)
		}
		if ran {
			applied = append(applied, fmt.Sprintf("%d_%s", m.Version, m.Name))
		}
	}
	return applied, nil
}
