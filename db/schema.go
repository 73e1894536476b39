// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The DDL is kept to the subset shared by PostgreSQL and SQLite.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Tables lists every table, children first, for test cleanup.
var Tables = []string{
	"result_snapshot",
	"credit_transaction",
	"credit_ledger",
	"attendance",
	"vote_audit",
	"vote",
	"power_of_attorney",
	"question_option",
	"question",
	"assembly",
	"unit",
	"organization",
}

const schema = `
-- Organizations
CREATE TABLE IF NOT EXISTS organization (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Units (real and demo universes)
CREATE TABLE IF NOT EXISTS unit (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL REFERENCES organization(id) ON DELETE CASCADE,
    tower TEXT NOT NULL DEFAULT '',
    number TEXT NOT NULL,
    coefficient DOUBLE PRECISION NOT NULL CHECK (coefficient > 0 AND coefficient <= 100),
    owner_name TEXT NOT NULL DEFAULT '',
    owner_email TEXT NOT NULL DEFAULT '',
    owner_phone TEXT NOT NULL DEFAULT '',
    owner_email_norm TEXT NOT NULL DEFAULT '',
    owner_phone_norm TEXT NOT NULL DEFAULT '',
    is_demo BOOLEAN NOT NULL DEFAULT FALSE,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (organization_id, is_demo, tower, number)
);

CREATE INDEX IF NOT EXISTS idx_unit_universe ON unit(organization_id, is_demo);
CREATE INDEX IF NOT EXISTS idx_unit_owner_email ON unit(organization_id, owner_email_norm);
CREATE INDEX IF NOT EXISTS idx_unit_owner_phone ON unit(organization_id, owner_phone_norm);

-- Assemblies
CREATE TABLE IF NOT EXISTS assembly (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL REFERENCES organization(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    state TEXT NOT NULL DEFAULT 'draft' CHECK (state IN ('draft', 'active', 'finalized')),
    is_demo BOOLEAN NOT NULL DEFAULT FALSE,
    paid BOOLEAN NOT NULL DEFAULT FALSE,
    reopen_count INTEGER NOT NULL DEFAULT 0,
    activated_at TIMESTAMP,
    finalized_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_assembly_org ON assembly(organization_id, state);

-- Questions
CREATE TABLE IF NOT EXISTS question (
    id TEXT PRIMARY KEY,
    assembly_id TEXT NOT NULL REFERENCES assembly(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    state TEXT NOT NULL DEFAULT 'pending' CHECK (state IN ('pending', 'open', 'closed')),
    mode TEXT NOT NULL DEFAULT 'coefficient' CHECK (mode IN ('coefficient', 'nominal')),
    threshold DOUBLE PRECISION CHECK (threshold IS NULL OR (threshold > 0 AND threshold <= 100)),
    archived BOOLEAN NOT NULL DEFAULT FALSE,
    position INTEGER NOT NULL DEFAULT 0,
    opened_at TIMESTAMP,
    closed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_question_assembly ON question(assembly_id);

-- Options
CREATE TABLE IF NOT EXISTS question_option (
    id TEXT PRIMARY KEY,
    question_id TEXT NOT NULL REFERENCES question(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    color TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_option_question ON question_option(question_id);

-- Powers of attorney
CREATE TABLE IF NOT EXISTS power_of_attorney (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL REFERENCES organization(id) ON DELETE CASCADE,
    assembly_id TEXT NOT NULL REFERENCES assembly(id) ON DELETE CASCADE,
    grantor_unit_id TEXT NOT NULL REFERENCES unit(id) ON DELETE CASCADE,
    receiver_handle TEXT NOT NULL,
    receiver_handle_norm TEXT NOT NULL,
    receiver_unit_id TEXT REFERENCES unit(id) ON DELETE SET NULL,
    state TEXT NOT NULL DEFAULT 'active' CHECK (state IN ('active', 'revoked')),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    revoked_at TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_power_active_grantor
    ON power_of_attorney(assembly_id, grantor_unit_id) WHERE state = 'active';
CREATE INDEX IF NOT EXISTS idx_power_receiver ON power_of_attorney(assembly_id, receiver_handle_norm);

-- Votes: one current row per (question, unit)
CREATE TABLE IF NOT EXISTS vote (
    question_id TEXT NOT NULL REFERENCES question(id) ON DELETE CASCADE,
    unit_id TEXT NOT NULL REFERENCES unit(id) ON DELETE CASCADE,
    option_id TEXT NOT NULL REFERENCES question_option(id) ON DELETE CASCADE,
    actor_handle TEXT NOT NULL,
    via_proxy BOOLEAN NOT NULL DEFAULT FALSE,
    ip_hash TEXT,
    user_agent TEXT,
    cast_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (question_id, unit_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_option ON vote(option_id);

-- Vote audit trail
CREATE TABLE IF NOT EXISTS vote_audit (
    id TEXT PRIMARY KEY,
    question_id TEXT NOT NULL REFERENCES question(id) ON DELETE CASCADE,
    unit_id TEXT NOT NULL REFERENCES unit(id) ON DELETE CASCADE,
    option_id TEXT NOT NULL,
    actor_handle TEXT NOT NULL,
    via_proxy BOOLEAN NOT NULL DEFAULT FALSE,
    ip_hash TEXT,
    user_agent TEXT,
    recorded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vote_audit_question ON vote_audit(question_id, recorded_at);

-- Attendance
CREATE TABLE IF NOT EXISTS attendance (
    assembly_id TEXT NOT NULL REFERENCES assembly(id) ON DELETE CASCADE,
    unit_id TEXT NOT NULL REFERENCES unit(id) ON DELETE CASCADE,
    actor_handle TEXT NOT NULL,
    confirmed_at TIMESTAMP NOT NULL,
    last_seen_at TIMESTAMP NOT NULL,
    PRIMARY KEY (assembly_id, unit_id)
);

-- Credits
CREATE TABLE IF NOT EXISTS credit_ledger (
    organization_id TEXT PRIMARY KEY REFERENCES organization(id) ON DELETE CASCADE,
    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS credit_transaction (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL REFERENCES organization(id) ON DELETE CASCADE,
    assembly_id TEXT REFERENCES assembly(id) ON DELETE SET NULL,
    kind TEXT NOT NULL CHECK (kind IN ('topup', 'activation', 'reopen')),
    amount BIGINT NOT NULL,
    balance_after BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_credit_transaction_org ON credit_transaction(organization_id, created_at);

-- Result snapshots (minutes)
CREATE TABLE IF NOT EXISTS result_snapshot (
    id TEXT PRIMARY KEY,
    question_id TEXT NOT NULL REFERENCES question(id) ON DELETE CASCADE,
    assembly_id TEXT NOT NULL REFERENCES assembly(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    computed_at TIMESTAMP NOT NULL,
    inputs_hash TEXT NOT NULL,
    payload TEXT NOT NULL,
    UNIQUE (question_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_result_snapshot_assembly ON result_snapshot(assembly_id, computed_at);
`
