// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles connections, schema creation and storage error mapping.

# Connections

Open selects the driver (lib/pq for PostgreSQL, modernc.org/sqlite for local
development and tests) and pings:

	conn, err := db.Open(ctx, db.DriverPostgres, "postgres://...")

SQLite connections are limited to one so write transactions serialize.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(ctx, conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The DDL only uses features both engines support (partial indexes, CHECK,
ON CONFLICT upserts in the callers).

# Tables

  - organization: tenants
  - unit: voting units, real and demo universes
  - assembly: lifecycle state, paid flag, activation time
  - question / question_option: what is voted
  - power_of_attorney: proxies (one active per grantor unit and assembly)
  - vote: current choice, primary key (question_id, unit_id)
  - vote_audit: every accepted cast
  - attendance: presence per (assembly, unit)
  - credit_ledger / credit_transaction: prepaid credits
  - result_snapshot: frozen tallies for the minutes

# Relationships

	organization 1──* unit
	organization 1──* assembly 1──* question 1──* question_option
	assembly 1──* power_of_attorney *──1 unit
	question 1──* vote *──1 unit
	organization 1──1 credit_ledger

Deleting a question or a unit cascades to its votes.

# Transactions and Errors

WithTx wraps a function in a transaction. Classify maps serialization
failures, deadlocks and SQLITE_BUSY to apperr.KindTransientStorage, the only
retryable error kind. IsUniqueViolation detects natural-key conflicts on both
drivers.
*/
package db
