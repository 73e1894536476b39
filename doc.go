// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Quorum API server.

Quorum runs the voting side of residential owners' assemblies: a registry of
units with ownership coefficients, a vote ledger that admits one vote per
unit per question, live quorum and tally computation, and a credit-metered
assembly lifecycle (draft → active → finalized, with paid reopen).

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=quorum.db JWT_SECRET=... IP_HASH_SALT=... go run .

Or with flags:

	go run . -p 3318 -d "postgres://..." --jwt-secret ... --ip-salt ...

A .env file in the working directory is loaded first; variables already set
in the environment win.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - JWT_SECRET (--jwt-secret): Session token signing secret
  - IP_HASH_SALT (--ip-salt): Salt for hashing voter IPs

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (inferred from the URL)
  - REDIS_URL (--redis-url): Shared results cache; in-process LRU otherwise
  - POLICY_FILE (--policy): YAML overrides for quorum, thresholds, windows

# Architecture

  - handlers: HTTP request handlers over the engine services
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, sessions, error mapping, validation
  - registry: Units and assembly/question row access
  - eligibility: Handle to unit resolution and powers of attorney
  - ledger: Vote and attendance admission
  - tally: Pure quorum/tally engine plus cached service
  - lifecycle: Assembly state machine, question states, credit metering
  - cache, metrics, db, auth, apperr, policy, clock, cliparse, models

See package documentation for each component.
*/
package main
