// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Quorum API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	svc := handlers.NewServices(db, cfg, results, clock.Real())
	mux := router.NewRouter(svc, cfg)

Every API route is wrapped as WithLogging(RequireRole(...)(handler)), so
rejected sessions are logged and timed like any other request.

# Endpoints

Operational:

	GET /health
	GET /metrics

Unit registry (admin):

	POST   /units       - Import units (is_demo selects the universe)
	GET    /units       - List units, ?demo=true for the demo universe
	DELETE /units/{id}  - Delete a unit with its votes and powers

Assemblies:

	POST /assemblies                  - Create draft (admin)
	GET  /assemblies/{id}             - Read (any role)
	POST /assemblies/{id}/state       - activate, finalize, reopen, reset_demo (admin)
	GET  /assemblies/{id}/questions   - Agenda (any role)
	POST /assemblies/{id}/questions   - Add question (admin)
	POST /questions/{id}/state        - Open or close (admin)
	POST /questions/{id}/archive      - Archive or restore (admin)
	GET  /assemblies/{id}/minutes     - Frozen results (admin)

Voting (voter):

	GET  /assemblies/{id}/eligibility - Units the caller may act for
	POST /questions/{id}/votes        - Cast or replace a vote
	POST /assemblies/{id}/attendance  - Confirm presence / heartbeat

Results:

	GET /assemblies/{id}/participation - Quorum from votes (any role)
	GET /questions/{id}/results        - Live tally (any role)
	GET /assemblies/{id}/attendance    - Quorum from attendance (any role)
	GET /questions/{id}/votes          - Votes and audit history (admin)

Powers of attorney (admin):

	GET  /assemblies/{id}/powers
	POST /assemblies/{id}/powers
	POST /powers/{id}/revoke

Credits:

	GET  /credits        - Balance and history (admin)
	POST /credits/topup  - Add credits (billing)
*/
package router
