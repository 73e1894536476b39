// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Quorum API.

# Handler Types

Each handler is a struct over the shared Services bundle:

  - UnitHandler: Unit registry import, listing, and removal
  - AssemblyHandler: Assembly lifecycle, agenda questions, and minutes
  - VotingHandler: Eligibility, vote casting, vote history, and attendance
  - ResultsHandler: Participation, live question results, attendance quorum
  - PowerHandler: Powers of attorney
  - CreditHandler: Credit balance and top-ups

Services is built once per process:

	svc := handlers.NewServices(db, cfg, results, clock.Real())
	assemblyHandler := handlers.NewAssemblyHandler(svc)

# Sessions

Every route sits behind middleware.RequireRole. Handlers read the
organization and acting handle from middleware.Session and never from the
request body, so a caller can only reach its own organization's data.

# Errors

Engine errors are apperr values. middleware.WriteError maps their kind to a
status code and their code to the "code" field of the JSON error body:

	403 NotEligible, UnitNotEligible, RoleDenied
	409 QuestionNotOpen, AssemblyNotActive, IllegalTransition, StructureFrozen
	402 InsufficientCredits (with required and available)
	400 OptionMismatch, ProxyCapExceeded, InvalidInput
	404 NotFound
	503 StorageBusy (with Retry-After)
*/
package handlers
