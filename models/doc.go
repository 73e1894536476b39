// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Domain Types

  - Organization: tenant that owns units, assemblies and credits
  - Unit: voting unit with its coefficient and owner contact handles
  - Assembly: lifecycle state, activation time, paid and demo flags
  - Question / Option: what is voted and the ordered choices
  - PowerOfAttorney: delegation of a unit's vote to a receiver handle
  - Vote / VoteAuditEntry: current choice per (question, unit) and its history
  - AttendanceRecord: presence confirmation per (assembly, unit)
  - CreditTransaction: credit ledger movement

# Engine Results

  - UnitRef: one unit the caller may vote for (direct or proxy)
  - QuorumStats / AttendanceStats: nominal and coefficient participation
  - TallyStats / OptionResult: per-question results and threshold verdicts
  - ResultSnapshot: frozen tally written to the minutes

# Constants

Assembly states:

	AssemblyDraft     = "draft"
	AssemblyActive    = "active"
	AssemblyFinalized = "finalized"

Question states:

	QuestionPending = "pending"
	QuestionOpen    = "open"
	QuestionClosed  = "closed"

Voting modes:

	ModeCoefficient = "coefficient"
	ModeNominal     = "nominal"

Request types carry validator tags; see middleware.DecodeAndValidate.
*/
package models
