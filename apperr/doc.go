// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package apperr defines the error taxonomy shared by the engine packages.

Every failure a caller can act on is an *Error with a Kind and a Code:

	AuthorizationDenied  NotEligible, UnitNotEligible
	InvalidState         QuestionNotOpen, AssemblyNotActive, IllegalTransition, StructureFrozen
	InsufficientCredits  InsufficientCredits (Required / Available set)
	ValidationError      OptionMismatch, ProxyCapExceeded, NoUnits, InvalidInput, ...
	NotFound             NotFound
	TransientStorage     StorageBusy

Only TransientStorage is Retryable. Inspect with As, KindOf or HasCode:

	if apperr.HasCode(err, apperr.CodeQuestionNotOpen) { ... }
*/
package apperr
