// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package lifecycle drives assemblies and questions through their states and
meters activation with prepaid credits.

# Assembly States

	draft --activate--> active --finalize--> finalized
	                      ^                      |
	                      +-------reopen---------+

Activate charges one credit per unit of the assembly's universe, once.
Reopen charges policy.ReopenPercent of that, rounded up, minimum one.
The debit is a conditional update in the same transaction as the state
change, so an organization without enough credits sees
apperr.CodeInsufficientCredits and nothing changes.

Non-demo assemblies finalize on their own policy.AutoFinalizeAfter past
activation. Gate.Load applies this lazily; Gate.FinalizeExpired sweeps.

# Questions

Questions move pending -> open -> closed, and closed back to open, only while
their assembly is active. Closing a question, or finalizing its assembly,
appends a result snapshot that the minutes are built from.
*/
package lifecycle
