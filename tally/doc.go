// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally computes quorum and per-question results.

engine.go is pure: Participation, Attendance, and QuestionResults take the
unit universe and the votes or attendance records and return stats with no
I/O. Service loads those inputs, caches the output in cache.Results for a
few seconds, and is told to drop entries after every accepted write.

Percentages are part*100/whole, 0 when whole is 0. Quorum is reached when
coefficient participation is strictly above the policy's quorum percent.
An option passes when its share of the question's total weight is at least
the threshold; more than one passing option sets threshold_warning.

Closing a question freezes its tally into an append-only result snapshot,
with a hash of the vote rows it was computed from.
*/
package tally
