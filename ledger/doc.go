// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger admits votes and attendance.

A vote is keyed by (question, unit). CastVote checks, in order: the question
exists in the organization, its assembly is active, the question is open and
not archived, the option belongs to it, and the caller's handle resolves to
the unit. The accepted vote is upserted together with an audit row, so the
current choice is always one row while every cast stays in the history.

Concurrent casts for the same key serialize on the primary key and the last
commit wins. Cached results for the question and assembly are dropped after
each commit.
*/
package ledger
