// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package policy holds the tunable voting rules and the pure functions that
apply them.

Defaults (see Default):

	proxy_cap_per_receiver: 3
	grace_window:           72h
	auto_finalize_after:    72h
	quorum_percent:         50     # quorum when coefficient participation > 50
	default_threshold:      51
	reopen_percent:         10     # reopen = max(1, ceil(10% of activation))
	connected_window:       30s
	results_cache_ttl:      5s

A YAML file with any subset of these keys can override them; see
cliparse.ParseFlags.
*/
package policy
