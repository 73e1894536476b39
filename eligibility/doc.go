// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package eligibility resolves an authenticated handle to the units it may vote
for in an assembly.

A handle is an email or a phone number, normalized by auth.NormalizeHandle.
The resolved set is the union of

  - units of the assembly's universe whose owner email or phone matches, and
  - units granted to the handle through active powers of attorney.

A unit reachable both ways appears once, as direct. Each entry carries its
source so the ledger can flag proxy votes without trusting the client.

# Powers of Attorney

A unit grants at most one active power per assembly, and a receiver holds at
most policy.ProxyCapPerReceiver active powers per assembly. The cap is
checked inside the granting transaction, after the assembly row has been
touched, so concurrent grants cannot overshoot it.
*/
package eligibility
