// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides session tokens, handle normalization and ID helpers.

# Session Tokens

The membership layer signs an HS256 JWT per session:

	token, err := auth.IssueToken(secret, auth.Claims{
		OrganizationID: orgID,
		Role:           models.RoleVoter,
		Handle:         "ana@example.com",
	}, time.Hour)

	claims, err := auth.ParseToken(secret, token)

OrganizationID is the only source of organization scope for every request.
Role is one of admin, voter or billing. Handle is the verified contact
handle of a voter session.

# Handles

Contact handles are compared after NormalizeHandle:

	auth.NormalizeHandle(" Ana@Example.COM ")   // "ana@example.com"
	auth.NormalizeHandle("+57 (300) 123-4567")   // "3001234567"

Phones keep their last ten digits so that country-code prefixes match.

# ID Generation

Random UUIDs for database records:

	id := auth.NewID()

# IP Hashing

Vote audit rows store a salted hash of the client address:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
