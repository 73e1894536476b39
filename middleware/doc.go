// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (status,
duration_ms), and observes quorum_http_request_duration_seconds labelled by
the matched route pattern.

# Sessions

Every engine route runs behind RequireRole, which verifies the HS256 bearer
token issued by the membership layer:

	admin := middleware.RequireRole(cfg.JWTSecret, models.RoleAdmin)
	mux.HandleFunc("POST /units", middleware.WithLogging(admin(h.ImportUnits)))

Handlers read the organization and handle from Session(r.Context()). The
organization is never taken from a request body.

# Errors

Handlers return engine errors through WriteError, which maps apperr kinds:

	AuthorizationDenied  403
	InvalidState         409
	InsufficientCredits  402 (with required and available)
	Validation           400
	NotFound             404
	TransientStorage     503 (with Retry-After)

Anything else is logged and reported as 500.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

DecodeAndValidate parses a body and applies its validate tags, reporting
JSON field paths:

	var req models.ImportUnitsRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

# Client IP Extraction

GetClientIP honours X-Forwarded-For and X-Real-IP. ClientMeta bundles it
with the user agent for the vote audit trail.
*/
package middleware
