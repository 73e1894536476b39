// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/danielhkuo/quorum/apperr"
	"github.com/danielhkuo/quorum/auth"
)

type sessionKey struct{}

// RequireRole verifies the bearer session token and, when roles are given,
// that the session carries one of them. The claims are stored in the
// request context for Session.
func RequireRole(secret string, roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				ErrorResponse(w, http.StatusUnauthorized, "Authorization bearer token required")
				return
			}

			claims, err := auth.ParseToken(secret, raw)
			if err != nil {
				ErrorResponse(w, http.StatusUnauthorized, "Invalid session token")
				return
			}

			if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
				WriteError(w, apperr.RoleDenied(claims.Role))
				return
			}

			next(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, claims)))
		}
	}
}

// Session returns the claims stored by RequireRole, or nil.
func Session(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(sessionKey{}).(*auth.Claims)
	return claims
}
