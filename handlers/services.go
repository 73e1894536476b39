// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/quorum/auth"
	"github.com/danielhkuo/quorum/cache"
	"github.com/danielhkuo/quorum/cliparse"
	"github.com/danielhkuo/quorum/clock"
	"github.com/danielhkuo/quorum/eligibility"
	"github.com/danielhkuo/quorum/ledger"
	"github.com/danielhkuo/quorum/lifecycle"
	"github.com/danielhkuo/quorum/middleware"
	"github.com/danielhkuo/quorum/registry"
	"github.com/danielhkuo/quorum/tally"
)

// Services bundles the engine components the handlers call into.
type Services struct {
	Units    *registry.Store
	Resolver *eligibility.Resolver
	Tally    *tally.Service
	Gate     *lifecycle.Gate
	Ledger   *ledger.Ledger
}

// NewServices wires the engine over one database. results may be nil to
// disable result caching.
func NewServices(db *sql.DB, cfg cliparse.Config, results *cache.Results, clk clock.Clock) *Services {
	p := cfg.Policy
	resolver := eligibility.NewResolver(db, p, clk)
	t := tally.NewService(db, p, clk, results)
	gate := lifecycle.NewGate(db, p, clk, t)

	return &Services{
		Units:    registry.NewStore(db, p, clk),
		Resolver: resolver,
		Tally:    t,
		Gate:     gate,
		Ledger:   ledger.New(db, resolver, gate, t, clk, cfg.IPHashSalt),
	}
}

// session returns the caller's verified claims. Routes are registered
// behind middleware.RequireRole; a missing session is a wiring bug.
func session(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims := middleware.Session(r.Context())
	if claims == nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "session required")
		return nil, false
	}
	return claims, true
}
