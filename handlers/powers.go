// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/quorum/middleware"
	"github.com/danielhkuo/quorum/models"
)

type PowerHandler struct {
	svc *Services
}

func NewPowerHandler(svc *Services) *PowerHandler {
	return &PowerHandler{svc: svc}
}

// ListPowers handles GET /assemblies/{id}/powers
func (h *PowerHandler) ListPowers(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	powers, err := h.svc.Resolver.ListPowers(r.Context(), claims.OrganizationID, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, powers)
}

// GrantPower handles POST /assemblies/{id}/powers
func (h *PowerHandler) GrantPower(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	var req models.GrantPowerRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	p, err := h.svc.Resolver.GrantPower(r.Context(), claims.OrganizationID, r.PathValue("id"), req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	// Eligibility and participation views depend on active powers
	h.svc.Tally.Invalidate(r.Context(), claims.OrganizationID, p.AssemblyID, "")
	middleware.JSONResponse(w, http.StatusCreated, p)
}

// RevokePower handles POST /powers/{id}/revoke
func (h *PowerHandler) RevokePower(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	p, err := h.svc.Resolver.RevokePower(r.Context(), claims.OrganizationID, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	h.svc.Tally.Invalidate(r.Context(), claims.OrganizationID, p.AssemblyID, "")
	middleware.JSONResponse(w, http.StatusOK, p)
}
