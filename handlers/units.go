// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/danielhkuo/quorum/middleware"
	"github.com/danielhkuo/quorum/models"
)

type UnitHandler struct {
	svc *Services
}

func NewUnitHandler(svc *Services) *UnitHandler {
	return &UnitHandler{svc: svc}
}

// ImportUnits handles POST /units
func (h *UnitHandler) ImportUnits(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	var req models.ImportUnitsRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp, err := h.svc.Units.Import(r.Context(), claims.OrganizationID, req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// ListUnits handles GET /units?demo=
func (h *UnitHandler) ListUnits(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	isDemo := false
	if raw := r.URL.Query().Get("demo"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "demo must be true or false")
			return
		}
		isDemo = v
	}

	resp, err := h.svc.Units.List(r.Context(), claims.OrganizationID, isDemo)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// DeleteUnit handles DELETE /units/{id}
func (h *UnitHandler) DeleteUnit(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	if err := h.svc.Units.Delete(r.Context(), claims.OrganizationID, r.PathValue("id")); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
