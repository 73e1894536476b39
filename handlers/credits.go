// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/quorum/middleware"
	"github.com/danielhkuo/quorum/models"
)

type CreditHandler struct {
	svc *Services
}

func NewCreditHandler(svc *Services) *CreditHandler {
	return &CreditHandler{svc: svc}
}

// GetCredits handles GET /credits
func (h *CreditHandler) GetCredits(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.Gate.Credits(r.Context(), claims.OrganizationID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// TopUp handles POST /credits/topup
// Called by the billing integration once a payment settles.
func (h *CreditHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	var req models.TopUpRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	if _, err := h.svc.Gate.TopUp(r.Context(), claims.OrganizationID, req.Amount); err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp, err := h.svc.Gate.Credits(r.Context(), claims.OrganizationID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
