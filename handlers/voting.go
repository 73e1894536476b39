// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/quorum/apperr"
	"github.com/danielhkuo/quorum/ledger"
	"github.com/danielhkuo/quorum/middleware"
	"github.com/danielhkuo/quorum/models"
)

type VotingHandler struct {
	svc *Services
}

func NewVotingHandler(svc *Services) *VotingHandler {
	return &VotingHandler{svc: svc}
}

// Eligibility handles GET /assemblies/{id}/eligibility
// Lists the units the caller may act for, own units first.
func (h *VotingHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	if claims.Handle == "" {
		middleware.WriteError(w, apperr.NotEligible())
		return
	}

	assemblyID := r.PathValue("id")
	refs, err := h.svc.Resolver.Resolve(r.Context(), claims.OrganizationID, assemblyID, claims.Handle)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.EligibilityResponse{
		AssemblyID: assemblyID,
		Units:      refs,
	})
}

// CastVote handles POST /questions/{id}/votes
// The acting handle always comes from the session token.
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	if claims.Handle == "" {
		middleware.WriteError(w, apperr.NotEligible())
		return
	}

	var req models.CastVoteRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	vote, err := h.svc.Ledger.CastVote(r.Context(), ledger.CastRequest{
		OrganizationID: claims.OrganizationID,
		QuestionID:     r.PathValue("id"),
		UnitID:         req.UnitID,
		OptionID:       req.OptionID,
		Handle:         claims.Handle,
		Meta:           middleware.ClientMeta(r),
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, vote)
}

// ListVotes handles GET /questions/{id}/votes
// Admin view of current votes and the full cast history.
func (h *VotingHandler) ListVotes(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	history, err := h.svc.Ledger.History(r.Context(), claims.OrganizationID, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, history)
}

// RecordAttendance handles POST /assemblies/{id}/attendance
func (h *VotingHandler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	if claims.Handle == "" {
		middleware.WriteError(w, apperr.NotEligible())
		return
	}

	var req models.RecordAttendanceRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	rec, err := h.svc.Ledger.RecordAttendance(r.Context(), claims.OrganizationID, r.PathValue("id"), req.UnitID, claims.Handle)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, rec)
}
