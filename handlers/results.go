// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/quorum/middleware"
	"github.com/danielhkuo/quorum/models"
)

type ResultsHandler struct {
	svc *Services
}

func NewResultsHandler(svc *Services) *ResultsHandler {
	return &ResultsHandler{svc: svc}
}

// Participation handles GET /assemblies/{id}/participation
func (h *ResultsHandler) Participation(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.Tally.GetParticipation(r.Context(), claims.OrganizationID, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, stats)
}

// QuestionResults handles GET /questions/{id}/results
// Results are live: open questions report the current tally.
func (h *ResultsHandler) QuestionResults(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.Tally.GetQuestionResults(r.Context(), claims.OrganizationID, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, stats)
}

// Attendance handles GET /assemblies/{id}/attendance
// Admins also receive the per-unit records.
func (h *ResultsHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	assemblyID := r.PathValue("id")
	stats, err := h.svc.Tally.GetAttendanceStats(r.Context(), claims.OrganizationID, assemblyID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if claims.Role != models.RoleAdmin {
		middleware.JSONResponse(w, http.StatusOK, stats)
		return
	}

	records, err := h.svc.Tally.AttendanceRecords(r.Context(), claims.OrganizationID, assemblyID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.AttendanceReport{
		AttendanceStats: stats,
		Records:         records,
	})
}
