// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/quorum/middleware"
	"github.com/danielhkuo/quorum/models"
)

type AssemblyHandler struct {
	svc *Services
}

func NewAssemblyHandler(svc *Services) *AssemblyHandler {
	return &AssemblyHandler{svc: svc}
}

// CreateAssembly handles POST /assemblies
func (h *AssemblyHandler) CreateAssembly(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	var req models.CreateAssemblyRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	a, err := h.svc.Gate.CreateAssembly(r.Context(), claims.OrganizationID, req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, a)
}

// GetAssembly handles GET /assemblies/{id}
// Reading an expired active assembly finalizes it first.
func (h *AssemblyHandler) GetAssembly(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	a, err := h.svc.Gate.Load(r.Context(), claims.OrganizationID, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, a)
}

// SetAssemblyState handles POST /assemblies/{id}/state
func (h *AssemblyHandler) SetAssemblyState(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	var req models.AssemblyStateRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	a, err := h.svc.Gate.SetAssemblyState(r.Context(), claims.OrganizationID, r.PathValue("id"), req.Action)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, a)
}

// ListQuestions handles GET /assemblies/{id}/questions
func (h *AssemblyHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	questions, err := h.svc.Gate.ListQuestions(r.Context(), claims.OrganizationID, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, questions)
}

// CreateQuestion handles POST /assemblies/{id}/questions
func (h *AssemblyHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	var req models.CreateQuestionRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	q, err := h.svc.Gate.CreateQuestion(r.Context(), claims.OrganizationID, r.PathValue("id"), req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, q)
}

// SetQuestionState handles POST /questions/{id}/state
func (h *AssemblyHandler) SetQuestionState(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	var req models.QuestionStateRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	q, err := h.svc.Gate.SetQuestionState(r.Context(), claims.OrganizationID, r.PathValue("id"), req.State)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, q)
}

// ArchiveQuestion handles POST /questions/{id}/archive
func (h *AssemblyHandler) ArchiveQuestion(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	var req models.ArchiveQuestionRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	q, err := h.svc.Gate.ArchiveQuestion(r.Context(), claims.OrganizationID, r.PathValue("id"), req.Archived)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, q)
}

// Minutes handles GET /assemblies/{id}/minutes
func (h *AssemblyHandler) Minutes(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	assemblyID := r.PathValue("id")
	if _, err := h.svc.Gate.Load(r.Context(), claims.OrganizationID, assemblyID); err != nil {
		middleware.WriteError(w, err)
		return
	}

	minutes, err := h.svc.Tally.Minutes(r.Context(), claims.OrganizationID, assemblyID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, minutes)
}
