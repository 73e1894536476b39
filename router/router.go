// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/quorum/cliparse"
	"github.com/danielhkuo/quorum/handlers"
	"github.com/danielhkuo/quorum/metrics"
	"github.com/danielhkuo/quorum/middleware"
	"github.com/danielhkuo/quorum/models"
)

func NewRouter(svc *handlers.Services, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	unitHandler := handlers.NewUnitHandler(svc)
	assemblyHandler := handlers.NewAssemblyHandler(svc)
	votingHandler := handlers.NewVotingHandler(svc)
	resultsHandler := handlers.NewResultsHandler(svc)
	powerHandler := handlers.NewPowerHandler(svc)
	creditHandler := handlers.NewCreditHandler(svc)

	admin := middleware.RequireRole(cfg.JWTSecret, models.RoleAdmin)
	voter := middleware.RequireRole(cfg.JWTSecret, models.RoleVoter)
	billing := middleware.RequireRole(cfg.JWTSecret, models.RoleBilling)
	anyone := middleware.RequireRole(cfg.JWTSecret)

	handle := func(pattern string, guard func(http.HandlerFunc) http.HandlerFunc, h http.HandlerFunc) {
		mux.HandleFunc(pattern, middleware.WithLogging(guard(h)))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Unit registry
	handle("POST /units", admin, unitHandler.ImportUnits)
	handle("GET /units", admin, unitHandler.ListUnits)
	handle("DELETE /units/{id}", admin, unitHandler.DeleteUnit)

	// Assembly lifecycle and agenda
	handle("POST /assemblies", admin, assemblyHandler.CreateAssembly)
	handle("GET /assemblies/{id}", anyone, assemblyHandler.GetAssembly)
	handle("POST /assemblies/{id}/state", admin, assemblyHandler.SetAssemblyState)
	handle("GET /assemblies/{id}/questions", anyone, assemblyHandler.ListQuestions)
	handle("POST /assemblies/{id}/questions", admin, assemblyHandler.CreateQuestion)
	handle("POST /questions/{id}/state", admin, assemblyHandler.SetQuestionState)
	handle("POST /questions/{id}/archive", admin, assemblyHandler.ArchiveQuestion)
	handle("GET /assemblies/{id}/minutes", admin, assemblyHandler.Minutes)

	// Voting
	handle("GET /assemblies/{id}/eligibility", voter, votingHandler.Eligibility)
	handle("POST /questions/{id}/votes", voter, votingHandler.CastVote)
	handle("GET /questions/{id}/votes", admin, votingHandler.ListVotes)
	handle("POST /assemblies/{id}/attendance", voter, votingHandler.RecordAttendance)

	// Results (live)
	handle("GET /assemblies/{id}/participation", anyone, resultsHandler.Participation)
	handle("GET /questions/{id}/results", anyone, resultsHandler.QuestionResults)
	handle("GET /assemblies/{id}/attendance", anyone, resultsHandler.Attendance)

	// Powers of attorney
	handle("GET /assemblies/{id}/powers", admin, powerHandler.ListPowers)
	handle("POST /assemblies/{id}/powers", admin, powerHandler.GrantPower)
	handle("POST /powers/{id}/revoke", admin, powerHandler.RevokePower)

	// Credits
	handle("GET /credits", admin, creditHandler.GetCredits)
	handle("POST /credits/topup", billing, creditHandler.TopUp)

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quorum API v1"))
	})

	return mux
}
