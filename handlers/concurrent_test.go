// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/testutil"
)

// TestConcurrentVotesFromDifferentUnits verifies that simultaneous votes
// from different owners all land exactly once
func TestConcurrentVotesFromDifferentUnits(t *testing.T) {
	s := newTestServer(t)
	h := NewVotingHandler(s.svc)

	numVoters := 10
	handles := make([]string, numVoters)
	headers := make([]map[string]string, numVoters)
	units := make([]string, numVoters)
	for i := 0; i < numVoters; i++ {
		handles[i] = fmt.Sprintf("owner%d@example.com", i)
		headers[i] = s.voter(t, handles[i])
		units[i] = testutil.AddTestUnit(t, s.db, s.orgID, testutil.TestUnit{
			Tower: "C", Number: fmt.Sprintf("%d", 100+i), Coefficient: 10, Email: handles[i],
		})
	}
	assemblyID := testutil.CreateTestAssembly(t, s.db, s.orgID, models.AssemblyActive, false)
	questionID, options := testutil.CreateTestQuestion(t, s.db, assemblyID, models.QuestionOpen, "", "Yes", "No")

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < numVoters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			body := models.CastVoteRequest{UnitID: units[i], OptionID: options[i%2]}
			req := testutil.MakeRequest("POST", "/questions/"+questionID+"/votes", body, headers[i])
			w := s.do(h.CastVote, req, "id", questionID)
			if w.Code == http.StatusOK {
				successCount.Add(1)
			} else {
				t.Errorf("Voter %d failed: %d %s", i, w.Code, w.Body.String())
			}
		}(i)
	}
	wg.Wait()

	if int(successCount.Load()) != numVoters {
		t.Errorf("Expected %d successful votes, got %d", numVoters, successCount.Load())
	}

	var votes, audit int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM vote WHERE question_id = $1`, questionID).Scan(&votes); err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM vote_audit WHERE question_id = $1`, questionID).Scan(&audit); err != nil {
		t.Fatalf("Failed to count audit rows: %v", err)
	}
	if votes != numVoters || audit != numVoters {
		t.Errorf("Expected %d votes and audit rows, got %d and %d", numVoters, votes, audit)
	}
}

// TestConcurrentVoteUpdates verifies that one unit re-voting in parallel
// ends with a single vote matching its last accepted cast
func TestConcurrentVoteUpdates(t *testing.T) {
	s := newTestServer(t)
	h := NewVotingHandler(s.svc)
	units := s.seedBuilding(t)
	assemblyID := testutil.CreateTestAssembly(t, s.db, s.orgID, models.AssemblyActive, false)
	questionID, options := testutil.CreateTestQuestion(t, s.db, assemblyID, models.QuestionOpen, "", "Yes", "No")

	numUpdates := 8
	ana := s.voter(t, "ana@example.com")
	var wg sync.WaitGroup
	for i := 0; i < numUpdates; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			body := models.CastVoteRequest{UnitID: units[0], OptionID: options[i%2]}
			req := testutil.MakeRequest("POST", "/questions/"+questionID+"/votes", body, ana)
			w := s.do(h.CastVote, req, "id", questionID)
			if w.Code != http.StatusOK {
				t.Errorf("Update %d failed: %d %s", i, w.Code, w.Body.String())
			}
		}(i)
	}
	wg.Wait()

	var count int
	var current string
	if err := s.db.QueryRow(`SELECT COUNT(*), MAX(option_id) FROM vote WHERE question_id = $1`, questionID).Scan(&count, &current); err != nil {
		t.Fatalf("Failed to query vote: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected exactly 1 vote row, got %d", count)
	}

	var audit int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM vote_audit WHERE question_id = $1`, questionID).Scan(&audit); err != nil {
		t.Fatalf("Failed to count audit rows: %v", err)
	}
	if audit != numUpdates {
		t.Errorf("Expected %d audit rows, got %d", numUpdates, audit)
	}
	if current != options[0] && current != options[1] {
		t.Errorf("Vote holds unknown option %s", current)
	}
}

// TestConcurrentActivation verifies that racing activations charge the
// organization once
func TestConcurrentActivation(t *testing.T) {
	s := newTestServer(t)
	h := NewAssemblyHandler(s.svc)
	s.seedBuilding(t)
	testutil.SetTestBalance(t, s.db, s.orgID, 100)
	assemblyID := testutil.CreateTestAssembly(t, s.db, s.orgID, models.AssemblyDraft, false)

	numAttempts := 5
	admin := s.admin(t)
	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < numAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			body := models.AssemblyStateRequest{Action: models.ActionActivate}
			req := testutil.MakeRequest("POST", "/assemblies/"+assemblyID+"/state", body, admin)
			w := s.do(h.SetAssemblyState, req, "id", assemblyID)
			switch w.Code {
			case http.StatusOK:
				successCount.Add(1)
			case http.StatusConflict:
			default:
				t.Errorf("Unexpected status %d: %s", w.Code, w.Body.String())
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("Expected exactly one successful activation, got %d", successCount.Load())
	}
	if balance := testutil.GetTestBalance(t, s.db, s.orgID); balance != 97 {
		t.Errorf("Expected a single 3-credit charge leaving 97, got %d", balance)
	}
}

// TestConcurrentTopUps verifies that parallel top-ups are all credited
func TestConcurrentTopUps(t *testing.T) {
	s := newTestServer(t)
	h := NewCreditHandler(s.svc)
	billing := testutil.BearerHeaders(testutil.Token(t, s.cfg, s.orgID, models.RoleBilling, ""))

	numTopUps := 10
	var wg sync.WaitGroup
	for i := 0; i < numTopUps; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := testutil.MakeRequest("POST", "/credits/topup", models.TopUpRequest{Amount: 5}, billing)
			w := s.do(h.TopUp, req)
			if w.Code != http.StatusOK {
				t.Errorf("Top-up failed: %d %s", w.Code, w.Body.String())
			}
		}()
	}
	wg.Wait()

	if balance := testutil.GetTestBalance(t, s.db, s.orgID); balance != 50 {
		t.Errorf("Expected balance 50, got %d", balance)
	}
}
