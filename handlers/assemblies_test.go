// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"testing"

	"github.com/danielhkuo/quorum/apperr"
	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/testutil"
)

func TestCreateAssembly(t *testing.T) {
	s := newTestServer(t)
	h := NewAssemblyHandler(s.svc)

	testCases := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{"real assembly", models.CreateAssemblyRequest{Title: "Annual assembly 2025"}, http.StatusCreated},
		{"demo assembly", models.CreateAssemblyRequest{Title: "Rehearsal", IsDemo: true}, http.StatusCreated},
		{"missing title", models.CreateAssemblyRequest{}, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(h.CreateAssembly, testutil.MakeRequest("POST", "/assemblies", tc.body, s.admin(t)))
			testutil.AssertStatus(t, w, tc.expectedStatus)
			if tc.expectedStatus != http.StatusCreated {
				return
			}

			var a models.Assembly
			testutil.AssertJSON(t, w, &a)
			if a.ID == "" || a.State != models.AssemblyDraft || a.Paid {
				t.Errorf("Expected unpaid draft assembly, got %+v", a)
			}
			if a.OrganizationID != s.orgID {
				t.Errorf("Expected organization from session, got %s", a.OrganizationID)
			}
		})
	}
}

func TestGetAssembly(t *testing.T) {
	s := newTestServer(t)
	h := NewAssemblyHandler(s.svc)
	assemblyID := testutil.CreateTestAssembly(t, s.db, s.orgID, models.AssemblyDraft, false)

	w := s.do(h.GetAssembly, testutil.MakeRequest("GET", "/assemblies/"+assemblyID, nil, s.voter(t, "ana@example.com")), "id", assemblyID)
	testutil.AssertStatus(t, w, http.StatusOK)

	// Another organization's token cannot see it
	other := testutil.CreateTestOrg(t, s.db)
	headers := testutil.BearerHeaders(testutil.Token(t, s.cfg, other, models.RoleAdmin, ""))
	w = s.do(h.GetAssembly, testutil.MakeRequest("GET", "/assemblies/"+assemblyID, nil, headers), "id", assemblyID)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestSetAssemblyState_Activate(t *testing.T) {
	s := newTestServer(t)
	h := NewAssemblyHandler(s.svc)
	s.seedBuilding(t)
	testutil.SetTestBalance(t, s.db, s.orgID, 10)
	assemblyID := testutil.CreateTestAssembly(t, s.db, s.orgID, models.AssemblyDraft, false)

	body := models.AssemblyStateRequest{Action: models.ActionActivate}
	w := s.do(h.SetAssemblyState, testutil.MakeRequest("POST", "/assemblies/"+assemblyID+"/state", body, s.admin(t)), "id", assemblyID)
	testutil.AssertStatus(t, w, http.StatusOK)

	var a models.Assembly
	testutil.AssertJSON(t, w, &a)
	if a.State != models.AssemblyActive || !a.Paid || a.ActivatedAt == nil {
		t.Errorf("Expected paid active assembly, got %+v", a)
	}
	if balance := testutil.GetTestBalance(t, s.db, s.orgID); balance != 7 {
		t.Errorf("Expected balance 7 after charging 3 units, got %d", balance)
	}

	// Activating again is an illegal transition and charges nothing
	w = s.do(h.SetAssemblyState, testutil.MakeRequest("POST", "/assemblies/"+assemblyID+"/state", body, s.admin(t)), "id", assemblyID)
	testutil.AssertStatus(t, w, http.StatusConflict)
	if balance := testutil.GetTestBalance(t, s.db, s.orgID); balance != 7 {
		t.Errorf("Expected balance to stay 7, got %d", balance)
	}
}

func TestSetAssemblyState_InsufficientCredits(t *testing.T) {
	s := newTestServer(t)
	h := NewAssemblyHandler(s.svc)
	s.seedBuilding(t)
	testutil.SetTestBalance(t, s.db, s.orgID, 2)
	assemblyID := testutil.CreateTestAssembly(t, s.db, s.orgID, models.AssemblyDraft, false)

	body := models.AssemblyStateRequest{Action: models.ActionActivate}
	w := s.do(h.SetAssemblyState, testutil.MakeRequest("POST", "/assemblies/"+assemblyID+"/state", body, s.admin(t)), "id", assemblyID)
	testutil.AssertStatus(t, w, http.StatusPaymentRequired)

	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Code != apperr.CodeInsufficientCredits {
		t.Errorf("Expected InsufficientCredits, got %s", resp.Code)
	}
	if resp.Required == nil || *resp.Required != 3 || resp.Available == nil || *resp.Available != 2 {
		t.Errorf("Expected required 3 and available 2, got %v / %v", resp.Required, resp.Available)
	}
}

func TestSetAssemblyState_UnknownAction(t *testing.T) {
	s := newTestServer(t)
	h := NewAssemblyHandler(s.svc)
	assemblyID := testutil.CreateTestAssembly(t, s.db, s.orgID, models.AssemblyDraft, false)

	body := map[string]string{"action": "explode"}
	w := s.do(h.SetAssemblyState, testutil.MakeRequest("POST", "/assemblies/"+assemblyID+"/state", body, s.admin(t)), "id", assemblyID)
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestCreateAndListQuestions(t *testing.T) {
	s := newTestServer(t)
	h := NewAssemblyHandler(s.svc)
	assemblyID := testutil.CreateTestAssembly(t, s.db, s.orgID, models.AssemblyDraft, false)

	threshold := 66.0
	body := models.CreateQuestionRequest{
		Text:      "Approve the facade repair budget?",
		Mode:      models.ModeCoefficient,
		Threshold: &threshold,
		Options:   []models.CreateOptionRequest{{Text: "Yes", Color: "#2e7d32"}, {Text: "No", Color: "#c62828"}},
	}
	w := s.do(h.CreateQuestion, testutil.MakeRequest("POST", "/assemblies/"+assemblyID+"/questions", body, s.admin(t)), "id", assemblyID)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var q models.Question
	testutil.AssertJSON(t, w, &q)
	if q.State != models.QuestionPending || len(q.Options) != 2 || q.Position != 1 {
		t.Errorf("Unexpected question: %+v", q)
	}
	if q.Threshold == nil || *q.Threshold != 66 {
		t.Errorf("Expected threshold 66, got %v", q.Threshold)
	}

	// One option is not a question
	body.Options = body.Options[:1]
	w = s.do(h.CreateQuestion, testutil.MakeRequest("POST", "/assemblies/"+assemblyID+"/questions", body, s.admin(t)), "id", assemblyID)
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = s.do(h.ListQuestions, testutil.MakeRequest("GET", "/assemblies/"+assemblyID+"/questions", nil, s.voter(t, "ana@example.com")), "id", assemblyID)
	testutil.AssertStatus(t, w, http.StatusOK)

	var questions []models.Question
	testutil.AssertJSON(t, w, &questions)
	if len(questions) != 1 || questions[0].ID != q.ID {
		t.Errorf("Expected the created question, got %+v", questions)
	}
}

func TestSetQuestionState(t *testing.T) {
	s := newTestServer(t)
	h := NewAssemblyHandler(s.svc)
	assemblyID := testutil.CreateTestAssembly(t, s.db, s.orgID, models.AssemblyActive, false)
	questionID, _ := testutil.CreateTestQuestion(t, s.db, assemblyID, models.QuestionPending, "", "Yes", "No")

	steps := []struct {
		state          string
		expectedStatus int
	}{
		{models.QuestionOpen, http.StatusOK},
		{models.QuestionClosed, http.StatusOK},
		{models.QuestionOpen, http.StatusOK},
		{models.QuestionPending, http.StatusConflict},
		{"voting", http.StatusBadRequest},
	}

	for _, step := range steps {
		body := models.QuestionStateRequest{State: step.state}
		w := s.do(h.SetQuestionState, testutil.MakeRequest("POST", "/questions/"+questionID+"/state", body, s.admin(t)), "id", questionID)
		testutil.AssertStatus(t, w, step.expectedStatus)
	}
}

func TestSetQuestionState_DraftAssembly(t *testing.T) {
	s := newTestServer(t)
	h := NewAssemblyHandler(s.svc)
	assemblyID := testutil.CreateTestAssembly(t, s.db, s.orgID, models.AssemblyDraft, false)
	questionID, _ := testutil.CreateTestQuestion(t, s.db, assemblyID, models.QuestionPending, "", "Yes", "No")

	body := models.QuestionStateRequest{State: models.QuestionOpen}
	w := s.do(h.SetQuestionState, testutil.MakeRequest("POST", "/questions/"+questionID+"/state", body, s.admin(t)), "id", questionID)
	testutil.AssertStatus(t, w, http.StatusConflict)
	if code := errorCode(t, w); code != apperr.CodeAssemblyNotActive {
		t.Errorf("Expected AssemblyNotActive, got %s", code)
	}
}

func TestArchiveQuestion(t *testing.T) {
	s := newTestServer(t)
	h := NewAssemblyHandler(s.svc)
	assemblyID := testutil.CreateTestAssembly(t, s.db, s.orgID, models.AssemblyDraft, false)
	questionID, _ := testutil.CreateTestQuestion(t, s.db, assemblyID, models.QuestionPending, "", "Yes", "No")

	body := models.ArchiveQuestionRequest{Archived: true}
	w := s.do(h.ArchiveQuestion, testutil.MakeRequest("POST", "/questions/"+questionID+"/archive", body, s.admin(t)), "id", questionID)
	testutil.AssertStatus(t, w, http.StatusOK)

	var q models.Question
	testutil.AssertJSON(t, w, &q)
	if !q.Archived {
		t.Error("Expected question to be archived")
	}
}

func TestMinutes(t *testing.T) {
	s := newTestServer(t)
	h := NewAssemblyHandler(s.svc)
	units := s.seedBuilding(t)
	assemblyID := testutil.CreateTestAssembly(t, s.db, s.orgID, models.AssemblyActive, false)
	questionID, options := testutil.CreateTestQuestion(t, s.db, assemblyID, models.QuestionOpen, "", "Yes", "No")
	testutil.InsertTestVote(t, s.db, questionID, units[0], options[0])

	body := models.AssemblyStateRequest{Action: models.ActionFinalize}
	w := s.do(h.SetAssemblyState, testutil.MakeRequest("POST", "/assemblies/"+assemblyID+"/state", body, s.admin(t)), "id", assemblyID)
	testutil.AssertStatus(t, w, http.StatusOK)

	w = s.do(h.Minutes, testutil.MakeRequest("GET", "/assemblies/"+assemblyID+"/minutes", nil, s.admin(t)), "id", assemblyID)
	testutil.AssertStatus(t, w, http.StatusOK)

	var minutes models.MinutesResponse
	testutil.AssertJSON(t, w, &minutes)
	if minutes.Assembly.State != models.AssemblyFinalized {
		t.Errorf("Expected finalized assembly, got %s", minutes.Assembly.State)
	}
	if len(minutes.Snapshots) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(minutes.Snapshots))
	}
	res := minutes.Snapshots[0].Results
	if res.VotersCount != 1 || res.VotersCoefficient != 50 {
		t.Errorf("Expected the 50%% unit's vote in the snapshot, got %+v", res)
	}
}
