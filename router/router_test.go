// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/quorum/clock"
	"github.com/danielhkuo/quorum/handlers"
	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/testutil"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	return NewRouter(handlers.NewServices(db, cfg, nil, clock.Real()), cfg)
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux := newTestMux(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "quorum API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/polls", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown path, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := newTestMux(t)

	// Generate at least one observation
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/credits", nil))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "quorum_http_request_duration_seconds") {
		t.Error("Expected request duration histogram in metrics output")
	}
}

func TestRoutesRequireSession(t *testing.T) {
	mux := newTestMux(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/units"},
		{"GET", "/units"},
		{"DELETE", "/units/u1"},
		{"POST", "/assemblies"},
		{"GET", "/assemblies/a1"},
		{"POST", "/assemblies/a1/state"},
		{"GET", "/assemblies/a1/questions"},
		{"POST", "/assemblies/a1/questions"},
		{"POST", "/questions/q1/state"},
		{"POST", "/questions/q1/archive"},
		{"GET", "/assemblies/a1/minutes"},
		{"GET", "/assemblies/a1/eligibility"},
		{"POST", "/questions/q1/votes"},
		{"GET", "/questions/q1/votes"},
		{"POST", "/assemblies/a1/attendance"},
		{"GET", "/assemblies/a1/participation"},
		{"GET", "/questions/q1/results"},
		{"GET", "/assemblies/a1/attendance"},
		{"GET", "/assemblies/a1/powers"},
		{"POST", "/assemblies/a1/powers"},
		{"POST", "/powers/p1/revoke"},
		{"GET", "/credits"},
		{"POST", "/credits/topup"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401 without a session, got %d", w.Code)
			}
		})
	}
}

func TestRoleEnforcement(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	mux := NewRouter(handlers.NewServices(db, cfg, nil, clock.Real()), cfg)
	orgID := testutil.CreateTestOrg(t, db)

	tokens := map[string]map[string]string{}
	for _, role := range []string{models.RoleAdmin, models.RoleVoter, models.RoleBilling} {
		tokens[role] = testutil.BearerHeaders(testutil.Token(t, cfg, orgID, role, "ana@example.com"))
	}

	testCases := []struct {
		name   string
		method string
		path   string
		role   string
		denied bool
	}{
		{"voter cannot import units", "POST", "/units", models.RoleVoter, true},
		{"voter cannot top up", "POST", "/credits/topup", models.RoleVoter, true},
		{"admin cannot top up", "POST", "/credits/topup", models.RoleAdmin, true},
		{"billing cannot vote", "POST", "/questions/q1/votes", models.RoleBilling, true},
		{"admin cannot vote", "POST", "/questions/q1/votes", models.RoleAdmin, true},
		{"voter reads participation", "GET", "/assemblies/a1/participation", models.RoleVoter, false},
		{"billing reads credits", "GET", "/credits", models.RoleBilling, true},
		{"admin reads credits", "GET", "/credits", models.RoleAdmin, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, testutil.MakeRequest(tc.method, tc.path, nil, tokens[tc.role]))

			if tc.denied && w.Code != http.StatusForbidden {
				t.Errorf("Expected 403, got %d", w.Code)
			}
			if !tc.denied && (w.Code == http.StatusForbidden || w.Code == http.StatusUnauthorized) {
				t.Errorf("Expected role to be allowed, got %d", w.Code)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestMux(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},          // Only GET is defined
		{"PUT", "/assemblies/a1"},    // Only GET is defined
		{"DELETE", "/credits"},       // GET only
		{"GET", "/powers/p1/revoke"}, // POST only
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestPathParameterExtraction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	mux := NewRouter(handlers.NewServices(db, cfg, nil, clock.Real()), cfg)

	orgID := testutil.CreateTestOrg(t, db)
	assemblyID := testutil.CreateTestAssembly(t, db, orgID, models.AssemblyDraft, false)
	headers := testutil.BearerHeaders(testutil.Token(t, cfg, orgID, models.RoleAdmin, ""))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", "/assemblies/"+assemblyID, nil, headers))
	testutil.AssertStatus(t, w, http.StatusOK)

	var a models.Assembly
	testutil.AssertJSON(t, w, &a)
	if a.ID != assemblyID {
		t.Errorf("Expected assembly %s, got %s", assemblyID, a.ID)
	}
}
