// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/quorum/cliparse"
	"github.com/danielhkuo/quorum/clock"
	"github.com/danielhkuo/quorum/middleware"
	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/testutil"
)

type testServer struct {
	db    *sql.DB
	cfg   cliparse.Config
	svc   *Services
	orgID string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	return &testServer{
		db:    conn,
		cfg:   cfg,
		svc:   NewServices(conn, cfg, nil, clock.Real()),
		orgID: testutil.CreateTestOrg(t, conn),
	}
}

func (s *testServer) admin(t *testing.T) map[string]string {
	return testutil.BearerHeaders(testutil.Token(t, s.cfg, s.orgID, models.RoleAdmin, ""))
}

func (s *testServer) voter(t *testing.T, handle string) map[string]string {
	return testutil.BearerHeaders(testutil.Token(t, s.cfg, s.orgID, models.RoleVoter, handle))
}

// do runs handler behind session verification. pathValues alternate
// name and value, as the mux would set them.
func (s *testServer) do(handler http.HandlerFunc, req *http.Request, pathValues ...string) *httptest.ResponseRecorder {
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	w := httptest.NewRecorder()
	middleware.RequireRole(s.cfg.JWTSecret)(handler)(w, req)
	return w
}

// seedBuilding adds the 50/30/20 building used across handler tests.
func (s *testServer) seedBuilding(t *testing.T) []string {
	t.Helper()
	return []string{
		testutil.AddTestUnit(t, s.db, s.orgID, testutil.TestUnit{Tower: "A", Number: "101", Coefficient: 50, Name: "Ana", Email: "ana@example.com"}),
		testutil.AddTestUnit(t, s.db, s.orgID, testutil.TestUnit{Tower: "A", Number: "102", Coefficient: 30, Name: "Ben", Email: "ben@example.com"}),
		testutil.AddTestUnit(t, s.db, s.orgID, testutil.TestUnit{Tower: "A", Number: "103", Coefficient: 20, Name: "Caro", Phone: "+57 300 123 4567"}),
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	return resp.Code
}
