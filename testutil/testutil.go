// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/quorum/auth"
	"github.com/danielhkuo/quorum/cliparse"
	"github.com/danielhkuo/quorum/db"
	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/policy"
)

// SetupTestDB opens a fresh SQLite database in the test's temp dir with the
// full schema applied.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "quorum.db")
	conn, err := db.Open(context.Background(), db.DriverSQLite, path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(context.Background(), conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  "file::memory:",
		DatabaseType: db.DriverSQLite,
		JWTSecret:    "test-jwt-secret",
		IPHashSalt:   "test-ip-salt",
		Policy:       policy.Default(),
	}
}

// CreateTestOrg inserts an organization and returns its ID
func CreateTestOrg(t *testing.T, conn *sql.DB) string {
	t.Helper()

	orgID := auth.NewID()
	_, err := conn.Exec(`
		INSERT INTO organization (id, name, created_at)
		VALUES ($1, $2, $3)
	`, orgID, "Test Towers", time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test organization: %v", err)
	}
	return orgID
}

// TestUnit describes a unit fixture. Email and Phone are raw owner handles.
type TestUnit struct {
	Tower       string
	Number      string
	Coefficient float64
	Name        string
	Email       string
	Phone       string
	IsDemo      bool
}

// AddTestUnit inserts a unit and returns its ID
func AddTestUnit(t *testing.T, conn *sql.DB, orgID string, u TestUnit) string {
	t.Helper()

	var emailNorm, phoneNorm string
	if u.Email != "" {
		emailNorm, _ = auth.NormalizeHandle(u.Email)
	}
	if u.Phone != "" {
		phoneNorm, _ = auth.NormalizeHandle(u.Phone)
	}

	unitID := auth.NewID()
	_, err := conn.Exec(`
		INSERT INTO unit (id, organization_id, tower, number, coefficient, owner_name,
			owner_email, owner_phone, owner_email_norm, owner_phone_norm, is_demo, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, unitID, orgID, u.Tower, u.Number, u.Coefficient, u.Name,
		u.Email, u.Phone, emailNorm, phoneNorm, u.IsDemo, true, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test unit: %v", err)
	}
	return unitID
}

// CreateTestAssembly creates an assembly and returns its ID.
// state should be "draft", "active", or "finalized"; active and finalized
// assemblies are marked paid and activated now.
func CreateTestAssembly(t *testing.T, conn *sql.DB, orgID, state string, isDemo bool) string {
	t.Helper()

	now := time.Now().UTC()
	var activatedAt, finalizedAt *time.Time
	paid := false
	if state == models.AssemblyActive || state == models.AssemblyFinalized {
		activatedAt = &now
		paid = true
	}
	if state == models.AssemblyFinalized {
		finalizedAt = &now
	}

	assemblyID := auth.NewID()
	_, err := conn.Exec(`
		INSERT INTO assembly (id, organization_id, title, state, is_demo, paid,
			activated_at, finalized_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, assemblyID, orgID, "Test Assembly", state, isDemo, paid, activatedAt, finalizedAt, now, now)
	if err != nil {
		t.Fatalf("Failed to create test assembly: %v", err)
	}
	return assemblyID
}

// SetActivatedAt moves an assembly's activation time
func SetActivatedAt(t *testing.T, conn *sql.DB, assemblyID string, at time.Time) {
	t.Helper()

	_, err := conn.Exec(`UPDATE assembly SET activated_at = $1 WHERE id = $2`, at.UTC(), assemblyID)
	if err != nil {
		t.Fatalf("Failed to set activated_at: %v", err)
	}
}

// CreateTestQuestion adds a question with the given options and returns the
// question ID and option IDs in order. mode may be empty for coefficient.
func CreateTestQuestion(t *testing.T, conn *sql.DB, assemblyID, state, mode string, options ...string) (string, []string) {
	t.Helper()

	if mode == "" {
		mode = models.ModeCoefficient
	}

	now := time.Now().UTC()
	var openedAt *time.Time
	if state != models.QuestionPending {
		openedAt = &now
	}

	questionID := auth.NewID()
	_, err := conn.Exec(`
		INSERT INTO question (id, assembly_id, text, state, mode, position, opened_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, questionID, assemblyID, "Approve the budget?", state, mode, 1, openedAt, now)
	if err != nil {
		t.Fatalf("Failed to create test question: %v", err)
	}

	optionIDs := make([]string, 0, len(options))
	for i, label := range options {
		optionID := auth.NewID()
		_, err := conn.Exec(`
			INSERT INTO question_option (id, question_id, text, color, position)
			VALUES ($1, $2, $3, $4, $5)
		`, optionID, questionID, label, "", i+1)
		if err != nil {
			t.Fatalf("Failed to create test option: %v", err)
		}
		optionIDs = append(optionIDs, optionID)
	}
	return questionID, optionIDs
}

// InsertTestVote records a vote directly, bypassing eligibility
func InsertTestVote(t *testing.T, conn *sql.DB, questionID, unitID, optionID string) {
	t.Helper()

	now := time.Now().UTC()
	_, err := conn.Exec(`
		INSERT INTO vote (question_id, unit_id, option_id, actor_handle, via_proxy, cast_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, questionID, unitID, optionID, "fixture@example.com", false, now, now)
	if err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}
}

// CreateTestPower grants a proxy directly and returns its ID
func CreateTestPower(t *testing.T, conn *sql.DB, orgID, assemblyID, grantorUnitID, receiver string) string {
	t.Helper()

	norm, err := auth.NormalizeHandle(receiver)
	if err != nil {
		t.Fatalf("Invalid receiver handle %q: %v", receiver, err)
	}

	powerID := auth.NewID()
	_, err = conn.Exec(`
		INSERT INTO power_of_attorney (id, organization_id, assembly_id, grantor_unit_id,
			receiver_handle, receiver_handle_norm, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, powerID, orgID, assemblyID, grantorUnitID, receiver, norm, models.PowerActive, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test power: %v", err)
	}
	return powerID
}

// SetTestBalance sets an organization's credit balance
func SetTestBalance(t *testing.T, conn *sql.DB, orgID string, balance int64) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO credit_ledger (organization_id, balance, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id) DO UPDATE SET balance = excluded.balance
	`, orgID, balance, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to set test balance: %v", err)
	}
}

// GetTestBalance reads an organization's credit balance
func GetTestBalance(t *testing.T, conn *sql.DB, orgID string) int64 {
	t.Helper()

	var balance int64
	err := conn.QueryRow(`SELECT balance FROM credit_ledger WHERE organization_id = $1`, orgID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0
	}
	if err != nil {
		t.Fatalf("Failed to read balance: %v", err)
	}
	return balance
}

// Token issues a session token for the given scope
func Token(t *testing.T, cfg cliparse.Config, orgID, role, handle string) string {
	t.Helper()

	token, err := auth.IssueToken(cfg.JWTSecret, auth.Claims{
		OrganizationID: orgID,
		Role:           role,
		Handle:         handle,
	}, time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

// BearerHeaders returns request headers carrying token
func BearerHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
