// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"testing"

	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/testutil"
)

func TestCredits(t *testing.T) {
	s := newTestServer(t)
	h := NewCreditHandler(s.svc)
	billing := testutil.BearerHeaders(testutil.Token(t, s.cfg, s.orgID, models.RoleBilling, ""))

	w := s.do(h.GetCredits, testutil.MakeRequest("GET", "/credits", nil, s.admin(t)))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.CreditsResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Balance != 0 || len(resp.Transactions) != 0 {
		t.Errorf("Expected empty ledger, got %+v", resp)
	}

	w = s.do(h.TopUp, testutil.MakeRequest("POST", "/credits/topup", models.TopUpRequest{Amount: 120}, billing))
	testutil.AssertStatus(t, w, http.StatusOK)
	w = s.do(h.TopUp, testutil.MakeRequest("POST", "/credits/topup", models.TopUpRequest{Amount: 30}, billing))
	testutil.AssertStatus(t, w, http.StatusOK)

	testutil.AssertJSON(t, w, &resp)
	if resp.Balance != 150 {
		t.Errorf("Expected balance 150, got %d", resp.Balance)
	}
	if len(resp.Transactions) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(resp.Transactions))
	}
	for _, tr := range resp.Transactions {
		if tr.Kind != models.CreditTopUp || tr.Amount <= 0 {
			t.Errorf("Expected positive top-up, got %+v", tr)
		}
	}
}

func TestTopUp_Validation(t *testing.T) {
	s := newTestServer(t)
	h := NewCreditHandler(s.svc)
	billing := testutil.BearerHeaders(testutil.Token(t, s.cfg, s.orgID, models.RoleBilling, ""))

	for _, amount := range []int64{0, -5} {
		w := s.do(h.TopUp, testutil.MakeRequest("POST", "/credits/topup", models.TopUpRequest{Amount: amount}, billing))
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	}
	if balance := testutil.GetTestBalance(t, s.db, s.orgID); balance != 0 {
		t.Errorf("Expected balance to stay 0, got %d", balance)
	}
}
