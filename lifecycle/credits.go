// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/danielhkuo/quorum/apperr"
	"github.com/danielhkuo/quorum/auth"
	"github.com/danielhkuo/quorum/db"
	"github.com/danielhkuo/quorum/metrics"
	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/registry"
)

func balance(ctx context.Context, q db.Querier, orgID string) (int64, error) {
	var b int64
	err := q.QueryRowContext(ctx, `
		SELECT balance FROM credit_ledger WHERE organization_id = $1
	`, orgID).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query balance: %w", err)
	}
	return b, nil
}

// debit takes cost credits from the organization in one conditional update,
// so two concurrent debits can never drive the balance below zero.
func debit(ctx context.Context, tx *sql.Tx, orgID, assemblyID, kind string, cost int64, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE credit_ledger SET balance = balance - $1, updated_at = $2
		WHERE organization_id = $3 AND balance >= $4
	`, cost, now, orgID, cost)
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		available, err := balance(ctx, tx, orgID)
		if err != nil {
			return err
		}
		return apperr.InsufficientCredits(cost, available)
	}

	after, err := balance(ctx, tx, orgID)
	if err != nil {
		return err
	}
	if err := recordTransaction(ctx, tx, orgID, &assemblyID, kind, -cost, after, now); err != nil {
		return err
	}

	metrics.CreditsDebited.WithLabelValues(kind).Add(float64(cost))
	return nil
}

func recordTransaction(ctx context.Context, tx *sql.Tx, orgID string, assemblyID *string, kind string, amount, after int64, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transaction (id, organization_id, assembly_id, kind, amount, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, auth.NewID(), orgID, assemblyID, kind, amount, after, now)
	if err != nil {
		return fmt.Errorf("failed to record credit transaction: %w", err)
	}
	return nil
}

// Balance returns the organization's credit balance.
func (g *Gate) Balance(ctx context.Context, orgID string) (int64, error) {
	b, err := balance(ctx, g.db, orgID)
	return b, db.Classify(err)
}

// TopUp adds credits and returns the new balance.
func (g *Gate) TopUp(ctx context.Context, orgID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperr.Validation(apperr.CodeInvalidInput, "top-up amount must be positive")
	}

	var after int64
	now := g.clock.Now()
	err := db.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		if err := registry.EnsureOrganization(ctx, tx, orgID, now); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO credit_ledger (organization_id, balance, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (organization_id) DO UPDATE
			SET balance = credit_ledger.balance + excluded.balance, updated_at = excluded.updated_at
		`, orgID, amount, now)
		if err != nil {
			return fmt.Errorf("failed to credit balance: %w", err)
		}

		after, err = balance(ctx, tx, orgID)
		if err != nil {
			return err
		}
		return recordTransaction(ctx, tx, orgID, nil, models.CreditTopUp, amount, after, now)
	})
	if err != nil {
		return 0, err
	}

	slog.Info("credits topped up", "org_id", orgID, "amount", amount, "balance", after)
	return after, nil
}

// Credits returns the balance and the transaction history, newest first.
func (g *Gate) Credits(ctx context.Context, orgID string) (models.CreditsResponse, error) {
	b, err := g.Balance(ctx, orgID)
	if err != nil {
		return models.CreditsResponse{}, err
	}

	rows, err := g.db.QueryContext(ctx, `
		SELECT id, organization_id, assembly_id, kind, amount, balance_after, created_at
		FROM credit_transaction
		WHERE organization_id = $1
	`, orgID)
	if err != nil {
		return models.CreditsResponse{}, db.Classify(fmt.Errorf("failed to query transactions: %w", err))
	}
	defer rows.Close()

	resp := models.CreditsResponse{Balance: b, Transactions: []models.CreditTransaction{}}
	for rows.Next() {
		var tr models.CreditTransaction
		if err := rows.Scan(&tr.ID, &tr.OrganizationID, &tr.AssemblyID, &tr.Kind, &tr.Amount, &tr.BalanceAfter, &tr.CreatedAt); err != nil {
			return models.CreditsResponse{}, fmt.Errorf("failed to scan transaction: %w", err)
		}
		resp.Transactions = append(resp.Transactions, tr)
	}
	if err := rows.Err(); err != nil {
		return models.CreditsResponse{}, err
	}

	sortTransactions(resp.Transactions)
	return resp, nil
}

func sortTransactions(txs []models.CreditTransaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}
