// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/quorum/apperr"
	"github.com/danielhkuo/quorum/auth"
	"github.com/danielhkuo/quorum/clock"
	"github.com/danielhkuo/quorum/db"
	"github.com/danielhkuo/quorum/metrics"
	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/policy"
	"github.com/danielhkuo/quorum/registry"
	"github.com/danielhkuo/quorum/tally"
)

// Gate owns the assembly state machine and the credits that pay for it.
type Gate struct {
	db     *sql.DB
	policy policy.Policy
	clock  clock.Clock
	tally  *tally.Service
}

func NewGate(db *sql.DB, p policy.Policy, c clock.Clock, t *tally.Service) *Gate {
	return &Gate{db: db, policy: p, clock: c, tally: t}
}

func transitionResult(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		if e, ok := apperr.As(err); ok {
			result = e.Code
		}
	}
	metrics.LifecycleTransitions.WithLabelValues(action, result).Inc()
}

// CreateAssembly starts a draft assembly.
func (g *Gate) CreateAssembly(ctx context.Context, orgID string, req models.CreateAssemblyRequest) (models.Assembly, error) {
	now := g.clock.Now()
	a := models.Assembly{
		ID:             auth.NewID(),
		OrganizationID: orgID,
		Title:          req.Title,
		State:          models.AssemblyDraft,
		IsDemo:         req.IsDemo,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := db.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		if err := registry.EnsureOrganization(ctx, tx, orgID, now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO assembly (id, organization_id, title, state, is_demo, paid, reopen_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, a.ID, orgID, a.Title, a.State, a.IsDemo, false, 0, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert assembly: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Assembly{}, err
	}

	slog.Info("assembly created", "org_id", orgID, "assembly_id", a.ID, "is_demo", a.IsDemo)
	return a, nil
}

// Load returns an assembly, finalizing it first if its active window has
// run out. Every reader that can act on the assembly goes through Load, so
// an expired assembly is never seen as active.
func (g *Gate) Load(ctx context.Context, orgID, assemblyID string) (models.Assembly, error) {
	a, err := registry.GetAssembly(ctx, g.db, orgID, assemblyID)
	if err != nil {
		return a, db.Classify(err)
	}
	if !g.policy.AutoFinalizeDue(a, g.clock.Now()) {
		return a, nil
	}

	finalized, err := g.finalize(ctx, orgID, assemblyID)
	transitionResult("auto_finalize", err)
	if apperr.HasCode(err, apperr.CodeIllegalTransition) {
		// Someone else finalized it first
		a, err = registry.GetAssembly(ctx, g.db, orgID, assemblyID)
		return a, db.Classify(err)
	}
	if err != nil {
		return models.Assembly{}, err
	}

	slog.Info("assembly auto-finalized", "org_id", orgID, "assembly_id", assemblyID)
	return finalized, nil
}

// SetAssemblyState applies one lifecycle action.
func (g *Gate) SetAssemblyState(ctx context.Context, orgID, assemblyID, action string) (models.Assembly, error) {
	switch action {
	case models.ActionActivate:
		return g.Activate(ctx, orgID, assemblyID)
	case models.ActionFinalize:
		return g.Finalize(ctx, orgID, assemblyID)
	case models.ActionReopen:
		return g.Reopen(ctx, orgID, assemblyID)
	case models.ActionResetDemo:
		return g.ResetDemo(ctx, orgID, assemblyID)
	default:
		return models.Assembly{}, apperr.Validation(apperr.CodeInvalidInput, "unknown action "+action)
	}
}

// Activate moves a draft assembly to active and charges one credit per unit
// in its universe. The state change and the debit commit together; with too
// few credits neither happens.
func (g *Gate) Activate(ctx context.Context, orgID, assemblyID string) (models.Assembly, error) {
	var out models.Assembly
	var cost int64

	err := db.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		a, err := registry.GetAssembly(ctx, tx, orgID, assemblyID)
		if err != nil {
			return err
		}
		if a.State != models.AssemblyDraft {
			return apperr.InvalidState(apperr.CodeIllegalTransition, "assembly is "+a.State+", activate requires draft")
		}

		total, err := registry.CountUniverse(ctx, tx, orgID, a.IsDemo)
		if err != nil {
			return err
		}
		if total == 0 {
			return apperr.Validation(apperr.CodeNoUnits, "assembly universe has no units")
		}

		now := g.clock.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE assembly SET state = $1, paid = $2, activated_at = $3, updated_at = $4
			WHERE id = $5 AND state = $6
		`, models.AssemblyActive, true, now, now, assemblyID, models.AssemblyDraft)
		if err != nil {
			return fmt.Errorf("failed to activate assembly: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.InvalidState(apperr.CodeIllegalTransition, "assembly is no longer draft")
		}

		if !a.Paid {
			cost = g.policy.ActivationCost(total)
			if err := debit(ctx, tx, orgID, assemblyID, models.CreditActivation, cost, now); err != nil {
				return err
			}
		}

		out, err = registry.GetAssembly(ctx, tx, orgID, assemblyID)
		return err
	})
	transitionResult(models.ActionActivate, err)
	if err != nil {
		return models.Assembly{}, err
	}

	slog.Info("assembly activated", "org_id", orgID, "assembly_id", assemblyID, "cost", cost)
	return out, nil
}

// Finalize closes all open questions, snapshots every non-archived question
// and freezes the assembly.
func (g *Gate) Finalize(ctx context.Context, orgID, assemblyID string) (models.Assembly, error) {
	a, err := g.finalize(ctx, orgID, assemblyID)
	transitionResult(models.ActionFinalize, err)
	if err != nil {
		return models.Assembly{}, err
	}
	slog.Info("assembly finalized", "org_id", orgID, "assembly_id", assemblyID)
	return a, nil
}

func (g *Gate) finalize(ctx context.Context, orgID, assemblyID string) (models.Assembly, error) {
	var out models.Assembly
	err := db.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		now := g.clock.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE assembly SET state = $1, finalized_at = $2, updated_at = $3
			WHERE id = $4 AND organization_id = $5 AND state = $6
		`, models.AssemblyFinalized, now, now, assemblyID, orgID, models.AssemblyActive)
		if err != nil {
			return fmt.Errorf("failed to finalize assembly: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			a, err := registry.GetAssembly(ctx, tx, orgID, assemblyID)
			if err != nil {
				return err
			}
			return apperr.InvalidState(apperr.CodeIllegalTransition, "assembly is "+a.State+", finalize requires active")
		}

		questions, err := registry.ListQuestions(ctx, tx, assemblyID)
		if err != nil {
			return err
		}
		for _, q := range questions {
			if q.Archived {
				continue
			}
			// Closes open questions and locks the rest before snapshotting
			_, err := tx.ExecContext(ctx, `
				UPDATE question SET
					state = CASE WHEN state = $1 THEN $2 ELSE state END,
					closed_at = CASE WHEN state = $1 THEN $3 ELSE closed_at END
				WHERE id = $4
			`, models.QuestionOpen, models.QuestionClosed, now, q.ID)
			if err != nil {
				return fmt.Errorf("failed to close question: %w", err)
			}
			if _, err := g.tally.SnapshotQuestion(ctx, tx, orgID, q.ID, now); err != nil {
				return err
			}
		}

		out, err = registry.GetAssembly(ctx, tx, orgID, assemblyID)
		return err
	})
	if err != nil {
		return models.Assembly{}, err
	}

	if err := g.tally.InvalidateAssembly(ctx, orgID, assemblyID); err != nil {
		slog.Warn("failed to invalidate results cache", "assembly_id", assemblyID, "error", err)
	}
	return out, nil
}

// Reopen returns a finalized assembly to active for a reduced fee and
// restarts its auto-finalize window. Structure stays frozen.
func (g *Gate) Reopen(ctx context.Context, orgID, assemblyID string) (models.Assembly, error) {
	var out models.Assembly
	var cost int64

	err := db.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		a, err := registry.GetAssembly(ctx, tx, orgID, assemblyID)
		if err != nil {
			return err
		}
		if a.State != models.AssemblyFinalized {
			return apperr.InvalidState(apperr.CodeIllegalTransition, "assembly is "+a.State+", reopen requires finalized")
		}

		total, err := registry.CountUniverse(ctx, tx, orgID, a.IsDemo)
		if err != nil {
			return err
		}

		now := g.clock.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE assembly
			SET state = $1, activated_at = $2, finalized_at = NULL, reopen_count = reopen_count + 1, updated_at = $3
			WHERE id = $4 AND state = $5
		`, models.AssemblyActive, now, now, assemblyID, models.AssemblyFinalized)
		if err != nil {
			return fmt.Errorf("failed to reopen assembly: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.InvalidState(apperr.CodeIllegalTransition, "assembly is no longer finalized")
		}

		cost = g.policy.ReopenCost(g.policy.ActivationCost(total))
		if err := debit(ctx, tx, orgID, assemblyID, models.CreditReopen, cost, now); err != nil {
			return err
		}

		out, err = registry.GetAssembly(ctx, tx, orgID, assemblyID)
		return err
	})
	transitionResult(models.ActionReopen, err)
	if err != nil {
		return models.Assembly{}, err
	}

	slog.Info("assembly reopened", "org_id", orgID, "assembly_id", assemblyID, "cost", cost)
	return out, nil
}

// ResetDemo wipes votes, attendance and snapshots of a demo assembly and
// sends its questions back to pending. The assembly state is kept.
func (g *Gate) ResetDemo(ctx context.Context, orgID, assemblyID string) (models.Assembly, error) {
	var out models.Assembly

	err := db.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		a, err := registry.GetAssembly(ctx, tx, orgID, assemblyID)
		if err != nil {
			return err
		}
		if !a.IsDemo {
			return apperr.InvalidState(apperr.CodeIllegalTransition, "only demo assemblies can be reset")
		}

		stmts := []string{
			`DELETE FROM vote WHERE question_id IN (SELECT id FROM question WHERE assembly_id = $1)`,
			`DELETE FROM vote_audit WHERE question_id IN (SELECT id FROM question WHERE assembly_id = $1)`,
			`DELETE FROM result_snapshot WHERE assembly_id = $1`,
			`DELETE FROM attendance WHERE assembly_id = $1`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, assemblyID); err != nil {
				return fmt.Errorf("failed to reset demo: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE question SET state = $1, opened_at = NULL, closed_at = NULL WHERE assembly_id = $2
		`, models.QuestionPending, assemblyID)
		if err != nil {
			return fmt.Errorf("failed to reset questions: %w", err)
		}

		out = a
		return nil
	})
	transitionResult(models.ActionResetDemo, err)
	if err != nil {
		return models.Assembly{}, err
	}

	if err := g.tally.InvalidateAssembly(ctx, orgID, assemblyID); err != nil {
		slog.Warn("failed to invalidate results cache", "assembly_id", assemblyID, "error", err)
	}
	slog.Info("demo assembly reset", "org_id", orgID, "assembly_id", assemblyID)
	return out, nil
}

// FinalizeExpired finalizes every active assembly past its window and
// returns how many it finalized. Lazy finalization in Load covers the same
// ground; this catches assemblies nobody reads.
func (g *Gate) FinalizeExpired(ctx context.Context) (int, error) {
	active, err := registry.ListActiveAssemblies(ctx, g.db)
	if err != nil {
		return 0, db.Classify(err)
	}

	now := g.clock.Now()
	finalized := 0
	for _, a := range active {
		if !g.policy.AutoFinalizeDue(a, now) {
			continue
		}
		_, err := g.finalize(ctx, a.OrganizationID, a.ID)
		transitionResult("auto_finalize", err)
		if apperr.HasCode(err, apperr.CodeIllegalTransition) {
			continue
		}
		if err != nil {
			return finalized, err
		}
		finalized++
		slog.Info("assembly auto-finalized", "org_id", a.OrganizationID, "assembly_id", a.ID)
	}
	return finalized, nil
}

// ensureStructureEditable is the gate for question edits.
func (g *Gate) ensureStructureEditable(a models.Assembly, now time.Time) error {
	if g.policy.StructureEditable(a, now) {
		return nil
	}
	return apperr.InvalidState(apperr.CodeStructureFrozen, "questions can no longer be edited in this assembly")
}
