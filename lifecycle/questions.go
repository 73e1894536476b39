// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/quorum/apperr"
	"github.com/danielhkuo/quorum/auth"
	"github.com/danielhkuo/quorum/db"
	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/registry"
)

// CreateQuestion appends a pending question with its options to the
// assembly.
func (g *Gate) CreateQuestion(ctx context.Context, orgID, assemblyID string, req models.CreateQuestionRequest) (models.Question, error) {
	if len(req.Options) < 2 {
		return models.Question{}, apperr.Validation(apperr.CodeInvalidInput, "a question needs at least two options")
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeCoefficient
	}
	if mode != models.ModeCoefficient && mode != models.ModeNominal {
		return models.Question{}, apperr.Validation(apperr.CodeInvalidInput, "unknown mode "+mode)
	}

	// Apply any pending auto-finalize before checking the window
	if _, err := g.Load(ctx, orgID, assemblyID); err != nil {
		return models.Question{}, err
	}

	questionID := auth.NewID()
	err := db.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		a, err := registry.GetAssembly(ctx, tx, orgID, assemblyID)
		if err != nil {
			return err
		}
		now := g.clock.Now()
		if err := g.ensureStructureEditable(a, now); err != nil {
			return err
		}

		var position int
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(position), 0) + 1 FROM question WHERE assembly_id = $1
		`, assemblyID).Scan(&position)
		if err != nil {
			return fmt.Errorf("failed to compute question position: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO question (id, assembly_id, text, state, mode, threshold, archived, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, questionID, assemblyID, req.Text, models.QuestionPending, mode, req.Threshold, false, position, now)
		if err != nil {
			return fmt.Errorf("failed to insert question: %w", err)
		}

		for i, opt := range req.Options {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO question_option (id, question_id, text, color, position)
				VALUES ($1, $2, $3, $4, $5)
			`, auth.NewID(), questionID, opt.Text, opt.Color, i+1)
			if err != nil {
				return fmt.Errorf("failed to insert option: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Question{}, err
	}

	slog.Info("question created", "assembly_id", assemblyID, "question_id", questionID, "options", len(req.Options))

	q, err := registry.GetQuestion(ctx, g.db, orgID, questionID)
	return q, db.Classify(err)
}

// ListQuestions returns the assembly's questions, archived ones included.
func (g *Gate) ListQuestions(ctx context.Context, orgID, assemblyID string) ([]models.Question, error) {
	if _, err := g.Load(ctx, orgID, assemblyID); err != nil {
		return nil, err
	}
	questions, err := registry.ListQuestions(ctx, g.db, assemblyID)
	return questions, db.Classify(err)
}

func questionTransitionAllowed(from, to string) bool {
	switch from {
	case models.QuestionPending:
		return to == models.QuestionOpen
	case models.QuestionOpen:
		return to == models.QuestionClosed
	case models.QuestionClosed:
		return to == models.QuestionOpen
	}
	return false
}

// SetQuestionState moves a question between pending, open and closed while
// its assembly is active. Closing writes a result snapshot in the same
// transaction. Asking for the current state is a no-op.
func (g *Gate) SetQuestionState(ctx context.Context, orgID, questionID, state string) (models.Question, error) {
	q, err := registry.GetQuestion(ctx, g.db, orgID, questionID)
	if err != nil {
		return models.Question{}, db.Classify(err)
	}
	a, err := g.Load(ctx, orgID, q.AssemblyID)
	if err != nil {
		return models.Question{}, err
	}
	if a.State != models.AssemblyActive {
		return models.Question{}, apperr.InvalidState(apperr.CodeAssemblyNotActive, "assembly is "+a.State)
	}
	if q.Archived {
		return models.Question{}, apperr.InvalidState(apperr.CodeIllegalTransition, "archived questions cannot change state")
	}
	if q.State == state {
		return q, nil
	}
	if !questionTransitionAllowed(q.State, state) {
		err := apperr.InvalidState(apperr.CodeIllegalTransition, "question cannot go from "+q.State+" to "+state)
		transitionResult("question_"+state, err)
		return models.Question{}, err
	}

	var out models.Question
	err = db.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		now := g.clock.Now()

		var res sql.Result
		var err error
		if state == models.QuestionOpen {
			res, err = tx.ExecContext(ctx, `
				UPDATE question SET state = $1, opened_at = $2, closed_at = NULL
				WHERE id = $3 AND state = $4 AND NOT archived
			`, state, now, questionID, q.State)
		} else {
			res, err = tx.ExecContext(ctx, `
				UPDATE question SET state = $1, closed_at = $2
				WHERE id = $3 AND state = $4 AND NOT archived
			`, state, now, questionID, q.State)
		}
		if err != nil {
			return fmt.Errorf("failed to update question state: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.InvalidState(apperr.CodeIllegalTransition, "question changed state concurrently")
		}

		if state == models.QuestionClosed {
			if _, err := g.tally.SnapshotQuestion(ctx, tx, orgID, questionID, now); err != nil {
				return err
			}
		}

		out, err = registry.GetQuestion(ctx, tx, orgID, questionID)
		return err
	})
	transitionResult("question_"+state, err)
	if err != nil {
		return models.Question{}, err
	}

	g.tally.Invalidate(ctx, orgID, q.AssemblyID, questionID)
	slog.Info("question state changed", "question_id", questionID, "from", q.State, "to", state)
	return out, nil
}

// ArchiveQuestion hides or restores a question. Archived questions drop out
// of participation and minutes but keep their votes. Open questions must be
// closed first.
func (g *Gate) ArchiveQuestion(ctx context.Context, orgID, questionID string, archived bool) (models.Question, error) {
	q, err := registry.GetQuestion(ctx, g.db, orgID, questionID)
	if err != nil {
		return models.Question{}, db.Classify(err)
	}
	a, err := g.Load(ctx, orgID, q.AssemblyID)
	if err != nil {
		return models.Question{}, err
	}
	if err := g.ensureStructureEditable(a, g.clock.Now()); err != nil {
		return models.Question{}, err
	}
	if q.Archived == archived {
		return q, nil
	}

	// Open questions are refused by the UPDATE, including one opened after
	// the read above.
	res, err := g.db.ExecContext(ctx, `
		UPDATE question SET archived = $1 WHERE id = $2 AND state <> $3
	`, archived, questionID, models.QuestionOpen)
	if err != nil {
		return models.Question{}, db.Classify(fmt.Errorf("failed to archive question: %w", err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Question{}, db.Classify(fmt.Errorf("failed to archive question: %w", err))
	} else if n == 0 {
		return models.Question{}, apperr.InvalidState(apperr.CodeIllegalTransition, "close the question before archiving it")
	}

	g.tally.Invalidate(ctx, orgID, q.AssemblyID, questionID)
	slog.Info("question archive flag changed", "question_id", questionID, "archived", archived)

	q, err = registry.GetQuestion(ctx, g.db, orgID, questionID)
	return q, db.Classify(err)
}
