// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/quorum/apperr"
	"github.com/danielhkuo/quorum/db"
	"github.com/danielhkuo/quorum/models"
)

type scanner interface {
	Scan(dest ...any) error
}

const assemblyColumns = `id, organization_id, title, state, is_demo, paid, reopen_count,
	activated_at, finalized_at, created_at, updated_at`

func scanAssembly(row scanner) (models.Assembly, error) {
	var a models.Assembly
	err := row.Scan(
		&a.ID, &a.OrganizationID, &a.Title, &a.State, &a.IsDemo, &a.Paid, &a.ReopenCount,
		&a.ActivatedAt, &a.FinalizedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// EnsureOrganization materializes the organization row the membership layer
// vouched for. Existing rows are left untouched.
func EnsureOrganization(ctx context.Context, q db.Querier, orgID string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO organization (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, orgID, orgID, now)
	if err != nil {
		return fmt.Errorf("failed to ensure organization: %w", err)
	}
	return nil
}

// GetAssembly loads an assembly scoped to its organization.
func GetAssembly(ctx context.Context, q db.Querier, orgID, assemblyID string) (models.Assembly, error) {
	a, err := scanAssembly(q.QueryRowContext(ctx, `
		SELECT `+assemblyColumns+`
		FROM assembly
		WHERE id = $1 AND organization_id = $2
	`, assemblyID, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return a, apperr.NotFound("assembly")
	}
	if err != nil {
		return a, fmt.Errorf("failed to query assembly: %w", err)
	}
	return a, nil
}

// ListActiveAssemblies returns every active assembly across organizations.
func ListActiveAssemblies(ctx context.Context, q db.Querier) ([]models.Assembly, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+assemblyColumns+`
		FROM assembly
		WHERE state = $1
		ORDER BY activated_at, id
	`, models.AssemblyActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active assemblies: %w", err)
	}
	defer rows.Close()

	out := []models.Assembly{}
	for rows.Next() {
		a, err := scanAssembly(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assembly: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const questionColumns = `q.id, q.assembly_id, q.text, q.state, q.mode, q.threshold, q.archived,
	q.position, q.opened_at, q.closed_at, q.created_at`

func scanQuestion(row scanner) (models.Question, error) {
	var q models.Question
	err := row.Scan(
		&q.ID, &q.AssemblyID, &q.Text, &q.State, &q.Mode, &q.Threshold, &q.Archived,
		&q.Position, &q.OpenedAt, &q.ClosedAt, &q.CreatedAt,
	)
	q.Options = []models.Option{}
	return q, err
}

// GetQuestion loads a question and its options. The organization is checked
// through the owning assembly.
func GetQuestion(ctx context.Context, q db.Querier, orgID, questionID string) (models.Question, error) {
	question, err := scanQuestion(q.QueryRowContext(ctx, `
		SELECT `+questionColumns+`
		FROM question q
		JOIN assembly a ON a.id = q.assembly_id
		WHERE q.id = $1 AND a.organization_id = $2
	`, questionID, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return question, apperr.NotFound("question")
	}
	if err != nil {
		return question, fmt.Errorf("failed to query question: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, question_id, text, color, position
		FROM question_option
		WHERE question_id = $1
		ORDER BY position, id
	`, questionID)
	if err != nil {
		return question, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o models.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.Color, &o.Position); err != nil {
			return question, fmt.Errorf("failed to scan option: %w", err)
		}
		question.Options = append(question.Options, o)
	}
	return question, rows.Err()
}

// ListQuestions returns an assembly's questions with their options, ordered
// by position. Callers check organization scope on the assembly first.
func ListQuestions(ctx context.Context, q db.Querier, assemblyID string) ([]models.Question, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+questionColumns+`
		FROM question q
		WHERE q.assembly_id = $1
		ORDER BY q.position, q.id
	`, assemblyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}

	questions := []models.Question{}
	index := map[string]int{}
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		index[question.ID] = len(questions)
		questions = append(questions, question)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	// Options in a second pass: one connection must not hold two cursors
	optRows, err := q.QueryContext(ctx, `
		SELECT o.id, o.question_id, o.text, o.color, o.position
		FROM question_option o
		JOIN question q ON q.id = o.question_id
		WHERE q.assembly_id = $1
		ORDER BY o.question_id, o.position, o.id
	`, assemblyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var o models.Option
		if err := optRows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.Color, &o.Position); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		if i, ok := index[o.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, o)
		}
	}
	return questions, optRows.Err()
}
