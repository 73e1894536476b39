// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/quorum/apperr"
	"github.com/danielhkuo/quorum/auth"
	"github.com/danielhkuo/quorum/clock"
	"github.com/danielhkuo/quorum/db"
	"github.com/danielhkuo/quorum/eligibility"
	"github.com/danielhkuo/quorum/lifecycle"
	"github.com/danielhkuo/quorum/metrics"
	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/registry"
	"github.com/danielhkuo/quorum/tally"
)

// Ledger admits votes and attendance pings.
type Ledger struct {
	db       *sql.DB
	resolver *eligibility.Resolver
	gate     *lifecycle.Gate
	tally    *tally.Service
	clock    clock.Clock
	ipSalt   string
}

func New(db *sql.DB, resolver *eligibility.Resolver, gate *lifecycle.Gate, t *tally.Service, c clock.Clock, ipSalt string) *Ledger {
	return &Ledger{db: db, resolver: resolver, gate: gate, tally: t, clock: c, ipSalt: ipSalt}
}

// CastRequest is one vote attempt. Handle comes from the caller's session,
// never from the request body.
type CastRequest struct {
	OrganizationID string
	QuestionID     string
	UnitID         string
	OptionID       string
	Handle         string
	Meta           models.ClientMeta
}

func rejected(err error) error {
	code := "error"
	if e, ok := apperr.As(err); ok {
		code = e.Code
	}
	metrics.VoteRejections.WithLabelValues(code).Inc()
	return err
}

// CastVote records the caller's choice for one unit on one question. A unit
// holds at most one vote per question; casting again replaces the option and
// appends a second audit row.
func (l *Ledger) CastVote(ctx context.Context, req CastRequest) (models.Vote, error) {
	q, err := registry.GetQuestion(ctx, l.db, req.OrganizationID, req.QuestionID)
	if err != nil {
		return models.Vote{}, rejected(db.Classify(err))
	}

	a, err := l.gate.Load(ctx, req.OrganizationID, q.AssemblyID)
	if err != nil {
		return models.Vote{}, rejected(err)
	}
	if a.State != models.AssemblyActive {
		return models.Vote{}, rejected(apperr.InvalidState(apperr.CodeAssemblyNotActive, "assembly is "+a.State))
	}
	if q.Archived {
		return models.Vote{}, rejected(apperr.QuestionNotOpen("archived"))
	}
	if q.State != models.QuestionOpen {
		return models.Vote{}, rejected(apperr.QuestionNotOpen(q.State))
	}

	validOption := false
	for _, o := range q.Options {
		if o.ID == req.OptionID {
			validOption = true
			break
		}
	}
	if !validOption {
		return models.Vote{}, rejected(apperr.OptionMismatch(req.OptionID, req.QuestionID))
	}

	refs, err := l.resolver.Resolve(ctx, req.OrganizationID, q.AssemblyID, req.Handle)
	if err != nil {
		return models.Vote{}, rejected(err)
	}
	ref, ok := eligibility.Find(refs, req.UnitID)
	if !ok {
		return models.Vote{}, rejected(apperr.UnitNotEligible(req.UnitID))
	}

	now := l.clock.Now()
	vote := models.Vote{
		QuestionID:  req.QuestionID,
		UnitID:      req.UnitID,
		OptionID:    req.OptionID,
		ActorHandle: req.Handle,
		ViaProxy:    ref.Source == models.SourceProxy,
		CastAt:      now,
		UpdatedAt:   now,
	}
	if req.Meta.ClientIP != "" {
		h := auth.HashIP(req.Meta.ClientIP, l.ipSalt)
		vote.IPHash = &h
	}
	if req.Meta.UserAgent != "" {
		ua := req.Meta.UserAgent
		vote.UserAgent = &ua
	}

	replaced := false
	err = db.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		// Takes the question row lock; a concurrent close either waits for
		// this vote or wins and the vote is refused.
		res, err := tx.ExecContext(ctx, `
			UPDATE question SET state = state
			WHERE id = $1 AND state = $2 AND NOT archived
		`, req.QuestionID, models.QuestionOpen)
		if err != nil {
			return fmt.Errorf("failed to lock question: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to check question lock: %w", err)
		} else if n == 0 {
			var state string
			if err := tx.QueryRowContext(ctx, `SELECT state FROM question WHERE id = $1`, req.QuestionID).Scan(&state); err != nil {
				return fmt.Errorf("failed to query question state: %w", err)
			}
			return apperr.QuestionNotOpen(state)
		}

		var castAt sql.NullTime
		err = tx.QueryRowContext(ctx, `
			SELECT cast_at FROM vote WHERE question_id = $1 AND unit_id = $2
		`, req.QuestionID, req.UnitID).Scan(&castAt)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to query existing vote: %w", err)
		}
		if castAt.Valid {
			replaced = true
			vote.CastAt = castAt.Time
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO vote (question_id, unit_id, option_id, actor_handle, via_proxy, ip_hash, user_agent, cast_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (question_id, unit_id) DO UPDATE SET
				option_id = excluded.option_id,
				actor_handle = excluded.actor_handle,
				via_proxy = excluded.via_proxy,
				ip_hash = excluded.ip_hash,
				user_agent = excluded.user_agent,
				updated_at = excluded.updated_at
		`, vote.QuestionID, vote.UnitID, vote.OptionID, vote.ActorHandle, vote.ViaProxy,
			vote.IPHash, vote.UserAgent, now, now)
		if err != nil {
			return fmt.Errorf("failed to upsert vote: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO vote_audit (id, question_id, unit_id, option_id, actor_handle, via_proxy, ip_hash, user_agent, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, auth.NewID(), vote.QuestionID, vote.UnitID, vote.OptionID, vote.ActorHandle, vote.ViaProxy,
			vote.IPHash, vote.UserAgent, now)
		if err != nil {
			return fmt.Errorf("failed to append vote audit: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Vote{}, rejected(err)
	}

	l.tally.Invalidate(ctx, req.OrganizationID, q.AssemblyID, req.QuestionID)

	outcome := "created"
	if replaced {
		outcome = "replaced"
	}
	metrics.VotesCast.WithLabelValues(ref.Source, outcome).Inc()
	slog.Info("vote cast",
		"question_id", req.QuestionID,
		"unit_id", req.UnitID,
		"via_proxy", vote.ViaProxy,
		"replaced", replaced,
	)
	return vote, nil
}

// Votes returns the current vote of every unit that voted on the question.
func (l *Ledger) Votes(ctx context.Context, orgID, questionID string) ([]models.Vote, error) {
	if _, err := registry.GetQuestion(ctx, l.db, orgID, questionID); err != nil {
		return nil, db.Classify(err)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT question_id, unit_id, option_id, actor_handle, via_proxy, ip_hash, user_agent, cast_at, updated_at
		FROM vote
		WHERE question_id = $1
		ORDER BY unit_id
	`, questionID)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to query votes: %w", err))
	}
	defer rows.Close()

	votes := []models.Vote{}
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.QuestionID, &v.UnitID, &v.OptionID, &v.ActorHandle, &v.ViaProxy,
			&v.IPHash, &v.UserAgent, &v.CastAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// History returns current votes plus every accepted cast, oldest first.
func (l *Ledger) History(ctx context.Context, orgID, questionID string) (models.VoteHistoryResponse, error) {
	votes, err := l.Votes(ctx, orgID, questionID)
	if err != nil {
		return models.VoteHistoryResponse{}, err
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, question_id, unit_id, option_id, actor_handle, via_proxy, ip_hash, user_agent, recorded_at
		FROM vote_audit
		WHERE question_id = $1
	`, questionID)
	if err != nil {
		return models.VoteHistoryResponse{}, db.Classify(fmt.Errorf("failed to query vote audit: %w", err))
	}
	defer rows.Close()

	resp := models.VoteHistoryResponse{Votes: votes, History: []models.VoteAuditEntry{}}
	for rows.Next() {
		var e models.VoteAuditEntry
		if err := rows.Scan(&e.ID, &e.QuestionID, &e.UnitID, &e.OptionID, &e.ActorHandle, &e.ViaProxy,
			&e.IPHash, &e.UserAgent, &e.RecordedAt); err != nil {
			return models.VoteHistoryResponse{}, fmt.Errorf("failed to scan vote audit: %w", err)
		}
		resp.History = append(resp.History, e)
	}
	if err := rows.Err(); err != nil {
		return models.VoteHistoryResponse{}, err
	}

	sortAudit(resp.History)
	return resp, nil
}
