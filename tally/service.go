// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/quorum/auth"
	"github.com/danielhkuo/quorum/cache"
	"github.com/danielhkuo/quorum/clock"
	"github.com/danielhkuo/quorum/db"
	"github.com/danielhkuo/quorum/metrics"
	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/policy"
	"github.com/danielhkuo/quorum/registry"
)

// Service loads tally inputs from storage and serves computed stats through
// the results cache.
type Service struct {
	db      *sql.DB
	policy  policy.Policy
	clock   clock.Clock
	results *cache.Results
}

// NewService creates a Service. results may be nil to compute every read.
func NewService(db *sql.DB, p policy.Policy, c clock.Clock, results *cache.Results) *Service {
	return &Service{db: db, policy: p, clock: c, results: results}
}

func participationKey(orgID, assemblyID string) string {
	return "participation:" + orgID + ":" + assemblyID
}

func attendanceKey(orgID, assemblyID string) string {
	return "attendance:" + orgID + ":" + assemblyID
}

func resultsKey(orgID, questionID string) string {
	return "results:" + orgID + ":" + questionID
}

// Invalidate drops cached stats touched by a write to questionID in
// assemblyID. questionID may be empty for assembly-wide writes.
func (s *Service) Invalidate(ctx context.Context, orgID, assemblyID, questionID string) {
	keys := []string{participationKey(orgID, assemblyID), attendanceKey(orgID, assemblyID)}
	if questionID != "" {
		keys = append(keys, resultsKey(orgID, questionID))
	}
	s.results.Invalidate(ctx, keys...)
}

// InvalidateAssembly drops every cached stat of an assembly.
func (s *Service) InvalidateAssembly(ctx context.Context, orgID, assemblyID string) error {
	questions, err := registry.ListQuestions(ctx, s.db, assemblyID)
	if err != nil {
		return err
	}
	keys := []string{participationKey(orgID, assemblyID), attendanceKey(orgID, assemblyID)}
	for _, q := range questions {
		keys = append(keys, resultsKey(orgID, q.ID))
	}
	s.results.Invalidate(ctx, keys...)
	return nil
}

func observe(computation string, start time.Time) {
	metrics.TallyDuration.WithLabelValues(computation).Observe(time.Since(start).Seconds())
}

// GetParticipation returns quorum stats for an assembly from the units that
// voted on any non-archived question.
func (s *Service) GetParticipation(ctx context.Context, orgID, assemblyID string) (models.QuorumStats, error) {
	stats, err := cache.Fetch(ctx, s.results, participationKey(orgID, assemblyID), func(ctx context.Context) (models.QuorumStats, error) {
		defer observe("participation", time.Now())
		return s.participation(ctx, s.db, orgID, assemblyID)
	})
	return stats, db.Classify(err)
}

func (s *Service) participation(ctx context.Context, q db.Querier, orgID, assemblyID string) (models.QuorumStats, error) {
	a, err := registry.GetAssembly(ctx, q, orgID, assemblyID)
	if err != nil {
		return models.QuorumStats{}, err
	}
	units, err := registry.Universe(ctx, q, orgID, a.IsDemo)
	if err != nil {
		return models.QuorumStats{}, err
	}
	votes, err := assemblyVotes(ctx, q, assemblyID)
	if err != nil {
		return models.QuorumStats{}, err
	}
	return Participation(a.ID, a.IsDemo, units, votes, s.policy), nil
}

// GetQuestionResults returns the tally of one question. Archived questions
// are still computable; their stats carry the archived flag.
func (s *Service) GetQuestionResults(ctx context.Context, orgID, questionID string) (models.TallyStats, error) {
	stats, err := cache.Fetch(ctx, s.results, resultsKey(orgID, questionID), func(ctx context.Context) (models.TallyStats, error) {
		defer observe("question_results", time.Now())
		stats, _, err := s.questionResults(ctx, s.db, orgID, questionID)
		return stats, err
	})
	return stats, db.Classify(err)
}

func (s *Service) questionResults(ctx context.Context, q db.Querier, orgID, questionID string) (models.TallyStats, []models.Vote, error) {
	question, err := registry.GetQuestion(ctx, q, orgID, questionID)
	if err != nil {
		return models.TallyStats{}, nil, err
	}
	a, err := registry.GetAssembly(ctx, q, orgID, question.AssemblyID)
	if err != nil {
		return models.TallyStats{}, nil, err
	}
	units, err := registry.Universe(ctx, q, orgID, a.IsDemo)
	if err != nil {
		return models.TallyStats{}, nil, err
	}
	votes, err := questionVotes(ctx, q, questionID)
	if err != nil {
		return models.TallyStats{}, nil, err
	}
	return QuestionResults(question, units, votes, s.policy), votes, nil
}

// GetAttendanceStats returns quorum from confirmed attendance.
func (s *Service) GetAttendanceStats(ctx context.Context, orgID, assemblyID string) (models.AttendanceStats, error) {
	stats, err := cache.Fetch(ctx, s.results, attendanceKey(orgID, assemblyID), func(ctx context.Context) (models.AttendanceStats, error) {
		defer observe("attendance", time.Now())

		a, err := registry.GetAssembly(ctx, s.db, orgID, assemblyID)
		if err != nil {
			return models.AttendanceStats{}, err
		}
		units, err := registry.Universe(ctx, s.db, orgID, a.IsDemo)
		if err != nil {
			return models.AttendanceStats{}, err
		}
		records, err := ListAttendance(ctx, s.db, assemblyID)
		if err != nil {
			return models.AttendanceStats{}, err
		}
		return Attendance(a.ID, a.IsDemo, units, records, s.clock.Now(), s.policy), nil
	})
	return stats, db.Classify(err)
}

// SnapshotQuestion freezes the current tally of a question into a result
// snapshot, inside the caller's transaction. The caller must already hold the
// question row lock so seq numbers stay unique.
func (s *Service) SnapshotQuestion(ctx context.Context, tx *sql.Tx, orgID, questionID string, now time.Time) (models.ResultSnapshot, error) {
	stats, votes, err := s.questionResults(ctx, tx, orgID, questionID)
	if err != nil {
		return models.ResultSnapshot{}, err
	}

	snapshot := models.ResultSnapshot{
		ID:         auth.NewID(),
		QuestionID: questionID,
		AssemblyID: stats.AssemblyID,
		ComputedAt: now,
		InputsHash: InputsHash(votes),
		Results:    stats,
	}

	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM result_snapshot WHERE question_id = $1
	`, questionID).Scan(&snapshot.Seq)
	if err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("failed to number snapshot: %w", err)
	}

	payload, err := json.Marshal(snapshot.Results)
	if err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO result_snapshot (id, question_id, assembly_id, seq, computed_at, inputs_hash, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, snapshot.ID, questionID, snapshot.AssemblyID, snapshot.Seq, now, snapshot.InputsHash, string(payload))
	if err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	slog.Info("result snapshot written",
		"question_id", questionID,
		"snapshot_id", snapshot.ID,
		"seq", snapshot.Seq,
		"inputs_hash", snapshot.InputsHash,
	)
	return snapshot, nil
}

// Minutes returns the assembly with the latest snapshot of each
// non-archived question, in question order.
func (s *Service) Minutes(ctx context.Context, orgID, assemblyID string) (models.MinutesResponse, error) {
	a, err := registry.GetAssembly(ctx, s.db, orgID, assemblyID)
	if err != nil {
		return models.MinutesResponse{}, db.Classify(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.question_id, s.assembly_id, s.seq, s.computed_at, s.inputs_hash, s.payload
		FROM result_snapshot s
		JOIN question q ON q.id = s.question_id
		WHERE s.assembly_id = $1 AND NOT q.archived
		ORDER BY q.position, q.id, s.seq DESC
	`, assemblyID)
	if err != nil {
		return models.MinutesResponse{}, db.Classify(fmt.Errorf("failed to query snapshots: %w", err))
	}
	defer rows.Close()

	resp := models.MinutesResponse{Assembly: a, Snapshots: []models.ResultSnapshot{}}
	seen := map[string]bool{}
	for rows.Next() {
		var snap models.ResultSnapshot
		var payload string
		if err := rows.Scan(&snap.ID, &snap.QuestionID, &snap.AssemblyID, &snap.Seq, &snap.ComputedAt, &snap.InputsHash, &payload); err != nil {
			return models.MinutesResponse{}, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		// Highest seq comes first
		if seen[snap.QuestionID] {
			continue
		}
		seen[snap.QuestionID] = true
		if err := json.Unmarshal([]byte(payload), &snap.Results); err != nil {
			return models.MinutesResponse{}, fmt.Errorf("failed to decode snapshot %s: %w", snap.ID, err)
		}
		resp.Snapshots = append(resp.Snapshots, snap)
	}
	return resp, rows.Err()
}

const voteColumns = `v.question_id, v.unit_id, v.option_id, v.actor_handle, v.via_proxy, v.cast_at, v.updated_at`

func scanVotes(rows *sql.Rows) ([]models.Vote, error) {
	defer rows.Close()

	votes := []models.Vote{}
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.QuestionID, &v.UnitID, &v.OptionID, &v.ActorHandle, &v.ViaProxy, &v.CastAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// assemblyVotes loads current votes on the assembly's non-archived questions.
func assemblyVotes(ctx context.Context, q db.Querier, assemblyID string) ([]models.Vote, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+voteColumns+`
		FROM vote v
		JOIN question q ON q.id = v.question_id
		WHERE q.assembly_id = $1 AND NOT q.archived
		ORDER BY v.question_id, v.unit_id
	`, assemblyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	return scanVotes(rows)
}

func questionVotes(ctx context.Context, q db.Querier, questionID string) ([]models.Vote, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+voteColumns+`
		FROM vote v
		WHERE v.question_id = $1
		ORDER BY v.unit_id
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	return scanVotes(rows)
}

// AttendanceRecords lists the per-unit attendance of one of the
// organization's assemblies.
func (s *Service) AttendanceRecords(ctx context.Context, orgID, assemblyID string) ([]models.AttendanceRecord, error) {
	if _, err := registry.GetAssembly(ctx, s.db, orgID, assemblyID); err != nil {
		return nil, db.Classify(err)
	}
	records, err := ListAttendance(ctx, s.db, assemblyID)
	return records, db.Classify(err)
}

// ListAttendance loads an assembly's attendance records.
func ListAttendance(ctx context.Context, q db.Querier, assemblyID string) ([]models.AttendanceRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT assembly_id, unit_id, actor_handle, confirmed_at, last_seen_at
		FROM attendance
		WHERE assembly_id = $1
		ORDER BY unit_id
	`, assemblyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	records := []models.AttendanceRecord{}
	for rows.Next() {
		var r models.AttendanceRecord
		if err := rows.Scan(&r.AssemblyID, &r.UnitID, &r.ActorHandle, &r.ConfirmedAt, &r.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
