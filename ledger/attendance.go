// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/danielhkuo/quorum/apperr"
	"github.com/danielhkuo/quorum/db"
	"github.com/danielhkuo/quorum/eligibility"
	"github.com/danielhkuo/quorum/models"
)

// RecordAttendance confirms that handle is present for unitID. Repeated
// calls act as a heartbeat: confirmed_at keeps the first ping and
// last_seen_at moves forward.
func (l *Ledger) RecordAttendance(ctx context.Context, orgID, assemblyID, unitID, handle string) (models.AttendanceRecord, error) {
	a, err := l.gate.Load(ctx, orgID, assemblyID)
	if err != nil {
		return models.AttendanceRecord{}, err
	}
	if a.State == models.AssemblyFinalized {
		return models.AttendanceRecord{}, apperr.InvalidState(apperr.CodeAssemblyNotActive, "assembly is finalized")
	}

	refs, err := l.resolver.Resolve(ctx, orgID, assemblyID, handle)
	if err != nil {
		return models.AttendanceRecord{}, err
	}
	if _, ok := eligibility.Find(refs, unitID); !ok {
		return models.AttendanceRecord{}, apperr.UnitNotEligible(unitID)
	}

	now := l.clock.Now()
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO attendance (assembly_id, unit_id, actor_handle, confirmed_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (assembly_id, unit_id) DO UPDATE SET
			actor_handle = excluded.actor_handle,
			last_seen_at = excluded.last_seen_at
	`, assemblyID, unitID, handle, now, now)
	if err != nil {
		slog.Error("failed to record attendance", "error", err, "assembly_id", assemblyID)
		return models.AttendanceRecord{}, db.Classify(fmt.Errorf("failed to record attendance: %w", err))
	}

	l.tally.Invalidate(ctx, orgID, assemblyID, "")

	var rec models.AttendanceRecord
	err = l.db.QueryRowContext(ctx, `
		SELECT assembly_id, unit_id, actor_handle, confirmed_at, last_seen_at
		FROM attendance
		WHERE assembly_id = $1 AND unit_id = $2
	`, assemblyID, unitID).Scan(&rec.AssemblyID, &rec.UnitID, &rec.ActorHandle, &rec.ConfirmedAt, &rec.LastSeenAt)
	if err != nil {
		return models.AttendanceRecord{}, db.Classify(fmt.Errorf("failed to read attendance: %w", err))
	}
	return rec, nil
}

func sortAudit(entries []models.VoteAuditEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RecordedAt.Before(entries[j].RecordedAt)
	})
}
