// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package eligibility

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/danielhkuo/quorum/apperr"
	"github.com/danielhkuo/quorum/auth"
	"github.com/danielhkuo/quorum/clock"
	"github.com/danielhkuo/quorum/db"
	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/policy"
	"github.com/danielhkuo/quorum/registry"
)

// Resolver computes which units a handle may vote for and manages the
// powers of attorney that extend that set.
type Resolver struct {
	db     *sql.DB
	policy policy.Policy
	clock  clock.Clock
}

func NewResolver(db *sql.DB, p policy.Policy, c clock.Clock) *Resolver {
	return &Resolver{db: db, policy: p, clock: c}
}

// Resolve returns the units handle may vote for in the assembly: units it
// owns directly plus units granted to it by active powers. A unit reachable
// both ways is reported once, as direct. The result is ordered by tower and
// number. An empty set is apperr.CodeNotEligible.
func (r *Resolver) Resolve(ctx context.Context, orgID, assemblyID, handle string) ([]models.UnitRef, error) {
	norm, err := auth.NormalizeHandle(handle)
	if err != nil {
		return nil, apperr.NotEligible()
	}

	a, err := registry.GetAssembly(ctx, r.db, orgID, assemblyID)
	if err != nil {
		return nil, db.Classify(err)
	}

	refs, err := resolve(ctx, r.db, a, norm)
	if err != nil {
		return nil, db.Classify(err)
	}
	if len(refs) == 0 {
		return nil, apperr.NotEligible()
	}
	return refs, nil
}

func resolve(ctx context.Context, q db.Querier, a models.Assembly, norm string) ([]models.UnitRef, error) {
	// Direct ownership. Handles are normalized so the column holding the
	// match depends on the handle's shape.
	column := "owner_phone_norm"
	if strings.Contains(norm, "@") {
		column = "owner_email_norm"
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, tower, number, coefficient
		FROM unit
		WHERE organization_id = $1 AND is_demo = $2 AND active AND `+column+` = $3
	`, a.OrganizationID, a.IsDemo, norm)
	if err != nil {
		return nil, fmt.Errorf("failed to query owned units: %w", err)
	}

	refs := []models.UnitRef{}
	seen := map[string]bool{}
	for rows.Next() {
		var ref models.UnitRef
		if err := rows.Scan(&ref.UnitID, &ref.Tower, &ref.Number, &ref.Coefficient); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		ref.Source = models.SourceDirect
		seen[ref.UnitID] = true
		refs = append(refs, ref)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	// Proxied units; the grantor must still belong to the universe
	rows, err = q.QueryContext(ctx, `
		SELECT u.id, u.tower, u.number, u.coefficient, u.owner_name, p.id
		FROM power_of_attorney p
		JOIN unit u ON u.id = p.grantor_unit_id
		WHERE p.assembly_id = $1 AND p.state = $2 AND p.receiver_handle_norm = $3
			AND u.organization_id = $4 AND u.is_demo = $5 AND u.active
	`, a.ID, models.PowerActive, norm, a.OrganizationID, a.IsDemo)
	if err != nil {
		return nil, fmt.Errorf("failed to query powers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref models.UnitRef
		if err := rows.Scan(&ref.UnitID, &ref.Tower, &ref.Number, &ref.Coefficient, &ref.GrantorOwnerName, &ref.PowerID); err != nil {
			return nil, fmt.Errorf("failed to scan power: %w", err)
		}
		if seen[ref.UnitID] {
			continue
		}
		ref.Source = models.SourceProxy
		seen[ref.UnitID] = true
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortRefs(refs)
	return refs, nil
}

func sortRefs(refs []models.UnitRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Tower != refs[j].Tower {
			return refs[i].Tower < refs[j].Tower
		}
		if refs[i].Number != refs[j].Number {
			return refs[i].Number < refs[j].Number
		}
		return refs[i].UnitID < refs[j].UnitID
	})
}

// Find returns the entry for unitID in refs.
func Find(refs []models.UnitRef, unitID string) (models.UnitRef, bool) {
	for _, ref := range refs {
		if ref.UnitID == unitID {
			return ref, true
		}
	}
	return models.UnitRef{}, false
}

const powerColumns = `id, organization_id, assembly_id, grantor_unit_id, receiver_handle,
	receiver_unit_id, state, created_at, revoked_at`

func scanPower(row interface{ Scan(...any) error }) (models.PowerOfAttorney, error) {
	var p models.PowerOfAttorney
	err := row.Scan(&p.ID, &p.OrganizationID, &p.AssemblyID, &p.GrantorUnitID, &p.ReceiverHandle,
		&p.ReceiverUnitID, &p.State, &p.CreatedAt, &p.RevokedAt)
	return p, err
}

// GrantPower records a proxy from the grantor unit to the receiver handle.
//
// Grants in one assembly are serialized by touching the assembly row first,
// so two concurrent grants to the same receiver cannot both pass the cap.
func (r *Resolver) GrantPower(ctx context.Context, orgID, assemblyID string, req models.GrantPowerRequest) (models.PowerOfAttorney, error) {
	receiverNorm, err := auth.NormalizeHandle(req.ReceiverHandle)
	if err != nil {
		return models.PowerOfAttorney{}, apperr.Validation(apperr.CodeInvalidHandle, "receiver handle is not a valid email or phone")
	}

	now := r.clock.Now()
	var power models.PowerOfAttorney

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE assembly SET updated_at = $1 WHERE id = $2 AND organization_id = $3
		`, now, assemblyID, orgID)
		if err != nil {
			return fmt.Errorf("failed to lock assembly: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("assembly")
		}

		a, err := registry.GetAssembly(ctx, tx, orgID, assemblyID)
		if err != nil {
			return err
		}
		if a.State == models.AssemblyFinalized {
			return apperr.InvalidState(apperr.CodeAssemblyNotActive, "powers cannot be granted on a finalized assembly")
		}

		var emailNorm, phoneNorm string
		err = tx.QueryRowContext(ctx, `
			SELECT owner_email_norm, owner_phone_norm
			FROM unit
			WHERE id = $1 AND organization_id = $2 AND is_demo = $3 AND active
		`, req.GrantorUnitID, orgID, a.IsDemo).Scan(&emailNorm, &phoneNorm)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.Validation(apperr.CodeInvalidInput, "grantor unit is not part of this assembly")
		}
		if err != nil {
			return fmt.Errorf("failed to query grantor unit: %w", err)
		}
		if receiverNorm == emailNorm || receiverNorm == phoneNorm {
			return apperr.Validation(apperr.CodeInvalidInput, "receiver already owns the granting unit")
		}

		if req.ReceiverUnitID != nil {
			var exists bool
			err := tx.QueryRowContext(ctx, `
				SELECT EXISTS(SELECT 1 FROM unit WHERE id = $1 AND organization_id = $2 AND is_demo = $3)
			`, *req.ReceiverUnitID, orgID, a.IsDemo).Scan(&exists)
			if err != nil {
				return fmt.Errorf("failed to query receiver unit: %w", err)
			}
			if !exists {
				return apperr.Validation(apperr.CodeInvalidInput, "receiver unit is not part of this assembly")
			}
		}

		var granted bool
		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM power_of_attorney WHERE assembly_id = $1 AND grantor_unit_id = $2 AND state = $3)
		`, assemblyID, req.GrantorUnitID, models.PowerActive).Scan(&granted)
		if err != nil {
			return fmt.Errorf("failed to query existing power: %w", err)
		}
		if granted {
			return apperr.InvalidState(apperr.CodePowerAlreadyGranted, "unit already has an active power in this assembly")
		}

		var held int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM power_of_attorney
			WHERE assembly_id = $1 AND receiver_handle_norm = $2 AND state = $3
		`, assemblyID, receiverNorm, models.PowerActive).Scan(&held)
		if err != nil {
			return fmt.Errorf("failed to count receiver powers: %w", err)
		}
		if held >= r.policy.ProxyCapPerReceiver {
			return apperr.Validation(apperr.CodeProxyCapExceeded,
				fmt.Sprintf("receiver already holds %d powers, the maximum", held))
		}

		power = models.PowerOfAttorney{
			ID:             auth.NewID(),
			OrganizationID: orgID,
			AssemblyID:     assemblyID,
			GrantorUnitID:  req.GrantorUnitID,
			ReceiverHandle: strings.TrimSpace(req.ReceiverHandle),
			ReceiverUnitID: req.ReceiverUnitID,
			State:          models.PowerActive,
			CreatedAt:      now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO power_of_attorney (id, organization_id, assembly_id, grantor_unit_id,
				receiver_handle, receiver_handle_norm, receiver_unit_id, state, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, power.ID, orgID, assemblyID, power.GrantorUnitID, power.ReceiverHandle, receiverNorm,
			power.ReceiverUnitID, power.State, now)
		if db.IsUniqueViolation(err) {
			return apperr.InvalidState(apperr.CodePowerAlreadyGranted, "unit already has an active power in this assembly")
		}
		if err != nil {
			return fmt.Errorf("failed to insert power: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.PowerOfAttorney{}, err
	}

	slog.Info("power granted",
		"assembly_id", assemblyID,
		"power_id", power.ID,
		"grantor_unit_id", power.GrantorUnitID,
	)
	return power, nil
}

// RevokePower ends an active power. Votes already cast through it stand.
func (r *Resolver) RevokePower(ctx context.Context, orgID, powerID string) (models.PowerOfAttorney, error) {
	now := r.clock.Now()
	var power models.PowerOfAttorney

	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		p, err := scanPower(tx.QueryRowContext(ctx, `
			SELECT `+powerColumns+`
			FROM power_of_attorney
			WHERE id = $1 AND organization_id = $2
		`, powerID, orgID))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("power of attorney")
		}
		if err != nil {
			return fmt.Errorf("failed to query power: %w", err)
		}

		a, err := registry.GetAssembly(ctx, tx, orgID, p.AssemblyID)
		if err != nil {
			return err
		}
		if a.State == models.AssemblyFinalized {
			return apperr.InvalidState(apperr.CodeAssemblyNotActive, "powers cannot be revoked on a finalized assembly")
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE power_of_attorney SET state = $1, revoked_at = $2
			WHERE id = $3 AND state = $4
		`, models.PowerRevoked, now, powerID, models.PowerActive)
		if err != nil {
			return fmt.Errorf("failed to revoke power: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.InvalidState(apperr.CodeIllegalTransition, "power is already revoked")
		}

		p.State = models.PowerRevoked
		p.RevokedAt = &now
		power = p
		return nil
	})
	if err != nil {
		return models.PowerOfAttorney{}, err
	}

	slog.Info("power revoked", "assembly_id", power.AssemblyID, "power_id", powerID)
	return power, nil
}

// ListPowers returns every power of an assembly, active and revoked.
func (r *Resolver) ListPowers(ctx context.Context, orgID, assemblyID string) ([]models.PowerOfAttorney, error) {
	if _, err := registry.GetAssembly(ctx, r.db, orgID, assemblyID); err != nil {
		return nil, db.Classify(err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+powerColumns+`
		FROM power_of_attorney
		WHERE assembly_id = $1
		ORDER BY created_at, id
	`, assemblyID)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to query powers: %w", err))
	}
	defer rows.Close()

	powers := []models.PowerOfAttorney{}
	for rows.Next() {
		p, err := scanPower(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan power: %w", err)
		}
		powers = append(powers, p)
	}
	return powers, rows.Err()
}
