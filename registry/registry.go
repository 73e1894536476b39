// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package registry

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
	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/policy"
)

// Store manages the units of each organization.
type Store struct {
	db     *sql.DB
	policy policy.Policy
	clock  clock.Clock
}

func NewStore(db *sql.DB, p policy.Policy, c clock.Clock) *Store {
	return &Store{db: db, policy: p, clock: c}
}

const unitColumns = `id, organization_id, tower, number, coefficient, owner_name,
	owner_email, owner_phone, is_demo, active, created_at`

func scanUnit(row scanner) (models.Unit, error) {
	var u models.Unit
	err := row.Scan(
		&u.ID, &u.OrganizationID, &u.Tower, &u.Number, &u.Coefficient, &u.OwnerName,
		&u.OwnerEmail, &u.OwnerPhone, &u.IsDemo, &u.Active, &u.CreatedAt,
	)
	return u, err
}

// Universe returns the active units of one organization and universe,
// ordered by tower and number. Every percentage in the engine is computed
// over this slice, in this order.
func Universe(ctx context.Context, q db.Querier, orgID string, isDemo bool) ([]models.Unit, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+unitColumns+`
		FROM unit
		WHERE organization_id = $1 AND is_demo = $2 AND active
		ORDER BY tower, number, id
	`, orgID, isDemo)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	units := []models.Unit{}
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// CountUniverse counts active units in a universe.
func CountUniverse(ctx context.Context, q db.Querier, orgID string, isDemo bool) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM unit
		WHERE organization_id = $1 AND is_demo = $2 AND active
	`, orgID, isDemo).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count units: %w", err)
	}
	return n, nil
}

// CoefficientSum adds coefficients in slice order.
func CoefficientSum(units []models.Unit) float64 {
	var sum float64
	for _, u := range units {
		sum += u.Coefficient
	}
	return sum
}

// ensureEditable rejects unit changes while an assembly of the same universe
// is active past its grace window.
func (s *Store) ensureEditable(ctx context.Context, q db.Querier, orgID string, isDemo bool) error {
	rows, err := q.QueryContext(ctx, `
		SELECT `+assemblyColumns+`
		FROM assembly
		WHERE organization_id = $1 AND is_demo = $2 AND state = $3
	`, orgID, isDemo, models.AssemblyActive)
	if err != nil {
		return fmt.Errorf("failed to query assemblies: %w", err)
	}
	defer rows.Close()

	now := s.clock.Now()
	for rows.Next() {
		a, err := scanAssembly(rows)
		if err != nil {
			return fmt.Errorf("failed to scan assembly: %w", err)
		}
		if !s.policy.StructureEditable(a, now) {
			return apperr.InvalidState(apperr.CodeStructureFrozen,
				fmt.Sprintf("units are frozen while assembly %q is active", a.Title))
		}
	}
	return rows.Err()
}

// Import adds units to a universe in one transaction. A natural-key clash
// rejects the whole batch. The coefficient sum is reported, not enforced.
func (s *Store) Import(ctx context.Context, orgID string, req models.ImportUnitsRequest) (models.ImportUnitsResponse, error) {
	var resp models.ImportUnitsResponse

	type normalized struct {
		email, phone string
	}
	handles := make([]normalized, len(req.Units))
	for i, u := range req.Units {
		if u.OwnerEmail != "" {
			h, err := auth.NormalizeHandle(u.OwnerEmail)
			if err != nil {
				return resp, apperr.Validation(apperr.CodeInvalidHandle,
					fmt.Sprintf("unit %s: invalid owner email", u.Number))
			}
			handles[i].email = h
		}
		if u.OwnerPhone != "" {
			h, err := auth.NormalizeHandle(u.OwnerPhone)
			if err != nil {
				return resp, apperr.Validation(apperr.CodeInvalidHandle,
					fmt.Sprintf("unit %s: invalid owner phone", u.Number))
			}
			handles[i].phone = h
		}
	}

	now := s.clock.Now()
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := EnsureOrganization(ctx, tx, orgID, now); err != nil {
			return err
		}
		if err := s.ensureEditable(ctx, tx, orgID, req.IsDemo); err != nil {
			return err
		}

		for i, u := range req.Units {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO unit (id, organization_id, tower, number, coefficient, owner_name,
					owner_email, owner_phone, owner_email_norm, owner_phone_norm, is_demo, active, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			`, auth.NewID(), orgID, u.Tower, u.Number, u.Coefficient, u.OwnerName,
				u.OwnerEmail, u.OwnerPhone, handles[i].email, handles[i].phone, req.IsDemo, true, now)
			if db.IsUniqueViolation(err) {
				label := models.Unit{Tower: u.Tower, Number: u.Number}.Label()
				return apperr.Validation(apperr.CodeDuplicate, fmt.Sprintf("unit %s already exists", label))
			}
			if err != nil {
				return fmt.Errorf("failed to insert unit: %w", err)
			}
		}

		units, err := Universe(ctx, tx, orgID, req.IsDemo)
		if err != nil {
			return err
		}
		resp.Imported = len(req.Units)
		resp.CoefficientSum = CoefficientSum(units)
		resp.CoefficientValid = s.policy.CoefficientSumValid(resp.CoefficientSum)
		return nil
	})
	if err != nil {
		return models.ImportUnitsResponse{}, err
	}

	if !resp.CoefficientValid {
		slog.Warn("unit coefficients do not sum to 100",
			"org_id", orgID,
			"is_demo", req.IsDemo,
			"sum", resp.CoefficientSum,
		)
	}
	slog.Info("units imported", "org_id", orgID, "is_demo", req.IsDemo, "count", resp.Imported)
	return resp, nil
}

// List returns a universe with its coefficient sum.
func (s *Store) List(ctx context.Context, orgID string, isDemo bool) (models.UnitListResponse, error) {
	units, err := Universe(ctx, s.db, orgID, isDemo)
	if err != nil {
		return models.UnitListResponse{}, db.Classify(err)
	}
	sum := CoefficientSum(units)
	return models.UnitListResponse{
		Units:            units,
		CoefficientSum:   sum,
		CoefficientValid: s.policy.CoefficientSumValid(sum),
	}, nil
}

// Delete removes a unit. Its votes, attendance and powers go with it.
func (s *Store) Delete(ctx context.Context, orgID, unitID string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		u, err := scanUnit(tx.QueryRowContext(ctx, `
			SELECT `+unitColumns+`
			FROM unit
			WHERE id = $1 AND organization_id = $2
		`, unitID, orgID))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("unit")
		}
		if err != nil {
			return fmt.Errorf("failed to query unit: %w", err)
		}

		if err := s.ensureEditable(ctx, tx, orgID, u.IsDemo); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM unit WHERE id = $1`, unitID); err != nil {
			return fmt.Errorf("failed to delete unit: %w", err)
		}

		slog.Info("unit deleted", "org_id", orgID, "unit_id", unitID, "label", u.Label())
		return nil
	})
}
