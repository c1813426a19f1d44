package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pelorus-marine/pelorus/internal/access"
)

// PGCheckRepository reads roles and overrides straight from postgres.
type PGCheckRepository struct {
	pool *pgxpool.Pool
}

// NewPGCheckRepository constructs a repository over the given pool.
func NewPGCheckRepository(pool *pgxpool.Pool) *PGCheckRepository {
	return &PGCheckRepository{pool: pool}
}

// Roles returns every stored role with its baseline.
func (r *PGCheckRepository) Roles(ctx context.Context) ([]access.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, kind, status, permissions FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("check cli: list roles: %w", err)
	}
	defer rows.Close()

	var out []access.Role
	for rows.Next() {
		var (
			role  access.Role
			slugs []string
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Kind, &role.Status, &slugs); err != nil {
			return nil, fmt.Errorf("check cli: scan role: %w", err)
		}
		role.Permissions = access.NewPermissionSet(slugs...)
		out = append(out, role)
	}
	return out, rows.Err()
}

// Overrides returns every user's stored permission delta.
func (r *PGCheckRepository) Overrides(ctx context.Context) ([]access.Override, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(role_id, 0), additional_permissions, excluded_permissions
		FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("check cli: list overrides: %w", err)
	}
	defer rows.Close()

	var out []access.Override
	for rows.Next() {
		var (
			ov                   access.Override
			additional, excluded []string
		)
		if err := rows.Scan(&ov.UserID, &ov.RoleID, &additional, &excluded); err != nil {
			return nil, fmt.Errorf("check cli: scan override: %w", err)
		}
		ov.Additional = access.NewPermissionSet(additional...)
		ov.Excluded = access.NewPermissionSet(excluded...)
		out = append(out, ov)
	}
	return out, rows.Err()
}

var _ CheckRepository = (*PGCheckRepository)(nil)
