// Package roles manages named baseline permission sets.
package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pelorus-marine/pelorus/internal/access"
	"github.com/pelorus-marine/pelorus/internal/platform/db"
	"github.com/pelorus-marine/pelorus/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence. Role rows embed the
// baseline as a text[] column, mirroring the document shape consumed by
// the resolver.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, kind, status, permissions, created_at, updated_at`

func scanRole(row pgx.Row) (access.Role, error) {
	var role access.Role
	var perms []string
	if err := row.Scan(&role.ID, &role.Name, &role.Kind, &role.Status, &perms, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return access.Role{}, err
	}
	role.Permissions = access.NewPermissionSet(perms...)
	return role, nil
}

// List returns all roles ordered by name.
func (r *Repository) List(ctx context.Context) ([]access.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()

	var out []access.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("roles: scan: %w", err)
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Get fetches a role by ID.
func (r *Repository) Get(ctx context.Context, id int64) (access.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return access.Role{}, fmt.Errorf("roles: role %d: %w", id, httpx.ErrNotFound)
		}
		return access.Role{}, fmt.Errorf("roles: get: %w", err)
	}
	return role, nil
}

// Create inserts a new role with its baseline.
func (r *Repository) Create(ctx context.Context, role access.Role) (access.Role, error) {
	created, err := scanRole(r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, kind, status, permissions, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING `+roleColumns,
		role.Name, role.Kind, role.Status, role.Permissions.Slice()))
	if err != nil {
		if isUniqueViolation(err) {
			return access.Role{}, fmt.Errorf("roles: name %s: %w", role.Name, httpx.ErrDuplicate)
		}
		return access.Role{}, fmt.Errorf("roles: create: %w", err)
	}
	return created, nil
}

// Update writes name, status and the full baseline (replace-on-write),
// plus the reconciled overrides of current holders, as one transaction.
// A holder reassigned between read and write is skipped by the role_id
// guard; the assignment path reconciles that user itself.
func (r *Repository) Update(ctx context.Context, role access.Role, reconciled []access.Override) (access.Role, error) {
	var updated access.Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		updated, err = scanRole(tx.QueryRow(ctx,
			`UPDATE roles SET name = $2, status = $3, permissions = $4, updated_at = NOW()
			 WHERE id = $1 RETURNING `+roleColumns,
			role.ID, role.Name, role.Status, role.Permissions.Slice()))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("roles: role %d: %w", role.ID, httpx.ErrNotFound)
			}
			if isUniqueViolation(err) {
				return fmt.Errorf("roles: name %s: %w", role.Name, httpx.ErrDuplicate)
			}
			return fmt.Errorf("roles: update: %w", err)
		}
		for _, ov := range reconciled {
			_, err := tx.Exec(ctx,
				`UPDATE users SET additional_permissions = $2, excluded_permissions = $3, updated_at = NOW()
				 WHERE id = $1 AND role_id = $4`,
				ov.UserID, ov.Additional.Slice(), ov.Excluded.Slice(), role.ID)
			if err != nil {
				return fmt.Errorf("roles: reconcile holder %d: %w", ov.UserID, err)
			}
		}
		return nil
	})
	if err != nil {
		return access.Role{}, err
	}
	return updated, nil
}

// Delete removes a role.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("roles: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("roles: role %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// HolderOverrides returns the stored override of every user currently
// assigned to the role.
func (r *Repository) HolderOverrides(ctx context.Context, roleID int64) ([]access.Override, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, additional_permissions, excluded_permissions FROM users WHERE role_id = $1 ORDER BY id`,
		roleID)
	if err != nil {
		return nil, fmt.Errorf("roles: holder overrides: %w", err)
	}
	defer rows.Close()

	var out []access.Override
	for rows.Next() {
		var additional, excluded []string
		ov := access.Override{RoleID: roleID}
		if err := rows.Scan(&ov.UserID, &additional, &excluded); err != nil {
			return nil, fmt.Errorf("roles: scan holder: %w", err)
		}
		ov.Additional = access.NewPermissionSet(additional...)
		ov.Excluded = access.NewPermissionSet(excluded...)
		out = append(out, ov)
	}
	return out, rows.Err()
}

// HolderCount counts users currently assigned to the role.
func (r *Repository) HolderCount(ctx context.Context, id int64) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("roles: holder count: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
