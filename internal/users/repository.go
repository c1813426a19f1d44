package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pelorus-marine/pelorus/internal/access"
	"github.com/pelorus-marine/pelorus/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence. The override sets
// live as text[] columns on the user row and are written atomically with
// the role reference.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userQuery = `
	SELECT u.id, u.email, u.name, u.is_active, u.role_id, COALESCE(r.name, ''),
	       u.additional_permissions, u.excluded_permissions, u.created_at, u.updated_at
	FROM users u LEFT JOIN roles r ON r.id = u.role_id`

func scanUser(row pgx.Row) (User, error) {
	var u User
	var additional, excluded []string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IsActive, &u.RoleID, &u.RoleName,
		&additional, &excluded, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	u.Additional = access.NewPermissionSet(additional...)
	u.Excluded = access.NewPermissionSet(excluded...)
	return u, nil
}

// List returns all users with their role names.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, userQuery+` ORDER BY u.name`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Get fetches a user by ID.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, userQuery+` WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("users: user %d: %w", id, httpx.ErrNotFound)
		}
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	return u, nil
}

// SetRoleAndOverride writes the role reference and both override sets in
// one statement, so a role change can never be observed without its
// reconciled override.
func (r *Repository) SetRoleAndOverride(ctx context.Context, userID int64, roleID *int64, additional, excluded []string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role_id = $2, additional_permissions = $3, excluded_permissions = $4, updated_at = NOW()
		 WHERE id = $1`,
		userID, roleID, additional, excluded)
	if err != nil {
		return fmt.Errorf("users: set role and override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("users: user %d: %w", userID, httpx.ErrNotFound)
	}
	return nil
}

// SetOverride replaces both override sets. Concurrent toggles race with
// last-write-wins semantics; the full sets are stored verbatim, no merge.
func (r *Repository) SetOverride(ctx context.Context, userID int64, additional, excluded []string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET additional_permissions = $2, excluded_permissions = $3, updated_at = NOW()
		 WHERE id = $1`,
		userID, additional, excluded)
	if err != nil {
		return fmt.Errorf("users: set override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("users: user %d: %w", userID, httpx.ErrNotFound)
	}
	return nil
}
