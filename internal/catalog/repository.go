package catalog

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

// ReferenceCounts reports how many stored role and user documents still
// mention a slug. Surfaced before a rename or delete so the operator sees
// the blast radius.
type ReferenceCounts struct {
	Roles int64 `json:"roles"`
	Users int64 `json:"users"`
}

// Repository provides PostgreSQL backed persistence for the permission
// catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const permissionColumns = `id, slug, name, description, resource_id, status, created_at, updated_at`

func scanPermission(row pgx.Row) (access.Permission, error) {
	var p access.Permission
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.ResourceID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// List returns every catalog entry ordered by resource then slug.
func (r *Repository) List(ctx context.Context) ([]access.Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY resource_id, slug`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var perms []access.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// Get fetches a single entry by ID.
func (r *Repository) Get(ctx context.Context, id int64) (access.Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return access.Permission{}, fmt.Errorf("catalog: permission %d: %w", id, httpx.ErrNotFound)
		}
		return access.Permission{}, fmt.Errorf("catalog: get: %w", err)
	}
	return p, nil
}

// CreateBatch inserts a batch of entries atomically. A unique violation
// on any row aborts the whole batch.
func (r *Repository) CreateBatch(ctx context.Context, entries []access.Permission) ([]access.Permission, error) {
	created := make([]access.Permission, 0, len(entries))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, entry := range entries {
			p, err := scanPermission(tx.QueryRow(ctx,
				`INSERT INTO permissions (slug, name, description, resource_id, status, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
				 RETURNING `+permissionColumns,
				entry.Slug, entry.Name, entry.Description, entry.ResourceID, entry.Status))
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("catalog: slug %s: %w", entry.Slug, httpx.ErrDuplicate)
				}
				return fmt.Errorf("catalog: insert %s: %w", entry.Slug, err)
			}
			created = append(created, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update writes name, description and status for an entry.
func (r *Repository) Update(ctx context.Context, p access.Permission) (access.Permission, error) {
	updated, err := scanPermission(r.pool.QueryRow(ctx,
		`UPDATE permissions SET name = $2, description = $3, status = $4, updated_at = NOW()
		 WHERE id = $1 RETURNING `+permissionColumns,
		p.ID, p.Name, p.Description, p.Status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return access.Permission{}, fmt.Errorf("catalog: permission %d: %w", p.ID, httpx.ErrNotFound)
		}
		return access.Permission{}, fmt.Errorf("catalog: update: %w", err)
	}
	return updated, nil
}

// Rename changes an entry's slug. Stored role/user references to the old
// slug are left in place; the resolver masks them until the prune job
// rewrites the documents.
func (r *Repository) Rename(ctx context.Context, id int64, newSlug string) (access.Permission, error) {
	renamed, err := scanPermission(r.pool.QueryRow(ctx,
		`UPDATE permissions SET slug = $2, updated_at = NOW() WHERE id = $1 RETURNING `+permissionColumns,
		id, newSlug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return access.Permission{}, fmt.Errorf("catalog: permission %d: %w", id, httpx.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return access.Permission{}, fmt.Errorf("catalog: slug %s: %w", newSlug, httpx.ErrDuplicate)
		}
		return access.Permission{}, fmt.Errorf("catalog: rename: %w", err)
	}
	return renamed, nil
}

// Delete removes an entry. Returns ErrNotFound when nothing was deleted.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("catalog: permission %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// CountReferences counts role and user documents still holding slug.
func (r *Repository) CountReferences(ctx context.Context, slug string) (ReferenceCounts, error) {
	var counts ReferenceCounts
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM roles WHERE $1 = ANY(permissions)),
			(SELECT COUNT(*) FROM users WHERE $1 = ANY(additional_permissions) OR $1 = ANY(excluded_permissions))`,
		slug).Scan(&counts.Roles, &counts.Users)
	if err != nil {
		return ReferenceCounts{}, fmt.Errorf("catalog: count references: %w", err)
	}
	return counts, nil
}

// PruneReferences removes a slug from every role baseline and user
// override that still mentions it. Used by the background prune job after
// renames and deletes.
func (r *Repository) PruneReferences(ctx context.Context, slug string) (int64, error) {
	var pruned int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE roles SET permissions = array_remove(permissions, $1), updated_at = NOW() WHERE $1 = ANY(permissions)`, slug)
		if err != nil {
			return fmt.Errorf("catalog: prune roles: %w", err)
		}
		pruned += tag.RowsAffected()

		tag, err = tx.Exec(ctx,
			`UPDATE users SET
				additional_permissions = array_remove(additional_permissions, $1),
				excluded_permissions = array_remove(excluded_permissions, $1),
				updated_at = NOW()
			 WHERE $1 = ANY(additional_permissions) OR $1 = ANY(excluded_permissions)`, slug)
		if err != nil {
			return fmt.Errorf("catalog: prune users: %w", err)
		}
		pruned += tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pruned, nil
}

// KnownSlugs returns every slug currently present in the catalog.
func (r *Repository) KnownSlugs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT slug FROM permissions`)
	if err != nil {
		return nil, fmt.Errorf("catalog: known slugs: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
