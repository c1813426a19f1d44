package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pelorus-marine/pelorus/internal/access"
	"github.com/pelorus-marine/pelorus/internal/catalog"
	"github.com/pelorus-marine/pelorus/internal/platform/httpx"
	"github.com/pelorus-marine/pelorus/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	SetRoleAndOverride(ctx context.Context, userID int64, roleID *int64, additional, excluded []string) error
	SetOverride(ctx context.Context, userID int64, additional, excluded []string) error
}

// RolePort supplies role records.
type RolePort interface {
	Get(ctx context.Context, id int64) (access.Role, error)
}

// CatalogPort supplies catalog snapshots for the resolver.
type CatalogPort interface {
	Snapshot(ctx context.Context) (*access.Catalog, error)
}

// Auditor records override mutations.
type Auditor interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// Service handles user and override business logic.
type Service struct {
	repo    RepositoryPort
	roles   RolePort
	catalog CatalogPort
	audit   Auditor
	logger  *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, roles RolePort, cat CatalogPort, audit Auditor, logger *slog.Logger) *Service {
	return &Service{repo: repo, roles: roles, catalog: cat, audit: audit, logger: logger}
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// EffectiveFor resolves the effective permission set for one user. It
// satisfies the authorization middleware's resolver contract, so every
// guarded route runs through this path.
func (s *Service) EffectiveFor(ctx context.Context, userID int64) (access.PermissionSet, error) {
	user, role, cat, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	ov := user.Override()
	return access.Resolve(role, &ov, cat), nil
}

// Matrix describes a user's full permission picture for the admin UI.
type Matrix struct {
	User      User
	Role      *access.Role
	Catalog   []access.Permission
	States    map[string]access.SlugState
	Effective access.PermissionSet
}

// PermissionMatrix classifies every catalog slug for the user and
// resolves the effective set in one pass.
func (s *Service) PermissionMatrix(ctx context.Context, userID int64) (Matrix, error) {
	user, role, cat, err := s.load(ctx, userID)
	if err != nil {
		return Matrix{}, err
	}
	ov := user.Override()

	states := make(map[string]access.SlugState, cat.Len())
	for _, p := range cat.Permissions() {
		states[p.Slug] = access.StateOf(p.Slug, role, &ov)
	}
	return Matrix{
		User:      user,
		Role:      role,
		Catalog:   cat.Permissions(),
		States:    states,
		Effective: access.Resolve(role, &ov, cat),
	}, nil
}

// AssignInput is the role assignment payload: the role reference plus
// the already-reconciled override triple the admin UI computed.
type AssignInput struct {
	RoleID     *int64   `json:"role"`
	Additional []string `json:"additionalPermissions"`
	Excluded   []string `json:"excludedPermissions"`
}

// AssignRole changes a user's role. The server never trusts the
// submitted triple: the reconciler re-runs against the new role and the
// result is what gets stored, so invariants hold even against a buggy
// or hostile client.
func (s *Service) AssignRole(ctx context.Context, actorID, userID int64, input AssignInput) (User, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}

	var role *access.Role
	if input.RoleID != nil {
		r, err := s.roles.Get(ctx, *input.RoleID)
		if err != nil {
			return User{}, err
		}
		role = &r
	}

	submitted := access.Override{
		UserID:     userID,
		Additional: access.NewPermissionSet(input.Additional...),
		Excluded:   access.NewPermissionSet(input.Excluded...),
	}
	reconciled := access.Reconcile(&submitted, role)
	if err := access.ValidateOverride(reconciled, role); err != nil {
		return User{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}

	if err := s.repo.SetRoleAndOverride(ctx, userID, input.RoleID, reconciled.Additional.Slice(), reconciled.Excluded.Slice()); err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, "users.assign_role", userID, map[string]any{
		"role":       input.RoleID,
		"additional": reconciled.Additional.Slice(),
		"excluded":   reconciled.Excluded.Slice(),
	})

	user.RoleID = input.RoleID
	user.Additional = reconciled.Additional
	user.Excluded = reconciled.Excluded
	if role != nil {
		user.RoleName = role.Name
	} else {
		user.RoleName = ""
	}
	return user, nil
}

// ToggleResult reports the outcome of one permission toggle.
type ToggleResult struct {
	NoOp      bool
	State     access.SlugState
	Override  access.Override
	Effective access.PermissionSet
}

// Toggle flips one slug for one user and persists the new override.
// Toggling a super-admin is a no-op, reported as such so the UI can tell
// the operator instead of swallowing the click. Concurrent toggles by
// two administrators race with last-write-wins semantics; the second
// write fully overwrites the first's delta.
func (s *Service) Toggle(ctx context.Context, actorID, userID int64, rawSlug string) (ToggleResult, error) {
	slug := catalog.NormalizeSlug(rawSlug)
	if err := catalog.ValidateSlug(slug); err != nil {
		return ToggleResult{}, err
	}

	user, role, cat, err := s.load(ctx, userID)
	if err != nil {
		return ToggleResult{}, err
	}
	// A well-formed slug the catalog has never seen would persist as an
	// inert grant no prune task cleans up. Refuse it at the door.
	if !cat.Knows(slug) {
		return ToggleResult{}, fmt.Errorf("%w: unknown permission %s", httpx.ErrValidation, slug)
	}
	ov := user.Override()

	next, state, err := access.Toggle(slug, role, &ov)
	if err != nil {
		if errors.Is(err, access.ErrSuperAdminRole) {
			return ToggleResult{
				NoOp:      true,
				State:     state,
				Override:  next,
				Effective: access.Resolve(role, &ov, cat),
			}, nil
		}
		return ToggleResult{}, err
	}
	if err := access.ValidateOverride(next, role); err != nil {
		return ToggleResult{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}

	if err := s.repo.SetOverride(ctx, userID, next.Additional.Slice(), next.Excluded.Slice()); err != nil {
		return ToggleResult{}, err
	}
	s.record(ctx, actorID, "users.toggle_permission", userID, map[string]any{
		"slug":  slug,
		"state": string(state),
	})

	return ToggleResult{
		State:     state,
		Override:  next,
		Effective: access.Resolve(role, &next, cat),
	}, nil
}

// load fetches the user and catalog concurrently, then the user's role.
func (s *Service) load(ctx context.Context, userID int64) (User, *access.Role, *access.Catalog, error) {
	var (
		user User
		cat  *access.Catalog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.repo.Get(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		cat, err = s.catalog.Snapshot(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return User{}, nil, nil, err
	}

	var role *access.Role
	if user.RoleID != nil {
		r, err := s.roles.Get(ctx, *user.RoleID)
		switch {
		case errors.Is(err, httpx.ErrNotFound):
			// Role deleted under the user: treat as unassigned.
		case err != nil:
			return User{}, nil, nil, err
		default:
			role = &r
		}
	}
	return user, role, cat, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", userID),
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
