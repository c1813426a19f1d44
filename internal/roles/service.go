package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pelorus-marine/pelorus/internal/access"
	"github.com/pelorus-marine/pelorus/internal/catalog"
	"github.com/pelorus-marine/pelorus/internal/platform/httpx"
	"github.com/pelorus-marine/pelorus/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	List(ctx context.Context) ([]access.Role, error)
	Get(ctx context.Context, id int64) (access.Role, error)
	Create(ctx context.Context, role access.Role) (access.Role, error)
	Update(ctx context.Context, role access.Role, reconciled []access.Override) (access.Role, error)
	Delete(ctx context.Context, id int64) error
	HolderCount(ctx context.Context, id int64) (int64, error)
	HolderOverrides(ctx context.Context, roleID int64) ([]access.Override, error)
}

// Auditor records role mutations.
type Auditor interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// Service handles role business logic.
type Service struct {
	repo     RepositoryPort
	audit    Auditor
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit Auditor, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, validate: validator.New(), logger: logger}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]access.Role, error) {
	return s.repo.List(ctx)
}

// Get returns one role.
func (s *Service) Get(ctx context.Context, id int64) (access.Role, error) {
	return s.repo.Get(ctx, id)
}

// Input carries role create/update fields. Administrators can only
// create standard roles; the super-admin role is seeded once and its
// kind can never be granted or removed through this surface.
type Input struct {
	Name        string   `json:"name" validate:"required,max=80"`
	Status      string   `json:"status" validate:"omitempty,oneof=active inactive"`
	Permissions []string `json:"permissions"`
}

// Create inserts a new standard role with a normalized baseline.
func (s *Service) Create(ctx context.Context, actorID int64, input Input) (access.Role, error) {
	role, err := s.roleFromInput(input)
	if err != nil {
		return access.Role{}, err
	}
	role.Kind = access.RoleStandard

	created, err := s.repo.Create(ctx, role)
	if err != nil {
		return access.Role{}, err
	}
	s.record(ctx, actorID, "roles.create", created.Name, map[string]any{"permissions": created.Permissions.Slice()})
	return created, nil
}

// Update replaces a role's name, status and baseline. A baseline edit
// can turn a holder's additional grant redundant or strand an exclusion
// outside the baseline, so every holder's stored override is reconciled
// against the new baseline in the same write.
func (s *Service) Update(ctx context.Context, actorID, id int64, input Input) (access.Role, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return access.Role{}, err
	}
	if current.Kind == access.RoleSuperAdmin {
		return access.Role{}, fmt.Errorf("%w: the super-admin role cannot be edited", httpx.ErrForbidden)
	}

	role, err := s.roleFromInput(input)
	if err != nil {
		return access.Role{}, err
	}
	role.ID = id
	role.Kind = current.Kind

	holders, err := s.repo.HolderOverrides(ctx, id)
	if err != nil {
		return access.Role{}, err
	}
	reconciled := make([]access.Override, 0, len(holders))
	for i := range holders {
		next := access.Reconcile(&holders[i], &role)
		if next.Additional.Equal(holders[i].Additional) && next.Excluded.Equal(holders[i].Excluded) {
			continue
		}
		reconciled = append(reconciled, next)
	}

	updated, err := s.repo.Update(ctx, role, reconciled)
	if err != nil {
		return access.Role{}, err
	}
	s.record(ctx, actorID, "roles.update", updated.Name, map[string]any{"permissions": updated.Permissions.Slice()})
	return updated, nil
}

// Delete removes a role. The operation is destructive for every holder,
// so the caller must echo the role name and no user may still hold it.
func (s *Service) Delete(ctx context.Context, actorID, id int64, confirm string) error {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if role.Kind == access.RoleSuperAdmin {
		return fmt.Errorf("%w: the super-admin role cannot be deleted", httpx.ErrForbidden)
	}
	if confirm != role.Name {
		return fmt.Errorf("%w: confirmation must repeat the role name %q", httpx.ErrValidation, role.Name)
	}
	holders, err := s.repo.HolderCount(ctx, id)
	if err != nil {
		return err
	}
	if holders > 0 {
		return fmt.Errorf("%w: %d users still hold role %s", httpx.ErrConflict, holders, role.Name)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "roles.delete", role.Name, nil)
	return nil
}

func (s *Service) roleFromInput(input Input) (access.Role, error) {
	if err := s.validate.Struct(input); err != nil {
		return access.Role{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	status := access.RoleStatus(input.Status)
	if status == "" {
		status = access.RoleActive
	}

	// Baseline slugs are normalized but not checked against the catalog:
	// the resolver masks anything the catalog does not actively know, so
	// a stale or not-yet-created slug in a baseline is harmless.
	baseline := make([]string, 0, len(input.Permissions))
	for _, raw := range input.Permissions {
		slug := catalog.NormalizeSlug(raw)
		if err := catalog.ValidateSlug(slug); err != nil {
			return access.Role{}, err
		}
		baseline = append(baseline, slug)
	}

	return access.Role{
		Name:        strings.TrimSpace(input.Name),
		Status:      status,
		Permissions: access.NewPermissionSet(baseline...),
	}, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "role",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
