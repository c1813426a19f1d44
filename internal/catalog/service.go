package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/pelorus-marine/pelorus/internal/access"
	"github.com/pelorus-marine/pelorus/internal/platform/httpx"
	"github.com/pelorus-marine/pelorus/internal/shared"
)

// RepositoryPort defines data access methods for the catalog.
type RepositoryPort interface {
	List(ctx context.Context) ([]access.Permission, error)
	Get(ctx context.Context, id int64) (access.Permission, error)
	CreateBatch(ctx context.Context, entries []access.Permission) ([]access.Permission, error)
	Update(ctx context.Context, p access.Permission) (access.Permission, error)
	Rename(ctx context.Context, id int64, newSlug string) (access.Permission, error)
	Delete(ctx context.Context, id int64) error
	CountReferences(ctx context.Context, slug string) (ReferenceCounts, error)
}

// PruneEnqueuer schedules background pruning of stale slug references.
type PruneEnqueuer interface {
	EnqueuePrune(ctx context.Context, slug string) error
}

// Auditor records catalog mutations.
type Auditor interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// Service orchestrates catalog maintenance.
type Service struct {
	repo     RepositoryPort
	cache    *SnapshotCache
	audit    Auditor
	prune    PruneEnqueuer
	validate *validator.Validate
	logger   *slog.Logger
	loads    singleflight.Group
}

// NewService builds a Service instance. cache, audit and prune may be nil
// in tests.
func NewService(repo RepositoryPort, cache *SnapshotCache, audit Auditor, prune PruneEnqueuer, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		audit:    audit,
		prune:    prune,
		validate: validator.New(),
		logger:   logger,
	}
}

// Snapshot returns a point-in-time catalog for resolver input. Concurrent
// cache misses collapse into a single database read.
func (s *Service) Snapshot(ctx context.Context) (*access.Catalog, error) {
	if perms, ok := s.cache.Get(ctx); ok {
		return access.NewCatalog(perms), nil
	}
	v, err, _ := s.loads.Do("snapshot", func() (any, error) {
		perms, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, perms)
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return access.NewCatalog(v.([]access.Permission)), nil
}

// List returns every catalog entry.
func (s *Service) List(ctx context.Context) ([]access.Permission, error) {
	return s.repo.List(ctx)
}

// PermissionInput is one row of a batch create request.
type PermissionInput struct {
	Slug        string `json:"slug" validate:"required,max=120"`
	Name        string `json:"name" validate:"omitempty,max=120"`
	Description string `json:"description" validate:"omitempty,max=500"`
	Status      string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// CreateBatch validates and inserts a batch of permissions scoped to one
// resource. Validation failures are reported per offending row before any
// write happens; a slug already present in the catalog surfaces as a
// conflict from the repository.
func (s *Service) CreateBatch(ctx context.Context, actorID int64, resourceID string, inputs []PermissionInput) ([]access.Permission, error) {
	resourceID = strings.TrimSpace(strings.ToLower(resourceID))
	if resourceID == "" {
		return nil, fmt.Errorf("%w: resource is required", httpx.ErrValidation)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one permission row is required", httpx.ErrValidation)
	}

	rowErrors := make(map[string]string)
	seen := make(map[string]int, len(inputs))
	entries := make([]access.Permission, 0, len(inputs))
	for i, input := range inputs {
		rowKey := func(field string) string { return "rows[" + strconv.Itoa(i) + "]." + field }

		if err := s.validate.Struct(input); err != nil {
			for _, fieldErr := range err.(validator.ValidationErrors) {
				rowErrors[rowKey(strings.ToLower(fieldErr.Field()))] = fieldErr.Tag()
			}
			continue
		}

		slug := NormalizeSlug(input.Slug)
		if err := ValidateSlug(slug); err != nil {
			rowErrors[rowKey("slug")] = err.Error()
			continue
		}
		if prev, dup := seen[slug]; dup {
			rowErrors[rowKey("slug")] = fmt.Sprintf("duplicate of row %d", prev)
			continue
		}
		seen[slug] = i

		name := strings.TrimSpace(input.Name)
		if name == "" {
			name = DisplayName(slug)
		}
		status := access.PermissionStatus(input.Status)
		if status == "" {
			status = access.PermissionActive
		}
		entries = append(entries, access.Permission{
			Slug:        slug,
			Name:        name,
			Description: strings.TrimSpace(input.Description),
			ResourceID:  resourceID,
			Status:      status,
		})
	}
	if len(rowErrors) > 0 {
		return nil, &BatchError{Rows: rowErrors}
	}

	created, err := s.repo.CreateBatch(ctx, entries)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.record(ctx, actorID, "permissions.create", "resource", resourceID, map[string]any{"slugs": slugsOf(created)})
	return created, nil
}

// UpdateInput carries editable fields for one catalog entry.
type UpdateInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"omitempty,max=500"`
	Status      string `json:"status" validate:"required,oneof=active inactive"`
}

// Update edits name, description and status. Flipping status to inactive
// masks the slug from every effective set immediately; no cascade runs
// because nothing else stores the status.
func (s *Service) Update(ctx context.Context, actorID, id int64, input UpdateInput) (access.Permission, error) {
	if err := s.validate.Struct(input); err != nil {
		return access.Permission{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return access.Permission{}, err
	}
	current.Name = strings.TrimSpace(input.Name)
	current.Description = strings.TrimSpace(input.Description)
	current.Status = access.PermissionStatus(input.Status)

	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return access.Permission{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, actorID, "permissions.update", "permission", updated.Slug, map[string]any{"status": string(updated.Status)})
	return updated, nil
}

// RenameResult reports the outcome of a slug rename, including how many
// stored documents referenced the old slug at the time of the rename.
type RenameResult struct {
	Permission access.Permission `json:"permission"`
	OldSlug    string            `json:"oldSlug"`
	References ReferenceCounts   `json:"references"`
}

// Rename changes an entry's slug. This is a breaking operation: stored
// role and override references to the old slug silently stop matching.
// The caller must echo the normalized new slug in confirm, and a prune
// task is scheduled to rewrite the referencing documents.
func (s *Service) Rename(ctx context.Context, actorID, id int64, newSlug, confirm string) (RenameResult, error) {
	normalized := NormalizeSlug(newSlug)
	if err := ValidateSlug(normalized); err != nil {
		return RenameResult{}, err
	}
	if confirm != normalized {
		return RenameResult{}, fmt.Errorf("%w: confirmation must repeat the new slug %q", httpx.ErrValidation, normalized)
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return RenameResult{}, err
	}
	if current.Slug == normalized {
		return RenameResult{}, fmt.Errorf("%w: slug is unchanged", httpx.ErrValidation)
	}

	refs, err := s.repo.CountReferences(ctx, current.Slug)
	if err != nil {
		return RenameResult{}, err
	}
	renamed, err := s.repo.Rename(ctx, id, normalized)
	if err != nil {
		return RenameResult{}, err
	}
	s.invalidate(ctx)
	s.enqueuePrune(ctx, current.Slug)
	s.record(ctx, actorID, "permissions.rename", "permission", normalized, map[string]any{
		"old_slug": current.Slug,
		"roles":    refs.Roles,
		"users":    refs.Users,
	})
	return RenameResult{Permission: renamed, OldSlug: current.Slug, References: refs}, nil
}

// Delete removes an entry and schedules pruning of stale references.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.enqueuePrune(ctx, current.Slug)
	s.record(ctx, actorID, "permissions.delete", "permission", current.Slug, nil)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.Warn("invalidate catalog snapshot", slog.Any("error", err))
	}
}

func (s *Service) enqueuePrune(ctx context.Context, slug string) {
	if s.prune == nil {
		return
	}
	if err := s.prune.EnqueuePrune(ctx, slug); err != nil && s.logger != nil {
		// Stale references stay masked by the resolver, so a failed
		// enqueue costs storage hygiene, not correctness.
		s.logger.Warn("enqueue prune task", slog.String("slug", slug), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func slugsOf(perms []access.Permission) []string {
	slugs := make([]string, 0, len(perms))
	for _, p := range perms {
		slugs = append(slugs, p.Slug)
	}
	sort.Strings(slugs)
	return slugs
}
