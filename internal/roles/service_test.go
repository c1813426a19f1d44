package roles

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelorus-marine/pelorus/internal/access"
	"github.com/pelorus-marine/pelorus/internal/platform/httpx"
)

type stubRepo struct {
	roles      map[int64]access.Role
	nextID     int64
	holders    map[int64]int64
	overrides  []access.Override
	reconciled []access.Override
	deleted    []int64
}

func newStubRepo(roles ...access.Role) *stubRepo {
	r := &stubRepo{roles: make(map[int64]access.Role), nextID: 1, holders: make(map[int64]int64)}
	for _, role := range roles {
		role.ID = r.nextID
		r.roles[role.ID] = role
		r.nextID++
	}
	return r
}

func (r *stubRepo) List(context.Context) ([]access.Role, error) {
	out := make([]access.Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out, nil
}

func (r *stubRepo) Get(_ context.Context, id int64) (access.Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return access.Role{}, fmt.Errorf("roles: role %d: %w", id, httpx.ErrNotFound)
	}
	return role, nil
}

func (r *stubRepo) Create(_ context.Context, role access.Role) (access.Role, error) {
	role.ID = r.nextID
	r.roles[role.ID] = role
	r.nextID++
	return role, nil
}

func (r *stubRepo) Update(_ context.Context, role access.Role, reconciled []access.Override) (access.Role, error) {
	if _, ok := r.roles[role.ID]; !ok {
		return access.Role{}, httpx.ErrNotFound
	}
	r.roles[role.ID] = role
	r.reconciled = append(r.reconciled, reconciled...)
	return role, nil
}

func (r *stubRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.roles[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(r.roles, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *stubRepo) HolderCount(_ context.Context, id int64) (int64, error) {
	return r.holders[id], nil
}

func (r *stubRepo) HolderOverrides(_ context.Context, roleID int64) ([]access.Override, error) {
	var out []access.Override
	for _, ov := range r.overrides {
		if ov.RoleID == roleID {
			out = append(out, ov)
		}
	}
	return out, nil
}

func TestCreateNormalizesBaseline(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.Create(context.Background(), 1, Input{
		Name:        " ops-staff ",
		Permissions: []string{"Voyage.View", " voyage.edit "},
	})
	require.NoError(t, err)
	assert.Equal(t, "ops-staff", created.Name)
	assert.Equal(t, access.RoleStandard, created.Kind)
	assert.Equal(t, access.RoleActive, created.Status)
	assert.True(t, created.Permissions.Equal(access.NewPermissionSet("voyage.view", "voyage.edit")))
}

func TestCreateRejectsMalformedSlug(t *testing.T) {
	svc := NewService(newStubRepo(), nil, nil)

	_, err := svc.Create(context.Background(), 1, Input{
		Name:        "ops-staff",
		Permissions: []string{"voyageview"},
	})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateRefusesSuperAdmin(t *testing.T) {
	repo := newStubRepo(access.Role{Name: "harbor-master", Kind: access.RoleSuperAdmin, Status: access.RoleActive})
	svc := NewService(repo, nil, nil)

	_, err := svc.Update(context.Background(), 1, 1, Input{Name: "renamed"})
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestDeleteConfirmAndHolders(t *testing.T) {
	repo := newStubRepo(access.Role{Name: "ops-staff", Kind: access.RoleStandard, Status: access.RoleActive})
	svc := NewService(repo, nil, nil)

	err := svc.Delete(context.Background(), 1, 1, "wrong-name")
	assert.ErrorIs(t, err, httpx.ErrValidation)

	repo.holders[1] = 3
	err = svc.Delete(context.Background(), 1, 1, "ops-staff")
	assert.ErrorIs(t, err, httpx.ErrConflict)

	repo.holders[1] = 0
	require.NoError(t, svc.Delete(context.Background(), 1, 1, "ops-staff"))
	assert.Equal(t, []int64{1}, repo.deleted)
}

func TestDeleteRefusesSuperAdmin(t *testing.T) {
	repo := newStubRepo(access.Role{Name: "harbor-master", Kind: access.RoleSuperAdmin, Status: access.RoleActive})
	svc := NewService(repo, nil, nil)

	err := svc.Delete(context.Background(), 1, 1, "harbor-master")
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestUpdateReplacesBaseline(t *testing.T) {
	repo := newStubRepo(access.Role{
		Name:        "ops-staff",
		Kind:        access.RoleStandard,
		Status:      access.RoleActive,
		Permissions: access.NewPermissionSet("voyage.view"),
	})
	svc := NewService(repo, nil, nil)

	updated, err := svc.Update(context.Background(), 1, 1, Input{
		Name:        "ops-staff",
		Status:      "inactive",
		Permissions: []string{"report.export"},
	})
	require.NoError(t, err)
	assert.Equal(t, access.RoleInactive, updated.Status)
	assert.True(t, updated.Permissions.Equal(access.NewPermissionSet("report.export")))
}

func TestUpdateReconcilesHolderOverrides(t *testing.T) {
	repo := newStubRepo(access.Role{
		Name:        "ops-staff",
		Kind:        access.RoleStandard,
		Status:      access.RoleActive,
		Permissions: access.NewPermissionSet("voyage.view", "voyage.edit"),
	})
	repo.overrides = []access.Override{
		// Grant turns redundant once the baseline absorbs report.export.
		{UserID: 7, RoleID: 1, Additional: access.NewPermissionSet("report.export"), Excluded: access.NewPermissionSet("voyage.edit")},
		// Exclusion strands once voyage.edit leaves the baseline.
		{UserID: 8, RoleID: 1, Additional: access.NewPermissionSet(), Excluded: access.NewPermissionSet("voyage.edit")},
		// Untouched by the edit: no write.
		{UserID: 9, RoleID: 1, Additional: access.NewPermissionSet("crew.assign"), Excluded: access.NewPermissionSet()},
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.Update(context.Background(), 1, 1, Input{
		Name:        "ops-staff",
		Permissions: []string{"voyage.view", "report.export"},
	})
	require.NoError(t, err)

	require.Len(t, repo.reconciled, 2)
	assert.Equal(t, int64(7), repo.reconciled[0].UserID)
	assert.Equal(t, 0, repo.reconciled[0].Additional.Len())
	assert.Equal(t, 0, repo.reconciled[0].Excluded.Len())
	assert.Equal(t, int64(8), repo.reconciled[1].UserID)
	assert.Equal(t, 0, repo.reconciled[1].Excluded.Len())
}
