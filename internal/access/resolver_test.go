package access

import (
	"math/rand"
	"testing"
)

func testCatalog(entries ...Permission) *Catalog {
	return NewCatalog(entries)
}

func activePerm(slug string) Permission {
	return Permission{Slug: slug, Status: PermissionActive}
}

func inactivePerm(slug string) Permission {
	return Permission{Slug: slug, Status: PermissionInactive}
}

func TestResolveOverrideAlgebra(t *testing.T) {
	catalog := testCatalog(
		activePerm("voyage.view"),
		activePerm("voyage.edit"),
		activePerm("report.export"),
	)
	role := &Role{
		ID:          1,
		Name:        "ops-staff",
		Kind:        RoleStandard,
		Status:      RoleActive,
		Permissions: NewPermissionSet("voyage.view", "voyage.edit"),
	}
	ov := &Override{
		UserID:     7,
		RoleID:     1,
		Additional: NewPermissionSet("report.export"),
		Excluded:   NewPermissionSet("voyage.edit"),
	}

	got := Resolve(role, ov, catalog)
	want := NewPermissionSet("voyage.view", "report.export")
	if !got.Equal(want) {
		t.Fatalf("effective set = %v, want %v", got.Slice(), want.Slice())
	}
}

func TestResolveInactiveMasking(t *testing.T) {
	// Same user as above after report.export is retired: the override is
	// untouched, only the catalog changed.
	catalog := testCatalog(
		activePerm("voyage.view"),
		activePerm("voyage.edit"),
		inactivePerm("report.export"),
	)
	role := &Role{
		ID:          1,
		Kind:        RoleStandard,
		Status:      RoleActive,
		Permissions: NewPermissionSet("voyage.view", "voyage.edit"),
	}
	ov := &Override{
		Additional: NewPermissionSet("report.export"),
		Excluded:   NewPermissionSet("voyage.edit"),
	}

	got := Resolve(role, ov, catalog)
	if !got.Equal(NewPermissionSet("voyage.view")) {
		t.Fatalf("effective set = %v, want [voyage.view]", got.Slice())
	}
}

func TestResolveNilInputs(t *testing.T) {
	catalog := testCatalog(activePerm("vessels.view"))

	if got := Resolve(nil, nil, catalog); got.Len() != 0 {
		t.Fatalf("unassigned role must resolve to empty set, got %v", got.Slice())
	}

	role := &Role{Kind: RoleStandard, Status: RoleActive, Permissions: NewPermissionSet("vessels.view")}
	if got := Resolve(role, nil, catalog); !got.Equal(NewPermissionSet("vessels.view")) {
		t.Fatalf("nil override must behave as empty sets, got %v", got.Slice())
	}
}

func TestResolveDropsStaleReferences(t *testing.T) {
	// Catalog no longer knows voyage.edit (renamed) nor report.export
	// (deleted). Both must vanish without error.
	catalog := testCatalog(activePerm("voyage.view"))
	role := &Role{
		Kind:        RoleStandard,
		Status:      RoleActive,
		Permissions: NewPermissionSet("voyage.view", "voyage.edit"),
	}
	ov := &Override{Additional: NewPermissionSet("report.export")}

	got := Resolve(role, ov, catalog)
	if !got.Equal(NewPermissionSet("voyage.view")) {
		t.Fatalf("stale slugs must be dropped, got %v", got.Slice())
	}
}

func TestResolveInactiveRole(t *testing.T) {
	catalog := testCatalog(activePerm("vessels.view"), activePerm("vessels.edit"))
	role := &Role{
		Kind:        RoleStandard,
		Status:      RoleInactive,
		Permissions: NewPermissionSet("vessels.view", "vessels.edit"),
	}
	got := Resolve(role, nil, catalog)
	if got.Len() != 0 {
		t.Fatalf("inactive role must grant nothing, got %v", got.Slice())
	}
}

func TestResolveSuperAdminTotality(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		entries, active := randomCatalog(rng)
		catalog := testCatalog(entries...)
		role := &Role{
			ID:          int64(i),
			Kind:        RoleSuperAdmin,
			Status:      RoleActive,
			Permissions: randomSubset(rng, slugUniverse),
		}
		ov := &Override{
			Additional: randomSubset(rng, slugUniverse),
			Excluded:   randomSubset(rng, slugUniverse),
		}

		got := Resolve(role, ov, catalog)
		if !got.Equal(active) {
			t.Fatalf("super-admin must resolve to all active slugs: got %v, want %v", got.Slice(), active.Slice())
		}
	}
}

func TestResolveNeverExceedsActiveCatalog(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		entries, active := randomCatalog(rng)
		catalog := testCatalog(entries...)
		role := &Role{
			Kind:        RoleStandard,
			Status:      RoleActive,
			Permissions: randomSubset(rng, slugUniverse),
		}
		ov := &Override{
			Additional: randomSubset(rng, slugUniverse),
			Excluded:   randomSubset(rng, slugUniverse),
		}

		got := Resolve(role, ov, catalog)
		for slug := range got {
			if !active.Has(slug) {
				t.Fatalf("slug %s resolved but is not active in catalog", slug)
			}
			if ov.Excluded.Has(slug) {
				t.Fatalf("slug %s resolved despite exclusion", slug)
			}
		}
	}
}

// slugUniverse is the pool randomized tests draw from.
var slugUniverse = []string{
	"companies.view", "companies.edit", "companies.delete",
	"vessels.view", "vessels.edit", "vessels.delete",
	"voyage.view", "voyage.edit", "voyage.delete",
	"report.view", "report.export",
	"users.view", "users.manage",
	"roles.view", "roles.manage",
	"permissions.view", "permissions.manage",
}

func randomSubset(rng *rand.Rand, universe []string) PermissionSet {
	set := make(PermissionSet)
	for _, slug := range universe {
		if rng.Intn(2) == 0 {
			set[slug] = struct{}{}
		}
	}
	return set
}

func randomCatalog(rng *rand.Rand) ([]Permission, PermissionSet) {
	entries := make([]Permission, 0, len(slugUniverse))
	active := make(PermissionSet)
	for _, slug := range slugUniverse {
		switch rng.Intn(3) {
		case 0:
			// absent from catalog
		case 1:
			entries = append(entries, inactivePerm(slug))
		default:
			entries = append(entries, activePerm(slug))
			active[slug] = struct{}{}
		}
	}
	return entries, active
}
