package access

import (
	"math/rand"
	"testing"
)

func TestReconcileRoleReassignment(t *testing.T) {
	// ops-staff user with an export exception and a revoked voyage.edit is
	// moved to fleet-manager, whose baseline already covers the export.
	oldOverride := &Override{
		UserID:     7,
		RoleID:     1,
		Additional: NewPermissionSet("report.export"),
		Excluded:   NewPermissionSet("voyage.edit"),
	}
	fleetManager := &Role{
		ID:          2,
		Name:        "fleet-manager",
		Kind:        RoleStandard,
		Status:      RoleActive,
		Permissions: NewPermissionSet("voyage.view", "voyage.edit", "report.export"),
	}

	got := Reconcile(oldOverride, fleetManager)

	if got.UserID != 7 || got.RoleID != 2 {
		t.Fatalf("identity not carried: %+v", got)
	}
	if got.Additional.Len() != 0 {
		t.Fatalf("native grant must be dropped from additional, got %v", got.Additional.Slice())
	}
	// voyage.edit is still granted by the new role, so the exclusion stays.
	if !got.Excluded.Equal(NewPermissionSet("voyage.edit")) {
		t.Fatalf("exclusion = %v, want [voyage.edit]", got.Excluded.Slice())
	}

	catalog := testCatalog(
		activePerm("voyage.view"),
		activePerm("voyage.edit"),
		activePerm("report.export"),
	)
	effective := Resolve(fleetManager, &got, catalog)
	if !effective.Equal(NewPermissionSet("voyage.view", "report.export")) {
		t.Fatalf("effective after reassignment = %v", effective.Slice())
	}
}

func TestReconcileDropsMeaninglessExclusions(t *testing.T) {
	ov := &Override{
		Excluded: NewPermissionSet("voyage.edit", "vessels.delete"),
	}
	role := &Role{
		ID:          3,
		Kind:        RoleStandard,
		Status:      RoleActive,
		Permissions: NewPermissionSet("voyage.edit"),
	}
	got := Reconcile(ov, role)
	if !got.Excluded.Equal(NewPermissionSet("voyage.edit")) {
		t.Fatalf("exclusions = %v, want [voyage.edit]", got.Excluded.Slice())
	}
}

func TestReconcileSuperAdminClearsOverride(t *testing.T) {
	ov := &Override{
		UserID:     9,
		Additional: NewPermissionSet("report.export"),
		Excluded:   NewPermissionSet("voyage.edit"),
	}
	admin := &Role{ID: 4, Kind: RoleSuperAdmin, Status: RoleActive}

	got := Reconcile(ov, admin)
	if !got.IsEmpty() {
		t.Fatalf("super-admin reassignment must clear the override: %+v", got)
	}
}

func TestReconcileNilInputs(t *testing.T) {
	got := Reconcile(nil, nil)
	if !got.IsEmpty() || got.UserID != 0 || got.RoleID != 0 {
		t.Fatalf("nil inputs must produce the empty override, got %+v", got)
	}
}

func TestReconcileClosure(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 500; i++ {
		ov := &Override{
			UserID:     int64(i),
			Additional: randomSubset(rng, slugUniverse),
			Excluded:   randomSubset(rng, slugUniverse),
		}
		role := &Role{
			ID:          int64(i%5) + 1,
			Kind:        RoleStandard,
			Status:      RoleActive,
			Permissions: randomSubset(rng, slugUniverse),
		}

		got := Reconcile(ov, role)
		if err := ValidateOverride(got, role); err != nil {
			t.Fatalf("reconciled override violates invariants: %v (additional=%v excluded=%v baseline=%v)",
				err, got.Additional.Slice(), got.Excluded.Slice(), role.Permissions.Slice())
		}

		// Reconciling twice must be a fixed point.
		again := Reconcile(&got, role)
		if !again.Additional.Equal(got.Additional) || !again.Excluded.Equal(got.Excluded) {
			t.Fatalf("reconcile is not idempotent")
		}
	}
}
