package access

import (
	"errors"
	"math/rand"
	"testing"
)

func standardRole(slugs ...string) *Role {
	return &Role{
		ID:          1,
		Kind:        RoleStandard,
		Status:      RoleActive,
		Permissions: NewPermissionSet(slugs...),
	}
}

func TestToggleStates(t *testing.T) {
	role := standardRole("voyage.view", "voyage.edit")

	cases := []struct {
		name      string
		slug      string
		ov        *Override
		wantState SlugState
		wantAdd   PermissionSet
		wantExcl  PermissionSet
	}{
		{
			name:      "revoke role-granted slug",
			slug:      "voyage.edit",
			ov:        nil,
			wantState: StateExcluded,
			wantAdd:   NewPermissionSet(),
			wantExcl:  NewPermissionSet("voyage.edit"),
		},
		{
			name:      "restore excluded slug to role default",
			slug:      "voyage.edit",
			ov:        &Override{Excluded: NewPermissionSet("voyage.edit")},
			wantState: StateRoleGranted,
			wantAdd:   NewPermissionSet(),
			wantExcl:  NewPermissionSet(),
		},
		{
			name:      "grant exception beyond role",
			slug:      "report.export",
			ov:        nil,
			wantState: StateAdditional,
			wantAdd:   NewPermissionSet("report.export"),
			wantExcl:  NewPermissionSet(),
		},
		{
			name:      "revert additive exception",
			slug:      "report.export",
			ov:        &Override{Additional: NewPermissionSet("report.export")},
			wantState: StateNone,
			wantAdd:   NewPermissionSet(),
			wantExcl:  NewPermissionSet(),
		},
		{
			name:      "excluding strips conflicting additive entry",
			slug:      "voyage.edit",
			ov:        &Override{Additional: NewPermissionSet("voyage.edit")},
			wantState: StateExcluded,
			wantAdd:   NewPermissionSet(),
			wantExcl:  NewPermissionSet("voyage.edit"),
		},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, state, err := Toggle(tt.slug, role, tt.ov)
			if err != nil {
				t.Fatalf("toggle: %v", err)
			}
			if state != tt.wantState {
				t.Fatalf("state = %s, want %s", state, tt.wantState)
			}
			if !got.Additional.Equal(tt.wantAdd) {
				t.Fatalf("additional = %v, want %v", got.Additional.Slice(), tt.wantAdd.Slice())
			}
			if !got.Excluded.Equal(tt.wantExcl) {
				t.Fatalf("excluded = %v, want %v", got.Excluded.Slice(), tt.wantExcl.Slice())
			}
		})
	}
}

func TestToggleSuperAdminNoOp(t *testing.T) {
	admin := &Role{ID: 2, Kind: RoleSuperAdmin, Status: RoleActive}
	got, state, err := Toggle("voyage.edit", admin, &Override{UserID: 3})
	if !errors.Is(err, ErrSuperAdminRole) {
		t.Fatalf("expected ErrSuperAdminRole, got %v", err)
	}
	if state != StateRoleGranted {
		t.Fatalf("state = %s, want %s", state, StateRoleGranted)
	}
	if !got.IsEmpty() {
		t.Fatalf("super-admin override must stay empty: %+v", got)
	}
}

func TestStateOf(t *testing.T) {
	role := standardRole("voyage.view", "voyage.edit")
	ov := &Override{
		Additional: NewPermissionSet("report.export"),
		Excluded:   NewPermissionSet("voyage.edit"),
	}

	cases := []struct {
		slug string
		want SlugState
	}{
		{"voyage.view", StateRoleGranted},
		{"voyage.edit", StateExcluded},
		{"report.export", StateAdditional},
		{"vessels.delete", StateNone},
	}
	for _, tt := range cases {
		if got := StateOf(tt.slug, role, ov); got != tt.want {
			t.Fatalf("StateOf(%s) = %s, want %s", tt.slug, got, tt.want)
		}
	}

	admin := &Role{Kind: RoleSuperAdmin}
	if got := StateOf("anything.at-all", admin, ov); got != StateRoleGranted {
		t.Fatalf("super-admin StateOf = %s, want %s", got, StateRoleGranted)
	}
}

func TestToggleDoubleToggleIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	for i := 0; i < 500; i++ {
		role := &Role{
			ID:          1,
			Kind:        RoleStandard,
			Status:      RoleActive,
			Permissions: randomSubset(rng, slugUniverse),
		}
		// Start from a consistent override so the round trip is exact.
		start := Reconcile(&Override{
			UserID:     int64(i),
			Additional: randomSubset(rng, slugUniverse),
			Excluded:   randomSubset(rng, slugUniverse),
		}, role)

		slug := slugUniverse[rng.Intn(len(slugUniverse))]
		once, _, err := Toggle(slug, role, &start)
		if err != nil {
			t.Fatalf("first toggle: %v", err)
		}
		twice, _, err := Toggle(slug, role, &once)
		if err != nil {
			t.Fatalf("second toggle: %v", err)
		}
		if !twice.Additional.Equal(start.Additional) || !twice.Excluded.Equal(start.Excluded) {
			t.Fatalf("double toggle of %s did not restore override: start add=%v excl=%v, end add=%v excl=%v",
				slug, start.Additional.Slice(), start.Excluded.Slice(), twice.Additional.Slice(), twice.Excluded.Slice())
		}
	}
}

func TestToggleKeepsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	for i := 0; i < 500; i++ {
		role := &Role{
			ID:          1,
			Kind:        RoleStandard,
			Status:      RoleActive,
			Permissions: randomSubset(rng, slugUniverse),
		}
		ov := Reconcile(&Override{
			Additional: randomSubset(rng, slugUniverse),
			Excluded:   randomSubset(rng, slugUniverse),
		}, role)

		slug := slugUniverse[rng.Intn(len(slugUniverse))]
		got, _, err := Toggle(slug, role, &ov)
		if err != nil {
			t.Fatalf("toggle: %v", err)
		}
		if err := ValidateOverride(got, role); err != nil {
			t.Fatalf("toggle broke invariants for %s: %v", slug, err)
		}
	}
}
