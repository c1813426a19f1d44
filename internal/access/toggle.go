package access

import "errors"

// ErrSuperAdminRole signals that a toggle targeted a super-admin user.
// The toggle is a no-op but the caller must be told, so the operator can
// be informed instead of the click being silently swallowed.
var ErrSuperAdminRole = errors.New("access: super-admin permissions cannot be overridden")

// SlugState is the per-slug rendering state consumed by the permission
// matrix UI.
type SlugState string

const (
	// StateRoleGranted means the role baseline grants the slug.
	StateRoleGranted SlugState = "role-granted"
	// StateNone means neither role nor override touches the slug.
	StateNone SlugState = "none"
	// StateAdditional means the slug is granted as a per-user exception.
	StateAdditional SlugState = "additional"
	// StateExcluded means a role-granted slug is revoked for this user.
	StateExcluded SlugState = "excluded"
)

// StateOf classifies a slug for one user without mutating anything.
func StateOf(slug string, role *Role, ov *Override) SlugState {
	if role.IsSuperAdmin() {
		return StateRoleGranted
	}
	if role.Baseline().Has(slug) {
		if ov.excluded().Has(slug) {
			return StateExcluded
		}
		return StateRoleGranted
	}
	if ov.additional().Has(slug) {
		return StateAdditional
	}
	return StateNone
}

// Toggle applies one checkbox click to an override and returns the new
// override with the slug's resulting state.
//
// For a role-granted slug the toggle flips the exclusion: excluding it
// revokes the permission for this one user, toggling again restores the
// role default. For any other slug the toggle flips the additive grant.
// Either direction strips the slug from the opposite set, so invariant 3
// holds by construction, and toggling twice always returns to the
// original override.
func Toggle(slug string, role *Role, ov *Override) (Override, SlugState, error) {
	if role.IsSuperAdmin() {
		return Override{
			UserID:     ov.userID(),
			RoleID:     roleID(role),
			Additional: PermissionSet{},
			Excluded:   PermissionSet{},
		}, StateRoleGranted, ErrSuperAdminRole
	}

	out := Override{
		UserID:     ov.userID(),
		RoleID:     roleID(role),
		Additional: ov.additional().Clone(),
		Excluded:   ov.excluded().Clone(),
	}

	if role.Baseline().Has(slug) {
		delete(out.Additional, slug)
		if out.Excluded.Has(slug) {
			delete(out.Excluded, slug)
			return out, StateRoleGranted, nil
		}
		out.Excluded[slug] = struct{}{}
		return out, StateExcluded, nil
	}

	delete(out.Excluded, slug)
	if out.Additional.Has(slug) {
		delete(out.Additional, slug)
		return out, StateNone, nil
	}
	out.Additional[slug] = struct{}{}
	return out, StateAdditional, nil
}

func (o *Override) userID() int64 {
	if o == nil {
		return 0
	}
	return o.UserID
}

func roleID(r *Role) int64 {
	if r == nil {
		return 0
	}
	return r.ID
}
