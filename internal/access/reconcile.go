package access

// Reconcile normalizes an override against a newly assigned role so stored
// state keeps the override invariants even when the resolver is bypassed:
//
//   - additive grants the new role covers natively are dropped;
//   - exclusions that no longer reference a role-granted slug are dropped;
//   - a super-admin role clears the override entirely.
//
// Reconcile runs before persistence on every role change, never lazily at
// read time.
func Reconcile(ov *Override, newRole *Role) Override {
	out := Override{
		Additional: PermissionSet{},
		Excluded:   PermissionSet{},
	}
	if ov != nil {
		out.UserID = ov.UserID
	}
	if newRole != nil {
		out.RoleID = newRole.ID
	}
	if newRole.IsSuperAdmin() {
		return out
	}

	baseline := newRole.Baseline()
	out.Additional = ov.additional().Diff(baseline)
	out.Excluded = ov.excluded().Intersect(baseline)
	return out
}
