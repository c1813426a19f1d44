package access

// Resolve computes the effective permission set for one user.
//
// Super-admin roles resolve to every active catalog slug, ignoring both the
// stored baseline and any override. For everyone else the baseline is the
// role's permissions masked by the active catalog, plus additive grants,
// minus exclusions. The result is re-intersected with the active catalog so
// an additive grant referencing a retired or renamed slug can never
// resurrect it.
//
// Resolve never fails: slugs the catalog no longer knows are silently
// dropped, because the catalog evolves independently of role and user
// records and a hard failure here would lock out unrelated users.
func Resolve(role *Role, ov *Override, catalog *Catalog) PermissionSet {
	active := catalog.ActiveSlugs()
	if role.IsSuperAdmin() {
		return active.Clone()
	}

	base := role.Baseline().Intersect(active)
	effective := base.Union(ov.additional()).Diff(ov.excluded())
	return effective.Intersect(active)
}
