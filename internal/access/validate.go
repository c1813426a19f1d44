package access

import (
	"errors"
	"fmt"
)

// Override invariant violations. The write paths re-validate submitted
// set pairs instead of trusting the admin UI to send consistent state.
var (
	// ErrRedundantGrant means an additive grant duplicates the role baseline.
	ErrRedundantGrant = errors.New("access: additive grant already covered by role")
	// ErrInvalidExclusion means an exclusion targets a slug the role does not grant.
	ErrInvalidExclusion = errors.New("access: exclusion targets a permission the role does not grant")
	// ErrConflictingSets means a slug appears as both additive and excluded.
	ErrConflictingSets = errors.New("access: permission both granted and excluded")
)

// ValidateOverride checks the override invariants against the assigned
// role. A super-admin role admits only the empty override.
func ValidateOverride(ov Override, role *Role) error {
	if role.IsSuperAdmin() {
		if !ov.IsEmpty() {
			return fmt.Errorf("%w: override must be empty", ErrSuperAdminRole)
		}
		return nil
	}

	baseline := role.Baseline()
	for slug := range ov.Additional {
		if baseline.Has(slug) {
			return fmt.Errorf("%w: %s", ErrRedundantGrant, slug)
		}
		if ov.Excluded.Has(slug) {
			return fmt.Errorf("%w: %s", ErrConflictingSets, slug)
		}
	}
	for slug := range ov.Excluded {
		if !baseline.Has(slug) {
			return fmt.Errorf("%w: %s", ErrInvalidExclusion, slug)
		}
	}
	return nil
}
