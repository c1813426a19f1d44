// Package access implements effective-permission resolution: role baselines,
// per-user additive grants and exclusions, and the authorization gate the
// rest of the application queries.
package access

import "time"

// PermissionStatus marks whether a catalog entry is grantable.
type PermissionStatus string

const (
	// PermissionActive entries participate in effective sets.
	PermissionActive PermissionStatus = "active"
	// PermissionInactive entries are masked from every effective set.
	PermissionInactive PermissionStatus = "inactive"
)

// Permission is a catalog entry describing one atomic capability.
type Permission struct {
	ID          int64
	Slug        string
	Name        string
	Description string
	ResourceID  string
	Status      PermissionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleKind distinguishes system roles from administrator-defined ones.
type RoleKind string

const (
	// RoleStandard roles resolve from their stored baseline.
	RoleStandard RoleKind = "standard"
	// RoleSuperAdmin roles resolve to every active catalog slug and
	// cannot be overridden per user.
	RoleSuperAdmin RoleKind = "super-admin"
)

// RoleStatus marks whether a role currently grants anything.
type RoleStatus string

const (
	RoleActive   RoleStatus = "active"
	RoleInactive RoleStatus = "inactive"
)

// Role is a named, reusable baseline permission set.
type Role struct {
	ID          int64
	Name        string
	Kind        RoleKind
	Status      RoleStatus
	Permissions PermissionSet
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsSuperAdmin reports whether the role carries the super-admin tag.
// Nil-safe: an unassigned role is never super-admin.
func (r *Role) IsSuperAdmin() bool {
	return r != nil && r.Kind == RoleSuperAdmin
}

// Baseline returns the permission set the role natively grants.
// Unassigned and inactive roles grant nothing.
func (r *Role) Baseline() PermissionSet {
	if r == nil || r.Status == RoleInactive {
		return PermissionSet{}
	}
	if r.Permissions == nil {
		return PermissionSet{}
	}
	return r.Permissions
}

// Override is the per-user delta on top of the assigned role. The zero
// value (or a nil pointer) is equivalent to "no override".
type Override struct {
	UserID     int64
	RoleID     int64
	Additional PermissionSet
	Excluded   PermissionSet
}

// IsEmpty reports whether the override changes nothing.
func (o Override) IsEmpty() bool {
	return len(o.Additional) == 0 && len(o.Excluded) == 0
}

func (o *Override) additional() PermissionSet {
	if o == nil || o.Additional == nil {
		return PermissionSet{}
	}
	return o.Additional
}

func (o *Override) excluded() PermissionSet {
	if o == nil || o.Excluded == nil {
		return PermissionSet{}
	}
	return o.Excluded
}

// Catalog is a point-in-time snapshot of the permission registry. It is
// fetched once per request and passed explicitly to the resolver, never
// kept as a hidden singleton.
type Catalog struct {
	permissions []Permission
	active      PermissionSet
	known       PermissionSet
}

// NewCatalog builds a snapshot from the stored permission entries.
func NewCatalog(permissions []Permission) *Catalog {
	active := make(PermissionSet)
	known := make(PermissionSet)
	for _, p := range permissions {
		known[p.Slug] = struct{}{}
		if p.Status == PermissionActive {
			active[p.Slug] = struct{}{}
		}
	}
	return &Catalog{permissions: permissions, active: active, known: known}
}

// ActiveSlugs returns the set of currently grantable slugs.
func (c *Catalog) ActiveSlugs() PermissionSet {
	if c == nil {
		return PermissionSet{}
	}
	return c.active
}

// Knows reports whether the catalog carries the slug at all, active or
// not.
func (c *Catalog) Knows(slug string) bool {
	if c == nil {
		return false
	}
	return c.known.Has(slug)
}

// Permissions returns all catalog entries, active or not.
func (c *Catalog) Permissions() []Permission {
	if c == nil {
		return nil
	}
	return c.permissions
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.permissions)
}
