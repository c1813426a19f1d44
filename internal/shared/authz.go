package shared

// Permission slugs guarding the administration surface itself. These are
// seeded into the catalog like any other permission and resolve through
// the same engine.
const (
	PermUsersView   = "users.view"
	PermUsersManage = "users.manage"

	PermRolesView   = "roles.view"
	PermRolesManage = "roles.manage"

	PermPermissionsView   = "permissions.view"
	PermPermissionsManage = "permissions.manage"

	PermAuditView = "audit.view"
)

// AdminScopes lists every permission guarding the admin surface.
func AdminScopes() []string {
	return []string{
		PermUsersView,
		PermUsersManage,
		PermRolesView,
		PermRolesManage,
		PermPermissionsView,
		PermPermissionsManage,
		PermAuditView,
	}
}
