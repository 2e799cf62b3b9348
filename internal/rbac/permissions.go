package rbac

// Permissions guarding the management API.
const (
	PermReadRoles         = "read-roles"
	PermCreateRoles       = "create-roles"
	PermDeleteRoles       = "delete-roles"
	PermReadPermissions   = "read-permissions"
	PermCreatePermissions = "create-permissions"
	PermDeletePermissions = "delete-permissions"
	PermAssignPermissions = "assign-permissions"
	PermAssignRoles       = "assign-roles"
	PermReadUsers         = "read-users"
	PermCreateUsers       = "create-users"
	PermShowUsers         = "show-users"
	PermUpdateUsers       = "update-users"
	PermDeleteUsers       = "delete-users"
)

// ManagementPermissions lists every permission the router checks.
func ManagementPermissions() []string {
	return []string{
		PermReadRoles,
		PermCreateRoles,
		PermDeleteRoles,
		PermReadPermissions,
		PermCreatePermissions,
		PermDeletePermissions,
		PermAssignPermissions,
		PermAssignRoles,
		PermReadUsers,
		PermCreateUsers,
		PermShowUsers,
		PermUpdateUsers,
		PermDeleteUsers,
	}
}
