package rbac

type CreateRoleDTO struct {
	Name string `json:"name" validate:"required,max=255"`
}

type CreatePermissionDTO struct {
	Name string `json:"name" validate:"required,max=255"`
}

// AssignPermissionsDTO must carry the permissions key; an empty list clears
// the set.
type AssignPermissionsDTO struct {
	Permissions []int64 `json:"permissions" validate:"required,dive,gt=0"`
}

type AssignRolesDTO struct {
	Roles []int64 `json:"roles" validate:"required,dive,gt=0"`
}
