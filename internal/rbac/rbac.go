package rbac

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	rbacDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/rbac"
	"github.com/frahmantamala/rbac-admin/internal/transport"
)

// Relations that support sync-replace. The values double as table names.
const (
	RelationRolePermissions = "role_permissions"
	RelationUserRoles       = "user_roles"
	RelationUserPermissions = "user_permissions"
)

type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	GuardName   string    `json:"guard_name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Permission struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	GuardName string    `json:"guard_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RoleResource struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

type PermissionResource struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (r *Role) ToResource() RoleResource {
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	return RoleResource{
		ID:          r.ID,
		Name:        r.Name,
		Permissions: perms,
		CreatedAt:   transport.FormatTimestamp(r.CreatedAt),
		UpdatedAt:   transport.FormatTimestamp(r.UpdatedAt),
	}
}

func (p *Permission) ToResource() PermissionResource {
	return PermissionResource{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: transport.FormatTimestamp(p.CreatedAt),
		UpdatedAt: transport.FormatTimestamp(p.UpdatedAt),
	}
}

func RoleResources(roles []*Role) []RoleResource {
	out := make([]RoleResource, len(roles))
	for i, r := range roles {
		out[i] = r.ToResource()
	}
	return out
}

func PermissionResources(perms []*Permission) []PermissionResource {
	out := make([]PermissionResource, len(perms))
	for i, p := range perms {
		out[i] = p.ToResource()
	}
	return out
}

func RoleFromDataModel(r *rbacDatamodel.Role, permissions []string) *Role {
	if permissions == nil {
		permissions = []string{}
	}
	sort.Strings(permissions)
	return &Role{
		ID:          r.ID,
		Name:        r.Name,
		GuardName:   r.GuardName,
		Permissions: permissions,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func PermissionFromDataModel(p *rbacDatamodel.Permission) *Permission {
	return &Permission{
		ID:        p.ID,
		Name:      p.Name,
		GuardName: p.GuardName,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

var (
	ErrNotFound  = errors.New("rbac: record not found")
	ErrDuplicate = errors.New("rbac: name already taken")
)

// InvalidIDsError lists referenced ids that have no row. Returning it from
// inside a sync transaction rolls the transaction back.
type InvalidIDsError struct {
	Field string
	IDs   []int64
}

func (e *InvalidIDsError) Error() string {
	parts := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, strings.Join(parts, ", "))
}

// uniqueIDs drops duplicates while keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
