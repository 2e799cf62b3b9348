package rbac

import (
	"context"
	"net/http"

	"github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/core/common/pagination"
	"github.com/frahmantamala/rbac-admin/internal/core/common/validation"
	"github.com/frahmantamala/rbac-admin/internal/transport"
	"github.com/frahmantamala/rbac-admin/internal/user"
)

type ServiceAPI interface {
	ListRoles(ctx context.Context, page pagination.Request) (pagination.Page[*Role], error)
	CreateRole(ctx context.Context, dto CreateRoleDTO) (*Role, error)
	DeleteRole(ctx context.Context, roleID int64) error
	ListPermissions(ctx context.Context, page pagination.Request) (pagination.Page[*Permission], error)
	CreatePermission(ctx context.Context, dto CreatePermissionDTO) (*Permission, error)
	DeletePermission(ctx context.Context, permissionID int64) error
	AssignPermissionsToRole(ctx context.Context, roleID int64, permissionIDs []int64) (*Role, error)
	AssignRolesToUser(ctx context.Context, userID int64, roleIDs []int64) (*user.User, error)
	AssignPermissionsToUser(ctx context.Context, userID int64, permissionIDs []int64) (*user.User, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.ListRoles(r.Context(), pagination.FromHTTP(r))
	if err != nil {
		h.HandleServiceError(w, err, "Failed to fetch roles")
		return
	}
	h.WritePaginated(w, "Roles retrieved successfully", RoleResources(page.Items), page.Meta)
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var dto CreateRoleDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	role, err := h.Service.CreateRole(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err, "Failed to create role")
		return
	}
	h.WriteSuccess(w, http.StatusCreated, "Role created successfully", role.ToResource())
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.IDParam(r, "role")
	if !ok {
		h.HandleServiceError(w, internal.ErrRoleNotFound, "")
		return
	}

	if err := h.Service.DeleteRole(r.Context(), id); err != nil {
		h.HandleServiceError(w, err, "Failed to delete role")
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Role deleted successfully", nil)
}

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.ListPermissions(r.Context(), pagination.FromHTTP(r))
	if err != nil {
		h.HandleServiceError(w, err, "Failed to fetch permissions")
		return
	}
	h.WritePaginated(w, "Permissions retrieved successfully", PermissionResources(page.Items), page.Meta)
}

func (h *Handler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var dto CreatePermissionDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	perm, err := h.Service.CreatePermission(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err, "Failed to create permission")
		return
	}
	h.WriteSuccess(w, http.StatusCreated, "Permission created successfully", perm.ToResource())
}

func (h *Handler) DeletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.IDParam(r, "permission")
	if !ok {
		h.HandleServiceError(w, internal.ErrPermissionNotFound, "")
		return
	}

	if err := h.Service.DeletePermission(r.Context(), id); err != nil {
		h.HandleServiceError(w, err, "Failed to delete permission")
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Permission deleted successfully", nil)
}

func (h *Handler) AssignPermissionsToRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.IDParam(r, "role")
	if !ok {
		h.HandleServiceError(w, internal.ErrRoleNotFound, "")
		return
	}

	var dto AssignPermissionsDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if verr := validation.Struct(dto); verr != nil {
		h.HandleServiceError(w, verr, "")
		return
	}

	role, err := h.Service.AssignPermissionsToRole(r.Context(), id, dto.Permissions)
	if err != nil {
		h.HandleServiceError(w, err, "Failed to assign permissions to role")
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Permissions assigned to role successfully", role.ToResource())
}

func (h *Handler) AssignRolesToUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.IDParam(r, "user")
	if !ok {
		h.HandleServiceError(w, internal.ErrUserNotFound, "")
		return
	}

	var dto AssignRolesDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if verr := validation.Struct(dto); verr != nil {
		h.HandleServiceError(w, verr, "")
		return
	}

	u, err := h.Service.AssignRolesToUser(r.Context(), id, dto.Roles)
	if err != nil {
		h.HandleServiceError(w, err, "Failed to assign role to user")
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Role assigned to user successfully", u.ToResource())
}

func (h *Handler) AssignPermissionsToUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.IDParam(r, "user")
	if !ok {
		h.HandleServiceError(w, internal.ErrUserNotFound, "")
		return
	}

	var dto AssignPermissionsDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if verr := validation.Struct(dto); verr != nil {
		h.HandleServiceError(w, verr, "")
		return
	}

	u, err := h.Service.AssignPermissionsToUser(r.Context(), id, dto.Permissions)
	if err != nil {
		h.HandleServiceError(w, err, "Failed to assign permissions to user")
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Permissions assigned to user successfully", u.ToResource())
}
