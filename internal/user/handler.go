package user

import (
	"context"
	"net/http"

	"github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/core/common/pagination"
	"github.com/frahmantamala/rbac-admin/internal/transport"
)

type ServiceAPI interface {
	CreateUser(ctx context.Context, dto CreateUserDTO) (*User, error)
	UpdateUser(ctx context.Context, userID int64, dto UpdateUserDTO) (*User, error)
	DeleteUser(ctx context.Context, userID int64) error
	ListUsers(ctx context.Context, filter Filter, page pagination.Request) (pagination.Page[*User], error)
	GetUser(ctx context.Context, userID int64) (*User, error)
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

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		Role:       q.Get("role"),
		Permission: q.Get("permission"),
		Search:     q.Get("search"),
	}

	page, err := h.Service.ListUsers(r.Context(), filter, pagination.FromHTTP(r))
	if err != nil {
		h.HandleServiceError(w, err, "Failed to fetch users")
		return
	}

	h.WritePaginated(w, "Users retrieved successfully", ToResources(page.Items), page.Meta)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var dto CreateUserDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.Service.CreateUser(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err, "Failed to create user")
		return
	}

	h.WriteSuccess(w, http.StatusCreated, "User created successfully", u.ToResource())
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.IDParam(r, "user")
	if !ok {
		h.HandleServiceError(w, internal.ErrUserNotFound, "")
		return
	}

	u, err := h.Service.GetUser(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err, "Failed to load user relations")
		return
	}

	h.WriteSuccess(w, http.StatusOK, "User retrieved successfully", u.ToResource())
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.IDParam(r, "user")
	if !ok {
		h.HandleServiceError(w, internal.ErrUserNotFound, "")
		return
	}

	var dto UpdateUserDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.Service.UpdateUser(r.Context(), id, dto)
	if err != nil {
		h.HandleServiceError(w, err, "Failed to update user")
		return
	}

	h.WriteSuccess(w, http.StatusOK, "User updated successfully", u.ToResource())
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.IDParam(r, "user")
	if !ok {
		h.HandleServiceError(w, internal.ErrUserNotFound, "")
		return
	}

	if err := h.Service.DeleteUser(r.Context(), id); err != nil {
		h.HandleServiceError(w, err, "Failed to delete user")
		return
	}

	h.WriteSuccess(w, http.StatusOK, "User deleted successfully", nil)
}
