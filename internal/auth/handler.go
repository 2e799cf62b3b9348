package auth

import (
	"context"
	"net/http"

	"github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/transport"
	"github.com/frahmantamala/rbac-admin/pkg/logger"
)

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*AuthTokens, error)
	Register(ctx context.Context, dto RegisterDTO) (*AuthTokens, error)
	Refresh(ctx context.Context, dto RefreshTokenDTO) (*AuthTokens, error)
	Logout(ctx context.Context, accessToken string) error
	Authenticate(ctx context.Context, accessToken string) (*internal.Principal, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tokens, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err, "Failed to login")
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Login successful", tokens)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tokens, err := h.Service.Register(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err, "Failed to register user")
		return
	}
	h.WriteSuccess(w, http.StatusCreated, "User registered successfully", tokens)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tokens, err := h.Service.Refresh(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err, "Failed to refresh token")
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Token refreshed successfully", tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.HandleServiceError(w, internal.ErrMissingToken, "")
		return
	}

	if err := h.Service.Logout(r.Context(), token); err != nil {
		h.HandleServiceError(w, err, "Failed to logout")
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

// AuthMiddleware resolves the bearer token and stores the principal in the
// request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.HandleServiceError(w, internal.ErrMissingToken, "")
			return
		}

		principal, err := h.Service.Authenticate(r.Context(), token)
		if err != nil {
			h.Logger.Warn("auth middleware: token rejected", "error", err)
			h.HandleServiceError(w, err, "Failed to verify token")
			return
		}

		ctx := internal.ContextWithPrincipal(r.Context(), principal)
		ctx = logger.With(ctx, "user_id", principal.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
