package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/transport"
)

type PermissionAuthorizer interface {
	UserHasPermission(ctx context.Context, userID int64, permission string) (bool, error)
}

type RBACAuthorization struct {
	*transport.BaseHandler
	authorizer PermissionAuthorizer
	enforce    bool
}

func NewRBACAuthorization(authorizer PermissionAuthorizer, logger *slog.Logger, enforce bool) *RBACAuthorization {
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger),
		authorizer:  authorizer,
		enforce:     enforce,
	}
}

func (ra *RBACAuthorization) Middleware(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.check(next.ServeHTTP, permission, "")
	}
}

// RequirePermissionOrSelf lets the caller through when the URL parameter
// names their own user id, otherwise the permission is required.
func (ra *RBACAuthorization) RequirePermissionOrSelf(permission, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.check(next.ServeHTTP, permission, param)
	}
}

func (ra *RBACAuthorization) check(next http.HandlerFunc, permission, selfParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := internal.PrincipalFromContext(r.Context())
		if !ok {
			ra.Logger.Warn("authorization check failed: principal not found in context")
			ra.HandleServiceError(w, internal.ErrMissingToken, "")
			return
		}

		if !ra.enforce {
			next.ServeHTTP(w, r)
			return
		}

		if selfParam != "" {
			if id, ok := ra.IDParam(r, selfParam); ok && id == principal.ID {
				next.ServeHTTP(w, r)
				return
			}
		}

		allowed, err := ra.authorizer.UserHasPermission(r.Context(), principal.ID, permission)
		if err != nil {
			ra.Logger.ErrorContext(r.Context(), "authorization check failed", "error", err, "user_id", principal.ID, "permission", permission)
			ra.HandleServiceError(w, err, "Failed to check permissions")
			return
		}

		if !allowed {
			ra.Logger.WarnContext(r.Context(), "access denied: insufficient permissions",
				"user_id", principal.ID,
				"required_permission", permission)
			ra.HandleServiceError(w, internal.ErrInsufficientPerms, "")
			return
		}

		next.ServeHTTP(w, r)
	}
}
