package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frahmantamala/rbac-admin/internal/auth"
	"github.com/frahmantamala/rbac-admin/internal/rbac"
	"github.com/frahmantamala/rbac-admin/internal/transport"
	"github.com/frahmantamala/rbac-admin/internal/transport/middleware"
	"github.com/frahmantamala/rbac-admin/internal/transport/swagger"
	"github.com/frahmantamala/rbac-admin/internal/user"
)

type Handlers struct {
	Auth          *auth.Handler
	Users         *user.Handler
	RBAC          *rbac.Handler
	Health        *HealthHandler
	Authorization *auth.RBACAuthorization
}

type Options struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	Production     bool
	// LoginRateLimit is attempts per minute per IP on login and register.
	LoginRateLimit int
	// MetricsPath mounts the Prometheus handler when non-empty.
	MetricsPath string
	// RequestValidator, when set, checks requests against the OpenAPI document.
	RequestValidator func(http.Handler) http.Handler
	OpenAPI          []byte
}

func RegisterAllRoutes(router chi.Router, h Handlers, opts Options) {
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.TraceID)
	router.Use(middleware.LoggingMiddleware(lg))
	router.Use(middleware.RecoveryMiddleware(lg))
	router.Use(middleware.Metrics)
	router.Use(middleware.SecurityHeaders(opts.Production))
	router.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.RequestValidator != nil {
		router.Use(opts.RequestValidator)
	}

	base := transport.NewBaseHandler(lg)
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		base.WriteError(w, http.StatusNotFound, "Resource not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		base.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	if len(opts.OpenAPI) > 0 {
		router.Get(swagger.DocumentPath, swagger.Document(opts.OpenAPI))
		router.Handle("/swagger/*", swagger.Handler())
	}
	if opts.MetricsPath != "" {
		router.Handle(opts.MetricsPath, promhttp.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Group(func(pub chi.Router) {
			pub.Use(middleware.RateLimitByIP(opts.LoginRateLimit, time.Minute))
			pub.Post("/register", h.Auth.Register)
			pub.Post("/login", h.Auth.Login)
		})

		r.Route("/v1", func(v1 chi.Router) {
			if h.Health != nil {
				v1.Get("/health", h.Health.Health)
				v1.Get("/ping", h.Health.Ping)
			}
			v1.Post("/auth/refresh", h.Auth.RefreshToken)

			v1.Group(func(pr chi.Router) {
				pr.Use(h.Auth.AuthMiddleware)
				authz := h.Authorization

				pr.Post("/logout", h.Auth.Logout)

				pr.With(authz.Middleware(rbac.PermReadRoles)).Get("/roles", h.RBAC.ListRoles)
				pr.With(authz.Middleware(rbac.PermCreateRoles)).Post("/roles", h.RBAC.CreateRole)
				pr.With(authz.Middleware(rbac.PermDeleteRoles)).Delete("/roles/{role}", h.RBAC.DeleteRole)
				pr.With(authz.Middleware(rbac.PermAssignPermissions)).Post("/roles/{role}/permissions", h.RBAC.AssignPermissionsToRole)

				pr.With(authz.Middleware(rbac.PermReadPermissions)).Get("/permissions", h.RBAC.ListPermissions)
				pr.With(authz.Middleware(rbac.PermCreatePermissions)).Post("/permissions", h.RBAC.CreatePermission)
				pr.With(authz.Middleware(rbac.PermDeletePermissions)).Delete("/permissions/{permission}", h.RBAC.DeletePermission)

				pr.With(authz.Middleware(rbac.PermAssignRoles)).Post("/users/{user}/role", h.RBAC.AssignRolesToUser)
				pr.With(authz.Middleware(rbac.PermAssignPermissions)).Post("/users/{user}/permission", h.RBAC.AssignPermissionsToUser)

				pr.With(authz.Middleware(rbac.PermReadUsers)).Get("/users", h.Users.ListUsers)
				pr.With(authz.Middleware(rbac.PermCreateUsers)).Post("/users", h.Users.CreateUser)
				pr.With(authz.Middleware(rbac.PermShowUsers)).Get("/users/{user}", h.Users.GetUser)
				pr.With(authz.RequirePermissionOrSelf(rbac.PermUpdateUsers, "user")).Put("/users/{user}", h.Users.UpdateUser)
				pr.With(authz.RequirePermissionOrSelf(rbac.PermUpdateUsers, "user")).Patch("/users/{user}", h.Users.UpdateUser)
				pr.With(authz.Middleware(rbac.PermDeleteUsers)).Delete("/users/{user}", h.Users.DeleteUser)
			})
		})
	})
}
