// Package seed bootstraps the administrator account and the permissions the
// management API checks. Every step is create-if-absent, so running it twice
// leaves the database unchanged.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/rbac"
	"github.com/frahmantamala/rbac-admin/internal/user"
)

type RBACService interface {
	EnsureRole(ctx context.Context, name string) (*rbac.Role, bool, error)
	EnsurePermission(ctx context.Context, name string) (*rbac.Permission, bool, error)
	AssignPermissionsToRole(ctx context.Context, roleID int64, permissionIDs []int64) (*rbac.Role, error)
	GrantRole(ctx context.Context, userID, roleID int64) error
}

type UserService interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	CreateUser(ctx context.Context, dto user.CreateUserDTO) (*user.User, error)
}

type Config struct {
	RoleName      string
	AdminName     string
	AdminEmail    string
	AdminPassword string
	// Permissions granted to the admin role. Defaults to rbac.ManagementPermissions.
	Permissions []string
}

func (c Config) withDefaults() Config {
	if c.RoleName == "" {
		c.RoleName = "admin"
	}
	if c.AdminName == "" {
		c.AdminName = "Super Admin"
	}
	if c.AdminEmail == "" {
		c.AdminEmail = "admin@example.com"
	}
	if c.AdminPassword == "" {
		c.AdminPassword = "password123"
	}
	if len(c.Permissions) == 0 {
		c.Permissions = rbac.ManagementPermissions()
	}
	return c
}

type Result struct {
	Role               *rbac.Role
	Admin              *user.User
	RoleCreated        bool
	AdminCreated       bool
	PermissionsCreated int
}

type Seeder struct {
	rbac   RBACService
	users  UserService
	cfg    Config
	logger *slog.Logger
}

func New(rbacSvc RBACService, users UserService, cfg Config, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{rbac: rbacSvc, users: users, cfg: cfg.withDefaults(), logger: logger}
}

func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	role, created, err := s.rbac.EnsureRole(ctx, s.cfg.RoleName)
	if err != nil {
		return nil, fmt.Errorf("ensure role %q: %w", s.cfg.RoleName, err)
	}
	res.RoleCreated = created

	ids := make([]int64, 0, len(s.cfg.Permissions))
	for _, name := range s.cfg.Permissions {
		perm, created, err := s.rbac.EnsurePermission(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("ensure permission %q: %w", name, err)
		}
		if created {
			res.PermissionsCreated++
		}
		ids = append(ids, perm.ID)
	}

	res.Role, err = s.rbac.AssignPermissionsToRole(ctx, role.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("sync admin role permissions: %w", err)
	}

	admin, err := s.users.FindByEmail(ctx, s.cfg.AdminEmail)
	switch {
	case errors.Is(err, internal.ErrUserNotFound):
		admin, err = s.users.CreateUser(ctx, user.CreateUserDTO{
			Name:                 s.cfg.AdminName,
			Email:                s.cfg.AdminEmail,
			Password:             s.cfg.AdminPassword,
			PasswordConfirmation: s.cfg.AdminPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("create admin user: %w", err)
		}
		res.AdminCreated = true
	case err != nil:
		return nil, fmt.Errorf("find admin user: %w", err)
	}

	if !admin.HasRole(role.Name) {
		if err := s.rbac.GrantRole(ctx, admin.ID, role.ID); err != nil {
			return nil, fmt.Errorf("grant admin role: %w", err)
		}
		if admin, err = s.users.FindByEmail(ctx, s.cfg.AdminEmail); err != nil {
			return nil, fmt.Errorf("reload admin user: %w", err)
		}
	}

	res.Admin = admin
	s.logger.Info("seed complete",
		"role", role.Name,
		"role_created", res.RoleCreated,
		"permissions_created", res.PermissionsCreated,
		"admin_email", admin.Email,
		"admin_created", res.AdminCreated,
	)
	return res, nil
}
