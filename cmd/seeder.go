package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/rbac-admin/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the administrator role, permissions and account",
	Long:  `Create the admin role, the management permissions and the default administrator. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		deps, err := initializeDependencies(ctx, false)
		if err != nil {
			return fmt.Errorf("failed to initialize dependencies: %w", err)
		}
		defer deps.Close()

		cfg := deps.Config.Seed
		if cfg.AdminPassword == "" {
			deps.Logger.Warn("seed.admin_password is not set; using the default password")
		}

		res, err := seed.New(deps.RBAC, deps.Users, seed.Config{
			RoleName:      cfg.AdminRole,
			AdminName:     cfg.AdminName,
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
		}, deps.Logger).Run(ctx)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}

		deps.Logger.Info("seed finished",
			"role", res.Role.Name,
			"admin_email", res.Admin.Email,
			"role_created", res.RoleCreated,
			"admin_created", res.AdminCreated,
			"permissions_created", res.PermissionsCreated,
		)
		return nil
	},
}
