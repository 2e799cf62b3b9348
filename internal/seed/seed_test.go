package seed_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/frahmantamala/rbac-admin/internal/core/common/pagination"
	"github.com/frahmantamala/rbac-admin/internal/core/testdb"
	"github.com/frahmantamala/rbac-admin/internal/rbac"
	rbacPostgres "github.com/frahmantamala/rbac-admin/internal/rbac/postgres"
	"github.com/frahmantamala/rbac-admin/internal/seed"
	"github.com/frahmantamala/rbac-admin/internal/user"
	userPostgres "github.com/frahmantamala/rbac-admin/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestSeed(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Seed Suite")
}

var _ = Describe("Seeder", func() {
	var (
		ctx    context.Context
		users  *user.Service
		rbacSv *rbac.Service
		seeder *seed.Seeder
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := testdb.Open()
		Expect(err).NotTo(HaveOccurred())

		slogger := slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelError}))
		users = user.NewService(userPostgres.NewUserRepository(db), slogger, user.WithBCryptCost(bcrypt.MinCost))
		rbacSv = rbac.NewService(rbacPostgres.NewRBACRepository(db), users, slogger)
		seeder = seed.New(rbacSv, users, seed.Config{}, slogger)
	})

	It("creates the admin role, its permissions and the admin user", func() {
		res, err := seeder.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.RoleCreated).To(BeTrue())
		Expect(res.AdminCreated).To(BeTrue())
		Expect(res.PermissionsCreated).To(Equal(len(rbac.ManagementPermissions())))
		Expect(res.Role.Permissions).To(ConsistOf(rbac.ManagementPermissions()))

		Expect(res.Admin.Email).To(Equal("admin@example.com"))
		Expect(res.Admin.Name).To(Equal("Super Admin"))
		Expect(res.Admin.Roles).To(Equal([]string{"admin"}))
		Expect(res.Admin.Permissions).To(ConsistOf(rbac.ManagementPermissions()))

		_, err = users.Authenticate(ctx, "admin@example.com", "password123")
		Expect(err).NotTo(HaveOccurred())

		ok, err := rbacSv.UserHasPermission(ctx, res.Admin.ID, rbac.PermDeleteUsers)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("is a no-op the second time", func() {
		first, err := seeder.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		second, err := seeder.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.RoleCreated).To(BeFalse())
		Expect(second.AdminCreated).To(BeFalse())
		Expect(second.PermissionsCreated).To(BeZero())
		Expect(second.Admin.ID).To(Equal(first.Admin.ID))

		roles, err := rbacSv.ListRoles(ctx, pagination.NewRequest(1, 10))
		Expect(err).NotTo(HaveOccurred())
		Expect(roles.Meta.Total).To(Equal(int64(1)))

		list, err := users.ListUsers(ctx, user.Filter{}, pagination.NewRequest(1, 10))
		Expect(err).NotTo(HaveOccurred())
		Expect(list.Meta.Total).To(Equal(int64(1)))
	})

	It("attaches the role to an existing account without recreating it", func() {
		existing, err := users.CreateUser(ctx, user.CreateUserDTO{
			Name: "Already Here", Email: "admin@example.com", Password: "different-pass", PasswordConfirmation: "different-pass",
		})
		Expect(err).NotTo(HaveOccurred())

		res, err := seeder.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.AdminCreated).To(BeFalse())
		Expect(res.Admin.ID).To(Equal(existing.ID))
		Expect(res.Admin.Name).To(Equal("Already Here"))
		Expect(res.Admin.Roles).To(ContainElement("admin"))
	})
})
