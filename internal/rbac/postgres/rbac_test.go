package postgres_test

import (
	"context"
	"testing"

	"github.com/frahmantamala/rbac-admin/internal/core/common/pagination"
	rbacDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/user"
	"github.com/frahmantamala/rbac-admin/internal/core/testdb"
	"github.com/frahmantamala/rbac-admin/internal/rbac"
	rbacPostgres "github.com/frahmantamala/rbac-admin/internal/rbac/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestRBACPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "RBAC Postgres Suite")
}

var _ = Describe("RBAC Repository", func() {
	var (
		ctx  context.Context
		db   *gorm.DB
		repo rbac.RepositoryAPI
	)

	role := func(name string) *rbacDatamodel.Role {
		r := &rbacDatamodel.Role{Name: name}
		Expect(repo.CreateRole(ctx, r)).To(Succeed())
		return r
	}
	permission := func(name string) *rbacDatamodel.Permission {
		p := &rbacDatamodel.Permission{Name: name}
		Expect(repo.CreatePermission(ctx, p)).To(Succeed())
		return p
	}
	memberIDs := func(model interface{}, ownerCol, memberCol string, ownerID int64) []int64 {
		var ids []int64
		Expect(db.Model(model).Where(ownerCol+" = ?", ownerID).Order(memberCol).Pluck(memberCol, &ids).Error).To(Succeed())
		return ids
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())
		repo = rbacPostgres.NewRBACRepository(db)
	})

	Describe("CreateRole", func() {
		It("defaults the guard and rejects duplicates", func() {
			r := role("admin")
			Expect(r.GuardName).To(Equal(rbacDatamodel.DefaultGuard))

			err := repo.CreateRole(ctx, &rbacDatamodel.Role{Name: "admin"})
			Expect(err).To(MatchError(rbac.ErrDuplicate))
		})
	})

	Describe("FindRoleByName", func() {
		It("returns ErrNotFound for a missing name", func() {
			_, err := repo.FindRoleByName(ctx, "ghost")
			Expect(err).To(MatchError(rbac.ErrNotFound))
		})
	})

	Describe("ListPermissions", func() {
		It("pages in id order", func() {
			permission("a")
			permission("b")
			permission("c")
			rows, total, err := repo.ListPermissions(ctx, pagination.NewRequest(2, 2))
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeEquivalentTo(3))
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Name).To(Equal("c"))
		})
	})

	Describe("SyncRolePermissions", func() {
		It("replaces the member set", func() {
			r := role("editor")
			p1, p2, p3 := permission("p1"), permission("p2"), permission("p3")

			Expect(repo.SyncRolePermissions(ctx, r.ID, []int64{p1.ID, p2.ID})).To(Succeed())
			Expect(repo.SyncRolePermissions(ctx, r.ID, []int64{p2.ID, p3.ID})).To(Succeed())
			Expect(memberIDs(&rbacDatamodel.RolePermission{}, "role_id", "permission_id", r.ID)).To(Equal([]int64{p2.ID, p3.ID}))

			names, err := repo.RolePermissionNames(ctx, []int64{r.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(names[r.ID]).To(Equal([]string{"p2", "p3"}))
		})

		It("reports missing ids without touching rows", func() {
			r := role("editor")
			p1 := permission("p1")
			Expect(repo.SyncRolePermissions(ctx, r.ID, []int64{p1.ID})).To(Succeed())

			err := repo.SyncRolePermissions(ctx, r.ID, []int64{p1.ID, 41, 40})
			var invalid *rbac.InvalidIDsError
			Expect(err).To(BeAssignableToTypeOf(invalid))
			Expect(err.(*rbac.InvalidIDsError).IDs).To(Equal([]int64{40, 41}))
			Expect(err.(*rbac.InvalidIDsError).Field).To(Equal("permissions"))
			Expect(memberIDs(&rbacDatamodel.RolePermission{}, "role_id", "permission_id", r.ID)).To(Equal([]int64{p1.ID}))
		})

		It("returns ErrNotFound for a missing owner", func() {
			Expect(repo.SyncRolePermissions(ctx, 999, nil)).To(MatchError(rbac.ErrNotFound))
		})
	})

	Describe("SyncUserRoles and SyncUserPermissions", func() {
		var u *userDatamodel.User

		BeforeEach(func() {
			u = &userDatamodel.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "h"}
			Expect(db.Create(u).Error).To(Succeed())
		})

		It("syncs both relations independently", func() {
			r := role("editor")
			p := permission("p1")
			Expect(repo.SyncUserRoles(ctx, u.ID, []int64{r.ID})).To(Succeed())
			Expect(repo.SyncUserPermissions(ctx, u.ID, []int64{p.ID})).To(Succeed())

			Expect(repo.SyncUserPermissions(ctx, u.ID, []int64{})).To(Succeed())
			Expect(memberIDs(&rbacDatamodel.UserPermission{}, "user_id", "permission_id", u.ID)).To(BeEmpty())
			Expect(memberIDs(&rbacDatamodel.UserRole{}, "user_id", "role_id", u.ID)).To(Equal([]int64{r.ID}))
		})

		It("computes effective permissions and checks them", func() {
			r := role("editor")
			edit, view := permission("edit"), permission("view")
			Expect(repo.SyncRolePermissions(ctx, r.ID, []int64{edit.ID, view.ID})).To(Succeed())
			Expect(repo.SyncUserRoles(ctx, u.ID, []int64{r.ID})).To(Succeed())
			Expect(repo.SyncUserPermissions(ctx, u.ID, []int64{view.ID})).To(Succeed())

			names, err := repo.EffectivePermissions(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"edit", "view"}))

			ok, err := repo.UserHasPermission(ctx, u.ID, "edit")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = repo.UserHasPermission(ctx, u.ID, "delete")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("attaches a single role without removing others", func() {
			r1, r2 := role("r1"), role("r2")
			Expect(repo.SyncUserRoles(ctx, u.ID, []int64{r1.ID})).To(Succeed())
			Expect(repo.AttachUserRole(ctx, u.ID, r2.ID)).To(Succeed())
			Expect(repo.AttachUserRole(ctx, u.ID, r2.ID)).To(Succeed())
			Expect(memberIDs(&rbacDatamodel.UserRole{}, "user_id", "role_id", u.ID)).To(Equal([]int64{r1.ID, r2.ID}))
		})
	})

	Describe("DeleteRole and DeletePermission", func() {
		It("cascade-detach pivot rows", func() {
			u := &userDatamodel.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "h"}
			Expect(db.Create(u).Error).To(Succeed())
			r := role("editor")
			p := permission("p1")
			Expect(repo.SyncRolePermissions(ctx, r.ID, []int64{p.ID})).To(Succeed())
			Expect(repo.SyncUserRoles(ctx, u.ID, []int64{r.ID})).To(Succeed())
			Expect(repo.SyncUserPermissions(ctx, u.ID, []int64{p.ID})).To(Succeed())

			Expect(repo.DeletePermission(ctx, p.ID)).To(Succeed())
			Expect(memberIDs(&rbacDatamodel.RolePermission{}, "role_id", "permission_id", r.ID)).To(BeEmpty())
			Expect(memberIDs(&rbacDatamodel.UserPermission{}, "user_id", "permission_id", u.ID)).To(BeEmpty())

			Expect(repo.DeleteRole(ctx, r.ID)).To(Succeed())
			Expect(memberIDs(&rbacDatamodel.UserRole{}, "user_id", "role_id", u.ID)).To(BeEmpty())
			_, err := repo.GetRole(ctx, r.ID)
			Expect(err).To(MatchError(rbac.ErrNotFound))
		})

		It("return ErrNotFound for missing rows", func() {
			Expect(repo.DeleteRole(ctx, 3)).To(MatchError(rbac.ErrNotFound))
			Expect(repo.DeletePermission(ctx, 3)).To(MatchError(rbac.ErrNotFound))
		})
	})
})
