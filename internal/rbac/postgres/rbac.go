package postgres

import (
	"context"
	"sort"

	"github.com/frahmantamala/rbac-admin/internal/core/common/dberr"
	"github.com/frahmantamala/rbac-admin/internal/core/common/pagination"
	rbacDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/user"
	"github.com/frahmantamala/rbac-admin/internal/rbac"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RBACRepository struct {
	db *gorm.DB
}

func NewRBACRepository(db *gorm.DB) rbac.RepositoryAPI {
	return &RBACRepository{db: db}
}

func (r *RBACRepository) ListRoles(ctx context.Context, page pagination.Request) ([]*rbacDatamodel.Role, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&rbacDatamodel.Role{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var roles []*rbacDatamodel.Role
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&roles).Error
	return roles, total, err
}

type rolePermissionRow struct {
	RoleID int64  `gorm:"column:role_id"`
	Name   string `gorm:"column:name"`
}

// RolePermissionNames returns the permission names of each role, sorted.
func (r *RBACRepository) RolePermissionNames(ctx context.Context, roleIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(roleIDs))
	if len(roleIDs) == 0 {
		return out, nil
	}

	var rows []rolePermissionRow
	err := r.db.WithContext(ctx).Table("role_permissions rp").
		Select("rp.role_id AS role_id, p.name AS name").
		Joins("JOIN permissions p ON p.id = rp.permission_id").
		Where("rp.role_id IN ?", roleIDs).
		Order("p.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.RoleID] = append(out[row.RoleID], row.Name)
	}
	return out, nil
}

func (r *RBACRepository) GetRole(ctx context.Context, id int64) (*rbacDatamodel.Role, error) {
	var role rbacDatamodel.Role
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&role).Error; err != nil {
		if dberr.IsNotFound(err) {
			return nil, rbac.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *RBACRepository) FindRoleByName(ctx context.Context, name string) (*rbacDatamodel.Role, error) {
	var role rbacDatamodel.Role
	err := r.db.WithContext(ctx).
		Where("name = ? AND guard_name = ?", name, rbacDatamodel.DefaultGuard).
		First(&role).Error
	if err != nil {
		if dberr.IsNotFound(err) {
			return nil, rbac.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *RBACRepository) CreateRole(ctx context.Context, role *rbacDatamodel.Role) error {
	if role.GuardName == "" {
		role.GuardName = rbacDatamodel.DefaultGuard
	}
	if err := r.db.WithContext(ctx).Create(role).Error; err != nil {
		if dberr.IsUniqueViolation(err) {
			return rbac.ErrDuplicate
		}
		return err
	}
	return nil
}

// DeleteRole detaches the role from users and permissions, then removes it.
func (r *RBACRepository) DeleteRole(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, &rbacDatamodel.Role{}, id); err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&rbacDatamodel.UserRole{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&rbacDatamodel.Role{}).Error
	})
}

func (r *RBACRepository) ListPermissions(ctx context.Context, page pagination.Request) ([]*rbacDatamodel.Permission, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&rbacDatamodel.Permission{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var perms []*rbacDatamodel.Permission
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&perms).Error
	return perms, total, err
}

func (r *RBACRepository) FindPermissionByName(ctx context.Context, name string) (*rbacDatamodel.Permission, error) {
	var perm rbacDatamodel.Permission
	err := r.db.WithContext(ctx).
		Where("name = ? AND guard_name = ?", name, rbacDatamodel.DefaultGuard).
		First(&perm).Error
	if err != nil {
		if dberr.IsNotFound(err) {
			return nil, rbac.ErrNotFound
		}
		return nil, err
	}
	return &perm, nil
}

func (r *RBACRepository) CreatePermission(ctx context.Context, perm *rbacDatamodel.Permission) error {
	if perm.GuardName == "" {
		perm.GuardName = rbacDatamodel.DefaultGuard
	}
	if err := r.db.WithContext(ctx).Create(perm).Error; err != nil {
		if dberr.IsUniqueViolation(err) {
			return rbac.ErrDuplicate
		}
		return err
	}
	return nil
}

// DeletePermission detaches the permission from roles and users, then removes it.
func (r *RBACRepository) DeletePermission(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, &rbacDatamodel.Permission{}, id); err != nil {
			return err
		}
		if err := tx.Where("permission_id = ?", id).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("permission_id = ?", id).Delete(&rbacDatamodel.UserPermission{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&rbacDatamodel.Permission{}).Error
	})
}

func (r *RBACRepository) SyncRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, &rbacDatamodel.Role{}, roleID); err != nil {
			return err
		}
		if err := requireIDs(tx, &rbacDatamodel.Permission{}, "permissions", permissionIDs); err != nil {
			return err
		}
		return syncPivot(tx, "role_id", "permission_id", roleID, permissionIDs, func(id int64) rbacDatamodel.RolePermission {
			return rbacDatamodel.RolePermission{RoleID: roleID, PermissionID: id}
		})
	})
}

func (r *RBACRepository) SyncUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, &userDatamodel.User{}, userID); err != nil {
			return err
		}
		if err := requireIDs(tx, &rbacDatamodel.Role{}, "roles", roleIDs); err != nil {
			return err
		}
		return syncPivot(tx, "user_id", "role_id", userID, roleIDs, func(id int64) rbacDatamodel.UserRole {
			return rbacDatamodel.UserRole{UserID: userID, RoleID: id}
		})
	})
}

func (r *RBACRepository) SyncUserPermissions(ctx context.Context, userID int64, permissionIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, &userDatamodel.User{}, userID); err != nil {
			return err
		}
		if err := requireIDs(tx, &rbacDatamodel.Permission{}, "permissions", permissionIDs); err != nil {
			return err
		}
		return syncPivot(tx, "user_id", "permission_id", userID, permissionIDs, func(id int64) rbacDatamodel.UserPermission {
			return rbacDatamodel.UserPermission{UserID: userID, PermissionID: id}
		})
	})
}

// AttachUserRole adds one role to a user, leaving existing roles alone.
func (r *RBACRepository) AttachUserRole(ctx context.Context, userID, roleID int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rbacDatamodel.UserRole{UserID: userID, RoleID: roleID}).Error
}

func (r *RBACRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", userID).Count(&count).Error
	return count > 0, err
}

// UserHasPermission checks direct grants and role grants in one query.
func (r *RBACRepository) UserHasPermission(ctx context.Context, userID int64, permission string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
SELECT COUNT(*) FROM (
	SELECT up.permission_id
	FROM user_permissions up
	JOIN permissions p ON p.id = up.permission_id
	WHERE up.user_id = ? AND p.name = ?
	UNION ALL
	SELECT rp.permission_id
	FROM user_roles ur
	JOIN role_permissions rp ON rp.role_id = ur.role_id
	JOIN permissions p ON p.id = rp.permission_id
	WHERE ur.user_id = ? AND p.name = ?
) grants`, userID, permission, userID, permission).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RBACRepository) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Raw(`
SELECT p.name
FROM user_permissions up
JOIN permissions p ON p.id = up.permission_id
WHERE up.user_id = ?
UNION
SELECT p.name
FROM user_roles ur
JOIN role_permissions rp ON rp.role_id = ur.role_id
JOIN permissions p ON p.id = rp.permission_id
WHERE ur.user_id = ?
ORDER BY name`, userID, userID).Scan(&names).Error
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// lockOwner takes a row lock on the owning row for the rest of tx. SQLite
// has no row locks and the dialect drops the FOR UPDATE clause.
func lockOwner(tx *gorm.DB, model interface{}, id int64) error {
	var found []int64
	err := tx.Model(model).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Pluck("id", &found).Error
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

// requireIDs fails with *rbac.InvalidIDsError naming every id with no row.
func requireIDs(tx *gorm.DB, model interface{}, field string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	var found []int64
	if err := tx.Model(model).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return err
	}
	missing := difference(ids, found)
	if len(missing) > 0 {
		return &rbac.InvalidIDsError{Field: field, IDs: missing}
	}
	return nil
}

// syncPivot makes the member set of ownerID in T's table equal target:
// stale rows are deleted and missing rows inserted, duplicates ignored.
func syncPivot[T any](tx *gorm.DB, ownerCol, memberCol string, ownerID int64, target []int64, newRow func(int64) T) error {
	var current []int64
	if err := tx.Model(new(T)).Where(ownerCol+" = ?", ownerID).Pluck(memberCol, &current).Error; err != nil {
		return err
	}

	if stale := difference(current, target); len(stale) > 0 {
		err := tx.Where(ownerCol+" = ? AND "+memberCol+" IN ?", ownerID, stale).Delete(new(T)).Error
		if err != nil {
			return err
		}
	}

	missing := difference(target, current)
	if len(missing) == 0 {
		return nil
	}
	rows := make([]T, len(missing))
	for i, id := range missing {
		rows[i] = newRow(id)
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// difference returns the sorted ids in a that are not in b.
func difference(a, b []int64) []int64 {
	exclude := make(map[int64]struct{}, len(b))
	for _, id := range b {
		exclude[id] = struct{}{}
	}
	seen := make(map[int64]struct{}, len(a))
	var out []int64
	for _, id := range a {
		if _, ok := exclude[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
