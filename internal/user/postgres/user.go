package postgres

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/rbac-admin/internal/core/common/dberr"
	"github.com/frahmantamala/rbac-admin/internal/core/common/pagination"
	rbacDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/user"
	"github.com/frahmantamala/rbac-admin/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if dberr.IsUniqueViolation(err) {
			return user.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if dberr.IsNotFound(err) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if dberr.IsNotFound(err) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("email = ?", email)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *UserRepository) Update(ctx context.Context, u *userDatamodel.User) error {
	u.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(u).
		Select("name", "email", "password_hash", "updated_at").
		Updates(u)
	if res.Error != nil {
		if dberr.IsUniqueViolation(res.Error) {
			return user.ErrDuplicateEmail
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

// Delete removes the user together with its role and direct permission rows.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&rbacDatamodel.UserRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&rbacDatamodel.UserPermission{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&userDatamodel.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}

func (r *UserRepository) List(ctx context.Context, filter user.Filter, page pagination.Request) ([]*userDatamodel.User, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []*userDatamodel.User
	err := r.filtered(ctx, filter).
		Order("users.id ASC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// filtered builds the users query for filter. Each filter is a subquery on
// users.id so they AND together without duplicating rows.
func (r *UserRepository) filtered(ctx context.Context, filter user.Filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&userDatamodel.User{})

	if filter.Role != "" {
		match, args := idOrName("r", filter.Role)
		sub := r.db.Table("user_roles ur").
			Select("ur.user_id").
			Joins("JOIN roles r ON r.id = ur.role_id").
			Where(match, args...)
		q = q.Where("users.id IN (?)", sub)
	}

	if filter.Permission != "" {
		match, args := idOrName("p", filter.Permission)
		// Direct grants only; permissions inherited from a role do not match.
		direct := r.db.Table("user_permissions up").
			Select("up.user_id").
			Joins("JOIN permissions p ON p.id = up.permission_id").
			Where(match, args...)
		q = q.Where("users.id IN (?)", direct)
	}

	if filter.Search != "" {
		pattern := "%" + dberr.EscapeLike(strings.ToLower(filter.Search)) + "%"
		q = q.Where(`LOWER(users.name) LIKE ? ESCAPE '\' OR LOWER(users.email) LIKE ? ESCAPE '\'`, pattern, pattern)
	}

	return q
}

// idOrName matches alias.id when value is numeric, and alias.name always.
func idOrName(alias, value string) (string, []interface{}) {
	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		return alias + ".id = ? OR " + alias + ".name = ?", []interface{}{id, value}
	}
	return alias + ".name = ?", []interface{}{value}
}

type nameRow struct {
	UserID int64  `gorm:"column:user_id"`
	Name   string `gorm:"column:name"`
}

// LoadAccess fetches role names and effective permission names for every
// id in two queries.
func (r *UserRepository) LoadAccess(ctx context.Context, userIDs []int64) (map[int64]user.Access, error) {
	out := make(map[int64]user.Access, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var roleRows []nameRow
	err := r.db.WithContext(ctx).Table("user_roles ur").
		Select("ur.user_id AS user_id, r.name AS name").
		Joins("JOIN roles r ON r.id = ur.role_id").
		Where("ur.user_id IN ?", userIDs).
		Order("r.name ASC").
		Scan(&roleRows).Error
	if err != nil {
		return nil, err
	}

	var permRows []nameRow
	err = r.db.WithContext(ctx).Raw(`
SELECT up.user_id AS user_id, p.name AS name
FROM user_permissions up
JOIN permissions p ON p.id = up.permission_id
WHERE up.user_id IN ?
UNION
SELECT ur.user_id AS user_id, p.name AS name
FROM user_roles ur
JOIN role_permissions rp ON rp.role_id = ur.role_id
JOIN permissions p ON p.id = rp.permission_id
WHERE ur.user_id IN ?
ORDER BY name`, userIDs, userIDs).Scan(&permRows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range roleRows {
		a := out[row.UserID]
		a.Roles = append(a.Roles, row.Name)
		out[row.UserID] = a
	}
	for _, row := range permRows {
		a := out[row.UserID]
		a.Permissions = append(a.Permissions, row.Name)
		out[row.UserID] = a
	}
	return out, nil
}
