package rbac

import "time"

// DefaultGuard is the only authorization context. It is persisted so a
// second context can be introduced without a schema change.
const DefaultGuard = "api"

type Role struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;size:255;uniqueIndex:idx_roles_name_guard;not null"`
	GuardName string    `gorm:"column:guard_name;size:64;uniqueIndex:idx_roles_name_guard;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

type Permission struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;size:255;uniqueIndex:idx_permissions_name_guard;not null"`
	GuardName string    `gorm:"column:guard_name;size:64;uniqueIndex:idx_permissions_name_guard;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

type UserRole struct {
	UserID    int64     `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	RoleID    int64     `gorm:"column:role_id;primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

type RolePermission struct {
	RoleID       int64     `gorm:"column:role_id;primaryKey;autoIncrement:false"`
	PermissionID int64     `gorm:"column:permission_id;primaryKey;autoIncrement:false;index"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

type UserPermission struct {
	UserID       int64     `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	PermissionID int64     `gorm:"column:permission_id;primaryKey;autoIncrement:false;index"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (UserPermission) TableName() string {
	return "user_permissions"
}

// Models lists every authorization table, in creation order.
func Models() []interface{} {
	return []interface{}{&Role{}, &Permission{}, &UserRole{}, &RolePermission{}, &UserPermission{}}
}
