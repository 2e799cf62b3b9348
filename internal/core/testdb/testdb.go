// Package testdb opens the in-memory SQLite database the repository and
// service suites run against.
package testdb

import (
	rbacDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a fresh, migrated database. The pool is pinned to one
// connection since every SQLite :memory: connection is its own database.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	models := append([]interface{}{&userDatamodel.User{}}, rbacDatamodel.Models()...)
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	return db, nil
}
