package database

import (
	"gorm.io/gorm"

	"github.com/gamelaunch/prereg/internal/models"
)

// AutoMigrate creates or updates the schema for all persisted models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.AuditLog{},
		&models.CacheEntry{},
	)
}
