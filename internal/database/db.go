package database

import (
	"marketplace/internal/logging"
	"marketplace/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection initializes a new connection pool using GORM and migrates the schema.
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		log := logging.Component("database")
		log.Warn().Err(err).Msg("failed to auto-migrate models")
	}

	return db, nil
}

// Migrate creates or updates every table the approval workflow owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.ApprovalRequest{},
		&model.CatalogEntry{},
		&model.AccountRole{},
		&model.EffectStep{},
		&model.NotificationLog{},
		&model.AuditLog{},
		&model.Role{},
		&model.Permission{},
	)
}
