// Package database opens the settings-persistence store. The schema is
// assumed present in production (the main application migrates it);
// AutoMigrate exists for local development and tests.
package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/silviutimaru/mivton-presence/pkg/config"
	"github.com/silviutimaru/mivton-presence/pkg/models"
	"github.com/silviutimaru/mivton-presence/pkg/repository"
)

// Open connects to the configured database
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	return db, nil
}

// Migrate creates the presence-related tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.VisibilitySettings{},
		&models.ContactRestriction{},
		&models.DndException{},
		&repository.Friendship{},
		&repository.UserBlock{},
		&repository.ChatSession{},
	)
}
