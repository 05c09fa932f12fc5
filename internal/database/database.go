package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vesseleye/internal/config"
	"github.com/vesseleye/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database. Constraint violations are
// translated so callers can match gorm.ErrDuplicatedKey.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.Path + "?_busy_timeout=5000&_foreign_keys=on")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the schema. It runs on every start, so it
// must be repeatable against an existing database.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.ReportType{},
		&models.Vessel{},
		&models.TelemetryReport{},
		&models.AlertRule{},
		&models.RuleEvaluation{},
		&models.Alert{},
		&models.Geofence{},
		&models.User{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if !db.Migrator().HasIndex(&models.Alert{}, "idx_alert_history_active") {
		return fmt.Errorf("active alert index missing after migration")
	}

	defaultType := models.ReportType{ID: 1, Name: "default"}
	if err := db.Where(models.ReportType{ID: 1}).FirstOrCreate(&defaultType).Error; err != nil {
		return fmt.Errorf("failed to seed default report type: %w", err)
	}
	return nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	return sqlDB.Close()
}
