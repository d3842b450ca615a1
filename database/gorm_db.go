package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/camden-git/mediacatalog/logger"
	"github.com/camden-git/mediacatalog/models"
)

// InitGormDB opens the sqlite database and routes gorm's SQL log into the app logger.
func InitGormDB(dataSourceName string, log *logger.Logger) (*gorm.DB, error) {
	gormLogger := gormlogger.New(
		log,
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	// sqlite allows one writer; a single connection keeps the worker pool and
	// the watcher from tripping over "database is locked".
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		log.Warn(context.Background(), fmt.Sprintf("database: failed to set WAL mode: %v", err))
	}

	log.Info(log.WithField(context.Background(), "path", dataSourceName), "database: GORM database initialized")
	return db, nil
}

// AutoMigrateModels creates or updates every table the catalog uses,
// including the raw thumbnail cache table.
func AutoMigrateModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Image{},
		&models.Group{},
		&models.GroupMember{},
		&models.GroupComment{},
		&models.Directory{},
		&models.ActionLog{},
		&models.Setting{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}
	if err := EnsureThumbnailTable(context.Background(), sqlDB); err != nil {
		return err
	}
	return nil
}
