package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"
)

const backupTimeLayout = "20060102_150405"

// Backup writes a consistent copy of the database next to dbPath and returns its path.
func Backup(ctx context.Context, db *gorm.DB, dbPath string, now time.Time) (string, error) {
	dest := filepath.Join(filepath.Dir(dbPath), fmt.Sprintf("gallery_backup_%s.db", now.Format(backupTimeLayout)))
	if fileExists(dest) {
		return "", fmt.Errorf("backup %s already exists", dest)
	}
	if err := db.WithContext(ctx).Exec("VACUUM INTO ?", dest).Error; err != nil {
		return "", fmt.Errorf("failed to back up database to %s: %w", dest, err)
	}
	return dest, nil
}

// Reset removes every catalog row. Preferences in the settings table survive.
func Reset(ctx context.Context, db *gorm.DB) error {
	tables := []string{
		"action_log",
		"group_comments",
		"image_group_members",
		"image_groups",
		"images",
		"directories",
		"thumbnails",
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("failed to clear table %s: %w", table, err)
			}
		}
		return nil
	})
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
