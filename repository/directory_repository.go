package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/mediacatalog/models"
)

const directoryWithCountSelect = "directories.*, " +
	"(SELECT COUNT(*) FROM images i WHERE i.file_path LIKE (REPLACE(REPLACE(REPLACE(directories.path, '\\', '\\\\'), '%', '\\%'), '_', '\\_') || ? || '%') ESCAPE '\\') AS file_count"

// DirectoryRepository handles database operations for scanned directories
type DirectoryRepository struct {
	DB *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{DB: db}
}

// Add registers path. Re-adding a known path reactivates it and returns the existing row.
func (r *DirectoryRepository) Add(ctx context.Context, path string) (*models.Directory, error) {
	path = filepath.Clean(path)
	var dir models.Directory
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("path = ?", path).First(&dir).Error
		if err == nil {
			if !dir.IsActive {
				if err := tx.Model(&dir).Update("is_active", true).Error; err != nil {
					return fmt.Errorf("failed to reactivate directory %s: %w", path, err)
				}
				dir.IsActive = true
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up directory %s: %w", path, err)
		}

		dir = models.Directory{
			Path:      path,
			Name:      filepath.Base(path),
			IsActive:  true,
			CreatedAt: time.Now().Unix(),
		}
		if err := tx.Create(&dir).Error; err != nil {
			return fmt.Errorf("failed to add directory %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dir, nil
}

// Remove forgets the directory. Images found under it stay in the catalog.
func (r *DirectoryRepository) Remove(ctx context.Context, id int64) error {
	result := r.DB.WithContext(ctx).Delete(&models.Directory{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to remove directory ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListAll returns directories ordered by name with file_count filled in.
func (r *DirectoryRepository) ListAll(ctx context.Context) ([]models.Directory, error) {
	var dirs []models.Directory
	err := r.DB.WithContext(ctx).Model(&models.Directory{}).
		Select(directoryWithCountSelect, string(filepath.Separator)).
		Order("name ASC").Order("id ASC").
		Find(&dirs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list directories: %w", err)
	}
	return dirs, nil
}

func (r *DirectoryRepository) GetByID(ctx context.Context, id int64) (*models.Directory, error) {
	var dir models.Directory
	err := r.DB.WithContext(ctx).First(&dir, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get directory by ID %d: %w", id, err)
	}
	return &dir, nil
}

func (r *DirectoryRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result := r.DB.WithContext(ctx).Model(&models.Directory{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to set active flag for directory ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *DirectoryRepository) MarkScanned(ctx context.Context, id int64, at time.Time) error {
	ts := at.Unix()
	result := r.DB.WithContext(ctx).Model(&models.Directory{}).Where("id = ?", id).Update("last_scanned_at", ts)
	if result.Error != nil {
		return fmt.Errorf("failed to mark directory ID %d scanned: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ActivePaths returns the paths of directories flagged active.
func (r *DirectoryRepository) ActivePaths(ctx context.Context) ([]string, error) {
	paths := []string{}
	err := r.DB.WithContext(ctx).Model(&models.Directory{}).
		Where("is_active = ?", true).
		Order("path ASC").
		Pluck("path", &paths).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active directories: %w", err)
	}
	return paths, nil
}
