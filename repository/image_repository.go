package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camden-git/mediacatalog/models"
)

// MetadataUpdate carries the user-editable image fields. nil fields are left untouched;
// an empty Comment clears the column and a non-nil empty Tags stores "[]".
type MetadataUpdate struct {
	Rating     *int
	Comment    *string
	Tags       []string
	IsFavorite *bool
}

func (u MetadataUpdate) IsEmpty() bool {
	return u.Rating == nil && u.Comment == nil && u.Tags == nil && u.IsFavorite == nil
}

// ImageRepository handles database operations for Image entities
type ImageRepository struct {
	DB *gorm.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

// InsertIfAbsent creates the image unless a row with the same file_path exists.
// It reports whether a row was inserted.
func (r *ImageRepository) InsertIfAbsent(ctx context.Context, image *models.Image) (bool, error) {
	now := time.Now().Unix()
	if image.CreatedAt == 0 {
		image.CreatedAt = now
	}
	if image.UpdatedAt == 0 {
		image.UpdatedAt = now
	}
	if image.FileType == "" {
		image.FileType = models.FileTypeImage
	}
	if image.FileName == "" {
		image.FileName = filepath.Base(image.FilePath)
	}

	result := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "file_path"}}, DoNothing: true}).
		Create(image)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert image %s: %w", image.FilePath, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListAll returns every image, newest first.
func (r *ImageRepository) ListAll(ctx context.Context) ([]models.Image, error) {
	var images []models.Image
	err := r.DB.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

func (r *ImageRepository) GetByID(ctx context.Context, id int64) (*models.Image, error) {
	var image models.Image
	err := r.DB.WithContext(ctx).First(&image, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by ID %d: %w", id, err)
	}
	return &image, nil
}

func (r *ImageRepository) GetByPath(ctx context.Context, path string) (*models.Image, error) {
	var image models.Image
	err := r.DB.WithContext(ctx).Where("file_path = ?", path).First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by path %s: %w", path, err)
	}
	return &image, nil
}

// ListUnderPath returns images whose file path lies inside dir.
func (r *ImageRepository) ListUnderPath(ctx context.Context, dir string) ([]models.Image, error) {
	var images []models.Image
	err := r.DB.WithContext(ctx).
		Where("file_path LIKE ? ESCAPE '\\'", likePrefix(dir)).
		Order("created_at DESC").Order("id DESC").
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images under %s: %w", dir, err)
	}
	return images, nil
}

// UpdateMetadata applies the non-nil fields of upd and refreshes updated_at.
func (r *ImageRepository) UpdateMetadata(ctx context.Context, id int64, upd MetadataUpdate) error {
	return updateImageMetadata(r.DB.WithContext(ctx), id, upd)
}

func updateImageMetadata(db *gorm.DB, id int64, upd MetadataUpdate) error {
	if upd.IsEmpty() {
		return nil
	}
	updates := map[string]interface{}{
		"updated_at": time.Now().Unix(),
	}
	if upd.Rating != nil {
		updates["rating"] = *upd.Rating
	}
	if upd.Comment != nil {
		if *upd.Comment == "" {
			updates["comment"] = gorm.Expr("NULL")
		} else {
			updates["comment"] = *upd.Comment
		}
	}
	if upd.Tags != nil {
		encoded, err := models.EncodeTags(upd.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags for image ID %d: %w", id, err)
		}
		updates["tags"] = encoded
	}
	if upd.IsFavorite != nil {
		updates["is_favorite"] = *upd.IsFavorite
	}

	result := db.Model(&models.Image{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update metadata for image ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ImageRepository) SetThumbnailPath(ctx context.Context, id int64, thumbPath string) error {
	result := r.DB.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).
		Updates(map[string]interface{}{"thumbnail_path": thumbPath, "updated_at": time.Now().Unix()})
	if result.Error != nil {
		return fmt.Errorf("failed to set thumbnail for image ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListVideosMissingThumbnail returns videos that still need a generated thumbnail.
func (r *ImageRepository) ListVideosMissingThumbnail(ctx context.Context) ([]models.Image, error) {
	var images []models.Image
	err := r.DB.WithContext(ctx).
		Where("file_type = ? AND (thumbnail_path IS NULL OR thumbnail_path = '')", models.FileTypeVideo).
		Order("id ASC").
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list videos missing thumbnails: %w", err)
	}
	return images, nil
}

// likePrefix builds a LIKE pattern matching every path below dir.
func likePrefix(dir string) string {
	dir = strings.TrimRight(dir, string(filepath.Separator))
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(dir) + string(filepath.Separator) + "%"
}
