package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/mediacatalog/models"
)

// CommentRepository handles database operations for group comments
type CommentRepository struct {
	DB *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{DB: db}
}

func (r *CommentRepository) Add(ctx context.Context, groupID int64, text string) (*models.GroupComment, error) {
	comment := models.GroupComment{GroupID: groupID, Comment: text, CreatedAt: time.Now().Unix()}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Group{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check group ID %d: %w", groupID, err)
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Create(&comment).Error; err != nil {
			return fmt.Errorf("failed to add comment to group ID %d: %w", groupID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByGroup returns comments newest first.
func (r *CommentRepository) ListByGroup(ctx context.Context, groupID int64) ([]models.GroupComment, error) {
	comments := []models.GroupComment{}
	err := r.DB.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").Order("id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list comments for group ID %d: %w", groupID, err)
	}
	return comments, nil
}

func (r *CommentRepository) Delete(ctx context.Context, commentID int64) error {
	result := r.DB.WithContext(ctx).Delete(&models.GroupComment{}, commentID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete comment ID %d: %w", commentID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
