package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camden-git/mediacatalog/models"
)

const groupWithCountSelect = "image_groups.*, " +
	"(SELECT COUNT(*) FROM image_group_members m WHERE m.group_id = image_groups.id) AS image_count"

// GroupRepository handles database operations for groups and their memberships
type GroupRepository struct {
	DB *gorm.DB
}

// NewGroupRepository creates a new instance of GroupRepository
func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{DB: db}
}

func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	now := time.Now().Unix()
	if group.CreatedAt == 0 {
		group.CreatedAt = now
	}
	if group.UpdatedAt == 0 {
		group.UpdatedAt = now
	}
	if group.Color == "" {
		group.Color = models.DefaultGroupColor
	}
	if err := r.DB.WithContext(ctx).Create(group).Error; err != nil {
		return fmt.Errorf("failed to create group %s: %w", group.Name, err)
	}
	return nil
}

// Update replaces name, description and color. A nil description clears it.
func (r *GroupRepository) Update(ctx context.Context, groupID int64, name string, description *string, color string) error {
	updates := map[string]interface{}{
		"name":       name,
		"color":      color,
		"updated_at": time.Now().Unix(),
	}
	if description == nil {
		updates["description"] = gorm.Expr("NULL")
	} else {
		updates["description"] = *description
	}

	result := r.DB.WithContext(ctx).Model(&models.Group{}).Where("id = ?", groupID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update group ID %d: %w", groupID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the group, its memberships and comments. Member images are kept.
func (r *GroupRepository) Delete(ctx context.Context, groupID int64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMember{}).Error; err != nil {
			return fmt.Errorf("failed to delete memberships for group ID %d: %w", groupID, err)
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupComment{}).Error; err != nil {
			return fmt.Errorf("failed to delete comments for group ID %d: %w", groupID, err)
		}
		result := tx.Delete(&models.Group{}, groupID)
		if result.Error != nil {
			return fmt.Errorf("failed to delete group ID %d: %w", groupID, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ListAll returns every group ordered by name, with image_count filled in.
func (r *GroupRepository) ListAll(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := r.DB.WithContext(ctx).Model(&models.Group{}).
		Select(groupWithCountSelect).
		Order("name COLLATE NOCASE ASC").Order("id ASC").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

func (r *GroupRepository) GetByID(ctx context.Context, groupID int64) (*models.Group, error) {
	var group models.Group
	err := r.DB.WithContext(ctx).Model(&models.Group{}).
		Select(groupWithCountSelect).
		Where("image_groups.id = ?", groupID).
		First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get group by ID %d: %w", groupID, err)
	}
	return &group, nil
}

// GetByName matches case-insensitively.
func (r *GroupRepository) GetByName(ctx context.Context, name string) (*models.Group, error) {
	var group models.Group
	err := r.DB.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).Order("id ASC").First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get group by name %s: %w", name, err)
	}
	return &group, nil
}

// AddImages links images to the group; existing links are left alone.
// It returns the number of new memberships.
func (r *GroupRepository) AddImages(ctx context.Context, imageIDs []int64, groupID int64) (int64, error) {
	if len(imageIDs) == 0 {
		return 0, nil
	}
	now := time.Now().Unix()
	rows := make([]models.GroupMember, 0, len(imageIDs))
	for _, id := range imageIDs {
		rows = append(rows, models.GroupMember{GroupID: groupID, ImageID: id, CreatedAt: now})
	}

	var added int64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Group{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check group ID %d: %w", groupID, err)
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
		if result.Error != nil {
			return fmt.Errorf("failed to add images to group ID %d: %w", groupID, result.Error)
		}
		added = result.RowsAffected
		return tx.Model(&models.Group{}).Where("id = ?", groupID).Update("updated_at", now).Error
	})
	return added, err
}

// RemoveImages unlinks images and clears the representative image if it was removed.
func (r *GroupRepository) RemoveImages(ctx context.Context, imageIDs []int64, groupID int64) (int64, error) {
	if len(imageIDs) == 0 {
		return 0, nil
	}
	var removed int64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("group_id = ? AND image_id IN ?", groupID, imageIDs).Delete(&models.GroupMember{})
		if result.Error != nil {
			return fmt.Errorf("failed to remove images from group ID %d: %w", groupID, result.Error)
		}
		removed = result.RowsAffected
		err := tx.Model(&models.Group{}).
			Where("id = ? AND representative_image_id IN ?", groupID, imageIDs).
			Update("representative_image_id", gorm.Expr("NULL")).Error
		if err != nil {
			return fmt.Errorf("failed to clear representative image for group ID %d: %w", groupID, err)
		}
		return nil
	})
	return removed, err
}

func (r *GroupRepository) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Group{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check group ID %d: %w", groupID, err)
	}
	if count == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	ids := []int64{}
	err := r.DB.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Order("image_id ASC").
		Pluck("image_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list members of group ID %d: %w", groupID, err)
	}
	return ids, nil
}

func (r *GroupRepository) GroupIDsForImage(ctx context.Context, imageID int64) ([]int64, error) {
	ids := []int64{}
	err := r.DB.WithContext(ctx).Model(&models.GroupMember{}).
		Where("image_id = ?", imageID).
		Order("group_id ASC").
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list groups for image ID %d: %w", imageID, err)
	}
	return ids, nil
}

// SetRepresentativeImage sets or clears (nil) the group's representative image.
func (r *GroupRepository) SetRepresentativeImage(ctx context.Context, groupID int64, imageID *int64) error {
	var value interface{} = gorm.Expr("NULL")
	if imageID != nil {
		value = *imageID
	}
	result := r.DB.WithContext(ctx).Model(&models.Group{}).Where("id = ?", groupID).
		Updates(map[string]interface{}{"representative_image_id": value, "updated_at": time.Now().Unix()})
	if result.Error != nil {
		return fmt.Errorf("failed to set representative image for group ID %d: %w", groupID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IsMember reports whether the image belongs to the group.
func (r *GroupRepository) IsMember(ctx context.Context, groupID, imageID int64) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND image_id = ?", groupID, imageID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}
