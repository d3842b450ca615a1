package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/mediacatalog/models"
)

// ActionLogRepository persists the undo/redo history
type ActionLogRepository struct {
	DB *gorm.DB
}

func NewActionLogRepository(db *gorm.DB) *ActionLogRepository {
	return &ActionLogRepository{DB: db}
}

// Append records a new, not-undone entry and returns it.
func (r *ActionLogRepository) Append(ctx context.Context, actionType, table string, targetID int64, oldValue, newValue *string) (*models.ActionLog, error) {
	entry := models.ActionLog{
		ActionType:  actionType,
		TargetTable: table,
		TargetID:    targetID,
		OldValue:    oldValue,
		NewValue:    newValue,
		CreatedAt:   time.Now().Unix(),
	}
	if err := r.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to append action %s for %s ID %d: %w", actionType, table, targetID, err)
	}
	return &entry, nil
}

// LastUndoable returns the most recent entry that has not been undone, or nil.
func (r *ActionLogRepository) LastUndoable(ctx context.Context) (*models.ActionLog, error) {
	return r.latest(ctx, false)
}

// LastRedoable returns the most recent undone entry, or nil.
func (r *ActionLogRepository) LastRedoable(ctx context.Context) (*models.ActionLog, error) {
	return r.latest(ctx, true)
}

func (r *ActionLogRepository) latest(ctx context.Context, undone bool) (*models.ActionLog, error) {
	var entry models.ActionLog
	err := r.DB.WithContext(ctx).Where("is_undone = ?", undone).Order("id DESC").Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query action log: %w", err)
	}
	return &entry, nil
}

func (r *ActionLogRepository) MarkUndone(ctx context.Context, id int64) error {
	return setUndone(r.DB.WithContext(ctx), id, true)
}

func (r *ActionLogRepository) MarkRedone(ctx context.Context, id int64) error {
	return setUndone(r.DB.WithContext(ctx), id, false)
}

func setUndone(db *gorm.DB, id int64, undone bool) error {
	result := db.Model(&models.ActionLog{}).Where("id = ?", id).Update("is_undone", undone)
	if result.Error != nil {
		return fmt.Errorf("failed to flip action ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ApplyAction writes upd to the entry's target image and flips the entry's
// is_undone flag in one transaction, so either both happen or neither does.
func (r *ActionLogRepository) ApplyAction(ctx context.Context, entry *models.ActionLog, upd MetadataUpdate, markUndone bool) error {
	if entry.TargetTable != models.TargetTableImages {
		return fmt.Errorf("unsupported action target table %q", entry.TargetTable)
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateImageMetadata(tx, entry.TargetID, upd); err != nil {
			return err
		}
		return setUndone(tx, entry.ID, markUndone)
	})
}

// ListRecent returns up to limit entries, newest first.
func (r *ActionLogRepository) ListRecent(ctx context.Context, limit int) ([]models.ActionLog, error) {
	entries := []models.ActionLog{}
	err := r.DB.WithContext(ctx).Order("id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list action log: %w", err)
	}
	return entries, nil
}
