package repository

import (
	"context"
	"time"

	"github.com/camden-git/mediacatalog/models"
)

// ImageRepositoryInterface defines the methods for image data operations
type ImageRepositoryInterface interface {
	InsertIfAbsent(ctx context.Context, image *models.Image) (bool, error)
	ListAll(ctx context.Context) ([]models.Image, error)
	GetByID(ctx context.Context, id int64) (*models.Image, error)
	GetByPath(ctx context.Context, path string) (*models.Image, error)
	ListUnderPath(ctx context.Context, dir string) ([]models.Image, error)
	UpdateMetadata(ctx context.Context, id int64, upd MetadataUpdate) error
	SetThumbnailPath(ctx context.Context, id int64, thumbPath string) error
	ListVideosMissingThumbnail(ctx context.Context) ([]models.Image, error)
}

// GroupRepositoryInterface defines the methods for group and membership operations
type GroupRepositoryInterface interface {
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, groupID int64, name string, description *string, color string) error
	Delete(ctx context.Context, groupID int64) error
	ListAll(ctx context.Context) ([]models.Group, error)
	GetByID(ctx context.Context, groupID int64) (*models.Group, error)
	GetByName(ctx context.Context, name string) (*models.Group, error)
	AddImages(ctx context.Context, imageIDs []int64, groupID int64) (int64, error)
	RemoveImages(ctx context.Context, imageIDs []int64, groupID int64) (int64, error)
	MemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	GroupIDsForImage(ctx context.Context, imageID int64) ([]int64, error)
	SetRepresentativeImage(ctx context.Context, groupID int64, imageID *int64) error
	IsMember(ctx context.Context, groupID, imageID int64) (bool, error)
}

// CommentRepositoryInterface defines the methods for group comment operations
type CommentRepositoryInterface interface {
	Add(ctx context.Context, groupID int64, text string) (*models.GroupComment, error)
	ListByGroup(ctx context.Context, groupID int64) ([]models.GroupComment, error)
	Delete(ctx context.Context, commentID int64) error
}

// DirectoryRepositoryInterface defines the methods for directory operations
type DirectoryRepositoryInterface interface {
	Add(ctx context.Context, path string) (*models.Directory, error)
	Remove(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]models.Directory, error)
	GetByID(ctx context.Context, id int64) (*models.Directory, error)
	SetActive(ctx context.Context, id int64, active bool) error
	MarkScanned(ctx context.Context, id int64, at time.Time) error
	ActivePaths(ctx context.Context) ([]string, error)
}

// ActionLogRepositoryInterface defines the methods for undo/redo history operations
type ActionLogRepositoryInterface interface {
	Append(ctx context.Context, actionType, table string, targetID int64, oldValue, newValue *string) (*models.ActionLog, error)
	LastUndoable(ctx context.Context) (*models.ActionLog, error)
	LastRedoable(ctx context.Context) (*models.ActionLog, error)
	MarkUndone(ctx context.Context, id int64) error
	MarkRedone(ctx context.Context, id int64) error
	ApplyAction(ctx context.Context, entry *models.ActionLog, upd MetadataUpdate, markUndone bool) error
	ListRecent(ctx context.Context, limit int) ([]models.ActionLog, error)
}

// SettingsRepositoryInterface defines key/value preference storage
type SettingsRepositoryInterface interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

var (
	_ ImageRepositoryInterface     = (*ImageRepository)(nil)
	_ GroupRepositoryInterface     = (*GroupRepository)(nil)
	_ CommentRepositoryInterface   = (*CommentRepository)(nil)
	_ DirectoryRepositoryInterface = (*DirectoryRepository)(nil)
	_ ActionLogRepositoryInterface = (*ActionLogRepository)(nil)
	_ SettingsRepositoryInterface  = (*SettingsRepository)(nil)
)
