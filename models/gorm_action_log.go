package models

const TargetTableImages = "images"

// ActionLog is one undoable metadata edit. Entries are never deleted;
// undo and redo only flip IsUndone.
type ActionLog struct {
	ID          int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	ActionType  string  `gorm:"not null" json:"action_type"`
	TargetTable string  `gorm:"not null" json:"target_table"`
	TargetID    int64   `gorm:"not null;index" json:"target_id"`
	OldValue    *string `gorm:"" json:"old_value,omitempty"` // Nullable
	NewValue    *string `gorm:"" json:"new_value,omitempty"` // Nullable
	CreatedAt   int64   `gorm:"not null" json:"created_at"`
	IsUndone    bool    `gorm:"not null;default:false;index" json:"is_undone"`
}

func (ActionLog) TableName() string {
	return "action_log"
}
