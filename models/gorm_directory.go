package models

// Directory is a scanned (and optionally watched) root folder.
type Directory struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Path          string `gorm:"not null;uniqueIndex" json:"path"`
	Name          string `gorm:"not null" json:"name"`
	IsActive      bool   `gorm:"not null;default:true" json:"is_active"`
	LastScannedAt *int64 `gorm:"" json:"last_scanned_at,omitempty"` // Nullable, Unix timestamp
	CreatedAt     int64  `gorm:"not null" json:"created_at"`

	FileCount int `gorm:"->;-:migration" json:"file_count"`
}

func (Directory) TableName() string {
	return "directories"
}
