package models

// Image represents a scanned media file in the database using GORM.
// It corresponds to the 'images' table; videos share the table with file_type = 'video'.
type Image struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	FilePath string `gorm:"not null;uniqueIndex" json:"file_path"`
	FileName string `gorm:"not null" json:"file_name"`
	FileType string `gorm:"not null;default:image" json:"file_type"`

	Comment    *string `gorm:"" json:"comment,omitempty"` // Nullable
	Tags       *string `gorm:"" json:"tags,omitempty"`    // Nullable, JSON array
	Rating     int     `gorm:"not null;default:0" json:"rating"`
	IsFavorite bool    `gorm:"not null;default:false" json:"is_favorite"`

	DurationSeconds *float64 `gorm:"" json:"duration_seconds,omitempty"` // Nullable, video only
	Width           *int     `gorm:"" json:"width,omitempty"`            // Nullable, video only
	Height          *int     `gorm:"" json:"height,omitempty"`           // Nullable, video only
	VideoCodec      *string  `gorm:"" json:"video_codec,omitempty"`      // Nullable, video only
	AudioCodec      *string  `gorm:"" json:"audio_codec,omitempty"`      // Nullable, video only
	ThumbnailPath   *string  `gorm:"" json:"thumbnail_path,omitempty"`   // Nullable, video only

	CreatedAt int64 `gorm:"not null;index" json:"created_at"` // Unix timestamp
	UpdatedAt int64 `gorm:"not null" json:"updated_at"`       // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Image) TableName() string {
	return "images"
}

const (
	FileTypeImage = "image"
	FileTypeVideo = "video"
)
