package models

const DefaultGroupColor = "#3B82F6"

// Group is a user-defined collection of images.
type Group struct {
	ID                    int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                  string  `gorm:"not null" json:"name"`
	Description           *string `gorm:"" json:"description,omitempty"` // Nullable
	Color                 string  `gorm:"not null;default:'#3B82F6'" json:"color"`
	RepresentativeImageID *int64  `gorm:"" json:"representative_image_id,omitempty"` // Nullable
	CreatedAt             int64   `gorm:"not null" json:"created_at"`
	UpdatedAt             int64   `gorm:"not null" json:"updated_at"`

	// ImageCount is filled by list queries from the membership table.
	ImageCount int `gorm:"->;-:migration" json:"image_count"`
}

func (Group) TableName() string {
	return "image_groups"
}

// GroupMember links an image to a group.
type GroupMember struct {
	GroupID   int64 `gorm:"primaryKey;autoIncrement:false" json:"group_id"`
	ImageID   int64 `gorm:"primaryKey;autoIncrement:false;index" json:"image_id"`
	CreatedAt int64 `gorm:"not null" json:"created_at"`
}

func (GroupMember) TableName() string {
	return "image_group_members"
}

// GroupComment is a note attached to a group.
type GroupComment struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	GroupID   int64  `gorm:"not null;index" json:"group_id"`
	Comment   string `gorm:"not null" json:"comment"`
	CreatedAt int64  `gorm:"not null" json:"created_at"`
}

func (GroupComment) TableName() string {
	return "group_comments"
}
