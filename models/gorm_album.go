package models

// Album represents a named collection of images in the database using GORM.
// It corresponds to the 'albums' table.
type Album struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string  `gorm:"not null" json:"name"`
	Slug      string  `gorm:"not null;uniqueIndex" json:"slug"`
	IsPublic  bool    `gorm:"not null;default:true" json:"is_public"`
	Order     int     `gorm:"column:sort_order;not null;default:0" json:"order"`
	UserID    *uint   `gorm:"index" json:"user_id,omitempty"` // Nullable, owner
	CreatedAt int64   `gorm:"not null" json:"created_at"`     // Unix timestamp
	UpdatedAt int64   `gorm:"not null" json:"updated_at"`     // Unix timestamp
	Images    []Image `gorm:"foreignKey:AlbumID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Album) TableName() string {
	return "albums"
}
