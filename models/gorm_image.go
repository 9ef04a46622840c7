package models

// Image represents a single stored picture belonging to exactly one album.
// It corresponds to the 'images' table.
type Image struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	AlbumID     uint   `gorm:"not null;index" json:"album_id"`
	Album       *Album `gorm:"foreignKey:AlbumID" json:"album,omitempty"`
	UserID      *uint  `gorm:"index" json:"user_id,omitempty"`
	ImagePath   string `gorm:"not null;index" json:"image_path"` // path relative to MEDIA_STORAGE_PATH
	Title       string `gorm:"not null" json:"title"`
	Slug        string `gorm:"not null;uniqueIndex" json:"slug"`
	Description string `gorm:"" json:"description"`
	Tags        string `gorm:"" json:"tags"` // comma separated
	Featured    bool   `gorm:"not null;default:false;index" json:"featured"`
	Order       int    `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt   int64  `gorm:"not null;index" json:"created_at"` // Unix timestamp

	// captured while importing, all nullable
	Width       *int    `gorm:"" json:"width,omitempty"`
	Height      *int    `gorm:"" json:"height,omitempty"`
	Format      *string `gorm:"" json:"format,omitempty"`
	TakenAt     *int64  `gorm:"" json:"taken_at,omitempty"`
	CameraMake  *string `gorm:"" json:"camera_make,omitempty"`
	CameraModel *string `gorm:"" json:"camera_model,omitempty"`

	// Relationships
	RelatedImages   []*Image   `gorm:"many2many:image_related_images;joinForeignKey:ImageID;joinReferences:RelatedImageID" json:"related_images,omitempty"`
	RelatedArticles []*Article `gorm:"many2many:image_related_articles" json:"related_articles,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Image) TableName() string {
	return "images"
}
