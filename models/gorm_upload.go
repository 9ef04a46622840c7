package models

// UploadRequest is the transient record of a bulk zip submission. It exists only
// while its own import runs and is hard-deleted before the submission returns.
type UploadRequest struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ArchivePath  string `gorm:"not null" json:"archive_path"` // path relative to MEDIA_STORAGE_PATH
	ArchiveName  string `gorm:"not null" json:"archive_name"` // client supplied file name
	AlbumID      *uint  `gorm:"" json:"album_id,omitempty"`
	NewAlbumName string `gorm:"" json:"new_album_name"`
	Tags         string `gorm:"" json:"tags"`
	UserID       *uint  `gorm:"" json:"user_id,omitempty"`
	CreatedAt    int64  `gorm:"not null" json:"created_at"`
}

func (UploadRequest) TableName() string {
	return "upload_requests"
}
