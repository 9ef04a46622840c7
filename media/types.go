// media/types.go
package media

type AssetType string

const (
	AssetTypeImage  AssetType = "image"  // stored image payloads
	AssetTypeUpload AssetType = "upload" // incoming archives awaiting import
)

// Metadata struct
// Contains dimension, format and EXIF information read while importing
type Metadata struct {
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	Format      *string `json:"format,omitempty"`
	CameraMake  *string `json:"camera_make,omitempty"`
	CameraModel *string `json:"camera_model,omitempty"`
	TakenAt     *int64  `json:"taken_at,omitempty"`
}
