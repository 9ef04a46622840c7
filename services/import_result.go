package services

import (
	"errors"
	"fmt"

	"github.com/camden-git/imagestore/models"
)

var (
	// ErrArchiveMissing means the stored archive file no longer exists.
	ErrArchiveMissing = errors.New("archive file does not exist")
	// ErrArchiveCorrupt means a member failed its CRC check.
	ErrArchiveCorrupt = errors.New("archive member failed integrity check")
	// ErrAlbumNotFound means the requested target album does not exist.
	ErrAlbumNotFound = errors.New("album not found")
)

// ArchiveError reports an archive, or one of its members, that cannot be read.
// The integrity check runs before anything is written, so a corrupt archive
// leaves the database untouched; a member that fails to inflate later aborts the
// import after its album exists.
type ArchiveError struct {
	Path   string // store relative path of the archive
	Member string // first corrupt member, if any
	Err    error
}

func (e *ArchiveError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("archive %s: member %s: %v", e.Path, e.Member, e.Err)
	}
	return fmt.Sprintf("archive %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// SkipReason says why an archive member did not become an image.
type SkipReason string

const (
	SkipMetadata  SkipReason = "metadata"  // archiver bookkeeping such as __MACOSX/
	SkipDirectory SkipReason = "directory" // directory entry
	SkipEmpty     SkipReason = "empty"     // zero-length payload
	SkipDecode    SkipReason = "decode"    // pixels could not be loaded
	SkipVerify    SkipReason = "verify"    // header disagrees with the pixels, or too many pixels
	SkipTooLarge  SkipReason = "too_large" // inflated payload exceeds the member size limit
)

// SkippedMember is one archive member that was not imported.
type SkippedMember struct {
	Name   string     `json:"name"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// ImportResult is the outcome of importing one archive.
type ImportResult struct {
	Album   *models.Album   `json:"album"`
	Images  []models.Image  `json:"images"`
	Skipped []SkippedMember `json:"skipped"`
}

// ImportObserver is notified as an import progresses. Implementations must not
// block; they are called synchronously from the import loop.
type ImportObserver interface {
	MemberImported(archive string, album *models.Album, image *models.Image)
	MemberSkipped(archive string, member SkippedMember)
	ImportFinished(archive string, result *ImportResult, err error)
}
