package services

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/camden-git/imagestore/media"
	"github.com/camden-git/imagestore/models"
	"github.com/camden-git/imagestore/repository"
	"github.com/camden-git/imagestore/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxCreateAttempts bounds the retries after losing a slug race to a concurrent writer.
const maxCreateAttempts = 3

// DefaultMaxMemberBytes caps the inflated size of a single archive member.
const DefaultMaxMemberBytes int64 = 64 << 20

var errMemberTooLarge = errors.New("member exceeds size limit")

// SubmitRequest is an incoming bulk upload.
type SubmitRequest struct {
	ArchiveName  string    // client supplied file name
	Archive      io.Reader // zip payload
	AlbumID      *uint     // existing target album; takes precedence over NewAlbumName
	NewAlbumName string
	Tags         string
	UserID       *uint
}

// Importer turns zip archives into albums and images.
type Importer struct {
	albums    repository.AlbumRepositoryInterface
	images    repository.ImageRepositoryInterface
	uploads   repository.UploadRequestRepositoryInterface
	store     media.Store
	processor *media.Processor
	observers []ImportObserver
	now       func() time.Time

	maxMemberBytes int64
}

// NewImporter creates an Importer. Observers are notified in the given order.
func NewImporter(
	albums repository.AlbumRepositoryInterface,
	images repository.ImageRepositoryInterface,
	uploads repository.UploadRequestRepositoryInterface,
	store media.Store,
	processor *media.Processor,
	observers ...ImportObserver,
) *Importer {
	return &Importer{
		albums:    albums,
		images:    images,
		uploads:   uploads,
		store:     store,
		processor: processor,
		observers: observers,
		now:       time.Now,

		maxMemberBytes: DefaultMaxMemberBytes,
	}
}

// SetMaxMemberBytes changes the per-member size limit. Members larger than n
// bytes once inflated are skipped. Non-positive values keep the current limit.
func (s *Importer) SetMaxMemberBytes(n int64) {
	if n > 0 {
		s.maxMemberBytes = n
	}
}

// Submit stores the archive in the temp area, records the upload request and
// imports it. The request record and the temporary archive are removed before
// Submit returns, whatever the outcome.
func (s *Importer) Submit(ctx context.Context, req SubmitRequest) (*ImportResult, error) {
	archiveName := utils.BaseName(req.ArchiveName)
	filename := utils.SanitizeFilename(archiveName)
	if filename == "" {
		filename = uuid.NewString() + ".zip"
	}

	archivePath, err := s.store.Save(media.AssetTypeUpload, "", filename, req.Archive)
	if err != nil {
		return nil, fmt.Errorf("failed to store uploaded archive %s: %w", archiveName, err)
	}
	defer func() {
		if err := s.store.Delete(archivePath); err != nil {
			log.Printf("importer: failed to remove temporary archive %s: %v", archivePath, err)
		}
	}()

	record := &models.UploadRequest{
		ArchivePath:  archivePath,
		ArchiveName:  archiveName,
		AlbumID:      req.AlbumID,
		NewAlbumName: req.NewAlbumName,
		Tags:         utils.NormalizeTags(req.Tags),
		UserID:       req.UserID,
	}
	if err := s.uploads.Create(record); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.uploads.Delete(record.ID); err != nil {
			log.Printf("importer: failed to remove upload request %d: %v", record.ID, err)
		}
	}()

	return s.Import(ctx, record)
}

// Import unpacks the archive referenced by req into its target album. Members
// that are not valid images are skipped and reported; archive level problems
// return an *ArchiveError before anything is written. On cancellation the
// partial result is returned together with the context error.
func (s *Importer) Import(ctx context.Context, req *models.UploadRequest) (*ImportResult, error) {
	result, err := s.importArchive(ctx, req)
	for _, o := range s.observers {
		o.ImportFinished(req.ArchiveName, result, err)
	}
	return result, err
}

func (s *Importer) importArchive(ctx context.Context, req *models.UploadRequest) (*ImportResult, error) {
	fullPath, err := s.store.GetFullPath(req.ArchivePath)
	if err != nil {
		return nil, &ArchiveError{Path: req.ArchivePath, Err: err}
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil, &ArchiveError{Path: req.ArchivePath, Err: ErrArchiveMissing}
		}
		return nil, &ArchiveError{Path: req.ArchivePath, Err: err}
	}

	zr, err := zip.OpenReader(fullPath)
	if err != nil {
		return nil, &ArchiveError{Path: req.ArchivePath, Err: err}
	}
	defer zr.Close()

	if bad := utils.FirstCorruptMember(zr.File); bad != "" {
		return nil, &ArchiveError{Path: req.ArchivePath, Member: bad, Err: ErrArchiveCorrupt}
	}

	album, err := s.resolveAlbum(req)
	if err != nil {
		return nil, err
	}

	files := make([]*zip.File, len(zr.File))
	copy(files, zr.File)
	sort.SliceStable(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	result := &ImportResult{Album: album, Images: []models.Image{}, Skipped: []SkippedMember{}}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			log.Printf("importer: import of %s cancelled after %d images", req.ArchiveName, len(result.Images))
			return result, err
		}

		image, skipped, err := s.importMember(album, req, f)
		if err != nil {
			return result, err
		}
		if skipped != nil {
			result.Skipped = append(result.Skipped, *skipped)
			for _, o := range s.observers {
				o.MemberSkipped(req.ArchiveName, *skipped)
			}
			continue
		}

		result.Images = append(result.Images, *image)
		for _, o := range s.observers {
			o.MemberImported(req.ArchiveName, album, image)
		}
	}

	log.Printf("importer: imported %d images into album %s from %s (%d skipped)",
		len(result.Images), album.Slug, req.ArchiveName, len(result.Skipped))
	return result, nil
}

// resolveAlbum loads the requested album or creates a new one named after the
// request or, failing that, after the archive file.
func (s *Importer) resolveAlbum(req *models.UploadRequest) (*models.Album, error) {
	if req.AlbumID != nil {
		album, err := s.albums.GetByID(*req.AlbumID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("album %d: %w", *req.AlbumID, ErrAlbumNotFound)
			}
			return nil, err
		}
		return album, nil
	}

	name := strings.TrimSpace(req.NewAlbumName)
	if name == "" {
		name = utils.PrettyTitle(utils.FileStem(req.ArchiveName))
	}
	if name == "" {
		name = req.ArchiveName
	}

	album := &models.Album{Name: name, IsPublic: true, UserID: req.UserID}
	for attempt := 1; ; attempt++ {
		slug, err := utils.UniqueSlug(s.albums, name, s.now())
		if err != nil {
			return nil, err
		}
		album.Slug = slug

		err = s.albums.Create(album)
		if err == nil {
			log.Printf("importer: created album %s (%s) for %s", album.Name, album.Slug, req.ArchiveName)
			return album, nil
		}
		if !errors.Is(err, repository.ErrSlugTaken) || attempt >= maxCreateAttempts {
			return nil, err
		}
		log.Printf("importer: album slug %s was taken concurrently, retrying", slug)
	}
}

// importMember imports a single archive member. It returns either the created
// image or the reason the member was skipped; a non-nil error aborts the import.
func (s *Importer) importMember(album *models.Album, req *models.UploadRequest, f *zip.File) (*models.Image, *SkippedMember, error) {
	name := f.Name
	switch {
	case utils.IsMetadataMember(name):
		return nil, &SkippedMember{Name: name, Reason: SkipMetadata}, nil
	case f.FileInfo().IsDir() || strings.HasSuffix(name, "/"):
		return nil, &SkippedMember{Name: name, Reason: SkipDirectory}, nil
	case f.UncompressedSize64 == 0:
		return nil, &SkippedMember{Name: name, Reason: SkipEmpty}, nil
	case f.UncompressedSize64 > uint64(s.maxMemberBytes):
		return nil, s.tooLarge(req, name), nil
	}

	data, err := readMember(f, s.maxMemberBytes)
	if errors.Is(err, errMemberTooLarge) {
		return nil, s.tooLarge(req, name), nil
	}
	if err != nil {
		return nil, nil, &ArchiveError{Path: req.ArchivePath, Member: name, Err: err}
	}
	if len(data) == 0 {
		return nil, &SkippedMember{Name: name, Reason: SkipEmpty}, nil
	}

	decoded, err := s.processor.Validate(data)
	if err != nil {
		reason := SkipDecode
		var verr *media.ValidationError
		if errors.As(err, &verr) && verr.Stage == media.StageVerify {
			reason = SkipVerify
		}
		log.Printf("importer: skipping %s from %s: %v", name, req.ArchiveName, err)
		return nil, &SkippedMember{Name: name, Reason: reason, Detail: err.Error()}, nil
	}

	imagePath, err := s.processor.SaveOriginal(album.Slug, name, decoded.Format, data)
	if err != nil {
		return nil, nil, err
	}

	meta := media.ExtractMetadata(data, decoded)
	title := utils.PrettyTitle(utils.FileStem(name))
	image := &models.Image{
		AlbumID:     album.ID,
		UserID:      req.UserID,
		ImagePath:   imagePath,
		Title:       title,
		Tags:        req.Tags,
		CreatedAt:   s.now().Unix(),
		Width:       meta.Width,
		Height:      meta.Height,
		Format:      meta.Format,
		TakenAt:     meta.TakenAt,
		CameraMake:  meta.CameraMake,
		CameraModel: meta.CameraModel,
	}

	for attempt := 1; ; attempt++ {
		slug, err := utils.UniqueSlug(s.images, title, s.now())
		if err == nil {
			image.Slug = slug
			err = s.images.Create(image)
		}
		if err == nil {
			return image, nil, nil
		}
		if !errors.Is(err, repository.ErrSlugTaken) || attempt >= maxCreateAttempts {
			if delErr := s.store.Delete(imagePath); delErr != nil {
				log.Printf("importer: failed to remove orphaned payload %s: %v", imagePath, delErr)
			}
			return nil, nil, err
		}
		log.Printf("importer: image slug %s was taken concurrently, retrying", slug)
	}
}

func (s *Importer) tooLarge(req *models.UploadRequest, name string) *SkippedMember {
	log.Printf("importer: skipping %s from %s: larger than %d bytes", name, req.ArchiveName, s.maxMemberBytes)
	return &SkippedMember{
		Name:   name,
		Reason: SkipTooLarge,
		Detail: fmt.Sprintf("member is larger than %d bytes", s.maxMemberBytes),
	}
}

// readMember inflates f, reading at most limit bytes. The declared size in the
// header is not trusted: a member that keeps producing data past limit fails
// with errMemberTooLarge.
func readMember(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errMemberTooLarge
	}
	return data, nil
}
