package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/camden-git/imagestore/database"
	"github.com/camden-git/imagestore/media"
	"github.com/camden-git/imagestore/media/mediatest"
	"github.com/camden-git/imagestore/models"
	"github.com/camden-git/imagestore/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingObserver struct {
	imported []string
	skipped  []SkippedMember
	finished int
	lastErr  error
}

func (o *recordingObserver) MemberImported(_ string, _ *models.Album, image *models.Image) {
	o.imported = append(o.imported, image.Slug)
}

func (o *recordingObserver) MemberSkipped(_ string, member SkippedMember) {
	o.skipped = append(o.skipped, member)
}

func (o *recordingObserver) ImportFinished(_ string, _ *ImportResult, err error) {
	o.finished++
	o.lastErr = err
}

type importFixture struct {
	db       *gorm.DB
	base     string
	albums   *repository.AlbumRepository
	images   *repository.ImageRepository
	observer *recordingObserver
	importer *Importer
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	base := t.TempDir()
	store, err := media.NewLocalStorage(base, map[media.AssetType]string{
		media.AssetTypeImage:  "images",
		media.AssetTypeUpload: "temp",
	})
	require.NoError(t, err)

	f := &importFixture{
		db:       db,
		base:     base,
		albums:   repository.NewAlbumRepository(db),
		images:   repository.NewImageRepository(db),
		observer: &recordingObserver{},
	}
	f.importer = NewImporter(f.albums, f.images, repository.NewUploadRequestRepository(db), store, media.NewProcessor(store), f.observer)
	return f
}

func (f *importFixture) submit(t *testing.T, req SubmitRequest, members ...mediatest.Member) (*ImportResult, error) {
	t.Helper()
	req.Archive = bytes.NewReader(mediatest.Zip(t, members...))
	return f.importer.Submit(context.Background(), req)
}

func (f *importFixture) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f *importFixture) assertNoLeftovers(t *testing.T) {
	t.Helper()
	assert.Zero(t, f.count(t, &models.UploadRequest{}), "upload request must not survive Submit")
	entries, err := os.ReadDir(filepath.Join(f.base, "temp"))
	if err == nil {
		assert.Empty(t, entries, "temporary archive must be removed")
	}
}

func TestSubmit_CreatesAlbumNamedAfterArchive(t *testing.T) {
	f := newImportFixture(t)

	result, err := f.submit(t, SubmitRequest{ArchiveName: "summer_trip.zip"},
		mediatest.Member{Name: "sunny-beach.png", Data: mediatest.PNG(t, 8, 6)},
	)
	require.NoError(t, err)

	require.NotNil(t, result.Album)
	assert.Equal(t, "Summer trip", result.Album.Name)
	assert.Equal(t, "summer-trip", result.Album.Slug)
	assert.True(t, result.Album.IsPublic)

	require.Len(t, result.Images, 1)
	img := result.Images[0]
	assert.Equal(t, "Sunny beach", img.Title)
	assert.Equal(t, "sunny-beach", img.Slug)
	assert.Equal(t, "images/summer-trip/sunny-beach.png", img.ImagePath)
	require.NotNil(t, img.Width)
	assert.Equal(t, 8, *img.Width)
	assert.Equal(t, 6, *img.Height)
	assert.Equal(t, "png", *img.Format)

	stored, err := os.ReadFile(filepath.Join(f.base, filepath.FromSlash(img.ImagePath)))
	require.NoError(t, err)
	assert.Equal(t, mediatest.PNG(t, 8, 6), stored)

	f.assertNoLeftovers(t)
}

func TestSubmit_SkipsInvalidMembers(t *testing.T) {
	f := newImportFixture(t)

	result, err := f.submit(t, SubmitRequest{ArchiveName: "mixed.zip"},
		mediatest.Member{Name: "good.png", Data: mediatest.PNG(t, 4, 4)},
		mediatest.Member{Name: "broken.jpg", Data: mediatest.TruncatedJPEG(t)},
		mediatest.Member{Name: "empty.jpg", Data: nil},
	)
	require.NoError(t, err)

	require.Len(t, result.Images, 1)
	assert.Equal(t, "good", result.Images[0].Slug)

	assert.ElementsMatch(t, []SkippedMember{
		{Name: "broken.jpg", Reason: SkipDecode},
		{Name: "empty.jpg", Reason: SkipEmpty},
	}, withoutDetail(result.Skipped))

	assert.Equal(t, int64(1), f.count(t, &models.Album{}))
	assert.Equal(t, int64(1), f.count(t, &models.Image{}))
	assert.Equal(t, []string{"good"}, f.observer.imported)
	assert.Len(t, f.observer.skipped, 2)
	f.assertNoLeftovers(t)
}

func TestSubmit_SkipsOversizedMembers(t *testing.T) {
	f := newImportFixture(t)
	f.importer.SetMaxMemberBytes(4 << 10)

	result, err := f.submit(t, SubmitRequest{ArchiveName: "bomb.zip"},
		mediatest.Member{Name: "bomb.png", Data: make([]byte, 64<<10)},
		mediatest.Member{Name: "fine.png", Data: mediatest.PNG(t, 4, 4)},
		mediatest.Member{Name: "huge.png", Data: mediatest.PNGHeader(20000, 20000)},
	)
	require.NoError(t, err)

	require.Len(t, result.Images, 1)
	assert.Equal(t, "fine", result.Images[0].Slug)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, SkippedMember{Name: "bomb.png", Reason: SkipTooLarge, Detail: "member is larger than 4096 bytes"}, result.Skipped[0])
	assert.Equal(t, "huge.png", result.Skipped[1].Name)
	assert.Equal(t, SkipVerify, result.Skipped[1].Reason)
	assert.Len(t, f.observer.skipped, 2)
	f.assertNoLeftovers(t)
}

func TestReadMember_StopsAtLimit(t *testing.T) {
	archive := mediatest.Zip(t, mediatest.Member{Name: "data.bin", Data: bytes.Repeat([]byte("x"), 100)})
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)

	_, err = readMember(zr.File[0], 10)
	assert.ErrorIs(t, err, errMemberTooLarge)

	data, err := readMember(zr.File[0], 100)
	require.NoError(t, err)
	assert.Len(t, data, 100)
}

func TestImporter_SetMaxMemberBytesIgnoresNonPositive(t *testing.T) {
	f := newImportFixture(t)
	f.importer.SetMaxMemberBytes(0)
	assert.Equal(t, DefaultMaxMemberBytes, f.importer.maxMemberBytes)
}

func TestSubmit_CorruptArchiveWritesNothing(t *testing.T) {
	f := newImportFixture(t)

	result, err := f.submit(t, SubmitRequest{ArchiveName: "bad.zip"},
		mediatest.Member{Name: "a.png", Data: mediatest.PNG(t, 4, 4)},
		mediatest.Member{Name: "b.png", Data: mediatest.PNG(t, 5, 5), BadCRC: true},
	)
	require.Error(t, err)
	assert.Nil(t, result)

	var archiveErr *ArchiveError
	require.True(t, errors.As(err, &archiveErr))
	assert.Equal(t, "b.png", archiveErr.Member)
	assert.ErrorIs(t, err, ErrArchiveCorrupt)

	assert.Zero(t, f.count(t, &models.Album{}))
	assert.Zero(t, f.count(t, &models.Image{}))
	assert.Equal(t, 1, f.observer.finished)
	assert.Equal(t, err, f.observer.lastErr)
	f.assertNoLeftovers(t)
}

func TestSubmit_NotAZipIsArchiveError(t *testing.T) {
	f := newImportFixture(t)

	_, err := f.importer.Submit(context.Background(), SubmitRequest{
		ArchiveName: "notes.zip",
		Archive:     bytes.NewReader([]byte("definitely not a zip")),
	})
	var archiveErr *ArchiveError
	require.True(t, errors.As(err, &archiveErr))
	assert.Zero(t, f.count(t, &models.Album{}))
	f.assertNoLeftovers(t)
}

func TestSubmit_MetadataAndDirectoriesAreNeverImported(t *testing.T) {
	f := newImportFixture(t)

	result, err := f.submit(t, SubmitRequest{ArchiveName: "mac.zip"},
		mediatest.Member{Name: "__MACOSX/foo.jpg", Data: mediatest.JPEG(t, 4, 4)},
		mediatest.Member{Name: "photos/"},
		mediatest.Member{Name: "photos/foo.jpg", Data: mediatest.JPEG(t, 4, 4)},
	)
	require.NoError(t, err)

	require.Len(t, result.Images, 1)
	assert.Equal(t, "images/mac/foo.jpg", result.Images[0].ImagePath)
	assert.Equal(t, []SkippedMember{
		{Name: "__MACOSX/foo.jpg", Reason: SkipMetadata},
		{Name: "photos/", Reason: SkipDirectory},
	}, withoutDetail(result.Skipped))

	_, err = os.Stat(filepath.Join(f.base, "images", "mac", "__MACOSX"))
	assert.True(t, os.IsNotExist(err))
}

func TestSubmit_DuplicateTitlesGetDistinctSlugs(t *testing.T) {
	f := newImportFixture(t)

	result, err := f.submit(t, SubmitRequest{ArchiveName: "dupes.zip"},
		mediatest.Member{Name: "a/Beach.png", Data: mediatest.PNG(t, 4, 4)},
		mediatest.Member{Name: "b/Beach.png", Data: mediatest.PNG(t, 6, 6)},
	)
	require.NoError(t, err)

	require.Len(t, result.Images, 2)
	assert.Equal(t, "beach", result.Images[0].Slug)
	assert.NotEqual(t, result.Images[0].Slug, result.Images[1].Slug)
	assert.NotEqual(t, result.Images[0].ImagePath, result.Images[1].ImagePath)
	assert.Equal(t, result.Images[0].Title, result.Images[1].Title)
}

func TestSubmit_MembersAreProcessedInNameOrder(t *testing.T) {
	f := newImportFixture(t)

	result, err := f.submit(t, SubmitRequest{ArchiveName: "order.zip"},
		mediatest.Member{Name: "c.png", Data: mediatest.PNG(t, 2, 2)},
		mediatest.Member{Name: "a.png", Data: mediatest.PNG(t, 2, 2)},
		mediatest.Member{Name: "b.png", Data: mediatest.PNG(t, 2, 2)},
	)
	require.NoError(t, err)

	var slugs []string
	for _, img := range result.Images {
		slugs = append(slugs, img.Slug)
	}
	assert.Equal(t, []string{"a", "b", "c"}, slugs)
}

func TestSubmit_IntoExistingAlbumWithTagsAndOwner(t *testing.T) {
	f := newImportFixture(t)
	album := &models.Album{Name: "Existing", Slug: "existing", IsPublic: true}
	require.NoError(t, f.albums.Create(album))
	owner := uint(7)

	result, err := f.submit(t, SubmitRequest{
		ArchiveName:  "ignored-name.zip",
		AlbumID:      &album.ID,
		NewAlbumName: "Also ignored",
		Tags:         "sea,  sand, Sea,",
		UserID:       &owner,
	}, mediatest.Member{Name: "shore.png", Data: mediatest.PNG(t, 3, 3)})
	require.NoError(t, err)

	assert.Equal(t, album.ID, result.Album.ID)
	assert.Equal(t, int64(1), f.count(t, &models.Album{}))
	require.Len(t, result.Images, 1)
	assert.Equal(t, "sea, sand", result.Images[0].Tags)
	require.NotNil(t, result.Images[0].UserID)
	assert.Equal(t, owner, *result.Images[0].UserID)
	assert.Equal(t, "images/existing/shore.png", result.Images[0].ImagePath)
}

func TestSubmit_NewAlbumNameWins(t *testing.T) {
	f := newImportFixture(t)

	result, err := f.submit(t, SubmitRequest{ArchiveName: "x.zip", NewAlbumName: "  Road Trip  "},
		mediatest.Member{Name: "a.png", Data: mediatest.PNG(t, 2, 2)},
	)
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", result.Album.Name)
	assert.Equal(t, "road-trip", result.Album.Slug)
}

func TestSubmit_AlbumSlugCollisionIsResolved(t *testing.T) {
	f := newImportFixture(t)
	require.NoError(t, f.albums.Create(&models.Album{Name: "Holiday", Slug: "holiday"}))

	result, err := f.submit(t, SubmitRequest{ArchiveName: "holiday.zip"},
		mediatest.Member{Name: "a.png", Data: mediatest.PNG(t, 2, 2)},
	)
	require.NoError(t, err)
	assert.NotEqual(t, "holiday", result.Album.Slug)
	assert.Contains(t, result.Album.Slug, "holiday-")
}

func TestSubmit_UnknownAlbum(t *testing.T) {
	f := newImportFixture(t)
	missing := uint(42)

	_, err := f.submit(t, SubmitRequest{ArchiveName: "x.zip", AlbumID: &missing},
		mediatest.Member{Name: "a.png", Data: mediatest.PNG(t, 2, 2)},
	)
	assert.ErrorIs(t, err, ErrAlbumNotFound)
	assert.Zero(t, f.count(t, &models.Album{}))
	f.assertNoLeftovers(t)
}

func TestImport_MissingArchive(t *testing.T) {
	f := newImportFixture(t)

	_, err := f.importer.Import(context.Background(), &models.UploadRequest{
		ArchivePath: "temp/gone.zip",
		ArchiveName: "gone.zip",
	})
	var archiveErr *ArchiveError
	require.True(t, errors.As(err, &archiveErr))
	assert.ErrorIs(t, err, ErrArchiveMissing)
	assert.Zero(t, f.count(t, &models.Album{}))
}

func TestSubmit_CancelledContextStopsBetweenMembers(t *testing.T) {
	f := newImportFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.importer.Submit(ctx, SubmitRequest{
		ArchiveName: "late.zip",
		Archive:     bytes.NewReader(mediatest.Zip(t, mediatest.Member{Name: "a.png", Data: mediatest.PNG(t, 2, 2)})),
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Empty(t, result.Images)
	assert.Zero(t, f.count(t, &models.Image{}))
	f.assertNoLeftovers(t)
}

// racingImages loses the first insert to simulate a concurrent writer taking the slug.
type racingImages struct {
	*repository.ImageRepository
	failures int
}

func (r *racingImages) Create(image *models.Image) error {
	if r.failures > 0 {
		r.failures--
		return repository.ErrSlugTaken
	}
	return r.ImageRepository.Create(image)
}

func TestSubmit_RetriesLostSlugRace(t *testing.T) {
	f := newImportFixture(t)
	racing := &racingImages{ImageRepository: f.images, failures: 1}
	f.importer.images = racing

	result, err := f.submit(t, SubmitRequest{ArchiveName: "race.zip"},
		mediatest.Member{Name: "a.png", Data: mediatest.PNG(t, 2, 2)},
	)
	require.NoError(t, err)
	require.Len(t, result.Images, 1)
	assert.Zero(t, racing.failures)
}

func TestSubmit_GivesUpAfterRepeatedSlugRaces(t *testing.T) {
	f := newImportFixture(t)
	f.importer.images = &racingImages{ImageRepository: f.images, failures: maxCreateAttempts}

	_, err := f.submit(t, SubmitRequest{ArchiveName: "race.zip"},
		mediatest.Member{Name: "a.png", Data: mediatest.PNG(t, 2, 2)},
	)
	assert.ErrorIs(t, err, repository.ErrSlugTaken)

	entries, readErr := os.ReadDir(filepath.Join(f.base, "images", "race"))
	require.NoError(t, readErr)
	assert.Empty(t, entries, "payload of a failed insert must be removed")
	f.assertNoLeftovers(t)
}

func TestArchiveError_Message(t *testing.T) {
	err := &ArchiveError{Path: "temp/a.zip", Member: "x.jpg", Err: ErrArchiveCorrupt}
	assert.Equal(t, "archive temp/a.zip: member x.jpg: archive member failed integrity check", err.Error())
	assert.True(t, errors.Is(err, ErrArchiveCorrupt))
}

func withoutDetail(skipped []SkippedMember) []SkippedMember {
	out := make([]SkippedMember, len(skipped))
	for i, s := range skipped {
		out[i] = SkippedMember{Name: s.Name, Reason: s.Reason}
	}
	return out
}
