package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/camden-git/imagestore/database"
	"github.com/camden-git/imagestore/media"
	"github.com/camden-git/imagestore/media/mediatest"
	"github.com/camden-git/imagestore/models"
	"github.com/camden-git/imagestore/permissions"
	"github.com/camden-git/imagestore/repository"
	"github.com/camden-git/imagestore/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testSecret = []byte("test-secret")

type testEnv struct {
	db     *gorm.DB
	base   string
	albums *repository.AlbumRepository
	images *repository.ImageRepository
	users  repository.UserRepository
	router chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
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

	env := &testEnv{
		db:     db,
		base:   base,
		albums: repository.NewAlbumRepository(db),
		images: repository.NewImageRepository(db),
		users:  repository.NewGormUserRepository(db),
		router: chi.NewRouter(),
	}
	importer := services.NewImporter(env.albums, env.images, repository.NewUploadRequestRepository(db), store, media.NewProcessor(store))
	RegisterRoutes(env.router, RouteDeps{
		DB:               db,
		AlbumRepo:        env.albums,
		ImageRepo:        env.images,
		UserRepo:         env.users,
		Store:            store,
		Importer:         importer,
		JWTSecret:        testSecret,
		MaxUploadBytes:   10 << 20,
		MediaStoragePath: base,
		ImagesSubDir:     "images",
	})
	return env
}

// token creates a user holding perms and returns a bearer token for them
func (e *testEnv) token(t *testing.T, username string, perms ...string) string {
	t.Helper()
	user := &models.User{Username: username, GlobalPermissions: perms}
	require.NoError(t, user.SetPassword("password"))
	require.NoError(t, e.users.Create(user))
	token, _, err := NewAuthHandler(e.users, testSecret).issueToken(user)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return e.do(t, method, path, token, body, "application/json")
}

func uploadForm(t *testing.T, filename string, archive []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if archive != nil {
		fw, err := mw.CreateFormFile("zip_file", filename)
		require.NoError(t, err)
		_, err = fw.Write(archive)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestUpload_CreatesAlbumAndImages(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "uploader", permissions.UploadZip)

	archive := mediatest.Zip(t,
		mediatest.Member{Name: "first_light.png", Data: mediatest.PNG(t, 4, 4)},
		mediatest.Member{Name: "broken.jpg", Data: mediatest.TruncatedJPEG(t)},
	)
	body, ct := uploadForm(t, "dawn_patrol.zip", archive, map[string]string{"tags": "dawn, sea"})

	rec := env.do(t, http.MethodPost, "/api/uploads", token, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	result := decode[services.ImportResult](t, rec)
	require.NotNil(t, result.Album)
	assert.Equal(t, "Dawn patrol", result.Album.Name)
	require.Len(t, result.Images, 1)
	assert.Equal(t, "First light", result.Images[0].Title)
	assert.Equal(t, "dawn, sea", result.Images[0].Tags)
	require.NotNil(t, result.Images[0].UserID)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, services.SkipDecode, result.Skipped[0].Reason)

	served := env.do(t, http.MethodGet, MediaRoutePrefix+result.Images[0].ImagePath, "", nil, "")
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, mediatest.PNG(t, 4, 4), served.Body.Bytes())
}

func TestUpload_CorruptArchiveIsUnprocessable(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "uploader", permissions.UploadZip)

	archive := mediatest.Zip(t, mediatest.Member{Name: "a.png", Data: mediatest.PNG(t, 4, 4), BadCRC: true})
	body, ct := uploadForm(t, "bad.zip", archive, nil)

	rec := env.do(t, http.MethodPost, "/api/uploads", token, body, ct)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decode[APIErrorResponse](t, rec)
	require.Len(t, errResp.Errors, 1)
	assert.Equal(t, "invalid_archive", errResp.Errors[0].Code)
	assert.Equal(t, "422", errResp.Errors[0].Status)
	assert.Equal(t, map[string]string{"member": "a.png"}, errResp.Errors[0].Meta)

	var albums int64
	require.NoError(t, env.db.Model(&models.Album{}).Count(&albums).Error)
	assert.Zero(t, albums)
}

func TestUpload_UnknownAlbumIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "uploader", permissions.UploadZip)

	archive := mediatest.Zip(t, mediatest.Member{Name: "a.png", Data: mediatest.PNG(t, 4, 4)})
	body, ct := uploadForm(t, "a.zip", archive, map[string]string{"album_id": "99"})

	rec := env.do(t, http.MethodPost, "/api/uploads", token, body, ct)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpload_RequiresFileAndPermission(t *testing.T) {
	env := newTestEnv(t)

	body, ct := uploadForm(t, "", nil, nil)
	rec := env.do(t, http.MethodPost, "/api/uploads", "", body, ct)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	viewer := env.token(t, "viewer")
	body, ct = uploadForm(t, "", nil, nil)
	rec = env.do(t, http.MethodPost, "/api/uploads", viewer, body, ct)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	uploader := env.token(t, "uploader", permissions.UploadZip)
	body, ct = uploadForm(t, "", nil, nil)
	rec = env.do(t, http.MethodPost, "/api/uploads", uploader, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlbums_CreateUpdateAndVisibility(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "editor", permissions.AlbumCreate, permissions.AlbumEdit)

	rec := env.doJSON(t, http.MethodPost, "/api/albums", token, map[string]interface{}{"name": "Winter Walks"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Album](t, rec)
	assert.Equal(t, "winter-walks", created.Slug)

	rec = env.doJSON(t, http.MethodPost, "/api/albums", token, map[string]interface{}{"name": "Hidden", "is_public": false})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/albums", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	public := decode[[]models.Album](t, rec)
	require.Len(t, public, 1)
	assert.Equal(t, "winter-walks", public[0].Slug)

	rec = env.do(t, http.MethodGet, "/api/albums/hidden", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/albums", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Album](t, rec), 2)

	// an empty slug falls back to one derived from the name
	rec = env.doJSON(t, http.MethodPut, "/api/albums/winter-walks", token, map[string]interface{}{"name": "Snow Days", "slug": ""})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Album](t, rec)
	assert.Equal(t, "Snow Days", updated.Name)
	assert.Equal(t, "snow-days", updated.Slug)

	rec = env.do(t, http.MethodGet, "/api/albums/snow-days", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[AlbumResponse](t, rec).ImageCount)
}

func TestAlbums_ListImagesSortValidation(t *testing.T) {
	env := newTestEnv(t)
	album := &models.Album{Name: "Frames", Slug: "frames", IsPublic: true}
	require.NoError(t, env.albums.Create(album))
	for _, title := range []string{"Frame 10", "Frame 2"} {
		img := &models.Image{AlbumID: album.ID, Title: title, Slug: strings.ReplaceAll(strings.ToLower(title), " ", "-"), ImagePath: "images/x.png"}
		require.NoError(t, env.images.Create(img))
	}

	rec := env.do(t, http.MethodGet, "/api/albums/frames/images?sort=title_nat", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	images := decode[[]models.Image](t, rec)
	require.Len(t, images, 2)
	assert.Equal(t, "Frame 2", images[0].Title)

	rec = env.do(t, http.MethodGet, "/api/albums/frames/images?sort=random", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlbums_ExportAndDelete(t *testing.T) {
	env := newTestEnv(t)
	uploader := env.token(t, "uploader", permissions.UploadZip, permissions.AlbumExport, permissions.AlbumDelete)

	archive := mediatest.Zip(t,
		mediatest.Member{Name: "one.png", Data: mediatest.PNG(t, 2, 2)},
		mediatest.Member{Name: "two.png", Data: mediatest.PNG(t, 3, 3)},
	)
	body, ct := uploadForm(t, "export.zip", archive, nil)
	rec := env.do(t, http.MethodPost, "/api/uploads", uploader, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode[services.ImportResult](t, rec)

	rec = env.do(t, http.MethodGet, "/api/albums/export/zip", uploader, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"one.png", "two.png"}, names)

	rec = env.do(t, http.MethodDelete, "/api/albums/export", uploader, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, MediaRoutePrefix+result.Images[0].ImagePath, "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImages_SearchUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "editor", permissions.ImageEdit, permissions.ImageDelete)

	album := &models.Album{Name: "Coast", Slug: "coast", IsPublic: true}
	require.NoError(t, env.albums.Create(album))
	beach := &models.Image{AlbumID: album.ID, Title: "Beach", Slug: "beach", ImagePath: "images/coast/beach.png"}
	cliff := &models.Image{AlbumID: album.ID, Title: "Cliff", Slug: "cliff", ImagePath: "images/coast/cliff.png"}
	require.NoError(t, env.images.Create(beach))
	require.NoError(t, env.images.Create(cliff))

	rec := env.doJSON(t, http.MethodPut, "/api/images/beach", token, map[string]interface{}{
		"tags":              "sea, Sand, sea",
		"featured":          true,
		"title":             "",
		"slug":              "",
		"related_image_ids": []uint{cliff.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Image](t, rec)
	assert.Equal(t, "sea, Sand", updated.Tags)
	assert.True(t, updated.Featured)
	// neither slug nor title usable: synthesized from the id
	assert.Regexp(t, `^\d+_\d+$`, updated.Slug)
	require.Len(t, updated.RelatedImages, 1)
	assert.Equal(t, cliff.ID, updated.RelatedImages[0].ID)

	rec = env.do(t, http.MethodGet, "/api/images?featured=true&tag=sand", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode[[]models.Image](t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, beach.ID, found[0].ID)

	rec = env.do(t, http.MethodGet, "/api/images?featured=maybe", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/images/cliff", token, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/images/cliff", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetupAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/setup", "", map[string]string{"username": "admin", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.doJSON(t, http.MethodPost, "/api/setup", "", map[string]string{"username": "again", "password": "pw"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[LoginResponse](t, rec)
	assert.NotEmpty(t, login.Token)
	assert.ElementsMatch(t, permissions.GetAllPermissionKeys(), login.User.GlobalPermissions)

	rec = env.do(t, http.MethodGet, "/api/auth/me", login.Token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decode[models.User](t, rec).Username)

	rec = env.do(t, http.MethodGet, "/api/auth/me", "not-a-token", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAssetServer_RejectsPathsOutsideImages(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/media/temp/upload.zip", "", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/media/images/missing.png", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssetServer_HidesPrivateAlbumImages(t *testing.T) {
	env := newTestEnv(t)
	uploader := env.token(t, "uploader", permissions.UploadZip)
	editor := env.token(t, "editor", permissions.AlbumEdit)
	outsider := env.token(t, "outsider", permissions.UploadZip)

	album := &models.Album{Name: "Family", Slug: "family", IsPublic: true}
	require.NoError(t, env.albums.Create(album))
	album.IsPublic = false
	require.NoError(t, env.albums.Update(album))

	archive := mediatest.Zip(t, mediatest.Member{Name: "grandma.png", Data: mediatest.PNG(t, 4, 4)})
	body, ct := uploadForm(t, "family.zip", archive, map[string]string{"album_id": strconv.FormatUint(uint64(album.ID), 10)})
	rec := env.do(t, http.MethodPost, "/api/uploads", uploader, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode[services.ImportResult](t, rec)
	require.Len(t, result.Images, 1)
	url := MediaRoutePrefix + result.Images[0].ImagePath

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, url, "", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, url, outsider, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, url, "not-a-jwt", nil, "").Code)

	served := env.do(t, http.MethodGet, url, editor, nil, "")
	require.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, mediatest.PNG(t, 4, 4), served.Body.Bytes())
	assert.Contains(t, served.Header().Get("Cache-Control"), "private")
}

func TestAssetServer_IgnoresFilesWithoutImage(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(env.base, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.base, "images", "stray.png"), mediatest.PNG(t, 2, 2), 0o644))

	rec := env.do(t, http.MethodGet, MediaRoutePrefix+"images/stray.png", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUsers_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", permissions.UserManage)

	rec := env.doJSON(t, http.MethodPost, "/api/admin/users", admin, UserCreatePayload{
		Username:          "editor",
		Password:          "secret",
		GlobalPermissions: []string{permissions.AlbumEdit},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[UserResponseDTO](t, rec)
	assert.Equal(t, "editor", created.Username)
	assert.Equal(t, []string{permissions.AlbumEdit}, created.GlobalPermissions)

	rec = env.doJSON(t, http.MethodPost, "/api/admin/users", admin, UserCreatePayload{Username: "editor", Password: "other"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/admin/users", admin, UserCreatePayload{
		Username:          "bogus",
		Password:          "secret",
		GlobalPermissions: []string{"role.create"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, http.MethodGet, "/api/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]UserResponseDTO](t, rec)
	require.Len(t, listed, 2)
	assert.Equal(t, "editor", listed[0].Username)
	assert.Equal(t, "root", listed[1].Username)

	userPath := "/api/admin/users/" + strconv.FormatUint(uint64(created.ID), 10)
	newPassword := "changed"
	perms := []string{permissions.AlbumEdit, permissions.ImageEdit}
	rec = env.doJSON(t, http.MethodPut, userPath, admin, UserUpdatePayload{Password: &newPassword, GlobalPermissions: &perms})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.ElementsMatch(t, perms, decode[UserResponseDTO](t, rec).GlobalPermissions)

	stored, err := env.users.GetByUsername("editor")
	require.NoError(t, err)
	assert.True(t, stored.CheckPassword("changed"))

	taken := "root"
	rec = env.doJSON(t, http.MethodPut, userPath, admin, UserUpdatePayload{Username: &taken})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.doJSON(t, http.MethodDelete, userPath, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.doJSON(t, http.MethodGet, userPath, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUsers_RequiresPermissionAndBlocksSelfDelete(t *testing.T) {
	env := newTestEnv(t)
	plain := env.token(t, "viewer", permissions.AlbumEdit)
	admin := env.token(t, "root", permissions.UserManage)

	rec := env.doJSON(t, http.MethodGet, "/api/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.doJSON(t, http.MethodGet, "/api/admin/users", plain, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	root, err := env.users.GetByUsername("root")
	require.NoError(t, err)
	rec = env.doJSON(t, http.MethodDelete, "/api/admin/users/"+strconv.FormatUint(uint64(root.ID), 10), admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, http.MethodGet, "/api/admin/users/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	limited := RateLimitMiddleware(2, ok)

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	unlimited := RateLimitMiddleware(0, ok)
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		unlimited.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
