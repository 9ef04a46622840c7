package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/camden-git/imagestore/database"
	"github.com/camden-git/imagestore/media"
	"github.com/camden-git/imagestore/models"
	"github.com/camden-git/imagestore/repository"
	"github.com/camden-git/imagestore/utils"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}

type AlbumHandler struct {
	AlbumRepo repository.AlbumRepositoryInterface
	ImageRepo repository.ImageRepositoryInterface
	Store     media.Store
}

func NewAlbumHandler(albumRepo repository.AlbumRepositoryInterface, imageRepo repository.ImageRepositoryInterface, store media.Store) *AlbumHandler {
	return &AlbumHandler{AlbumRepo: albumRepo, ImageRepo: imageRepo, Store: store}
}

// AlbumResponse is an album with its image count
type AlbumResponse struct {
	models.Album
	ImageCount int64 `json:"image_count"`
}

func (ah *AlbumHandler) getAlbumByIdentifier(identifier string) (*models.Album, error) {
	// try parsing as ID
	if albumID, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		album, err := ah.AlbumRepo.GetByID(uint(albumID))
		if err == nil {
			return album, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	// not a valid ID or not found by ID, try fetching by slug
	return ah.AlbumRepo.GetBySlug(identifier)
}

// loadAlbum resolves the {album} URL parameter, writing the error response itself
// when it returns nil. Private albums are hidden unless includePrivate is set.
func (ah *AlbumHandler) loadAlbum(w http.ResponseWriter, r *http.Request, includePrivate bool) *models.Album {
	identifier := chi.URLParam(r, "album")
	album, err := ah.getAlbumByIdentifier(identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Album not found")
		} else {
			log.Printf("Error getting album by identifier '%s': %v", identifier, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve album")
		}
		return nil
	}
	if !album.IsPublic && !includePrivate {
		WriteAPIError(w, http.StatusNotFound, "not_found", "Album not found")
		return nil
	}
	return album
}

// ListAlbums lists public albums
func (ah *AlbumHandler) ListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := ah.AlbumRepo.ListAll()
	if err != nil {
		log.Printf("Error listing albums: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve albums")
		return
	}
	if albums == nil {
		albums = []models.Album{}
	}
	writeJSON(w, http.StatusOK, albums)
}

// ListAllAlbums lists every album including private ones
func (ah *AlbumHandler) ListAllAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := ah.AlbumRepo.ListAllAdmin()
	if err != nil {
		log.Printf("Error listing albums: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve albums")
		return
	}
	if albums == nil {
		albums = []models.Album{}
	}
	writeJSON(w, http.StatusOK, albums)
}

func (ah *AlbumHandler) GetAlbum(w http.ResponseWriter, r *http.Request) {
	album := ah.loadAlbum(w, r, false)
	if album == nil {
		return
	}

	count, err := ah.ImageRepo.CountByAlbum(album.ID)
	if err != nil {
		log.Printf("Error counting images of album %d: %v", album.ID, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve album")
		return
	}
	writeJSON(w, http.StatusOK, AlbumResponse{Album: *album, ImageCount: count})
}

// ListAlbumImages lists the images of a public album, ordered by the sort query parameter
func (ah *AlbumHandler) ListAlbumImages(w http.ResponseWriter, r *http.Request) {
	album := ah.loadAlbum(w, r, false)
	if album == nil {
		return
	}

	sortOrder := r.URL.Query().Get("sort")
	if sortOrder == "" {
		sortOrder = database.DefaultSortOrder
	}
	if !database.IsValidSortOrder(sortOrder) {
		WriteAPIError(w, http.StatusBadRequest, "invalid_sort", fmt.Sprintf("Unknown sort order '%s'", sortOrder))
		return
	}

	images, err := ah.ImageRepo.ListByAlbum(album.ID, sortOrder)
	if err != nil {
		log.Printf("Error listing images of album %d: %v", album.ID, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to list album images")
		return
	}
	if images == nil {
		images = []models.Image{}
	}
	writeJSON(w, http.StatusOK, images)
}

type albumPayload struct {
	Name     *string `json:"name"`
	Slug     *string `json:"slug"`
	IsPublic *bool   `json:"is_public"`
	Order    *int    `json:"order"`
}

func (ah *AlbumHandler) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	var req albumPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body: "+err.Error())
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Missing required field: name")
		return
	}

	album := &models.Album{
		Name:     strings.TrimSpace(*req.Name),
		IsPublic: true,
		UserID:   currentUserID(r),
	}
	if req.IsPublic != nil {
		album.IsPublic = *req.IsPublic
	}
	if req.Order != nil {
		album.Order = *req.Order
	}

	submittedSlug := ""
	if req.Slug != nil {
		submittedSlug = *req.Slug
	}
	slug, err := utils.ResolveSlug(ah.AlbumRepo, submittedSlug, album.Name, 0, time.Now())
	if err != nil {
		log.Printf("Error resolving slug for album '%s': %v", album.Name, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to create album")
		return
	}
	album.Slug = slug

	if err := ah.AlbumRepo.Create(album); err != nil {
		if errors.Is(err, repository.ErrSlugTaken) {
			WriteAPIError(w, http.StatusConflict, "slug_taken", "Album slug already exists")
		} else {
			log.Printf("Error creating album '%s' (slug '%s'): %v", album.Name, album.Slug, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to create album")
		}
		return
	}

	// columns with a database default skip false on insert
	if !album.IsPublic {
		if err := ah.AlbumRepo.Update(album); err != nil {
			log.Printf("Error hiding new album %d: %v", album.ID, err)
		}
	}
	writeJSON(w, http.StatusCreated, album)
}

func (ah *AlbumHandler) UpdateAlbum(w http.ResponseWriter, r *http.Request) {
	album := ah.loadAlbum(w, r, true)
	if album == nil {
		return
	}

	var req albumPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body: "+err.Error())
		return
	}
	if req.Name == nil && req.Slug == nil && req.IsPublic == nil && req.Order == nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "No fields provided for update")
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Album name cannot be empty")
			return
		}
		album.Name = name
	}
	if req.IsPublic != nil {
		album.IsPublic = *req.IsPublic
	}
	if req.Order != nil {
		album.Order = *req.Order
	}
	if req.Slug != nil {
		albumID := album.ID
		checker := utils.SlugCheckerFunc(func(slug string) (bool, error) {
			return ah.AlbumRepo.SlugExistsExcept(slug, albumID)
		})
		slug, err := utils.ResolveSlug(checker, *req.Slug, album.Name, album.ID, time.Now())
		if err != nil {
			log.Printf("Error resolving slug for album %d: %v", album.ID, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to update album")
			return
		}
		album.Slug = slug
	}

	if err := ah.AlbumRepo.Update(album); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			WriteAPIError(w, http.StatusNotFound, "not_found", "Album not found during update")
		case errors.Is(err, repository.ErrSlugTaken):
			WriteAPIError(w, http.StatusConflict, "slug_taken", "Album slug already exists")
		default:
			log.Printf("Error updating album %d/%s: %v", album.ID, album.Slug, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to update album")
		}
		return
	}
	writeJSON(w, http.StatusOK, album)
}

// DeleteAlbum removes an album, its images and their stored payloads
func (ah *AlbumHandler) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	album := ah.loadAlbum(w, r, true)
	if album == nil {
		return
	}

	paths, err := ah.AlbumRepo.DeleteWithImages(album.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Album not found or already deleted")
		} else {
			log.Printf("Error deleting album %d/%s: %v", album.ID, album.Slug, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to delete album")
		}
		return
	}

	for _, p := range paths {
		if err := ah.Store.Delete(p); err != nil {
			log.Printf("Error removing payload %s of deleted album %d: %v", p, album.ID, err)
		}
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// ExportAlbum streams the album's original images as a zip archive
func (ah *AlbumHandler) ExportAlbum(w http.ResponseWriter, r *http.Request) {
	album := ah.loadAlbum(w, r, true)
	if album == nil {
		return
	}

	images, err := ah.ImageRepo.ListByAlbum(album.ID, database.SortOrderAsc)
	if err != nil {
		log.Printf("Error listing images of album %d for export: %v", album.ID, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to export album")
		return
	}

	sources := make([]utils.ZipSource, 0, len(images))
	for _, img := range images {
		fullPath, err := ah.Store.GetFullPath(img.ImagePath)
		if err != nil {
			log.Printf("Skipping image %d with invalid path '%s' in export: %v", img.ID, img.ImagePath, err)
			continue
		}
		sources = append(sources, utils.ZipSource{Name: utils.BaseName(img.ImagePath), FullPath: fullPath})
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.zip\"", album.Slug))
	written, err := utils.WriteZip(w, sources)
	if err != nil {
		// headers are already sent, nothing more to tell the client
		log.Printf("Error streaming export of album %d after %d files: %v", album.ID, written, err)
		return
	}
	log.Printf("Exported %d images of album %s", written, album.Slug)
}
