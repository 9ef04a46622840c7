package handlers

import (
	"encoding/json"
	"errors"
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

const (
	defaultImageListLimit = 100
	maxImageListLimit     = 500
)

type ImageHandler struct {
	ImageRepo repository.ImageRepositoryInterface
	AlbumRepo repository.AlbumRepositoryInterface
	Store     media.Store
}

func NewImageHandler(imageRepo repository.ImageRepositoryInterface, albumRepo repository.AlbumRepositoryInterface, store media.Store) *ImageHandler {
	return &ImageHandler{ImageRepo: imageRepo, AlbumRepo: albumRepo, Store: store}
}

func (h *ImageHandler) getImageByIdentifier(identifier string) (*models.Image, error) {
	if imageID, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		image, err := h.ImageRepo.GetByID(uint(imageID))
		if err == nil {
			return image, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return h.ImageRepo.GetBySlug(identifier)
}

func (h *ImageHandler) loadImage(w http.ResponseWriter, r *http.Request, includePrivate bool) *models.Image {
	identifier := chi.URLParam(r, "image")
	image, err := h.getImageByIdentifier(identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Image not found")
		} else {
			log.Printf("Error getting image by identifier '%s': %v", identifier, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve image")
		}
		return nil
	}
	if !includePrivate && image.Album != nil && !image.Album.IsPublic {
		WriteAPIError(w, http.StatusNotFound, "not_found", "Image not found")
		return nil
	}
	return image
}

// ListImages searches images of public albums.
// query parameters: album (id or slug), featured (bool), tag, q, limit, offset
func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.ImageFilter{
		Tag:        q.Get("tag"),
		Query:      q.Get("q"),
		PublicOnly: true,
		Limit:      defaultImageListLimit,
	}

	if albumParam := q.Get("album"); albumParam != "" {
		album, err := h.findAlbum(albumParam)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				WriteAPIError(w, http.StatusNotFound, "not_found", "Album not found")
			} else {
				log.Printf("Error resolving album filter '%s': %v", albumParam, err)
				WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to list images")
			}
			return
		}
		filter.AlbumID = &album.ID
	}
	if featuredParam := q.Get("featured"); featuredParam != "" {
		featured, err := strconv.ParseBool(featuredParam)
		if err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_parameter", "featured must be a boolean")
			return
		}
		filter.Featured = &featured
	}
	if limitParam := q.Get("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit <= 0 {
			WriteAPIError(w, http.StatusBadRequest, "invalid_parameter", "limit must be a positive integer")
			return
		}
		if limit > maxImageListLimit {
			limit = maxImageListLimit
		}
		filter.Limit = limit
	}
	if offsetParam := q.Get("offset"); offsetParam != "" {
		offset, err := strconv.Atoi(offsetParam)
		if err != nil || offset < 0 {
			WriteAPIError(w, http.StatusBadRequest, "invalid_parameter", "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	images, err := h.ImageRepo.Search(filter)
	if err != nil {
		log.Printf("Error searching images: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to list images")
		return
	}
	if images == nil {
		images = []models.Image{}
	}
	writeJSON(w, http.StatusOK, images)
}

func (h *ImageHandler) findAlbum(identifier string) (*models.Album, error) {
	if albumID, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		album, err := h.AlbumRepo.GetByID(uint(albumID))
		if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
			return album, err
		}
	}
	return h.AlbumRepo.GetBySlug(identifier)
}

func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	image := h.loadImage(w, r, false)
	if image == nil {
		return
	}
	writeJSON(w, http.StatusOK, image)
}

type imagePayload struct {
	AlbumID           *uint   `json:"album_id"`
	Title             *string `json:"title"`
	Slug              *string `json:"slug"`
	Description       *string `json:"description"`
	Tags              *string `json:"tags"`
	Featured          *bool   `json:"featured"`
	Order             *int    `json:"order"`
	RelatedImageIDs   *[]uint `json:"related_image_ids"`
	RelatedArticleIDs *[]uint `json:"related_article_ids"`
}

// UpdateImage edits an image. An empty submitted slug falls back to one derived
// from the title, then to one synthesized from the image ID.
func (h *ImageHandler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	image := h.loadImage(w, r, true)
	if image == nil {
		return
	}

	var req imagePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body: "+err.Error())
		return
	}

	if req.AlbumID != nil && *req.AlbumID != image.AlbumID {
		if _, err := h.AlbumRepo.GetByID(*req.AlbumID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				WriteAPIError(w, http.StatusBadRequest, "invalid_album", "Target album does not exist")
			} else {
				log.Printf("Error loading target album %d: %v", *req.AlbumID, err)
				WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to update image")
			}
			return
		}
		image.AlbumID = *req.AlbumID
	}
	if req.Title != nil {
		image.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		image.Description = *req.Description
	}
	if req.Tags != nil {
		image.Tags = utils.NormalizeTags(*req.Tags)
	}
	if req.Featured != nil {
		image.Featured = *req.Featured
	}
	if req.Order != nil {
		image.Order = *req.Order
	}
	if req.Slug != nil {
		imageID := image.ID
		checker := utils.SlugCheckerFunc(func(slug string) (bool, error) {
			return h.ImageRepo.SlugExistsExcept(slug, imageID)
		})
		slug, err := utils.ResolveSlug(checker, *req.Slug, image.Title, image.ID, time.Now())
		if err != nil {
			log.Printf("Error resolving slug for image %d: %v", image.ID, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to update image")
			return
		}
		image.Slug = slug
	}

	if err := h.ImageRepo.Update(image); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			WriteAPIError(w, http.StatusNotFound, "not_found", "Image not found during update")
		case errors.Is(err, repository.ErrSlugTaken):
			WriteAPIError(w, http.StatusConflict, "slug_taken", "Image slug already exists")
		default:
			log.Printf("Error updating image %d: %v", image.ID, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to update image")
		}
		return
	}

	if req.RelatedImageIDs != nil || req.RelatedArticleIDs != nil {
		relatedImages := idsOf(image.RelatedImages, func(i *models.Image) uint { return i.ID })
		if req.RelatedImageIDs != nil {
			relatedImages = *req.RelatedImageIDs
		}
		relatedArticles := idsOf(image.RelatedArticles, func(a *models.Article) uint { return a.ID })
		if req.RelatedArticleIDs != nil {
			relatedArticles = *req.RelatedArticleIDs
		}
		if err := h.ImageRepo.SetRelations(image.ID, relatedImages, relatedArticles); err != nil {
			log.Printf("Error updating relations of image %d: %v", image.ID, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to update image relations")
			return
		}
	}

	updated, err := h.ImageRepo.GetByID(image.ID)
	if err != nil {
		log.Printf("Error fetching updated image %d: %v", image.ID, err)
		writeJSON(w, http.StatusOK, image)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func idsOf[T any](items []*T, id func(*T) uint) []uint {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, id(item))
	}
	return ids
}

// DeleteImage removes an image record and its stored payload
func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	image := h.loadImage(w, r, true)
	if image == nil {
		return
	}

	if err := h.ImageRepo.Delete(image.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Image not found or already deleted")
		} else {
			log.Printf("Error deleting image %d: %v", image.ID, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to delete image")
		}
		return
	}

	if err := h.Store.Delete(image.ImagePath); err != nil {
		log.Printf("Error removing payload %s of deleted image %d: %v", image.ImagePath, image.ID, err)
	}
	writeJSON(w, http.StatusNoContent, nil)
}
