package repository

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/camden-git/imagestore/database"
	"github.com/camden-git/imagestore/models"
	"github.com/facette/natsort"
	"gorm.io/gorm"
)

const (
	relatedImagesTable   = "image_related_images"
	relatedArticlesTable = "image_related_articles"
)

// ImageRepository handles database operations for Image entities
type ImageRepository struct {
	DB *gorm.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

// Create inserts a new image record
func (r *ImageRepository) Create(image *models.Image) error {
	if image.CreatedAt == 0 {
		image.CreatedAt = time.Now().Unix()
	}
	if err := r.DB.Omit("RelatedImages", "RelatedArticles", "Album").Create(image).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("image slug %s: %w", image.Slug, ErrSlugTaken)
		}
		return fmt.Errorf("failed to create image %s: %w", image.Title, err)
	}
	return nil
}

// GetByID retrieves an image and its relations by ID
func (r *ImageRepository) GetByID(id uint) (*models.Image, error) {
	var image models.Image
	err := r.DB.Preload("Album").Preload("RelatedImages").Preload("RelatedArticles").First(&image, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by ID %d: %w", id, err)
	}
	return &image, nil
}

// GetBySlug retrieves an image and its relations by slug
func (r *ImageRepository) GetBySlug(slug string) (*models.Image, error) {
	var image models.Image
	err := r.DB.Preload("Album").Preload("RelatedImages").Preload("RelatedArticles").Where("slug = ?", slug).First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by slug %s: %w", slug, err)
	}
	return &image, nil
}

// GetByImagePath finds the image stored at imagePath, with its album loaded.
func (r *ImageRepository) GetByImagePath(imagePath string) (*models.Image, error) {
	var image models.Image
	err := r.DB.Preload("Album").Where("image_path = ?", imagePath).First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by path %s: %w", imagePath, err)
	}
	return &image, nil
}

// SlugExists reports whether any image uses slug
func (r *ImageRepository) SlugExists(slug string) (bool, error) {
	var count int64
	if err := r.DB.Model(&models.Image{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up image slug %s: %w", slug, err)
	}
	return count > 0, nil
}

// SlugExistsExcept reports whether an image other than id uses slug
func (r *ImageRepository) SlugExistsExcept(slug string, id uint) (bool, error) {
	var count int64
	if err := r.DB.Model(&models.Image{}).Where("slug = ? AND id <> ?", slug, id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up image slug %s: %w", slug, err)
	}
	return count > 0, nil
}

// ListByAlbum returns the images of an album in the requested order. Unknown
// sort orders fall back to the manual order.
func (r *ImageRepository) ListByAlbum(albumID uint, sortOrder string) ([]models.Image, error) {
	if !database.IsValidSortOrder(sortOrder) {
		sortOrder = database.DefaultSortOrder
	}

	var images []models.Image
	err := r.DB.Where("images.album_id = ?", albumID).Order(database.OrderClause(sortOrder)).Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images for album ID %d: %w", albumID, err)
	}

	if sortOrder == database.SortTitleNat {
		sort.SliceStable(images, func(i, j int) bool {
			return natsort.Compare(images[i].Title, images[j].Title)
		})
	}
	return images, nil
}

// Search lists images matching filter, newest first
func (r *ImageRepository) Search(filter database.ImageFilter) ([]models.Image, error) {
	where, args, err := filter.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build image filter: %w", err)
	}

	query := r.DB.Model(&models.Image{}).
		Select("images.*").
		Joins("JOIN albums ON albums.id = images.album_id")
	if where != "" {
		query = query.Where(where, args...)
	}
	query = query.Order(database.OrderClause(database.SortCreatedDesc))
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var images []models.Image
	if err := query.Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to search images: %w", err)
	}
	return images, nil
}

// CountByAlbum returns the number of images in an album
func (r *ImageRepository) CountByAlbum(albumID uint) (int64, error) {
	var count int64
	if err := r.DB.Model(&models.Image{}).Where("album_id = ?", albumID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count images for album ID %d: %w", albumID, err)
	}
	return count, nil
}

// Update writes the editable image fields
func (r *ImageRepository) Update(image *models.Image) error {
	result := r.DB.Model(&models.Image{}).Where("id = ?", image.ID).Updates(map[string]interface{}{
		"album_id":    image.AlbumID,
		"title":       image.Title,
		"slug":        image.Slug,
		"description": image.Description,
		"tags":        image.Tags,
		"featured":    image.Featured,
		"sort_order":  image.Order,
	})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return fmt.Errorf("image slug %s: %w", image.Slug, ErrSlugTaken)
		}
		return fmt.Errorf("failed to update image ID %d: %w", image.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetRelations replaces the related images and articles of an image. An image
// is never related to itself and unknown IDs are ignored.
func (r *ImageRepository) SetRelations(imageID uint, relatedImageIDs, relatedArticleIDs []uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var image models.Image
		if err := tx.First(&image, imageID).Error; err != nil {
			return err
		}

		related := make([]*models.Image, 0, len(relatedImageIDs))
		if len(relatedImageIDs) > 0 {
			if err := tx.Where("id IN ? AND id <> ?", relatedImageIDs, imageID).Find(&related).Error; err != nil {
				return fmt.Errorf("failed to load related images: %w", err)
			}
		}
		if err := replaceAssociation(tx.Model(&image).Association("RelatedImages"), related); err != nil {
			return fmt.Errorf("failed to set related images for image ID %d: %w", imageID, err)
		}

		articles := make([]*models.Article, 0, len(relatedArticleIDs))
		if len(relatedArticleIDs) > 0 {
			if err := tx.Where("id IN ?", relatedArticleIDs).Find(&articles).Error; err != nil {
				return fmt.Errorf("failed to load related articles: %w", err)
			}
		}
		if err := replaceAssociation(tx.Model(&image).Association("RelatedArticles"), articles); err != nil {
			return fmt.Errorf("failed to set related articles for image ID %d: %w", imageID, err)
		}
		return nil
	})
}

func replaceAssociation[T any](assoc *gorm.Association, values []*T) error {
	if len(values) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(values)
}

// Delete removes an image row together with every relation that points at it
func (r *ImageRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var image models.Image
		if err := tx.First(&image, id).Error; err != nil {
			return err
		}
		return deleteImageTx(tx, &image)
	})
}

func deleteImageTx(tx *gorm.DB, image *models.Image) error {
	if err := tx.Exec("DELETE FROM "+relatedImagesTable+" WHERE image_id = ? OR related_image_id = ?", image.ID, image.ID).Error; err != nil {
		return fmt.Errorf("failed to clear related images of image ID %d: %w", image.ID, err)
	}
	if err := tx.Exec("DELETE FROM "+relatedArticlesTable+" WHERE image_id = ?", image.ID).Error; err != nil {
		return fmt.Errorf("failed to clear related articles of image ID %d: %w", image.ID, err)
	}
	if err := tx.Delete(&models.Image{}, image.ID).Error; err != nil {
		return fmt.Errorf("failed to delete image ID %d: %w", image.ID, err)
	}
	return nil
}
