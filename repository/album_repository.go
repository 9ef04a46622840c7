package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/camden-git/imagestore/models"
	"gorm.io/gorm"
)

// AlbumRepository handles database operations for Album entities
type AlbumRepository struct {
	DB *gorm.DB
}

// NewAlbumRepository creates a new instance of AlbumRepository
func NewAlbumRepository(db *gorm.DB) *AlbumRepository {
	return &AlbumRepository{DB: db}
}

// Create creates a new album record in the database
func (r *AlbumRepository) Create(album *models.Album) error {
	now := time.Now().Unix()
	if album.CreatedAt == 0 {
		album.CreatedAt = now
	}
	if album.UpdatedAt == 0 {
		album.UpdatedAt = now
	}

	err := r.DB.Create(album).Error
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("album slug %s: %w", album.Slug, ErrSlugTaken)
		}
		return fmt.Errorf("failed to create album %s: %w", album.Name, err)
	}
	return nil
}

// ListAll retrieves all public albums in display order
func (r *AlbumRepository) ListAll() ([]models.Album, error) {
	var albums []models.Album

	err := r.DB.Where("is_public = ?", true).Order("sort_order ASC, name ASC").Find(&albums).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	return albums, nil
}

// ListAllAdmin retrieves every album, including private ones
func (r *AlbumRepository) ListAllAdmin() ([]models.Album, error) {
	var albums []models.Album

	err := r.DB.Order("sort_order ASC, name ASC").Find(&albums).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	return albums, nil
}

// GetByID retrieves an album by its ID
func (r *AlbumRepository) GetByID(id uint) (*models.Album, error) {
	var album models.Album
	err := r.DB.First(&album, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get album by ID %d: %w", id, err)
	}
	return &album, nil
}

// GetBySlug retrieves an album by its slug
func (r *AlbumRepository) GetBySlug(slug string) (*models.Album, error) {
	var album models.Album
	err := r.DB.Where("slug = ?", slug).First(&album).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get album by slug %s: %w", slug, err)
	}
	return &album, nil
}

// SlugExists reports whether any album uses slug
func (r *AlbumRepository) SlugExists(slug string) (bool, error) {
	var count int64
	if err := r.DB.Model(&models.Album{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up album slug %s: %w", slug, err)
	}
	return count > 0, nil
}

// SlugExistsExcept reports whether an album other than id uses slug
func (r *AlbumRepository) SlugExistsExcept(slug string, id uint) (bool, error) {
	var count int64
	if err := r.DB.Model(&models.Album{}).Where("slug = ? AND id <> ?", slug, id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up album slug %s: %w", slug, err)
	}
	return count > 0, nil
}

// Update writes the editable album fields
func (r *AlbumRepository) Update(album *models.Album) error {
	album.UpdatedAt = time.Now().Unix()
	result := r.DB.Model(&models.Album{}).Where("id = ?", album.ID).Updates(map[string]interface{}{
		"name":       album.Name,
		"slug":       album.Slug,
		"is_public":  album.IsPublic,
		"sort_order": album.Order,
		"user_id":    album.UserID,
		"updated_at": album.UpdatedAt,
	})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return fmt.Errorf("album slug %s: %w", album.Slug, ErrSlugTaken)
		}
		return fmt.Errorf("failed to update album ID %d: %w", album.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteWithImages removes an album and all of its images in one transaction.
// returns the storage paths of the deleted images so callers can remove payloads
func (r *AlbumRepository) DeleteWithImages(id uint) ([]string, error) {
	var paths []string
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var album models.Album
		if err := tx.First(&album, id).Error; err != nil {
			return err
		}

		var images []models.Image
		if err := tx.Where("album_id = ?", id).Find(&images).Error; err != nil {
			return fmt.Errorf("failed to list images of album ID %d: %w", id, err)
		}
		for i := range images {
			if err := deleteImageTx(tx, &images[i]); err != nil {
				return err
			}
			paths = append(paths, images[i].ImagePath)
		}

		if err := tx.Delete(&album).Error; err != nil {
			return fmt.Errorf("failed to delete album ID %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
