package repository

import (
	"errors"
	"strings"

	"github.com/camden-git/imagestore/database"
	"github.com/camden-git/imagestore/models"
	"gorm.io/gorm"
)

// ErrSlugTaken is returned when a write loses a race for a unique slug.
var ErrSlugTaken = errors.New("slug already taken")

// ErrUsernameTaken is returned when a user write collides with an existing username.
var ErrUsernameTaken = errors.New("username already taken")

// AlbumRepositoryInterface defines the methods for album data operations
type AlbumRepositoryInterface interface {
	Create(album *models.Album) error
	ListAll() ([]models.Album, error)
	ListAllAdmin() ([]models.Album, error)
	GetByID(id uint) (*models.Album, error)
	GetBySlug(slug string) (*models.Album, error)
	SlugExists(slug string) (bool, error)
	SlugExistsExcept(slug string, id uint) (bool, error)
	Update(album *models.Album) error
	DeleteWithImages(id uint) ([]string, error)
}

// ImageRepositoryInterface defines the methods for image data operations
type ImageRepositoryInterface interface {
	Create(image *models.Image) error
	GetByID(id uint) (*models.Image, error)
	GetBySlug(slug string) (*models.Image, error)
	GetByImagePath(imagePath string) (*models.Image, error)
	SlugExists(slug string) (bool, error)
	SlugExistsExcept(slug string, id uint) (bool, error)
	ListByAlbum(albumID uint, sortOrder string) ([]models.Image, error)
	Search(filter database.ImageFilter) ([]models.Image, error)
	CountByAlbum(albumID uint) (int64, error)
	Update(image *models.Image) error
	SetRelations(imageID uint, relatedImageIDs, relatedArticleIDs []uint) error
	Delete(id uint) error
}

// UploadRequestRepositoryInterface defines the methods for transient upload records
type UploadRequestRepositoryInterface interface {
	Create(req *models.UploadRequest) error
	GetByID(id uint) (*models.UploadRequest, error)
	Delete(id uint) error
}

// UserRepository defines the methods for user data operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	Count() (int64, error)
	ListAll() ([]models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
}

// isUniqueViolation recognises unique constraint failures whether or not the
// dialector translated them.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
