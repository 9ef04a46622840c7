package repository

import (
	"fmt"
	"time"

	"github.com/camden-git/imagestore/models"
	"gorm.io/gorm"
)

// UploadRequestRepository persists the transient record of a zip submission
type UploadRequestRepository struct {
	DB *gorm.DB
}

func NewUploadRequestRepository(db *gorm.DB) *UploadRequestRepository {
	return &UploadRequestRepository{DB: db}
}

func (r *UploadRequestRepository) Create(req *models.UploadRequest) error {
	if req.CreatedAt == 0 {
		req.CreatedAt = time.Now().Unix()
	}
	if err := r.DB.Create(req).Error; err != nil {
		return fmt.Errorf("failed to create upload request for %s: %w", req.ArchiveName, err)
	}
	return nil
}

func (r *UploadRequestRepository) GetByID(id uint) (*models.UploadRequest, error) {
	var req models.UploadRequest
	if err := r.DB.First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// Delete hard-deletes the record. Deleting a missing record is not an error.
func (r *UploadRequestRepository) Delete(id uint) error {
	if err := r.DB.Delete(&models.UploadRequest{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete upload request ID %d: %w", id, err)
	}
	return nil
}
