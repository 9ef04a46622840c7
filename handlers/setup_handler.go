package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/camden-git/imagestore/models"
	"github.com/camden-git/imagestore/permissions"
	"gorm.io/gorm"
)

var errSetupCompleted = errors.New("setup already completed")

type SetupHandler struct {
	DB *gorm.DB
}

func NewSetupHandler(db *gorm.DB) *SetupHandler {
	return &SetupHandler{DB: db}
}

type FirstAdminPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateFirstAdmin creates the initial administrator with every defined
// permission. It is only usable while no users exist.
func (h *SetupHandler) CreateFirstAdmin(w http.ResponseWriter, r *http.Request) {
	var payload FirstAdminPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request payload: "+err.Error())
		return
	}

	payload.Username = strings.TrimSpace(payload.Username)
	if payload.Username == "" || payload.Password == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Username and password are required")
		return
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count existing users in transaction: %w", err)
		}
		if count > 0 {
			return errSetupCompleted
		}

		adminUser := &models.User{
			Username:          payload.Username,
			GlobalPermissions: permissions.GetAllPermissionKeys(),
		}
		if err := adminUser.SetPassword(payload.Password); err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if err := tx.Create(adminUser).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Printf("Successfully created initial admin user '%s' with all permissions.", adminUser.Username)
		return nil
	})

	if txErr != nil {
		if errors.Is(txErr, errSetupCompleted) {
			WriteAPIError(w, http.StatusForbidden, "setup_completed", "Setup has already been completed.")
		} else {
			log.Printf("Error creating first admin user: %v", txErr)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to create first admin user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "Initial admin user created successfully. Please log in."})
}
