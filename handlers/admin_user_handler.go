package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/camden-git/imagestore/models"
	"github.com/camden-git/imagestore/permissions"
	"github.com/camden-git/imagestore/repository"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type AdminUserHandler struct {
	UserRepo repository.UserRepository
}

func NewAdminUserHandler(userRepo repository.UserRepository) *AdminUserHandler {
	return &AdminUserHandler{UserRepo: userRepo}
}

type UserCreatePayload struct {
	Username          string   `json:"username"`
	Password          string   `json:"password"`
	GlobalPermissions []string `json:"global_permissions"`
}

type UserUpdatePayload struct {
	Username          *string   `json:"username,omitempty"`
	Password          *string   `json:"password,omitempty"`
	GlobalPermissions *[]string `json:"global_permissions,omitempty"`
}

// UserResponseDTO is a User without sensitive data
type UserResponseDTO struct {
	ID                uint     `json:"id"`
	Username          string   `json:"username"`
	GlobalPermissions []string `json:"global_permissions"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

func toUserResponseDTO(user *models.User) UserResponseDTO {
	perms := user.GlobalPermissions
	if perms == nil {
		perms = []string{}
	}
	return UserResponseDTO{
		ID:                user.ID,
		Username:          user.Username,
		GlobalPermissions: perms,
		CreatedAt:         user.CreatedAt.Format(http.TimeFormat),
		UpdatedAt:         user.UpdatedAt.Format(http.TimeFormat),
	}
}

func validatePermissionKeys(keys []string) error {
	for _, key := range keys {
		if !permissions.IsValidPermissionKey(key) {
			return fmt.Errorf("invalid global permission key: %s", key)
		}
	}
	return nil
}

func (h *AdminUserHandler) loadUser(w http.ResponseWriter, r *http.Request) *models.User {
	userID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Invalid user ID format")
		return nil
	}

	user, err := h.UserRepo.GetByID(uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "User not found")
		} else {
			log.Printf("Error retrieving user %d: %v", userID, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve user")
		}
		return nil
	}
	return user
}

func (h *AdminUserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserRepo.ListAll()
	if err != nil {
		log.Printf("Error listing users: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve users")
		return
	}

	dtos := make([]UserResponseDTO, len(users))
	for i := range users {
		dtos[i] = toUserResponseDTO(&users[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *AdminUserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user := h.loadUser(w, r)
	if user == nil {
		return
	}
	writeJSON(w, http.StatusOK, toUserResponseDTO(user))
}

func (h *AdminUserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var payload UserCreatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request payload: "+err.Error())
		return
	}

	payload.Username = strings.TrimSpace(payload.Username)
	if payload.Username == "" || payload.Password == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Username and password are required")
		return
	}
	if err := validatePermissionKeys(payload.GlobalPermissions); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_permission", err.Error())
		return
	}

	user := &models.User{
		Username:          payload.Username,
		GlobalPermissions: payload.GlobalPermissions,
	}
	if err := user.SetPassword(payload.Password); err != nil {
		log.Printf("Error hashing password for new user %s: %v", payload.Username, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to create user")
		return
	}

	if err := h.UserRepo.Create(user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			WriteAPIError(w, http.StatusConflict, "username_taken", "Username already exists")
		} else {
			log.Printf("Error creating user %s: %v", user.Username, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponseDTO(user))
}

func (h *AdminUserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user := h.loadUser(w, r)
	if user == nil {
		return
	}

	var payload UserUpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request payload: "+err.Error())
		return
	}

	if payload.Username != nil {
		username := strings.TrimSpace(*payload.Username)
		if username == "" {
			WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Username cannot be empty")
			return
		}
		user.Username = username
	}
	if payload.Password != nil && *payload.Password != "" {
		if err := user.SetPassword(*payload.Password); err != nil {
			log.Printf("Error hashing password for user %d: %v", user.ID, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to update user")
			return
		}
	}
	if payload.GlobalPermissions != nil {
		if err := validatePermissionKeys(*payload.GlobalPermissions); err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_permission", err.Error())
			return
		}
		user.GlobalPermissions = *payload.GlobalPermissions
	}

	if err := h.UserRepo.Update(user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			WriteAPIError(w, http.StatusConflict, "username_taken", "Username already exists")
		} else {
			log.Printf("Error updating user %d: %v", user.ID, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to update user")
		}
		return
	}

	writeJSON(w, http.StatusOK, toUserResponseDTO(user))
}

// DeleteUser removes a user. Users cannot delete themselves.
func (h *AdminUserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user := h.loadUser(w, r)
	if user == nil {
		return
	}
	if current := currentUser(r); current != nil && current.ID == user.ID {
		WriteAPIError(w, http.StatusBadRequest, "self_delete", "You cannot delete your own account")
		return
	}

	if err := h.UserRepo.Delete(user.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "User not found")
		} else {
			log.Printf("Error deleting user %d: %v", user.ID, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to delete user")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
