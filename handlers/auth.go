package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/camden-git/imagestore/models"
	"github.com/camden-git/imagestore/repository"
	"github.com/golang-jwt/jwt/v5"
)

const jwtExpirationHours = 24

type AuthHandler struct {
	UserRepo  repository.UserRepository
	JWTSecret []byte
}

func NewAuthHandler(userRepo repository.UserRepository, jwtSecret []byte) *AuthHandler {
	return &AuthHandler{UserRepo: userRepo, JWTSecret: jwtSecret}
}

type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request payload")
		return
	}

	user, err := h.UserRepo.GetByUsername(payload.Username)
	if err != nil || !user.CheckPassword(payload.Password) {
		WriteAPIError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return
	}

	tokenString, expirationTime, err := h.issueToken(user)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "token_error", "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     tokenString,
		User:      *user,
		ExpiresAt: expirationTime,
	})
}

func (h *AuthHandler) issueToken(user *models.User) (string, time.Time, error) {
	expirationTime := time.Now().Add(jwtExpirationHours * time.Hour)
	claims := &jwt.RegisteredClaims{
		Subject:   fmt.Sprint(user.ID),
		ExpiresAt: jwt.NewNumericDate(expirationTime),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Issuer:    "imagestore",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.JWTSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expirationTime, nil
}

// CurrentUser returns the authenticated user. It must sit behind AuthMiddleware.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Could not retrieve user from context")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
