package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/camden-git/imagestore/models"
	"github.com/camden-git/imagestore/permissions"
	"github.com/camden-git/imagestore/repository"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// UserContextKey is the key used to store the user object in the request context.
	UserContextKey ContextKey = "user"
)

// AuthMiddleware creates a middleware handler for JWT authentication.
// It verifies the token and, if valid, fetches the user and adds them to the request context.
func AuthMiddleware(userRepo repository.UserRepository, jwtSecret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authorization header required")
			return
		}

		user, failure := authenticate(userRepo, jwtSecret, authHeader)
		if failure != nil {
			WriteAPIError(w, http.StatusUnauthorized, failure.code, failure.detail)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthMiddleware adds the user to the request context when a valid
// bearer token is present. Requests without one, or with a bad one, continue
// anonymously.
func OptionalAuthMiddleware(userRepo repository.UserRepository, jwtSecret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, failure := authenticate(userRepo, jwtSecret, authHeader)
		if failure != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, user)))
	})
}

type authFailure struct {
	code   string
	detail string
}

// authenticate resolves the user behind an "Authorization: Bearer <jwt>" header.
func authenticate(userRepo repository.UserRepository, jwtSecret []byte, authHeader string) (*models.User, *authFailure) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, &authFailure{"unauthorized", "Authorization header format must be Bearer {token}"}
	}
	tokenString := parts[1]

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, &authFailure{"invalid_token", "Invalid or expired token"}
	}

	var userID uint
	if _, err := fmt.Sscan(claims.Subject, &userID); err != nil {
		log.Printf("Error parsing userID from token subject '%s': %v", claims.Subject, err)
		return nil, &authFailure{"invalid_token", "Invalid user ID in token"}
	}

	user, err := userRepo.GetByID(userID)
	if err != nil {
		// the user was deleted after the token was issued
		return nil, &authFailure{"unauthorized", "User not found"}
	}
	return user, nil
}

// RequireGlobalPermission is a middleware that checks if the authenticated user has
// a specific global permission. It should be used after AuthMiddleware.
func RequireGlobalPermission(requiredPermission string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if user == nil {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "User not found in context")
			return
		}

		if !user.HasGlobalPermission(requiredPermission) {
			WriteAPIError(w, http.StatusForbidden, "forbidden", fmt.Sprintf("Forbidden: requires global permission '%s'", requiredPermission))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAnyGlobalPermission is a middleware that checks if the authenticated user has
// at least one of the specified global permissions. It should be used after AuthMiddleware.
func RequireAnyGlobalPermission(required []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if user == nil {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "User not found in context")
			return
		}

		for _, p := range required {
			if user.HasGlobalPermission(p) {
				next.ServeHTTP(w, r)
				return
			}
		}

		WriteAPIError(w, http.StatusForbidden, "forbidden",
			fmt.Sprintf("Forbidden: requires at least one of the following global permissions: %s", strings.Join(required, ", ")))
	})
}

// privateViewerPermissions lets a user see private albums and their images.
var privateViewerPermissions = []string{permissions.AlbumEdit, permissions.AlbumDelete, permissions.AlbumExport, permissions.ImageEdit}

func canViewPrivate(user *models.User) bool {
	if user == nil {
		return false
	}
	for _, p := range privateViewerPermissions {
		if user.HasGlobalPermission(p) {
			return true
		}
	}
	return false
}

func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(UserContextKey).(*models.User)
	return user
}

// currentUserID returns the authenticated user's ID, or nil for anonymous requests
func currentUserID(r *http.Request) *uint {
	user := currentUser(r)
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}

// RateLimitMiddleware allows perMinute requests a minute with bursts of the same
// size, answering 429 once the bucket is empty. A non-positive limit disables it.
func RateLimitMiddleware(perMinute int, next http.Handler) http.Handler {
	if perMinute <= 0 {
		return next
	}
	limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			WriteAPIError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
