package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/camden-git/imagestore/repository"
	"gorm.io/gorm"
)

// MediaRoutePrefix is the URL prefix under which stored payloads are served.
// An image's ImagePath appended to it gives the payload URL.
const MediaRoutePrefix = "/api/media/"

// AssetServer creates a handler serving image payloads below baseStoragePath/subDir.
// The request path after MediaRoutePrefix is the storage relative path, so only
// paths beginning with subDir are reachable. A file is served only when it
// belongs to an image, and images of private albums only to users allowed to
// see private albums (see OptionalAuthMiddleware). example usage:
//
//	r.Get("/media/*", handlers.AssetServer(cfg.MediaStoragePath, "images", imageRepo))
func AssetServer(baseStoragePath, subDir string, images repository.ImageRepositoryInterface) http.HandlerFunc {
	baseStoragePath = filepath.Clean(baseStoragePath)
	fullAssetDirPath := filepath.Clean(filepath.Join(baseStoragePath, subDir))
	log.Printf("Serving assets for '%s%s/*' from directory: %s", MediaRoutePrefix, subDir, fullAssetDirPath)

	if !strings.HasPrefix(fullAssetDirPath, baseStoragePath+string(os.PathSeparator)) {
		log.Fatalf("FATAL: Asset subdirectory '%s' resolved outside base storage path '%s'. Resolved path: '%s'", subDir, baseStoragePath, fullAssetDirPath)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := strings.TrimPrefix(r.URL.Path, MediaRoutePrefix)
		if relativePath == "" || strings.Contains(relativePath, "..") {
			WriteAPIError(w, http.StatusBadRequest, "invalid_path", "Invalid asset path")
			return
		}

		cleanedAssetPath := filepath.Clean(filepath.Join(baseStoragePath, filepath.FromSlash(relativePath)))
		if !strings.HasPrefix(cleanedAssetPath, fullAssetDirPath+string(os.PathSeparator)) {
			log.Printf("SECURITY: Attempted asset access outside designated directory: Request='%s', Resolved='%s', Allowed Base='%s'",
				r.URL.Path, cleanedAssetPath, fullAssetDirPath)
			WriteAPIError(w, http.StatusForbidden, "forbidden", "Forbidden")
			return
		}

		info, err := os.Stat(cleanedAssetPath)
		if os.IsNotExist(err) || (err == nil && info.IsDir()) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			log.Printf("Error stating asset file %s: %v", cleanedAssetPath, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error")
			return
		}

		storagePath := filepath.ToSlash(strings.TrimPrefix(cleanedAssetPath, baseStoragePath+string(os.PathSeparator)))
		image, err := images.GetByImagePath(storagePath)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			log.Printf("Error looking up image for asset %s: %v", storagePath, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error")
			return
		}

		public := image.Album != nil && image.Album.IsPublic
		if !public && !canViewPrivate(currentUser(r)) {
			// private images look missing to everyone else
			http.NotFound(w, r)
			return
		}

		cacheDuration := 24 * time.Hour
		visibility := "public"
		if !public {
			visibility = "private"
		}
		w.Header().Set("Cache-Control", fmt.Sprintf("%s, max-age=%d", visibility, int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))

		http.ServeFile(w, r, cleanedAssetPath)
	}
}
