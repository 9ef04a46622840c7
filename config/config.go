package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultImagesSubDir  = "images"
	DefaultUploadsSubDir = "temp"
)

const (
	defaultMaxUploadSizeMB = 512
	defaultPort            = "8080"
	defaultLoginRatePerMin = 30
	defaultMaxMemberSizeMB = 64
	defaultMaxImagePixels  = 89478485
)

type Config struct {
	// database path
	DatabasePath string

	// media storage configuration
	MediaStoragePath string // root for stored image payloads and incoming archives
	ImagesPath       string // full-calculated path for imported images
	TempPath         string // full-calculated path for incoming archives (TEMP_DIR)

	// upload limits
	MaxUploadSizeMB int

	// limits applied to each archive member: inflated size and declared pixel count
	MaxMemberSizeMB int
	MaxImagePixels  int

	// login attempts allowed per minute across all clients
	LoginRatePerMinute int

	// http settings
	Port           string
	AllowedOrigins []string

	// token signing secret for the admin API
	JWTSecret string
}

// MaxMemberBytes is the per-member inflated size limit derived from MaxMemberSizeMB.
func (c Config) MaxMemberBytes() int64 {
	return int64(c.MaxMemberSizeMB) << 20
}

// MaxUploadBytes is the multipart body limit derived from MaxUploadSizeMB.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) << 20
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvListOrDefault(envVar string, defaultVal []string) []string {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "imagestore.db")

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	imagesSubDir := getEnvOrDefault("IMAGES_SUBDIR", DefaultImagesSubDir)
	tempSubDir := getEnvOrDefault("TEMP_DIR", DefaultUploadsSubDir)
	if filepath.IsAbs(tempSubDir) || filepath.IsAbs(imagesSubDir) {
		return Config{}, fmt.Errorf("IMAGES_SUBDIR and TEMP_DIR must be relative to MEDIA_STORAGE_PATH")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Printf("Warning: JWT_SECRET not set, using an insecure development secret")
		jwtSecret = "imagestore-dev-secret"
	}

	cfg := Config{
		DatabasePath:       dbPath,
		MediaStoragePath:   absMediaStorage,
		ImagesPath:         filepath.Join(absMediaStorage, imagesSubDir),
		TempPath:           filepath.Join(absMediaStorage, tempSubDir),
		MaxUploadSizeMB:    getEnvIntOrDefault("MAX_UPLOAD_SIZE_MB", defaultMaxUploadSizeMB),
		MaxMemberSizeMB:    getEnvIntOrDefault("MAX_MEMBER_SIZE_MB", defaultMaxMemberSizeMB),
		MaxImagePixels:     getEnvIntOrDefault("MAX_IMAGE_PIXELS", defaultMaxImagePixels),
		LoginRatePerMinute: getEnvIntOrDefault("LOGIN_RATE_PER_MINUTE", defaultLoginRatePerMin),
		Port:               getEnvOrDefault("PORT", defaultPort),
		AllowedOrigins:     getEnvListOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		JWTSecret:          jwtSecret,
	}

	return cfg, nil
}
