package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/camden-git/imagestore/config"
	"github.com/camden-git/imagestore/database"
	"github.com/camden-git/imagestore/handlers"
	"github.com/camden-git/imagestore/media"
	"github.com/camden-git/imagestore/metrics"
	"github.com/camden-git/imagestore/realtime"
	"github.com/camden-git/imagestore/repository"
	"github.com/camden-git/imagestore/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.ImagesPath, cfg.TempPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	imagesSubDir, err := filepath.Rel(cfg.MediaStoragePath, cfg.ImagesPath)
	if err != nil {
		log.Fatalf("FATAL: Images directory %s is not below media storage: %v", cfg.ImagesPath, err)
	}
	tempSubDir, err := filepath.Rel(cfg.MediaStoragePath, cfg.TempPath)
	if err != nil {
		log.Fatalf("FATAL: Temp directory %s is not below media storage: %v", cfg.TempPath, err)
	}
	mediaStore, err := media.NewLocalStorage(cfg.MediaStoragePath, map[media.AssetType]string{
		media.AssetTypeImage:  imagesSubDir,
		media.AssetTypeUpload: tempSubDir,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}
	mediaProcessor := media.NewProcessor(mediaStore)
	mediaProcessor.SetMaxPixels(int64(cfg.MaxImagePixels))

	albumRepo := repository.NewAlbumRepository(db)
	imageRepo := repository.NewImageRepository(db)
	uploadRepo := repository.NewUploadRequestRepository(db)
	userRepo := repository.NewGormUserRepository(db)

	hub := realtime.NewHub()
	go hub.Run()
	importMetrics := metrics.NewImportMetrics(prometheus.DefaultRegisterer)

	importer := services.NewImporter(albumRepo, imageRepo, uploadRepo, mediaStore, mediaProcessor, hub, importMetrics)
	importer.SetMaxMemberBytes(cfg.MaxMemberBytes())

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing images in: %s", cfg.ImagesPath)
	log.Printf("Staging uploads in: %s", cfg.TempPath)
	log.Printf("Maximum upload size: %d MB (%d MB per archive member)", cfg.MaxUploadSizeMB, cfg.MaxMemberSizeMB)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	// websocket connections outlive any request timeout
	r.Get("/api/ws", hub.ServeWS)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Minute))
		handlers.RegisterRoutes(r, handlers.RouteDeps{
			DB:               db,
			AlbumRepo:        albumRepo,
			ImageRepo:        imageRepo,
			UserRepo:         userRepo,
			Store:            mediaStore,
			Importer:         importer,
			JWTSecret:        []byte(cfg.JWTSecret),
			MaxUploadBytes:   cfg.MaxUploadBytes(),
			LoginRatePerMin:  cfg.LoginRatePerMinute,
			MediaStoragePath: cfg.MediaStoragePath,
			ImagesSubDir:     imagesSubDir,
		})
	})

	serverAddr := ":" + cfg.Port
	fmt.Printf("Server starting on http://localhost:%s\n", cfg.Port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
