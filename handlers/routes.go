package handlers

import (
	"net/http"

	"github.com/camden-git/imagestore/media"
	"github.com/camden-git/imagestore/permissions"
	"github.com/camden-git/imagestore/repository"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// RouteDeps carries everything the API routes need.
type RouteDeps struct {
	DB               *gorm.DB
	AlbumRepo        repository.AlbumRepositoryInterface
	ImageRepo        repository.ImageRepositoryInterface
	UserRepo         repository.UserRepository
	Store            media.Store
	Importer         ArchiveSubmitter
	JWTSecret        []byte
	MaxUploadBytes   int64
	LoginRatePerMin  int // zero disables login throttling
	MediaStoragePath string
	ImagesSubDir     string
}

// RegisterRoutes mounts the /api tree on r.
func RegisterRoutes(r chi.Router, deps RouteDeps) {
	albumHandler := NewAlbumHandler(deps.AlbumRepo, deps.ImageRepo, deps.Store)
	imageHandler := NewImageHandler(deps.ImageRepo, deps.AlbumRepo, deps.Store)
	uploadHandler := NewUploadHandler(deps.Importer, deps.MaxUploadBytes)
	authHandler := NewAuthHandler(deps.UserRepo, deps.JWTSecret)
	setupHandler := NewSetupHandler(deps.DB)
	permissionsHandler := NewPermissionsHandler()
	adminUserHandler := NewAdminUserHandler(deps.UserRepo)

	authenticated := func(permission string, h http.HandlerFunc) http.Handler {
		return AuthMiddleware(deps.UserRepo, deps.JWTSecret, RequireGlobalPermission(permission, h))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/setup", setupHandler.CreateFirstAdmin)
		r.Method(http.MethodPost, "/auth/login", RateLimitMiddleware(deps.LoginRatePerMin, http.HandlerFunc(authHandler.Login)))
		r.Method(http.MethodGet, "/auth/me", AuthMiddleware(deps.UserRepo, deps.JWTSecret, http.HandlerFunc(authHandler.CurrentUser)))
		r.Get("/permissions", permissionsHandler.ListDefinedPermissions)

		r.Route("/albums", func(r chi.Router) {
			r.Get("/", albumHandler.ListAlbums)
			r.Method(http.MethodPost, "/", authenticated(permissions.AlbumCreate, albumHandler.CreateAlbum))
			r.Route("/{album}", func(r chi.Router) {
				r.Get("/", albumHandler.GetAlbum)
				r.Get("/images", albumHandler.ListAlbumImages)
				r.Method(http.MethodPut, "/", authenticated(permissions.AlbumEdit, albumHandler.UpdateAlbum))
				r.Method(http.MethodDelete, "/", authenticated(permissions.AlbumDelete, albumHandler.DeleteAlbum))
				r.Method(http.MethodGet, "/zip", authenticated(permissions.AlbumExport, albumHandler.ExportAlbum))
			})
		})

		r.Method(http.MethodGet, "/admin/albums", AuthMiddleware(deps.UserRepo, deps.JWTSecret,
			RequireAnyGlobalPermission([]string{permissions.AlbumEdit, permissions.AlbumDelete, permissions.AlbumExport},
				http.HandlerFunc(albumHandler.ListAllAlbums))))

		r.Route("/admin/users", func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return AuthMiddleware(deps.UserRepo, deps.JWTSecret, RequireGlobalPermission(permissions.UserManage, next))
			})
			r.Get("/", adminUserHandler.ListUsers)
			r.Post("/", adminUserHandler.CreateUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", adminUserHandler.GetUser)
				r.Put("/", adminUserHandler.UpdateUser)
				r.Delete("/", adminUserHandler.DeleteUser)
			})
		})

		r.Route("/images", func(r chi.Router) {
			r.Get("/", imageHandler.ListImages)
			r.Route("/{image}", func(r chi.Router) {
				r.Get("/", imageHandler.GetImage)
				r.Method(http.MethodPut, "/", authenticated(permissions.ImageEdit, imageHandler.UpdateImage))
				r.Method(http.MethodDelete, "/", authenticated(permissions.ImageDelete, imageHandler.DeleteImage))
			})
		})

		r.Method(http.MethodPost, "/uploads", authenticated(permissions.UploadZip, uploadHandler.UploadZip))

		r.Method(http.MethodGet, "/media/*", OptionalAuthMiddleware(deps.UserRepo, deps.JWTSecret,
			AssetServer(deps.MediaStoragePath, deps.ImagesSubDir, deps.ImageRepo)))
	})
}
