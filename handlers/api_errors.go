package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/camden-git/imagestore/services"
)

// error codes returned by the import endpoint
const (
	codeInvalidArchive = "invalid_archive"
	codeAlbumNotFound  = "album_not_found"
	codeImportAborted  = "import_aborted"
	codeInternal       = "internal_error"
)

// APIErrorDetail is one entry of an error response. Meta carries extra context
// such as the archive member that failed.
type APIErrorDetail struct {
	Code   string            `json:"code"`
	Status string            `json:"status"`
	Detail string            `json:"detail"`
	Meta   map[string]string `json:"meta,omitempty"`
}

// APIErrorResponse is the body of every error response.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a single error with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	writeAPIErrorDetail(w, httpStatus, APIErrorDetail{Code: code, Detail: detail})
}

func writeAPIErrorDetail(w http.ResponseWriter, httpStatus int, detail APIErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	detail.Status = strconv.Itoa(httpStatus)
	_ = json.NewEncoder(w).Encode(APIErrorResponse{Errors: []APIErrorDetail{detail}})
}

// writeImportError maps an Importer.Submit failure to a response: unreadable
// archives are 422 with the failing member in meta, an unknown target album is
// 404 and an interrupted import is 503.
func writeImportError(w http.ResponseWriter, archiveName string, err error) {
	var archiveErr *services.ArchiveError
	switch {
	case errors.As(err, &archiveErr):
		detail := APIErrorDetail{Code: codeInvalidArchive, Detail: archiveErr.Err.Error()}
		if archiveErr.Member != "" {
			detail.Meta = map[string]string{"member": archiveErr.Member}
		}
		writeAPIErrorDetail(w, http.StatusUnprocessableEntity, detail)
	case errors.Is(err, services.ErrAlbumNotFound):
		WriteAPIError(w, http.StatusNotFound, codeAlbumNotFound, "Album not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Printf("Upload of %s aborted: %v", archiveName, err)
		WriteAPIError(w, http.StatusServiceUnavailable, codeImportAborted, "Import was interrupted before it completed")
	default:
		log.Printf("Error importing %s: %v", archiveName, err)
		WriteAPIError(w, http.StatusInternalServerError, codeInternal, "Failed to import archive")
	}
}
