package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/camden-git/imagestore/services"
)

const multipartMemoryLimit = 32 << 20

// ArchiveSubmitter imports an uploaded zip archive.
type ArchiveSubmitter interface {
	Submit(ctx context.Context, req services.SubmitRequest) (*services.ImportResult, error)
}

type UploadHandler struct {
	Importer       ArchiveSubmitter
	MaxUploadBytes int64
}

func NewUploadHandler(importer ArchiveSubmitter, maxUploadBytes int64) *UploadHandler {
	return &UploadHandler{Importer: importer, MaxUploadBytes: maxUploadBytes}
}

// UploadZip accepts a multipart form with a zip_file and optional album_id,
// new_album_name and tags fields, and imports the archive synchronously.
func (h *UploadHandler) UploadZip(w http.ResponseWriter, r *http.Request) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			WriteAPIError(w, http.StatusRequestEntityTooLarge, "upload_too_large", "Uploaded archive exceeds the size limit")
			return
		}
		WriteAPIError(w, http.StatusBadRequest, "invalid_form", "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("zip_file")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "missing_file", "zip_file is required")
		return
	}
	defer file.Close()

	req := services.SubmitRequest{
		ArchiveName:  header.Filename,
		Archive:      file,
		NewAlbumName: r.FormValue("new_album_name"),
		Tags:         r.FormValue("tags"),
		UserID:       currentUserID(r),
	}
	if albumParam := strings.TrimSpace(r.FormValue("album_id")); albumParam != "" {
		albumID, err := strconv.ParseUint(albumParam, 10, 64)
		if err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_album", "album_id must be a numeric ID")
			return
		}
		id := uint(albumID)
		req.AlbumID = &id
	}

	result, err := h.Importer.Submit(r.Context(), req)
	if err != nil {
		writeImportError(w, header.Filename, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
