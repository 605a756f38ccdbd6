package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vitrinecommerce/api/internal/storage"
	"github.com/vitrinecommerce/api/internal/upload"
)

// maxUploadMemory bounds how much of a multipart body stays in memory
// before spilling to temp files.
const maxUploadMemory = 32 << 20

// MediaHandler exposes direct media upload and deletion endpoints.
type MediaHandler struct {
	store    *storage.MediaStore
	receiver upload.Receiver
	logger   *slog.Logger
}

// NewMediaHandler creates a media handler.
func NewMediaHandler(store *storage.MediaStore, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{store: store, logger: logger}
}

// RegisterRoutes registers media admin routes on the given mux.
func (h *MediaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/media", h.Upload)
	mux.HandleFunc("DELETE /admin/media", h.Delete)
}

// Upload handles POST /admin/media: multipart "files" plus an optional
// "folder" field. The whole batch is validated before any backend write and
// persisted all-or-nothing.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	files, closeAll, err := h.receiver.OpenAll(headers)
	if err != nil {
		writeError(w, uploadStatus(err), err.Error())
		return
	}
	defer closeAll()

	descriptors, err := h.store.PersistMedia(r.Context(), files, r.FormValue("folder"))
	if err != nil {
		h.logger.Error("media upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"media": descriptors})
}

// Delete handles DELETE /admin/media with a JSON body of stored paths.
// Missing objects count as deleted.
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths []string `json:"paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "paths required")
		return
	}

	targets := h.store.ResolveTargets(storage.PathRefs(req.Paths))
	if err := h.store.Remove(r.Context(), targets); err != nil {
		h.logger.Error("media delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// uploadStatus maps validation errors to client statuses.
func uploadStatus(err error) int {
	switch {
	case errors.Is(err, upload.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, upload.ErrInvalidContentType), errors.Is(err, upload.ErrInvalidMagicBytes):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadRequest
	}
}
