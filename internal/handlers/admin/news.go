package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/vitrinecommerce/api/internal/services/news"
	"github.com/vitrinecommerce/api/internal/storage"
	"github.com/vitrinecommerce/api/internal/upload"
)

// NewsHandler handles admin news management endpoints.
type NewsHandler struct {
	news     *news.Service
	receiver upload.Receiver
	logger   *slog.Logger
}

// NewNewsHandler creates a news handler.
func NewNewsHandler(newsSvc *news.Service, logger *slog.Logger) *NewsHandler {
	return &NewsHandler{news: newsSvc, logger: logger}
}

// RegisterRoutes registers news admin routes on the given mux.
func (h *NewsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/news", h.List)
	mux.HandleFunc("POST /admin/news", h.Create)
	mux.HandleFunc("GET /admin/news/{id}", h.Get)
	mux.HandleFunc("DELETE /admin/news/{id}", h.Delete)
}

// Create handles POST /admin/news: multipart form with title, slug, body,
// published and an optional "cover" file.
func (h *NewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	title := r.FormValue("title")
	slug := r.FormValue("slug")
	if title == "" || slug == "" {
		writeError(w, http.StatusBadRequest, "title and slug are required")
		return
	}

	var cover *storage.Upload
	if headers := r.MultipartForm.File["cover"]; len(headers) > 0 {
		file, closer, err := h.receiver.Open(headers[0])
		if err != nil {
			writeError(w, uploadStatus(err), err.Error())
			return
		}
		defer closer.Close()
		cover = &file
	}

	p, err := h.news.Create(r.Context(), news.CreateInput{
		Title:     title,
		Slug:      slug,
		Body:      r.FormValue("body"),
		Published: r.FormValue("published") == "true",
		Cover:     cover,
	})
	if err != nil {
		if errors.Is(err, news.ErrSlugTaken) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to create news post", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// Get handles GET /admin/news/{id}.
func (h *NewsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid news ID")
		return
	}

	p, err := h.news.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, news.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to get news post", "error", err, "post_id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// List handles GET /admin/news.
func (h *NewsHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.news.List(r.Context(), false)
	if err != nil {
		h.logger.Error("failed to list news posts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"news": posts})
}

// Delete handles DELETE /admin/news/{id}.
func (h *NewsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid news ID")
		return
	}

	if err := h.news.Delete(r.Context(), id); err != nil {
		if errors.Is(err, news.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to delete news post", "error", err, "post_id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
